package main

import (
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/ws-gateway/config"
	"github.com/ws-gateway/database"
	"github.com/ws-gateway/hub"
	"github.com/ws-gateway/permission"

	_ "github.com/go-sql-driver/mysql"
)

func handleInterrupt(hub *hub.Hub, sc chan os.Signal) {
	select {
	case <-sc:
		hub.Close()
	}
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	// read config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Panicln(err)
	}

	if cfg.Mysql.IP == "" {
		// dev mode, everything in memory
		cfg.MessageStore, cfg.SnapshotStore = devStores()
	} else {
		engine, err := database.InitDb(cfg.Mysql.IP, cfg.Mysql.Port, cfg.Mysql.User, cfg.Mysql.Password, cfg.Mysql.DbName)
		if err != nil {
			log.Panicln(err)
		}
		store := database.NewMysqlStore(engine)
		cfg.MessageStore = store
		cfg.SnapshotStore = store
	}

	if cfg.Redis.IP == "" {
		cfg.StatusCache = database.NewMemStatusCache()
	} else {
		cfg.StatusCache = database.NewRedisStatusCache(database.InitRedis(cfg.Redis.IP, cfg.Redis.Port, cfg.Redis.Password))
	}

	// new server
	hub, err := hub.NewHub(cfg)
	if err != nil {
		log.Panicln(err)
	}
	// listen sys.exit
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt)

	go handleInterrupt(hub, sc)

	hub.Run()
}

// devStores seeds one demo server so the gateway is usable without mysql.
// alice and bob match the chat client defaults.
func devStores() (database.MessageStore, database.SnapshotStore) {
	store := database.NewMemStore()
	store.AddServer(&database.Server{ID: "demo", Name: "demo", OwnerID: "alice", CreateAt: time.Now()})
	store.AddChannel(&database.Channel{ID: "lobby", ServerID: "demo", Name: "lobby", Type: "text", CreateAt: time.Now()})
	store.AddChannel(&database.Channel{ID: "random", ServerID: "demo", Name: "random", Type: "text", CreateAt: time.Now()})
	for _, role := range permission.DefaultRoles("demo") {
		store.AddRole(role)
	}
	for _, userID := range []string{"alice", "bob", "carol"} {
		store.AddMember(&database.Member{
			ServerID: "demo",
			UserID:   userID,
			Roles:    []string{permission.EveryoneRole},
			JoinedAt: time.Now(),
		})
	}
	log.Println("mysql not configured, using seeded in-memory store")
	return store, store
}
