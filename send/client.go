package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ws-gateway/auth"
	"github.com/ws-gateway/wire"
)

var (
	addr    = flag.String("addr", "localhost:8080", "gateway address")
	secret  = flag.String("secret", "xxx123456", "token signing secret")
	channel = flag.String("channel", "lobby", "channel to flood")
	users   = flag.String("users", "alice,bob,carol", "comma-separated member user ids, cycled across connections")
	clients = flag.Int("clients", 10, "concurrent connections")
	num     = flag.Int("num", 10, "messages per connection")
)

func dial(userID string) (*websocket.Conn, error) {
	token, err := auth.Sign(*secret, userID, userID, time.Hour)
	if err != nil {
		return nil, err
	}
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

func flood(userID string, sent *int64) error {
	conn, err := dial(userID)
	if err != nil {
		return err
	}
	defer conn.Close()

	// inbound frames must be drained or the server queues back up
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	frame, err := wire.Marshal(wire.EvJoinChannel, *channel)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}

	for index := 0; index < *num; index++ {
		frame, err := wire.Marshal(wire.EvMessage, &wire.MessageData{
			ChannelID: *channel,
			Content:   fmt.Sprintf("%v#%v", userID, index),
		})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
		atomic.AddInt64(sent, 1)
	}
	return nil
}

func main() {
	flag.Parse()

	// the ids must belong to server members, a non-member's join and
	// messages are silently denied
	ids := strings.Split(*users, ",")
	if len(ids) == 0 || ids[0] == "" {
		log.Fatalln("no user ids")
	}

	var sent int64
	wg := sync.WaitGroup{}
	t1 := time.Now()
	for index := 0; index < *clients; index++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			if err := flood(ids[index%len(ids)], &sent); err != nil {
				log.Println(err)
			}
		}(index)
	}
	wg.Wait()

	log.Printf("sent %v messages over %v connections, cost time: %v", sent, *clients, time.Since(t1))
}
