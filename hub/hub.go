package hub

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ws-gateway/auth"
	"github.com/ws-gateway/config"
	"github.com/ws-gateway/database"
	"github.com/ws-gateway/ratelimit"
	"github.com/ws-gateway/wire"
)

var errMissingStore = errors.New("config is missing a store")

type addSession struct {
	session *Session
	done    chan struct{}
}

type delSession struct {
	session *Session
	done    chan struct{}
}

// Hub 是一个服务中心，所有在线 Session 和广播组都挂在它下面
type Hub struct {
	upgrader *websocket.Upgrader
	config   *config.Config
	verifier auth.Verifier
	limiter  *ratelimit.Limiter

	messages  database.MessageStore
	snapshots database.SnapshotStore
	status    database.StatusCache

	// sessions 缓存在线连接，rooms 缓存广播组
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]*Room

	handlers map[string]handlerFunc

	register   chan *addSession
	unregister chan *delSession
	quit       chan struct{}
}

// NewHub 创建一个 Hub 对象，并初始化
func NewHub(cfg *config.Config) (*Hub, error) {
	if cfg.MessageStore == nil || cfg.SnapshotStore == nil || cfg.StatusCache == nil {
		return nil, errMissingStore
	}
	var upgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.Server.Origin == "*" {
				return true
			}
			rOrigin := r.Header.Get("Origin")
			if strings.Contains(cfg.Server.Origin, rOrigin) {
				return true
			}
			log.Println("refuse", rOrigin)
			return false
		},
	}

	hub := &Hub{
		upgrader:   upgrader,
		config:     cfg,
		verifier:   auth.NewJWTVerifier(cfg.Server.Secret),
		limiter:    ratelimit.NewLimiter(limiterConfigs(&cfg.RateLimit)),
		messages:   cfg.MessageStore,
		snapshots:  cfg.SnapshotStore,
		status:     cfg.StatusCache,
		sessions:   make(map[string]*Session, 1000),
		rooms:      make(map[string]*Room, 100),
		register:   make(chan *addSession, 1),
		unregister: make(chan *delSession, 1),
		quit:       make(chan struct{}),
	}
	hub.handlers = map[string]handlerFunc{
		wire.EvJoinChannel:      hub.onJoinChannel,
		wire.EvLeaveChannel:     hub.onLeaveChannel,
		wire.EvMessage:          hub.onMessage,
		wire.EvTypingStart:      hub.onTypingStart,
		wire.EvTypingStop:       hub.onTypingStop,
		wire.EvVoiceStateUpdate: hub.onVoiceState,
	}

	go hub.sessionHandler()

	return hub, nil
}

// Run serves websocket connections until Close
func (h *Hub) Run() {
	go httplisten(h, &h.config.Server)

	<-h.quit
}

func (h *Hub) sessionHandler() {
	log.Println("start sessionHandler")
	for {
		select {
		case p := <-h.register:
			session := p.session
			h.mu.Lock()
			h.sessions[session.ID()] = session
			count := len(h.sessions)
			h.mu.Unlock()

			// one room per server the user belongs to, captured for the
			// whole session lifetime. Tracked before the packet is queued
			// so a teardown racing the join still covers the room.
			for _, roomID := range session.serverRooms {
				room := h.getOrCreateRoom(roomID)
				session.trackRoom(roomID)
				room.packet <- &roomPacket{use: useForJoin, session: session}
			}
			h.setStatus(session, database.StatusOnline)

			log.Printf("client %v connected, %v online", session.UserID, count)
			if p.done != nil {
				p.done <- struct{}{}
			}
		case p := <-h.unregister:
			session := p.session
			h.mu.Lock()
			_, ok := h.sessions[session.ID()]
			if ok {
				delete(h.sessions, session.ID())
			}
			h.mu.Unlock()

			if ok {
				// teardown is unconditional: presence first, then room
				// membership, then the rate limiter's connection mark
				h.setStatus(session, database.StatusOffline)
				for _, roomID := range session.roomIDs() {
					if room := h.getRoom(roomID); room != nil {
						done := make(chan struct{}, 1)
						room.packet <- &roomPacket{use: useForLeave, session: session, done: done}
						<-done
					}
				}
				h.limiter.ReleaseConn(session.ID())
				log.Printf("client %v disconnected", session.UserID)
			}
			if p.done != nil {
				p.done <- struct{}{}
			}
		}
	}
}

func (h *Hub) getRoom(ID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[ID]
}

func (h *Hub) hasSession(ID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[ID]
	return ok
}

func (h *Hub) getOrCreateRoom(ID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[ID]
	if !ok {
		room = newRoom(h, ID)
		h.rooms[ID] = room
	}
	return room
}

func serverRoom(serverID string) string {
	return fmt.Sprintf("server:%v", serverID)
}

func channelRoom(channelID string) string {
	return fmt.Sprintf("channel:%v", channelID)
}

// limiterConfigs starts from the built-in defaults and overrides every
// action whose limit is configured.
func limiterConfigs(rc *config.RateLimitConfig) map[ratelimit.Action]ratelimit.Config {
	configs := ratelimit.DefaultConfigs()
	if rc.ConnectionLimit > 0 {
		configs[ratelimit.ActionConnection] = ratelimit.Config{
			Capacity: rc.ConnectionLimit,
			Window:   time.Duration(rc.ConnectionWindow) * time.Second,
			Block:    time.Duration(rc.ConnectionBlock) * time.Second,
		}
	}
	if rc.MessageLimit > 0 {
		configs[ratelimit.ActionMessage] = ratelimit.Config{
			Capacity: rc.MessageLimit,
			Window:   time.Duration(rc.MessageWindow) * time.Second,
			Block:    time.Duration(rc.MessageBlock) * time.Second,
		}
	}
	if rc.TypingLimit > 0 {
		configs[ratelimit.ActionTyping] = ratelimit.Config{
			Capacity: rc.TypingLimit,
			Window:   time.Duration(rc.TypingWindow) * time.Second,
			Block:    time.Duration(rc.TypingBlock) * time.Second,
		}
	}
	return configs
}

// Close close hub
func (h *Hub) Close() {
	h.clean()

	h.quit <- struct{}{}
}

// clean clean hub
func (h *Hub) clean() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		sessions = append(sessions, session)
	}
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	for _, room := range rooms {
		room.Exit()
	}

	time.Sleep(time.Second)
}
