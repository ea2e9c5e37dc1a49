package hub

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ws-gateway/auth"
	"github.com/ws-gateway/peer"
	"github.com/ws-gateway/wire"
)

// Session 代表一个已认证的客户端连接，消息收发的处理逻辑
type Session struct {
	*peer.Peer
	hub *Hub

	UserID      string
	DisplayName string
	ConnectedAt time.Time

	// serverRooms is the server-room set captured at connect time.
	// Presence broadcasts target this set for the whole session lifetime,
	// membership changes mid-session are not reflected.
	serverRooms []string

	// rooms 当前已加入的广播组
	mu    sync.Mutex
	rooms map[string]struct{}
}

func newSession(h *Hub, ident *auth.Identity, serverIDs []string) *Session {
	session := &Session{
		hub:         h,
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		ConnectedAt: time.Now(),
		rooms:       make(map[string]struct{}),
	}
	for _, serverID := range serverIDs {
		session.serverRooms = append(session.serverRooms, serverRoom(serverID))
	}

	p := peer.NewPeer(uuid.NewString(), &peer.Config{
		Listeners: &peer.MessageListeners{
			OnMessage:    session.OnMessage,
			OnDisconnect: session.OnDisconnect,
		},
		MaxMessageSize: h.config.Peer.MaxMessageSize,
		WriteWait:      time.Duration(h.config.Peer.WriteWait) * time.Second,
		PongWait:       time.Duration(h.config.Peer.PongWait) * time.Second,
		PingPeriod:     time.Duration(h.config.Peer.PingPeriod) * time.Second,
	})
	session.Peer = p

	return session
}

// OnMessage 接收消息
func (s *Session) OnMessage(message []byte) error {
	return s.hub.dispatch(s, message)
}

// OnDisconnect 接连断开
func (s *Session) OnDisconnect() error {
	s.hub.unregister <- &delSession{session: s}
	return nil
}

// Send marshals one event to this session only.
func (s *Session) Send(event string, payload interface{}) {
	frame, err := wire.Marshal(event, payload)
	if err != nil {
		log.Printf("marshal %v to %v: %v", event, s.ID(), err)
		return
	}
	s.PushMessage(frame, nil)
}

func (s *Session) trackRoom(ID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[ID] = struct{}{}
}

func (s *Session) untrackRoom(ID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, ID)
}

func (s *Session) roomIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rooms))
	for ID := range s.rooms {
		ids = append(ids, ID)
	}
	return ids
}
