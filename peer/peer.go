package peer

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	defaultPingPeriod = (defaultPongWait * 8) / 10

	// Maximum message size allowed from peer.
	defaultMaxMessageSize = 4096
)

// MessageListeners 消息监听
type MessageListeners struct {
	// OnMessage is invoked for every frame the peer reads. Frames are
	// handled one at a time so one connection's events keep their order.
	OnMessage func(msg []byte) error

	OnDisconnect func() error
}

// Config 节点配置
type Config struct {

	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than pongWait.
	PingPeriod time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int

	// MessageQueueLen message len
	MessageQueueLen int

	Listeners *MessageListeners
}

type outMessage struct {
	message []byte
	done    chan<- struct{}
}

// Peer 封装了 websocket 通信底层接口
type Peer struct {
	id     string
	config *Config
	conn   *websocket.Conn
	send   chan outMessage
	quit   chan struct{}

	timeConnected time.Time

	connected int32
	closing   int32

	// sendMu guards shut: once set, no sender may enter the queue, which
	// makes the shutdown drain exact.
	sendMu sync.RWMutex
	shut   bool
}

// NewPeer 创建一个新的节点
func NewPeer(id string, config *Config) *Peer {
	if config.WriteWait == 0 {
		config.WriteWait = defaultWriteWait
	}
	if config.PongWait == 0 {
		config.PongWait = defaultPongWait
	}
	if config.PingPeriod == 0 {
		config.PingPeriod = defaultPingPeriod
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}
	if config.MessageQueueLen == 0 {
		config.MessageQueueLen = 32
	}

	if config.PingPeriod >= config.PongWait {
		config.PingPeriod = (config.PongWait * 9) / 10
	}
	return &Peer{
		id:     id,
		config: config,
		send:   make(chan outMessage, config.MessageQueueLen),
		quit:   make(chan struct{}),
	}
}

// ID peer id
func (p *Peer) ID() string {
	return p.id
}

// SetConnection bind connection , start
func (p *Peer) SetConnection(conn *websocket.Conn) {
	// Already connected?
	if !atomic.CompareAndSwapInt32(&p.connected, 0, 1) {
		return
	}

	p.conn = conn
	p.timeConnected = time.Now()

	p.start()
}

func (p *Peer) start() {
	go p.handleRead()
	go p.handleWrite()
}

func (p *Peer) handleRead() {
	defer func() {
		p.config.Listeners.OnDisconnect()
		p.disconnect()
	}()
	p.conn.SetReadLimit(int64(p.config.MaxMessageSize))
	p.conn.SetReadDeadline(time.Now().Add(p.config.PongWait))
	p.conn.SetPongHandler(func(string) error { p.conn.SetReadDeadline(time.Now().Add(p.config.PongWait)); return nil })
	for {
		messageType, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		if messageType == websocket.CloseMessage {
			log.Printf("closed: %v", p.id)
			break
		}

		if err = p.config.Listeners.OnMessage(message); err != nil {
			log.Printf("error from %v : %v", p.id, err)
		}
	}
}

func (p *Peer) handleWrite() {
	ticker := time.NewTicker(p.config.PingPeriod)
	defer func() {
		ticker.Stop()
		p.disconnect()
		p.drainQueue()
	}()
	for {
		select {
		case outMessage := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteWait))
			err := p.conn.WriteMessage(websocket.TextMessage, outMessage.message)
			if outMessage.done != nil {
				outMessage.done <- struct{}{}
			}
			if err != nil {
				return
			}
		case <-p.quit:
			p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteWait))
			p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainQueue bars new senders, then releases everything still queued.
// Grabbing the write lock waits out senders already past the shut check;
// their frames land in the queue first and are drained here, so no done
// waiter is ever left hanging.
func (p *Peer) drainQueue() {
	p.sendMu.Lock()
	p.shut = true
	p.sendMu.Unlock()
	for {
		select {
		case outMessage := <-p.send:
			if outMessage.done != nil {
				outMessage.done <- struct{}{}
			}
		default:
			return
		}
	}
}

// PushMessage 把消息写到队列中，等待发送
func (p *Peer) PushMessage(message []byte, doneChan chan<- struct{}) {
	signal := func() {
		if doneChan != nil {
			go func() {
				doneChan <- struct{}{}
			}()
		}
	}
	if atomic.LoadInt32(&p.connected) == 0 {
		signal()
		return
	}
	p.sendMu.RLock()
	if p.shut {
		p.sendMu.RUnlock()
		signal()
		return
	}
	select {
	case p.send <- outMessage{message: message, done: doneChan}:
		p.sendMu.RUnlock()
	case <-p.quit:
		// shutdown won the race, the frame is dropped
		p.sendMu.RUnlock()
		signal()
	}
}

// Close close conn. Safe to call from any goroutine and more than once;
// writers racing it are released, never panicked.
func (p *Peer) Close() {
	if !atomic.CompareAndSwapInt32(&p.closing, 0, 1) {
		return
	}
	close(p.quit)
}

//  断开连接
func (p *Peer) disconnect() {
	if !atomic.CompareAndSwapInt32(&p.connected, 1, 0) {
		return
	}
	p.conn.Close()
	// wake senders blocked on a full queue so the drain can finish
	if atomic.CompareAndSwapInt32(&p.closing, 0, 1) {
		close(p.quit)
	}
}
