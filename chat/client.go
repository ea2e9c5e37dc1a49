package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ws-gateway/auth"
	"github.com/ws-gateway/peer"
	"github.com/ws-gateway/wire"
)

var (
	addr    = flag.String("addr", "localhost:8080", "gateway address")
	user    = flag.String("user", "alice", "user id")
	name    = flag.String("name", "", "display name, defaults to the user id")
	secret  = flag.String("secret", "xxx123456", "token signing secret")
	channel = flag.String("channel", "lobby", "channel to join")
)

// ChatPeer 代表一个客户端节点，消息收发的处理逻辑
type ChatPeer struct {
	*peer.Peer
	quit chan struct{}
}

// OnMessage 接收消息
func (p *ChatPeer) OnMessage(raw []byte) error {
	var ev wire.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return err
	}
	switch ev.Event {
	case wire.EvMessage:
		var msg wire.MessageEvent
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return err
		}
		fmt.Printf("[%v] %v: %v\n", msg.ChannelID, msg.Author.DisplayName, msg.Content)
	case wire.EvUserTyping:
		var typing wire.UserTyping
		if err := json.Unmarshal(ev.Data, &typing); err != nil {
			return err
		}
		fmt.Printf("* %v is typing\n", typing.DisplayName)
	case wire.EvUserStatusUpdate:
		var update wire.UserStatusUpdate
		if err := json.Unmarshal(ev.Data, &update); err != nil {
			return err
		}
		fmt.Printf("* %v is %v\n", update.UserID, update.Status)
	case wire.EvRateLimitExceeded:
		var exceeded wire.RateLimitExceeded
		if err := json.Unmarshal(ev.Data, &exceeded); err != nil {
			return err
		}
		fmt.Printf("! %v\n", exceeded.Message)
	}
	return nil
}

// OnDisconnect OnDisconnect
func (p *ChatPeer) OnDisconnect() error {
	close(p.quit)
	return nil
}

func (p *ChatPeer) send(event string, payload interface{}) {
	frame, err := wire.Marshal(event, payload)
	if err != nil {
		log.Println(err)
		return
	}
	done := make(chan struct{}, 1)
	p.PushMessage(frame, done)
	<-done
}

func login(addr, userID, displayName, secret string) (*ChatPeer, error) {
	token, err := auth.Sign(secret, userID, displayName, time.Hour)
	if err != nil {
		return nil, err
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	log.Printf("connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Println("dial:", err)
		return nil, err
	}

	chatPeer := &ChatPeer{quit: make(chan struct{})}
	p := peer.NewPeer(fmt.Sprintf("C%v", userID), &peer.Config{
		Listeners: &peer.MessageListeners{
			OnMessage:    chatPeer.OnMessage,
			OnDisconnect: chatPeer.OnDisconnect,
		},
	})
	chatPeer.Peer = p
	chatPeer.SetConnection(conn)

	return chatPeer, nil
}

func main() {
	flag.Parse()
	displayName := *name
	if displayName == "" {
		displayName = *user
	}

	chatPeer, err := login(*addr, *user, displayName, *secret)
	if err != nil {
		log.Fatalln(err)
	}
	chatPeer.send(wire.EvJoinChannel, *channel)

	// listen sys.exit
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt)
	go func() {
		select {
		case <-sc:
			chatPeer.Close()
		case <-chatPeer.quit:
		}
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		chatPeer.send(wire.EvMessage, &wire.MessageData{ChannelID: *channel, Content: text})
	}
}
