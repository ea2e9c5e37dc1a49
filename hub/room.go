package hub

import (
	"log"

	"github.com/ws-gateway/database"
	"github.com/ws-gateway/wire"
)

const (
	useForJoin      = uint8(1)
	useForLeave     = uint8(3)
	useForBroadcast = uint8(5)
	useForMessage   = uint8(7)
	useForMembers   = uint8(9)
)

// roomPacket carries join/leave/fan-out work to a room's goroutine
type roomPacket struct {
	use     uint8
	session *Session
	frame   []byte
	exclude string
	msg     *database.Message
	author  wire.Author
	resp    chan []string
	done    chan struct{}
}

// Room is one broadcast group: one server or one channel. A single
// goroutine owns the member set, so membership changes, persistence and
// fan-out for one room never race, and listeners observe messages in
// persistence order.
type Room struct {
	ID  string
	hub *Hub

	members map[string]*Session
	packet  chan *roomPacket
	exit    chan struct{}
}

// newRoom starts the owning goroutine
func newRoom(h *Hub, ID string) *Room {
	room := &Room{
		ID:      ID,
		hub:     h,
		members: make(map[string]*Session),
		packet:  make(chan *roomPacket, 50),
		exit:    make(chan struct{}, 1),
	}
	go room.loop()

	return room
}

func (r *Room) loop() {
	for {
		select {
		case packet := <-r.packet:
			switch packet.use {
			case useForJoin:
				// the session may have disconnected while this join sat in
				// the queue; teardown has already run, joining now would
				// leave a ghost member
				if !r.hub.hasSession(packet.session.ID()) {
					break
				}
				r.members[packet.session.ID()] = packet.session
				packet.session.trackRoom(r.ID)
			case useForLeave:
				delete(r.members, packet.session.ID())
				packet.session.untrackRoom(r.ID)
			case useForMessage:
				r.storeAndBroadcast(packet)
			case useForBroadcast:
				r.broadcast(packet.frame, packet.exclude)
			case useForMembers:
				packet.resp <- r.memberSnapshot()
			}
			if packet.done != nil {
				packet.done <- struct{}{}
			}
		case <-r.exit:
			return
		}
	}
}

func (r *Room) broadcast(frame []byte, exclude string) {
	for ID, member := range r.members {
		if ID == exclude {
			continue
		}
		member.PushMessage(frame, nil)
	}
}

// storeAndBroadcast persists then fans out, on the room goroutine. The
// next message for this channel is not handled before this one has been
// stored and queued to every member.
func (r *Room) storeAndBroadcast(packet *roomPacket) {
	stored, err := r.hub.messages.AppendMessage(packet.msg.ChannelID, packet.msg)
	if err != nil {
		// at-most-once: drop without retry or client notification
		log.Printf("append message to %v: %v", packet.msg.ChannelID, err)
		return
	}
	frame, err := wire.Marshal(wire.EvMessage, messageEvent(stored, packet.author))
	if err != nil {
		log.Printf("marshal message %v: %v", stored.ID, err)
		return
	}
	r.broadcast(frame, "")
}

func (r *Room) memberSnapshot() []string {
	ids := make([]string, 0, len(r.members))
	for ID := range r.members {
		ids = append(ids, ID)
	}
	return ids
}

// MemberIDs answers through the owning goroutine
func (r *Room) MemberIDs() []string {
	resp := make(chan []string, 1)
	r.packet <- &roomPacket{use: useForMembers, resp: resp}
	return <-resp
}

// Exit stop room loop
func (r *Room) Exit() {
	r.exit <- struct{}{}
}

func messageEvent(msg *database.Message, author wire.Author) *wire.MessageEvent {
	ev := &wire.MessageEvent{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		Author:    author,
		Content:   msg.Content,
		Mentions:  msg.Mentions,
		CreatedAt: msg.CreateAt,
		EditedAt:  msg.EditAt,
	}
	for _, a := range msg.Attachments {
		ev.Attachments = append(ev.Attachments, wire.Attachment{
			URL: a.URL, Type: a.Type, Name: a.Name, Size: a.Size,
		})
	}
	for _, r := range msg.Reactions {
		ev.Reactions = append(ev.Reactions, wire.Reaction{Emoji: r.Emoji, Users: r.Users})
	}
	return ev
}
