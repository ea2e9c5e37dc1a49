package hub

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ws-gateway/database"
	"github.com/ws-gateway/permission"
	"github.com/ws-gateway/ratelimit"
	"github.com/ws-gateway/wire"
)

type handlerFunc func(s *Session, data json.RawMessage)

// dispatch routes one inbound frame. Malformed or unrecognized frames are
// logged and dropped, never fatal to the connection.
func (h *Hub) dispatch(s *Session, raw []byte) error {
	var ev wire.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Printf("malformed frame from %v: %v", s.UserID, err)
		return nil
	}
	handler, ok := h.handlers[ev.Event]
	if !ok {
		log.Printf("unrecognized event %q from %v", ev.Event, s.UserID)
		return nil
	}
	handler(s, ev.Data)
	return nil
}

func (h *Hub) onJoinChannel(s *Session, data json.RawMessage) {
	channelID, ok := decodeChannelID(data)
	if !ok {
		log.Printf("malformed join-channel from %v", s.UserID)
		return
	}
	channel, err := h.snapshots.Channel(channelID)
	if err != nil {
		log.Printf("join channel %v: %v", channelID, err)
		return
	}
	if channel == nil {
		return
	}
	allowed, err := h.checkPermission(s.UserID, channel, permission.ViewChannel)
	if err != nil {
		log.Printf("join channel %v: %v", channelID, err)
		return
	}
	if !allowed {
		// silent no-op on denial
		return
	}
	room := h.getOrCreateRoom(channelRoom(channelID))
	// tracked before the packet is queued: disconnect teardown walks the
	// tracked set, a join it cannot see would survive as a ghost member
	s.trackRoom(room.ID)
	room.packet <- &roomPacket{use: useForJoin, session: s}
}

func (h *Hub) onLeaveChannel(s *Session, data json.RawMessage) {
	channelID, ok := decodeChannelID(data)
	if !ok {
		log.Printf("malformed leave-channel from %v", s.UserID)
		return
	}
	// unconditional, no permission check
	if room := h.getRoom(channelRoom(channelID)); room != nil {
		room.packet <- &roomPacket{use: useForLeave, session: s}
	}
}

func (h *Hub) onMessage(s *Session, data json.RawMessage) {
	var body wire.MessageData
	if err := json.Unmarshal(data, &body); err != nil {
		log.Printf("malformed message from %v: %v", s.UserID, err)
		return
	}
	if body.ChannelID == "" || (body.Content == "" && len(body.Attachments) == 0) {
		log.Printf("empty message from %v", s.UserID)
		return
	}
	channel, err := h.snapshots.Channel(body.ChannelID)
	if err != nil {
		log.Printf("message to %v: %v", body.ChannelID, err)
		return
	}
	if channel == nil {
		return
	}
	allowed, err := h.checkPermission(s.UserID, channel, permission.SendMessages)
	if err != nil {
		log.Printf("message to %v: %v", body.ChannelID, err)
		return
	}
	if !allowed {
		return
	}
	if !h.allow(s, ratelimit.ActionMessage) {
		return
	}

	msg := &database.Message{
		ID:        uuid.NewString(),
		ChannelID: body.ChannelID,
		AuthorID:  s.UserID,
		Content:   body.Content,
		Mentions:  mentions(body.Content),
		CreateAt:  time.Now().UTC(),
	}
	for _, a := range body.Attachments {
		msg.Attachments = append(msg.Attachments, database.Attachment{
			URL: a.URL, Type: a.Type, Name: a.Name, Size: a.Size,
		})
	}

	room := h.getOrCreateRoom(channelRoom(body.ChannelID))
	room.packet <- &roomPacket{
		use:    useForMessage,
		msg:    msg,
		author: wire.Author{ID: s.UserID, DisplayName: s.DisplayName},
	}
}

func (h *Hub) onTypingStart(s *Session, data json.RawMessage) {
	h.relayTyping(s, data, wire.EvUserTyping,
		&wire.UserTyping{UserID: s.UserID, DisplayName: s.DisplayName})
}

func (h *Hub) onTypingStop(s *Session, data json.RawMessage) {
	h.relayTyping(s, data, wire.EvUserStopTyping,
		&wire.UserStopTyping{UserID: s.UserID})
}

// relayTyping is ephemeral: never persisted, and channel room membership
// already implies view access, so no extra permission check.
func (h *Hub) relayTyping(s *Session, data json.RawMessage, event string, payload interface{}) {
	channelID, ok := decodeChannelID(data)
	if !ok {
		log.Printf("malformed %v from %v", event, s.UserID)
		return
	}
	if !h.allow(s, ratelimit.ActionTyping) {
		return
	}
	room := h.getRoom(channelRoom(channelID))
	if room == nil {
		return
	}
	frame, err := wire.Marshal(event, payload)
	if err != nil {
		log.Printf("marshal %v: %v", event, err)
		return
	}
	room.packet <- &roomPacket{use: useForBroadcast, frame: frame, exclude: s.ID()}
}

func (h *Hub) onVoiceState(s *Session, data json.RawMessage) {
	var body wire.VoiceStateData
	if err := json.Unmarshal(data, &body); err != nil {
		log.Printf("malformed voice-state-update from %v: %v", s.UserID, err)
		return
	}
	channel, err := h.snapshots.Channel(body.ChannelID)
	if err != nil {
		log.Printf("voice state in %v: %v", body.ChannelID, err)
		return
	}
	if channel == nil {
		return
	}
	// SPEAK is re-checked on every event, not just at join
	allowed, err := h.checkPermission(s.UserID, channel, permission.Speak)
	if err != nil {
		log.Printf("voice state in %v: %v", body.ChannelID, err)
		return
	}
	if !allowed {
		return
	}
	room := h.getRoom(channelRoom(body.ChannelID))
	if room == nil {
		return
	}
	frame, err := wire.Marshal(wire.EvVoiceStateUpdate,
		&wire.VoiceState{UserID: s.UserID, Speaking: body.Speaking})
	if err != nil {
		log.Printf("marshal voice-state-update: %v", err)
		return
	}
	room.packet <- &roomPacket{use: useForBroadcast, frame: frame, exclude: s.ID()}
}

// checkPermission loads the current role/overwrite snapshots and evaluates
// required for userID in the channel.
func (h *Hub) checkPermission(userID string, channel *database.Channel, required permission.Permission) (bool, error) {
	server, err := h.snapshots.Server(channel.ServerID)
	if err != nil {
		return false, err
	}
	if server == nil {
		return false, fmt.Errorf("server %v not found", channel.ServerID)
	}
	memberRoles, err := h.snapshots.MemberRoles(channel.ServerID, userID)
	if err != nil {
		return false, err
	}
	serverRoles, err := h.snapshots.ServerRoles(channel.ServerID)
	if err != nil {
		return false, err
	}
	overwrites, err := h.snapshots.ChannelOverwrites(channel.ID)
	if err != nil {
		return false, err
	}
	snap := permission.Snapshot{
		OwnerID:     server.OwnerID,
		MemberRoles: memberRoles,
		ServerRoles: serverRoles,
		Overwrites:  overwrites,
	}
	return permission.Evaluate(userID, snap, required), nil
}

// allow runs the rate-limit gate for one event. A connection that has just
// triggered a block is marked so immediate retries on it fail silently
// even after the user-keyed counters reset.
func (h *Hub) allow(s *Session, action ratelimit.Action) bool {
	if h.limiter.ConnBlocked(s.ID()) {
		return false
	}
	if h.limiter.Consume(s.UserID, action) {
		return true
	}
	h.limiter.BlockConn(s.ID(), action)
	log.Printf("rate limit exceeded: user %v action %v", s.UserID, action)
	s.Send(wire.EvRateLimitExceeded, &wire.RateLimitExceeded{
		Action:  string(action),
		Message: fmt.Sprintf("Rate limit exceeded for %v", action),
	})
	return false
}

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_-]+)`)

// mentions extracts the @names of a message body, in text order without
// duplicates
func mentions(content string) []string {
	var userIDs []string
	seen := make(map[string]struct{})
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		userIDs = append(userIDs, match[1])
	}
	return userIDs
}

func decodeChannelID(data json.RawMessage) (string, bool) {
	var channelID string
	if err := json.Unmarshal(data, &channelID); err != nil || channelID == "" {
		return "", false
	}
	return channelID, true
}
