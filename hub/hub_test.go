package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ws-gateway/auth"
	"github.com/ws-gateway/database"
	"github.com/ws-gateway/wire"
)

func startServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + url.QueryEscape(token)
}

func dialUser(t *testing.T, ts *httptest.Server, userID, displayName string) *websocket.Conn {
	t.Helper()
	token, err := auth.Sign(testSecret, userID, displayName, time.Hour)
	require.NoError(t, err)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	frame, err := wire.Marshal(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// readEvent reads frames until one named event arrives. Frames of other
// kinds, presence updates mostly, are skipped.
func readEvent(t *testing.T, conn *websocket.Conn, event string) wire.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %v", event)
		var ev wire.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		if ev.Event == event {
			return ev
		}
	}
}

// expectNoEvent asserts no frame named event arrives within wait. The
// expired read deadline poisons the connection, use it last on a conn.
func expectNoEvent(t *testing.T, conn *websocket.Conn, event string, wait time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wait))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev wire.Event
		if json.Unmarshal(raw, &ev) == nil && ev.Event == event {
			t.Fatalf("unexpected %v frame: %s", event, raw)
		}
	}
}

// readStatusUpdate waits for the status update of one particular user.
// Sessions receive their own updates too, those are skipped here.
func readStatusUpdate(t *testing.T, conn *websocket.Conn, userID, status string) {
	t.Helper()
	for {
		ev := readEvent(t, conn, wire.EvUserStatusUpdate)
		var update wire.UserStatusUpdate
		require.NoError(t, json.Unmarshal(ev.Data, &update))
		if update.UserID == userID && update.Status == status {
			return
		}
	}
}

func waitMembers(t *testing.T, h *Hub, roomID string, count int) {
	t.Helper()
	require.Eventually(t, func() bool {
		room := h.getRoom(roomID)
		return room != nil && len(room.MemberIDs()) == count
	}, 3*time.Second, 10*time.Millisecond)
}

func TestServeWSRejectsBadToken(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "not-a-token",
	} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
		require.Error(t, err, name)
		require.NotNil(t, resp, name)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
		resp.Body.Close()
	}
}

func TestServeWSConnectionLimit(t *testing.T) {
	limits := looseLimits()
	limits.ConnectionLimit = 2
	limits.ConnectionWindow = 60
	limits.ConnectionBlock = 600
	h := newTestHub(t, seedStore(), limits)
	ts := startServer(t, h)

	token, err := auth.Sign(testSecret, "user1", "alice", time.Hour)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
		require.NoError(t, err)
		conn.Close()
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestMessageDelivery(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	bob := dialUser(t, ts, "user2", "bob")
	sendEvent(t, alice, wire.EvJoinChannel, "chan1")
	sendEvent(t, bob, wire.EvJoinChannel, "chan1")
	waitMembers(t, h, channelRoom("chan1"), 2)

	sendEvent(t, alice, wire.EvMessage, &wire.MessageData{
		ChannelID: "chan1",
		Content:   "hello",
		Attachments: []wire.Attachment{
			{URL: "https://cdn/x.png", Type: "image/png", Name: "x.png", Size: 1024},
		},
	})

	// sender receives its own message too
	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn, wire.EvMessage)
		var msg wire.MessageEvent
		require.NoError(t, json.Unmarshal(ev.Data, &msg))
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "chan1", msg.ChannelID)
		assert.Equal(t, "user1", msg.Author.ID)
		assert.Equal(t, "alice", msg.Author.DisplayName)
		assert.Equal(t, "hello", msg.Content)
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "x.png", msg.Attachments[0].Name)
		assert.False(t, msg.CreatedAt.IsZero())
	}
}

func TestMessageOrdering(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	bob := dialUser(t, ts, "user2", "bob")
	sendEvent(t, alice, wire.EvJoinChannel, "chan1")
	sendEvent(t, bob, wire.EvJoinChannel, "chan1")
	waitMembers(t, h, channelRoom("chan1"), 2)

	for index := 0; index < 10; index++ {
		sendEvent(t, alice, wire.EvMessage, &wire.MessageData{
			ChannelID: "chan1",
			Content:   fmt.Sprintf("m%v", index),
		})
	}

	// delivery order matches send order for every subscriber
	for _, conn := range []*websocket.Conn{alice, bob} {
		for index := 0; index < 10; index++ {
			ev := readEvent(t, conn, wire.EvMessage)
			var msg wire.MessageEvent
			require.NoError(t, json.Unmarshal(ev.Data, &msg))
			assert.Equal(t, fmt.Sprintf("m%v", index), msg.Content)
		}
	}
}

func TestTypingRelay(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	bob := dialUser(t, ts, "user2", "bob")
	sendEvent(t, alice, wire.EvJoinChannel, "chan1")
	sendEvent(t, bob, wire.EvJoinChannel, "chan1")
	waitMembers(t, h, channelRoom("chan1"), 2)

	sendEvent(t, alice, wire.EvTypingStart, "chan1")
	ev := readEvent(t, bob, wire.EvUserTyping)
	var typing wire.UserTyping
	require.NoError(t, json.Unmarshal(ev.Data, &typing))
	assert.Equal(t, "user1", typing.UserID)
	assert.Equal(t, "alice", typing.DisplayName)

	sendEvent(t, alice, wire.EvTypingStop, "chan1")
	ev = readEvent(t, bob, wire.EvUserStopTyping)
	var stop wire.UserStopTyping
	require.NoError(t, json.Unmarshal(ev.Data, &stop))
	assert.Equal(t, "user1", stop.UserID)

	// the typist never hears itself
	expectNoEvent(t, alice, wire.EvUserTyping, 300*time.Millisecond)
}

func TestVoiceStateRelay(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	bob := dialUser(t, ts, "user2", "bob")
	sendEvent(t, alice, wire.EvJoinChannel, "chan1")
	sendEvent(t, bob, wire.EvJoinChannel, "chan1")
	waitMembers(t, h, channelRoom("chan1"), 2)

	sendEvent(t, alice, wire.EvVoiceStateUpdate, &wire.VoiceStateData{ChannelID: "chan1", Speaking: true})
	ev := readEvent(t, bob, wire.EvVoiceStateUpdate)
	var state wire.VoiceState
	require.NoError(t, json.Unmarshal(ev.Data, &state))
	assert.Equal(t, "user1", state.UserID)
	assert.True(t, state.Speaking)

	expectNoEvent(t, alice, wire.EvVoiceStateUpdate, 300*time.Millisecond)
}

func TestPresenceUpdates(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	waitMembers(t, h, serverRoom("srv1"), 1)

	bob := dialUser(t, ts, "user2", "bob")
	readStatusUpdate(t, alice, "user2", database.StatusOnline)

	bob.Close()
	readStatusUpdate(t, alice, "user2", database.StatusOffline)

	status, err := h.status.GetStatus("user2")
	require.NoError(t, err)
	assert.Equal(t, database.StatusOffline, status)
}

func TestRateLimitNotification(t *testing.T) {
	limits := looseLimits()
	limits.MessageLimit = 2
	limits.MessageWindow = 60
	limits.MessageBlock = 300
	h := newTestHub(t, seedStore(), limits)
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	sendEvent(t, alice, wire.EvJoinChannel, "chan1")
	waitMembers(t, h, channelRoom("chan1"), 1)

	for index := 0; index < 3; index++ {
		sendEvent(t, alice, wire.EvMessage, &wire.MessageData{
			ChannelID: "chan1",
			Content:   fmt.Sprintf("m%v", index),
		})
	}

	// the exceeded notification and the two echoed messages race on the
	// wire, accept them in any order
	alice.SetReadDeadline(time.Now().Add(3 * time.Second))
	var delivered int
	var exceeded *wire.RateLimitExceeded
	for delivered < 2 || exceeded == nil {
		_, raw, err := alice.ReadMessage()
		require.NoError(t, err)
		var ev wire.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		switch ev.Event {
		case wire.EvMessage:
			delivered++
		case wire.EvRateLimitExceeded:
			exceeded = &wire.RateLimitExceeded{}
			require.NoError(t, json.Unmarshal(ev.Data, exceeded))
		}
	}
	assert.Equal(t, "message", exceeded.Action)
	assert.Contains(t, exceeded.Message, "message")

	// once the connection is marked, further violations stay silent
	sendEvent(t, alice, wire.EvMessage, &wire.MessageData{ChannelID: "chan1", Content: "m3"})
	expectNoEvent(t, alice, wire.EvRateLimitExceeded, 300*time.Millisecond)
}

func TestDisconnectLeavesRooms(t *testing.T) {
	h := newTestHub(t, seedStore(), looseLimits())
	ts := startServer(t, h)

	alice := dialUser(t, ts, "user1", "alice")
	bob := dialUser(t, ts, "user2", "bob")
	sendEvent(t, alice, wire.EvJoinChannel, "chan1")
	sendEvent(t, bob, wire.EvJoinChannel, "chan1")
	waitMembers(t, h, channelRoom("chan1"), 2)

	bob.Close()

	waitMembers(t, h, channelRoom("chan1"), 1)
	waitMembers(t, h, serverRoom("srv1"), 1)
	readStatusUpdate(t, alice, "user2", database.StatusOffline)
}
