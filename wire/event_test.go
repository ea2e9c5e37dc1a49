package wire

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	frame, err := Marshal(EvMessage, &MessageData{
		ChannelID: "chan1",
		Content:   "hello 你好",
		Attachments: []Attachment{
			{URL: "https://x/img.png", Type: "image/png", Name: "img.png", Size: 1024},
		},
	})
	require.NoError(t, err)

	var ev Event
	require.NoError(t, ev.Decode(bytes.NewReader(frame)))
	assert.Equal(t, EvMessage, ev.Event)

	var data MessageData
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "chan1", data.ChannelID)
	assert.Equal(t, "hello 你好", data.Content)
	require.Len(t, data.Attachments, 1)
	assert.Equal(t, int64(1024), data.Attachments[0].Size)
}

func TestEventStringData(t *testing.T) {
	// join-channel carries a bare channel id string as data
	frame, err := Marshal(EvJoinChannel, "chan9")
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(frame, &ev))

	var channelID string
	require.NoError(t, json.Unmarshal(ev.Data, &channelID))
	assert.Equal(t, "chan9", channelID)
}

func TestEventEmptyName(t *testing.T) {
	_, err := NewEvent("", nil)
	assert.Equal(t, ErrEmptyEvent, err)

	var ev Event
	err = ev.Decode(bytes.NewReader([]byte(`{"data":"x"}`)))
	assert.Equal(t, ErrEmptyEvent, err)
}

func TestPayloadFieldNames(t *testing.T) {
	// wire format is part of the client contract, keep it fixed
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name    string
		payload interface{}
		want    string
	}{
		{"status", &UserStatusUpdate{UserID: "u1", Status: "online"},
			`{"userId":"u1","status":"online"}`},
		{"typing", &UserTyping{UserID: "u1", DisplayName: "alice"},
			`{"userId":"u1","displayName":"alice"}`},
		{"stop-typing", &UserStopTyping{UserID: "u1"},
			`{"userId":"u1"}`},
		{"voice", &VoiceState{UserID: "u1", Speaking: true},
			`{"userId":"u1","speaking":true}`},
		{"ratelimit", &RateLimitExceeded{Action: "message", Message: "Rate limit exceeded for message"},
			`{"action":"message","message":"Rate limit exceeded for message"}`},
		{"message", &MessageEvent{
			ID: "m1", ChannelID: "c1",
			Author:    Author{ID: "u1", DisplayName: "alice"},
			Content:   "hi",
			CreatedAt: created,
		}, `{"id":"m1","channelId":"c1","author":{"id":"u1","displayName":"alice"},"content":"hi","createdAt":"2026-01-02T03:04:05Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
