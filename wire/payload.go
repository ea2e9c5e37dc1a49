package wire

import "time"

// Attachment 消息附件
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// MessageData is the inbound "message" payload.
type MessageData struct {
	ChannelID   string       `json:"channelId"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// VoiceStateData is the inbound "voice-state-update" payload.
type VoiceStateData struct {
	ChannelID string `json:"channelId"`
	Speaking  bool   `json:"speaking"`
}

// Author is the expanded message author. Never carries credentials.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Reaction 消息表情回应
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// MessageEvent is the outbound broadcast of one stored message.
type MessageEvent struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channelId"`
	Author      Author       `json:"author"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	EditedAt    *time.Time   `json:"editedAt,omitempty"`
}

// UserTyping outbound "user-typing" payload
type UserTyping struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// UserStopTyping outbound "user-stop-typing" payload
type UserStopTyping struct {
	UserID string `json:"userId"`
}

// VoiceState outbound "voice-state-update" payload
type VoiceState struct {
	UserID   string `json:"userId"`
	Speaking bool   `json:"speaking"`
}

// UserStatusUpdate outbound "user-status-update" payload
type UserStatusUpdate struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// RateLimitExceeded notifies the originating connection only.
type RateLimitExceeded struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}
