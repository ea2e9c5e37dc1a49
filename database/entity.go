package database

import (
	"time"
)

// Server 代表一个社区，角色和成员都挂在它下面
type Server struct {
	ID          string `xorm:"pk 'id'"`
	Name        string
	Description string
	Icon        string
	OwnerID     string `xorm:"index"`
	CreateAt    time.Time
}

// Member is one user's membership in one server, with the ordered list
// of role names assigned to them.
type Member struct {
	ID       uint64   `xorm:"pk autoincr 'id'"`
	ServerID string   `xorm:"index"`
	UserID   string   `xorm:"index"`
	Roles    []string `xorm:"json"`
	JoinedAt time.Time
}

// Role 角色。Position 越大权限优先级越高
type Role struct {
	ID          uint64 `xorm:"pk autoincr 'id'"`
	ServerID    string `xorm:"index"`
	Name        string
	Color       string
	Permissions []string `xorm:"json"`
	Position    int
}

// Channel 频道
type Channel struct {
	ID       string `xorm:"pk 'id'"`
	ServerID string `xorm:"index"`
	Name     string
	Type     string // text, voice or video
	Topic    string
	Position int
	CreateAt time.Time
}

// Overwrite is a channel-scoped allow/deny delta on top of role grants.
type Overwrite struct {
	ID        uint64 `xorm:"pk autoincr 'id'"`
	ChannelID string `xorm:"index"`
	Role      string
	Allow     []string `xorm:"json"`
	Deny      []string `xorm:"json"`
}

// Attachment 消息附件
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Reaction one emoji and the users who added it
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
}

// Message 频道消息，按持久化顺序追加，不做更新排序
type Message struct {
	ID          string       `xorm:"pk 'id'"`
	ChannelID   string       `xorm:"index"`
	AuthorID    string       `xorm:"index"`
	Content     string       `xorm:"varchar(4096)"`
	Attachments []Attachment `xorm:"json"`
	Reactions   []Reaction   `xorm:"json"`
	Mentions    []string     `xorm:"json"`
	CreateAt    time.Time
	EditAt      *time.Time `xorm:"null"`
}
