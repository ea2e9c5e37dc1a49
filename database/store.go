package database

// MessageStore persists channel messages. Append order is the channel's
// message order.
type MessageStore interface {
	AppendMessage(channelID string, msg *Message) (*Message, error)
}

// SnapshotStore 定义了权限判定所需的数据读取接口。
// Absent rows come back as (nil, nil), not as an error.
type SnapshotStore interface {
	Server(ID string) (*Server, error)
	Channel(ID string) (*Channel, error)
	MemberRoles(serverID, userID string) ([]string, error)
	ServerRoles(serverID string) ([]Role, error)
	ChannelOverwrites(channelID string) ([]Overwrite, error)
	ServersOfUser(userID string) ([]string, error)
}

// StatusCache 定义了用户在线状态操作接口
type StatusCache interface {
	SetStatus(userID, status string) error
	GetStatus(userID string) (string, error)
}
