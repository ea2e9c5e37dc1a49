package database

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/go-xorm/xorm"
	"xorm.io/core"
)

// MysqlStore implements MessageStore and SnapshotStore over one xorm engine.
type MysqlStore struct {
	engine *xorm.Engine
}

// NewMysqlStore new a MysqlStore
func NewMysqlStore(engine *xorm.Engine) *MysqlStore {
	return &MysqlStore{
		engine: engine,
	}
}

// AppendMessage save message to mysql
func (s *MysqlStore) AppendMessage(channelID string, msg *Message) (*Message, error) {
	msg.ChannelID = channelID
	if _, err := s.engine.Insert(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Server Server
func (s *MysqlStore) Server(ID string) (*Server, error) {
	server := &Server{ID: ID}
	has, err := s.engine.Get(server)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return server, nil
}

// Channel Channel
func (s *MysqlStore) Channel(ID string) (*Channel, error) {
	channel := &Channel{ID: ID}
	has, err := s.engine.Get(channel)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return channel, nil
}

// MemberRoles role names assigned to one member
func (s *MysqlStore) MemberRoles(serverID, userID string) ([]string, error) {
	member := &Member{}
	has, err := s.engine.Where("server_id = ? AND user_id = ?", serverID, userID).Get(member)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return member.Roles, nil
}

// ServerRoles all role definitions of one server
func (s *MysqlStore) ServerRoles(serverID string) ([]Role, error) {
	roles := make([]Role, 0)
	err := s.engine.Where("server_id = ?", serverID).Find(&roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ChannelOverwrites all overwrites of one channel
func (s *MysqlStore) ChannelOverwrites(channelID string) ([]Overwrite, error) {
	overwrites := make([]Overwrite, 0)
	err := s.engine.Where("channel_id = ?", channelID).Find(&overwrites)
	if err != nil {
		return nil, err
	}
	return overwrites, nil
}

// ServersOfUser ids of every server the user is a member of
func (s *MysqlStore) ServersOfUser(userID string) ([]string, error) {
	members := make([]Member, 0)
	err := s.engine.Where("user_id = ?", userID).Find(&members)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ServerID)
	}
	return ids, nil
}

// InitDb init database
func InitDb(ip string, port int, user, pwd, dbname string) (*xorm.Engine, error) {
	url := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", user, pwd, ip, port, dbname)
	engine, err := xorm.NewEngine("mysql", url)
	if err != nil {
		return nil, err
	}

	tbMapper := core.NewPrefixMapper(core.SnakeMapper{}, "t_")
	engine.SetTableMapper(tbMapper)
	engine.SetColumnMapper(core.SnakeMapper{})

	err = engine.Sync2(new(Server), new(Member), new(Role), new(Channel), new(Overwrite), new(Message))
	if err != nil {
		return nil, err
	}
	return engine, nil
}
