package database

import (
	"sync"
)

// MemStore is an in-memory MessageStore and SnapshotStore. Used for
// single-process runs without mysql and by tests.
type MemStore struct {
	mu         sync.RWMutex
	servers    map[string]*Server
	channels   map[string]*Channel
	members    map[string]map[string]*Member // serverID -> userID -> member
	roles      map[string][]Role             // serverID -> roles
	overwrites map[string][]Overwrite        // channelID -> overwrites
	messages   map[string][]*Message         // channelID -> messages in append order
}

// NewMemStore NewMemStore
func NewMemStore() *MemStore {
	return &MemStore{
		servers:    make(map[string]*Server),
		channels:   make(map[string]*Channel),
		members:    make(map[string]map[string]*Member),
		roles:      make(map[string][]Role),
		overwrites: make(map[string][]Overwrite),
		messages:   make(map[string][]*Message),
	}
}

// AddServer AddServer
func (s *MemStore) AddServer(server *Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[server.ID] = server
}

// AddChannel AddChannel
func (s *MemStore) AddChannel(channel *Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel.ID] = channel
}

// AddMember AddMember
func (s *MemStore) AddMember(member *Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.ServerID]; !ok {
		s.members[member.ServerID] = make(map[string]*Member)
	}
	s.members[member.ServerID][member.UserID] = member
}

// AddRole AddRole
func (s *MemStore) AddRole(role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ServerID] = append(s.roles[role.ServerID], role)
}

// AddOverwrite AddOverwrite
func (s *MemStore) AddOverwrite(ow Overwrite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overwrites[ow.ChannelID] = append(s.overwrites[ow.ChannelID], ow)
}

// AppendMessage append message, persistence order is append order
func (s *MemStore) AppendMessage(channelID string, msg *Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ChannelID = channelID
	s.messages[channelID] = append(s.messages[channelID], msg)
	return msg, nil
}

// Messages messages of one channel in persistence order
func (s *MemStore) Messages(channelID string) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]*Message, len(s.messages[channelID]))
	copy(msgs, s.messages[channelID])
	return msgs
}

// Server Server
func (s *MemStore) Server(ID string) (*Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servers[ID], nil
}

// Channel Channel
func (s *MemStore) Channel(ID string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[ID], nil
}

// MemberRoles MemberRoles
func (s *MemStore) MemberRoles(serverID, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[serverID][userID]
	if !ok {
		return nil, nil
	}
	return member.Roles, nil
}

// ServerRoles ServerRoles
func (s *MemStore) ServerRoles(serverID string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[serverID], nil
}

// ChannelOverwrites ChannelOverwrites
func (s *MemStore) ChannelOverwrites(channelID string) ([]Overwrite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overwrites[channelID], nil
}

// ServersOfUser ServersOfUser
func (s *MemStore) ServersOfUser(userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for serverID, members := range s.members {
		if _, ok := members[userID]; ok {
			ids = append(ids, serverID)
		}
	}
	return ids, nil
}

// MemStatusCache 内存版在线状态缓存
type MemStatusCache struct {
	mu     sync.RWMutex
	status map[string]string
}

// NewMemStatusCache NewMemStatusCache
func NewMemStatusCache() *MemStatusCache {
	return &MemStatusCache{status: make(map[string]string)}
}

// SetStatus SetStatus
func (c *MemStatusCache) SetStatus(userID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[userID] = status
	return nil
}

// GetStatus unknown users are offline
func (c *MemStatusCache) GetStatus(userID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.status[userID]
	if !ok {
		return StatusOffline, nil
	}
	return status, nil
}
