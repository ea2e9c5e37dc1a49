// Package ratelimit throttles abusive senders with fixed-window counters
// and a blocking duration per action kind.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Action is one throttled action kind.
type Action string

// Throttled actions.
const (
	ActionConnection Action = "connection"
	ActionMessage    Action = "message"
	ActionTyping     Action = "typing"
)

// Config caps one action's consumption inside a fixed window. After the
// consumption that would exceed Capacity, the key is blocked for Block.
type Config struct {
	Capacity int
	Window   time.Duration
	Block    time.Duration
}

// DefaultConfigs are the observed production limits.
func DefaultConfigs() map[Action]Config {
	return map[Action]Config{
		ActionConnection: {Capacity: 5, Window: time.Minute, Block: 10 * time.Minute},
		ActionMessage:    {Capacity: 30, Window: time.Minute, Block: 5 * time.Minute},
		ActionTyping:     {Capacity: 20, Window: time.Minute, Block: 2 * time.Minute},
	}
}

type entry struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter holds per (userID, action) counters plus per-connection block
// marks. One mutex serializes all mutation so concurrent consumes on the
// same key never lose updates.
type Limiter struct {
	mu      sync.Mutex
	configs map[Action]Config
	entries map[string]*entry
	conns   map[string]time.Time // connID -> blocked until

	now func() time.Time
}

// NewLimiter NewLimiter. A nil configs means DefaultConfigs.
func NewLimiter(configs map[Action]Config) *Limiter {
	if configs == nil {
		configs = DefaultConfigs()
	}
	return &Limiter{
		configs: configs,
		entries: make(map[string]*entry),
		conns:   make(map[string]time.Time),
		now:     time.Now,
	}
}

func key(userID string, action Action) string {
	return fmt.Sprintf("%v|%v", userID, action)
}

// Consume takes one permit for (userID, action). The consumption that would
// exceed capacity fails and blocks the key; while blocked, every call fails
// without touching the counters; once the block elapses the window resets
// to full capacity.
func (l *Limiter) Consume(userID string, action Action) bool {
	cfg, ok := l.configs[action]
	if !ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key(userID, action)
	e, ok := l.entries[k]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[k] = e
	}

	if e.blockedUntil.After(now) {
		return false
	}
	if !e.blockedUntil.IsZero() {
		// block elapsed, reset to full capacity
		e.count = 0
		e.windowStart = now
		e.blockedUntil = time.Time{}
	}
	if now.Sub(e.windowStart) >= cfg.Window {
		e.count = 0
		e.windowStart = now
	}
	if e.count >= cfg.Capacity {
		e.blockedUntil = now.Add(cfg.Block)
		return false
	}
	e.count++
	return true
}

// BlockConn marks a single connection as blocked for action's block
// duration. The mark is independent of the user-keyed counters, so
// immediate retries on the same connection fail even after a counter reset.
func (l *Limiter) BlockConn(connID string, action Action) {
	cfg, ok := l.configs[action]
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conns[connID] = l.now().Add(cfg.Block)
}

// ConnBlocked ConnBlocked
func (l *Limiter) ConnBlocked(connID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.conns[connID]
	if !ok {
		return false
	}
	if until.After(l.now()) {
		return true
	}
	delete(l.conns, connID)
	return false
}

// ReleaseConn drops a connection's mark on disconnect. Connection ids are
// never reused, this only keeps the map from growing.
func (l *Limiter) ReleaseConn(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, connID)
}
