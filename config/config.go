package config

import (
	"fmt"

	"github.com/go-ini/ini"

	"github.com/ws-gateway/database"
)

const (
	defaultConfigFile = "./conf.ini"
)

// ServerConfig ServerConfig
type ServerConfig struct {
	ListenIP   string
	ListenPort int
	Secret     string
	Origin     string
}

// RedisConfig redis config. An empty IP means no redis, the in-memory
// status cache is used instead.
type RedisConfig struct {
	IP       string
	Port     int
	Password string
	Db       int
}

// MysqlConfig mysql config. An empty IP means no mysql, the in-memory
// store is used instead.
type MysqlConfig struct {
	IP       string
	Port     int
	User     string
	Password string
	DbName   string
}

// PeerConfig 连接参数，单位秒
type PeerConfig struct {
	MaxMessageSize int
	WriteWait      int
	PongWait       int
	PingPeriod     int
}

// RateLimitConfig caps one action kind. Counts are permits per window,
// durations are seconds. Zero values fall back to the built-in defaults.
type RateLimitConfig struct {
	ConnectionLimit  int
	ConnectionWindow int
	ConnectionBlock  int
	MessageLimit     int
	MessageWindow    int
	MessageBlock     int
	TypingLimit      int
	TypingWindow     int
	TypingBlock      int
}

// Config 系统配置信息，包括 redis 配置，mysql 配置
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Mysql     MysqlConfig
	Peer      PeerConfig
	RateLimit RateLimitConfig

	MessageStore  database.MessageStore
	SnapshotStore database.SnapshotStore
	StatusCache   database.StatusCache
}

// LoadConfig reads ./conf.ini
func LoadConfig() (*Config, error) {
	return LoadConfigFile(defaultConfigFile)
}

// LoadConfigFile LoadConfigFile
func LoadConfigFile(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		fmt.Printf("Fail to read file: %v", err)
		return nil, err
	}
	var config Config
	section := cfg.Section("server")
	config.Server = ServerConfig{}
	err = section.MapTo(&config.Server)
	if err != nil {
		return nil, err
	}

	section = cfg.Section("redis")
	config.Redis = RedisConfig{}
	err = section.MapTo(&config.Redis)
	if err != nil {
		return nil, err
	}

	section = cfg.Section("mysql")
	config.Mysql = MysqlConfig{}
	err = section.MapTo(&config.Mysql)
	if err != nil {
		return nil, err
	}

	section = cfg.Section("peer")
	config.Peer = PeerConfig{}
	err = section.MapTo(&config.Peer)
	if err != nil {
		return nil, err
	}

	section = cfg.Section("ratelimit")
	config.RateLimit = RateLimitConfig{}
	err = section.MapTo(&config.RateLimit)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
