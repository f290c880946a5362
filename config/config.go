package config

import (
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

const (
	defaultConfigName  = "conf.ini"
	defaultJournalName = "delivery.log"
)

var (
	configDir         = "./"
	dataDir           = "./data"
	defaultConfigFile = filepath.Join(configDir, defaultConfigName)
)

// ServerConfig ServerConfig
type ServerConfig struct {
	ListenIP    string
	ListenPort  int
	Secret      string
	Origin      string
	JournalFile string
}

// MysqlConfig mysql config
type MysqlConfig struct {
	IP       string
	Port     int
	User     string
	Password string
	DbName   string
}

// RedisConfig redis config
type RedisConfig struct {
	Enabled  bool
	IP       string
	Port     int
	Password string
}

// PeerConfig websocket 连接的读写参数
type PeerConfig struct {
	MaxMessageSize int
	WriteWait      int
	PongWait       int
	PingPeriod     int
}

// PushConfig 外部推送服务
type PushConfig struct {
	Endpoint string
	Key      string
}

// Config 系统配置
type Config struct {
	Server ServerConfig
	Mysql  MysqlConfig
	Redis  RedisConfig
	Peer   PeerConfig
	Push   PushConfig
}

// LoadConfig 读默认路径的 conf.ini
func LoadConfig() (*Config, error) {
	return LoadConfigFile(defaultConfigFile)
}

// LoadConfigFile LoadConfigFile
func LoadConfigFile(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read file")
	}
	var config Config
	if err = cfg.Section("server").MapTo(&config.Server); err != nil {
		return nil, errors.Wrap(err, "config: server section")
	}
	if err = cfg.Section("mysql").MapTo(&config.Mysql); err != nil {
		return nil, errors.Wrap(err, "config: mysql section")
	}
	if err = cfg.Section("redis").MapTo(&config.Redis); err != nil {
		return nil, errors.Wrap(err, "config: redis section")
	}
	if err = cfg.Section("peer").MapTo(&config.Peer); err != nil {
		return nil, errors.Wrap(err, "config: peer section")
	}
	if err = cfg.Section("push").MapTo(&config.Push); err != nil {
		return nil, errors.Wrap(err, "config: push section")
	}

	if config.Server.JournalFile == "" {
		config.Server.JournalFile = filepath.Join(dataDir, defaultJournalName)
	}

	if _, err := os.Stat(dataDir); err != nil {
		if err = os.MkdirAll(dataDir, os.ModePerm); err != nil {
			return nil, errors.Wrap(err, "config: create data dir")
		}
	}

	return &config, nil
}
