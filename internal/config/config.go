package config

import (
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	UseTLS  bool   `toml:"useTLS"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
	Level   string `toml:"level"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type KafkaConfig struct {
	Brokers           []string `toml:"brokers"`
	ClientID          string   `toml:"clientID"`
	OrderChangesTopic string   `toml:"orderChangesTopic"`
	ConsumerGroupID   string   `toml:"consumerGroupID"`
	Partitions        int32    `toml:"partitions"`
	Replication       int16    `toml:"replication"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

// RealtimeConfig 客户端（tracker）连接与通知相关配置
type RealtimeConfig struct {
	ServerURL            string `toml:"serverURL"`
	APIBaseURL           string `toml:"apiBaseURL"`
	Token                string `toml:"token"`
	ReconnectBaseDelayMs int    `toml:"reconnectBaseDelayMs"`
	ReconnectMaxDelayMs  int    `toml:"reconnectMaxDelayMs"`
	MaxReconnectAttempts int    `toml:"maxReconnectAttempts"`
	HandshakeTimeoutSec  int    `toml:"handshakeTimeoutSec"`
	NotificationLimit    int    `toml:"notificationLimit"`
	ToastSeconds         int    `toml:"toastSeconds"`
	RefetchUnknown       bool   `toml:"refetchUnknown"`
}

// StatsConfig 订单统计广播
type StatsConfig struct {
	Enabled  bool   `toml:"enabled"`
	CronExpr string `toml:"cronExpr"`
}

type Config struct {
	MainConfig     `toml:"mainConfig"`
	MysqlConfig    `toml:"mysqlConfig"`
	JwtConfig      `toml:"jwtConfig"`
	KafkaConfig    `toml:"kafkaConfig"`
	LogConfig      `toml:"logConfig"`
	RedisConfig    `toml:"redisConfig"`
	RealtimeConfig `toml:"realtimeConfig"`
	StatsConfig    `toml:"statsConfig"`
}

const defaultConfigPath = "configs/config_local.toml"

var config *Config

// Default 未加载配置文件时使用的默认值
func Default() *Config {
	return &Config{
		MainConfig: MainConfig{
			AppName: "orderpulse",
			Host:    "0.0.0.0",
			Port:    5001,
		},
		JwtConfig: JwtConfig{
			ExpireHours: 24,
			Issuer:      "orderpulse",
		},
		KafkaConfig: KafkaConfig{
			ClientID:          "orderpulse",
			OrderChangesTopic: "order-changes",
			ConsumerGroupID:   "orderpulse-broadcaster",
			Partitions:        3,
			Replication:       1,
		},
		RealtimeConfig: RealtimeConfig{
			ServerURL:            "ws://localhost:5001/wss",
			APIBaseURL:           "http://localhost:5001",
			ReconnectBaseDelayMs: 1000,
			ReconnectMaxDelayMs:  10000,
			MaxReconnectAttempts: 5,
			HandshakeTimeoutSec:  20,
			NotificationLimit:    50,
			ToastSeconds:         5,
		},
		StatsConfig: StatsConfig{
			CronExpr: "@every 1m",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return conf, err
	}
	return conf, nil
}

func GetConfig() *Config {
	if config == nil {
		path := strings.TrimSpace(os.Getenv("ORDERPULSE_CONFIG"))
		if path == "" {
			path = defaultConfigPath
		}
		conf, err := LoadConfig(path)
		if err != nil {
			log.Printf("加载配置文件失败: %v, 使用默认设置", err)
		}
		config = conf
	}
	return config
}
