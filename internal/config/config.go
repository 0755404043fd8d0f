package config

import (
	"fmt"
	"time"
)

type AppConfig struct {
	Env             string   `mapstructure:"env"`
	Port            int      `mapstructure:"port"`
	ShutdownSeconds int      `mapstructure:"shutdown_seconds"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
}

func (a AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

func (a AppConfig) IsDev() bool { return a.Env == "" || a.Env == "dev" || a.Env == "development" }

type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	TopicEvents    string   `mapstructure:"topic_events"`
	TopicMessages  string   `mapstructure:"topic_messages"`
	TopicDLQ       string   `mapstructure:"topic_dlq"`
	MaxRetries     int      `mapstructure:"max_retries"`
	RetryBackoffMs int      `mapstructure:"retry_backoff_ms"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 && k.Brokers[0] != "" }

type JWTConfig struct {
	Alg           string `mapstructure:"alg"`
	Secret        string `mapstructure:"secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	AuthTimeoutMs        int   `mapstructure:"auth_timeout_ms"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
	InboundRPS           int   `mapstructure:"inbound_rps"`
	PresenceTTLSeconds   int   `mapstructure:"presence_ttl_seconds"`
}

type ChatConfig struct {
	GroupKey string `mapstructure:"group_key"`
}

type PushConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	ProjectID          string `mapstructure:"project_id"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	Workers            int    `mapstructure:"workers"`
	QueueSize          int    `mapstructure:"queue_size"`
	GroupMessages      bool   `mapstructure:"group_messages"`
	BreakerMaxFailures uint32 `mapstructure:"breaker_max_failures"`
	BreakerOpenSeconds int    `mapstructure:"breaker_open_seconds"`
}

type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxFiles      int    `mapstructure:"max_files"`
	MaxFileBytes  int64  `mapstructure:"max_file_bytes"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Region      string `mapstructure:"s3_region"`
	S3PublicRead  bool   `mapstructure:"s3_public_read"`
}

type RateLimitConfig struct {
	SendLimit     int `mapstructure:"send_limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WS        WSConfig        `mapstructure:"ws"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Push      PushConfig      `mapstructure:"push"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration `mapstructure:"-"`
	MongoTimeout    time.Duration `mapstructure:"-"`
	PingInterval    time.Duration `mapstructure:"-"`
	WriteDeadline   time.Duration `mapstructure:"-"`
	AuthTimeout     time.Duration `mapstructure:"-"`
	PresenceTTL     time.Duration `mapstructure:"-"`
	PushTimeout     time.Duration `mapstructure:"-"`
	BreakerTimeout  time.Duration `mapstructure:"-"`
	RateWindow      time.Duration `mapstructure:"-"`
}
