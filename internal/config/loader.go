package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads an optional YAML file at path, then .env and the process
// environment. Env keys mirror the nested keys (MONGO_URI, PUSH_ENABLED, ...).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindLegacyEnv(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	derive(&c)
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 5000)
	v.SetDefault("app.shutdown_seconds", 10)
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "rbackend")
	v.SetDefault("mongo.timeout_seconds", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "rb")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", "rbackend-notify")
	v.SetDefault("kafka.topic_events", "domain-events")
	v.SetDefault("kafka.topic_messages", "chat-messages")
	v.SetDefault("kafka.topic_dlq", "domain-events-dlq")
	v.SetDefault("kafka.max_retries", 2)
	v.SetDefault("kafka.retry_backoff_ms", 200)

	v.SetDefault("jwt.alg", "HS256")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.public_key_path", "")

	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.auth_timeout_ms", 2000)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.inbound_rps", 5)
	v.SetDefault("ws.presence_ttl_seconds", 86400)

	v.SetDefault("chat.group_key", "RUDHRAM")

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.project_id", "")
	v.SetDefault("push.timeout_seconds", 10)
	v.SetDefault("push.workers", 4)
	v.SetDefault("push.queue_size", 256)
	v.SetDefault("push.group_messages", true)
	v.SetDefault("push.breaker_max_failures", 5)
	v.SetDefault("push.breaker_open_seconds", 30)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads/chat")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.max_files", 10)
	v.SetDefault("storage.max_file_bytes", 20<<20)
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_public_read", true)

	v.SetDefault("ratelimit.send_limit", 60)
	v.SetDefault("ratelimit.window_seconds", 60)

	v.SetDefault("log.level", "info")
}

// bindLegacyEnv keeps the variable names the deployment already uses.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("app.port", "APP_PORT", "PORT")
	_ = v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("push.credentials_file", "PUSH_CREDENTIALS_FILE", "FIREBASE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
}

func derive(c *Config) {
	c.ShutdownTimeout = time.Duration(c.App.ShutdownSeconds) * time.Second
	c.MongoTimeout = time.Duration(c.Mongo.TimeoutSeconds) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.AuthTimeout = time.Duration(c.WS.AuthTimeoutMs) * time.Millisecond
	c.PresenceTTL = time.Duration(c.WS.PresenceTTLSeconds) * time.Second
	c.PushTimeout = time.Duration(c.Push.TimeoutSeconds) * time.Second
	c.BreakerTimeout = time.Duration(c.Push.BreakerOpenSeconds) * time.Second
	c.RateWindow = time.Duration(c.RateLimit.WindowSeconds) * time.Second
	c.Chat.GroupKey = strings.TrimSpace(c.Chat.GroupKey)
	c.JWT.Alg = strings.ToUpper(c.JWT.Alg)
}

func validate(c *Config) error {
	if c.App.Port == 0 {
		return errors.New("app.port missing or invalid")
	}
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo.database missing")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}
	if c.Chat.GroupKey == "" {
		return errors.New("chat.group_key missing")
	}
	switch c.JWT.Alg {
	case "HS256":
		if c.JWT.Secret == "" {
			return errors.New("jwt.secret required for HS256")
		}
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	default:
		return errors.New("invalid jwt.alg (use RS256 or HS256)")
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir missing")
		}
	case "s3":
		if c.Storage.S3Bucket == "" || c.Storage.S3Region == "" {
			return errors.New("storage.s3_bucket and storage.s3_region required for s3")
		}
	default:
		return errors.New("invalid storage.driver (use local or s3)")
	}
	if c.Push.Enabled && c.Push.CredentialsFile == "" {
		return errors.New("push.credentials_file required when push is enabled")
	}
	if c.Push.Workers <= 0 || c.Push.QueueSize <= 0 {
		return errors.New("push.workers and push.queue_size must be positive")
	}
	return nil
}
