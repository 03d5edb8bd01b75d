package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/idgen"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
)

type Config struct {
	Server     ServerConfig
	WebSocket  WebSocketConfig
	Auth       AuthConfig
	Database   database.Config
	Membership MembershipConfig
	Redis      RedisConfig
	Queue      queue.Config
	Relay      RelayConfig
	IDGen      idgen.Config `mapstructure:"idgen"`
	Log        log.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	CheckOrigin    bool          `mapstructure:"check_origin"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string
}

type MembershipConfig struct {
	CacheEnabled bool          `mapstructure:"cache_enabled"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CachePrefix  string        `mapstructure:"cache_prefix"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type RelayConfig struct {
	Workers             int
	BufferSize          int           `mapstructure:"buffer_size"`
	PublishTimeout      time.Duration `mapstructure:"publish_timeout"`
	PublishSystemEvents bool          `mapstructure:"publish_system_events"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_timeout", "5s")
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.check_origin", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "wes-io-chat")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("membership.cache_enabled", false)
	v.SetDefault("membership.cache_ttl", "1m")
	v.SetDefault("membership.cache_prefix", "chat:member")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	setQueueDefaults(v)
	v.SetDefault("relay.workers", 4)
	v.SetDefault("relay.buffer_size", 1024)
	v.SetDefault("relay.publish_timeout", "5s")
	v.SetDefault("relay.publish_system_events", false)
	v.SetDefault("idgen.strategy", idgen.StrategyULID)
	v.SetDefault("idgen.machine_id", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("queue.driver", "QUEUE_DRIVER")
	v.BindEnv("queue.amqp.url", "AMQP_URL")
	v.BindEnv("queue.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("queue.redis.address", "QUEUE_REDIS_ADDRESS")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.SendTimeout = pkgconfig.Duration(v, "websocket.send_timeout", 5*time.Second)
	cfg.Membership.CacheTTL = pkgconfig.Duration(v, "membership.cache_ttl", time.Minute)
	cfg.Relay.PublishTimeout = pkgconfig.Duration(v, "relay.publish_timeout", 5*time.Second)
	cfg.Queue.Redis.Block = pkgconfig.Duration(v, "queue.redis.block", 2*time.Second)
	cfg.Queue.Redis.ClaimMinIdle = pkgconfig.Duration(v, "queue.redis.claim_min_idle", 30*time.Second)

	return &cfg, nil
}

func setQueueDefaults(v *viper.Viper) {
	d := queue.DefaultConfig()
	v.SetDefault("queue.driver", d.Driver)
	v.SetDefault("queue.name", d.Name)
	v.SetDefault("queue.dead_letter", d.DeadLetter)
	v.SetDefault("queue.amqp.url", d.AMQP.URL)
	v.SetDefault("queue.amqp.consumer_tag", d.AMQP.ConsumerTag)
	v.SetDefault("queue.kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("queue.kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("queue.kafka.partitions", d.Kafka.Partitions)
	v.SetDefault("queue.kafka.replication_factor", d.Kafka.ReplicationFactor)
	v.SetDefault("queue.kafka.auto_offset_reset", d.Kafka.AutoOffsetReset)
	v.SetDefault("queue.kafka.session_timeout_ms", d.Kafka.SessionTimeoutMs)
	v.SetDefault("queue.kafka.max_poll_interval_ms", d.Kafka.MaxPollIntervalMs)
	v.SetDefault("queue.redis.address", d.Redis.Address)
	v.SetDefault("queue.redis.password", d.Redis.Password)
	v.SetDefault("queue.redis.db", d.Redis.DB)
	v.SetDefault("queue.redis.group", d.Redis.Group)
	v.SetDefault("queue.redis.consumer", d.Redis.Consumer)
	v.SetDefault("queue.redis.max_len", d.Redis.MaxLen)
	v.SetDefault("queue.redis.block", d.Redis.Block.String())
	v.SetDefault("queue.redis.claim_min_idle", d.Redis.ClaimMinIdle.String())
}
