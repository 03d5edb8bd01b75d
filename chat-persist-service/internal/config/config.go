package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/weiawesome/wes-io-chat/pkg/cassandra"
	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
)

// Store drivers.
const (
	StoreGorm      = "gorm"
	StoreCassandra = "cassandra"
)

type Config struct {
	Server    ServerConfig
	Queue     queue.Config
	Consumer  ConsumerConfig
	Store     StoreConfig
	Database  database.Config
	Cassandra cassandra.Config
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type ConsumerConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	InsertTimeout  time.Duration `mapstructure:"insert_timeout"`
}

type StoreConfig struct {
	Driver      string
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	setQueueDefaults(v)
	v.SetDefault("consumer.reconnect_delay", "5s")
	v.SetDefault("consumer.retry_delay", "1s")
	v.SetDefault("consumer.insert_timeout", "10s")
	v.SetDefault("store.driver", StoreGorm)
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "wes_chat")
	v.SetDefault("cassandra.username", "")
	v.SetDefault("cassandra.password", "")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("cassandra.num_conns", 2)
	v.SetDefault("cassandra.max_prepared_stmt", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "chat-persist-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("queue.driver", "QUEUE_DRIVER")
	v.BindEnv("queue.dead_letter", "QUEUE_DEAD_LETTER")
	v.BindEnv("queue.amqp.url", "AMQP_URL")
	v.BindEnv("queue.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("queue.redis.address", "QUEUE_REDIS_ADDRESS")
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("cassandra.username", "CASSANDRA_USERNAME")
	v.BindEnv("cassandra.password", "CASSANDRA_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Consumer.ReconnectDelay = pkgconfig.Duration(v, "consumer.reconnect_delay", 5*time.Second)
	cfg.Consumer.RetryDelay = pkgconfig.Duration(v, "consumer.retry_delay", time.Second)
	cfg.Consumer.InsertTimeout = pkgconfig.Duration(v, "consumer.insert_timeout", 10*time.Second)
	cfg.Cassandra.ConnectTimeout = pkgconfig.Duration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = pkgconfig.Duration(v, "cassandra.timeout", 5*time.Second)
	cfg.Cassandra.Hosts = pkgconfig.StringSlice(v, "cassandra.hosts")
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
	v.SetDefault("queue.redis.block", d.Redis.Block.String())
	v.SetDefault("queue.redis.claim_min_idle", d.Redis.ClaimMinIdle.String())
}
