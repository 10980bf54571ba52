package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Change feed backends.
const (
	FeedPgNotify = "pgnotify"
	FeedRedis    = "redis"
	FeedKafka    = "kafka"
)

type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	// ChangeFeed selects where sessions receive notifications from. With
	// redis or kafka this instance also relays the database channel onto the
	// broker unless RelayDisabled is set.
	ChangeFeed    string
	RelayDisabled bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	KafkaHost          string
	KafkaConsumerGroup string
	KafkaChangesTopic  string

	AssetBaseURL        string
	SessionIdleTTL      time.Duration
	RoutePollSchedule   string
	SessionReapSchedule string
	LogLevel            string
}

// DSN is the libpq connection string used by GORM and the LISTEN connection.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%v port=%v user=%v password=%v dbname=%v sslmode=%v",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

func (c Config) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaHost, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT is required")
	}
	if c.DBHost == "" || c.DBName == "" {
		return errors.New("DB_HOST and DB_NAME are required")
	}
	switch c.ChangeFeed {
	case FeedPgNotify:
	case FeedRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis change feed")
		}
	case FeedKafka:
		if len(c.KafkaBrokers()) == 0 || c.KafkaConsumerGroup == "" || c.KafkaChangesTopic == "" {
			return errors.New("KAFKA_HOST, KAFKA_CONSUMER_GROUP and KAFKA_CHANGES_TOPIC are required for the kafka change feed")
		}
	default:
		return fmt.Errorf("unknown CHANGE_FEED %q", c.ChangeFeed)
	}
	return nil
}
