package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Platform PlatformConfig
	Quiz     QuizConfig
	MongoDB  MongoDBConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Consul   ConsulConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ServiceName    string
	ServiceAddress string
	ServiceID      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type PlatformConfig struct {
	Token            string
	APIBase          string
	ApplicationID    string
	GuildID          string // command registration scope; global when empty
	TrialRoleID      string // probationary cosmetic role
	ModRoleID        string // full rank granted on pass
	QuizLogChannelID string // audit channel; disabled when empty
	TierTablePath    string
	RequestTimeout   time.Duration
	RoleCacheTTL     time.Duration
}

type QuizConfig struct {
	PoolPath        string
	SessionSize     int
	PassThreshold   int
	MinimumTenure   time.Duration
	FailureCooldown time.Duration
	SessionLifetime time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URI       string
	QueueName string
}

type ConsulConfig struct {
	ConsulAddress string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "9400"),
			Host:           getEnv("HOST", "0.0.0.0"),
			ServiceName:    getEnv("RANK_SERVICE_NAME", "rank-service"),
			ServiceAddress: getEnv("RANK_SERVICE_ADDRESS", "rank-service"),
			ServiceID:      getEnv("RANK_SERVICE_NAME", "rank-service") + "-" + getEnv("HOSTNAME", "rank"),
			ReadTimeout:    getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		Platform: PlatformConfig{
			Token:            getEnv("TOKEN", ""),
			APIBase:          getEnv("PLATFORM_API_BASE", "https://discord.com/api/v10"),
			ApplicationID:    getEnv("APPLICATION_ID", ""),
			GuildID:          getEnv("GUILD_ID", ""),
			TrialRoleID:      getEnv("TRIAL_ROLE_ID", ""),
			ModRoleID:        getEnv("MOD_ROLE_ID", ""),
			QuizLogChannelID: getEnv("QUIZ_LOG_CHANNEL_ID", ""),
			TierTablePath:    getEnv("TIER_TABLE_PATH", "config/tiers.json"),
			RequestTimeout:   getEnvAsDuration("PLATFORM_REQUEST_TIMEOUT", 10*time.Second),
			RoleCacheTTL:     getEnvAsDuration("ROLE_CACHE_TTL", 5*time.Minute),
		},
		Quiz: QuizConfig{
			PoolPath:        getEnv("QUESTION_POOL_PATH", "config/questions.json"),
			SessionSize:     getEnvAsInt("QUIZ_SESSION_SIZE", 5),
			PassThreshold:   getEnvAsInt("QUIZ_PASS_THRESHOLD", 4),
			MinimumTenure:   getEnvAsDuration("QUIZ_MINIMUM_TENURE", 14*24*time.Hour),
			FailureCooldown: getEnvAsDuration("QUIZ_FAILURE_COOLDOWN", 24*time.Hour),
			SessionLifetime: getEnvAsDuration("QUIZ_SESSION_LIFETIME", 10*time.Minute),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "rank_service"),
			Timeout:  getEnvAsDuration("MONGODB_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URI:       getEnv("RABBITMQ_URI", ""),
			QueueName: getEnv("RABBITMQ_QUEUE", "rank-service-events"),
		},
		Consul: ConsulConfig{
			ConsulAddress: getEnv("CONSUL_ADDRESS", "consul-server:"+getEnv("CONSUL_PORT", "8500")),
		},
	}
}

// Validate checks the identifiers the service cannot run without.
func (c *Config) Validate() error {
	if c.Platform.Token == "" {
		return errors.New("missing TOKEN env var")
	}
	if c.Platform.ModRoleID == "" {
		return errors.New("missing MOD_ROLE_ID env var")
	}
	if c.Platform.TrialRoleID == "" {
		return errors.New("missing TRIAL_ROLE_ID env var")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("error retrieving int env var %s: %s", key, err)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("error retrieving duration env var %s: %s", key, err)
			return defaultValue
		}
		return d
	}
	return defaultValue
}
