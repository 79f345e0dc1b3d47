package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env    string
	Server ServerConfig
	Redis  RedisConfig
	Relay  RelayConfig
	JWT    JWTConfig
	Log    LogConfig
	Kafka  KafkaConfig
	Sim    SimConfig
}

type ServerConfig struct {
	HTTPPort     int
	TCPPort      int
	UDPPort      int
	GRpcPort     int
	PublicIP     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	Enabled      bool
}

type RelayConfig struct {
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	QueueDepth        int
	FrameTTL          time.Duration
	ProximityRadius   float64
	GhostBase         int64
	RealmID           int64
	MirrorEnabled     bool
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
	ConsumerGroupID      string
}

type JWTConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

type SimConfig struct {
	PacePartnerRoutes string
	BotRoutes         string
	GhostRoutes       string
	TickInterval      time.Duration
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			TCPPort:      getEnvAsInt("SERVER_TCP_PORT", 3025),
			UDPPort:      getEnvAsInt("SERVER_UDP_PORT", 3022),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50056),
			PublicIP:     getEnv("SERVER_PUBLIC_IP", "127.0.0.1"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
		},
		Relay: RelayConfig{
			HeartbeatInterval: getEnvAsDuration("RELAY_HEARTBEAT_INTERVAL", 1*time.Second),
			IdleTimeout:       getEnvAsDuration("RELAY_IDLE_TIMEOUT", 90*time.Second),
			SweepInterval:     getEnvAsDuration("RELAY_SWEEP_INTERVAL", 10*time.Second),
			QueueDepth:        getEnvAsInt("RELAY_QUEUE_DEPTH", 256),
			FrameTTL:          getEnvAsDuration("RELAY_FRAME_TTL", 60*time.Second),
			ProximityRadius:   getEnvAsFloat("RELAY_PROXIMITY_RADIUS", 100000),
			GhostBase:         int64(getEnvAsInt("RELAY_GHOST_BASE", 1000000000)),
			RealmID:           int64(getEnvAsInt("RELAY_REALM_ID", 1)),
			MirrorEnabled:     getEnvAsBool("RELAY_MIRROR_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
			Issuer: getEnv("JWT_ISSUER", "pelotond"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "pelotond"),
		},
		Sim: SimConfig{
			PacePartnerRoutes: getEnv("SIM_PACE_PARTNER_ROUTES", ""),
			BotRoutes:         getEnv("SIM_BOT_ROUTES", ""),
			GhostRoutes:       getEnv("SIM_GHOST_ROUTES", ""),
			TickInterval:      getEnvAsDuration("SIM_TICK_INTERVAL", 1*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"http": c.Server.HTTPPort,
		"tcp":  c.Server.TCPPort,
		"udp":  c.Server.UDPPort,
		"grpc": c.Server.GRpcPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s port: %d", name, port)
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Relay.HeartbeatInterval <= 0 {
		return fmt.Errorf("relay heartbeat interval must be positive")
	}

	if c.Relay.QueueDepth <= 0 {
		return fmt.Errorf("relay queue depth must be positive: %d", c.Relay.QueueDepth)
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "jwt-secret" {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
