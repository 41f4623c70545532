package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
		Token    string
	}
	Scan struct {
		Interval time.Duration
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Push struct {
		Endpoint  string
		ServerKey string
		RateLimit int
	}
	Telegram struct {
		BotToken  string
		RateLimit int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")
	cfg.API.Token = os.Getenv("API_TOKEN")

	// Sweep cadence
	if iv, err := time.ParseDuration(os.Getenv("SCAN_INTERVAL")); err == nil {
		cfg.Scan.Interval = iv
	}

	// Kafka settings (consumer is disabled when the broker is empty)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Push transport settings
	cfg.Push.Endpoint = os.Getenv("PUSH_ENDPOINT")
	cfg.Push.ServerKey = os.Getenv("PUSH_SERVER_KEY")
	if rl, err := strconv.Atoi(os.Getenv("PUSH_RATE_LIMIT")); err == nil {
		cfg.Push.RateLimit = rl
	}

	// Telegram settings (optional secondary channel)
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if rl, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.RateLimit = rl
	}

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Scan.Interval == 0 {
		cfg.Scan.Interval = time.Minute
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "task_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "task-timeout-service"
	}
	if cfg.Push.Endpoint == "" {
		cfg.Push.Endpoint = "https://fcm.googleapis.com/fcm/send"
	}
	if cfg.Push.RateLimit == 0 {
		cfg.Push.RateLimit = 20
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 20
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
