package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"monitoring-service/internal/models"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Brokers         []string
		Topic           string
		GroupID         string
		DeadLetterTopic string
	}
	DB struct {
		DSN string
	}
	API struct {
		Port string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Producer struct {
		Interval   time.Duration
		BufferSize int
	}
	Consumer struct {
		MaxRetries  int
		RetryDelay  time.Duration
		DedupWindow time.Duration
	}
	ControlPlane struct {
		GracePeriod time.Duration
		MaxRetries  int
	}
	Telegram struct {
		BotToken      string
		ChatID        int64
		RatePerSecond int
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		To         string
	}
	Targets []models.Target
}

// Load reads environment variables and the targets file, applies defaults,
// and returns a Config. Any malformed target is a load-time error, never
// discovered at poll time.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// A set-but-unparseable value is a load-time error, never a silent
	// fallback to the default.
	var parseErrs []error
	intEnv := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return v
	}
	durEnv := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return v
	}

	cfg.Kafka.Brokers = []string{os.Getenv("KAFKA_BROKER")}
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")
	cfg.Kafka.DeadLetterTopic = os.Getenv("KAFKA_DEAD_LETTER_TOPIC")

	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	cfg.Producer.Interval = durEnv("PRODUCER_INTERVAL", 60*time.Second)
	cfg.Producer.BufferSize = intEnv("PRODUCER_BUFFER_SIZE", 500)

	cfg.Consumer.MaxRetries = intEnv("CONSUMER_MAX_RETRIES", 5)
	cfg.Consumer.RetryDelay = durEnv("CONSUMER_RETRY_DELAY", 2*time.Second)
	cfg.Consumer.DedupWindow = durEnv("CONSUMER_DEDUP_WINDOW", 10*time.Minute)

	cfg.ControlPlane.GracePeriod = durEnv("CP_GRACE_PERIOD", 30*time.Second)
	cfg.ControlPlane.MaxRetries = intEnv("CP_MAX_RETRIES", 3)

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err))
		}
		cfg.Telegram.ChatID = id
	}
	cfg.Telegram.RatePerSecond = intEnv("TELEGRAM_RATE_LIMIT", 1)

	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	cfg.Email.SMTPPort = intEnv("EMAIL_SMTP_PORT", 587)
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.To = os.Getenv("EMAIL_TO")

	if len(parseErrs) > 0 {
		return Config{}, errors.Join(parseErrs...)
	}
	if cfg.Producer.BufferSize <= 0 {
		return Config{}, fmt.Errorf("PRODUCER_BUFFER_SIZE must be positive, got %d", cfg.Producer.BufferSize)
	}

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Brokers[0] == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	targetsFile := os.Getenv("TARGETS_FILE")
	if targetsFile == "" {
		missing = append(missing, "TARGETS_FILE")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "metrics"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "metrics-storage"
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = "metrics.deadletter"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	targets, err := LoadTargets(targetsFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Targets = targets

	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
