package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AgentConfig captures all tunable parameters for the driver agent.
// Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type AgentConfig struct {
	APIBaseURL string
	WSURL      string

	DriverID string
	Token    string

	StatusAddr      string
	ShutdownTimeout time.Duration

	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	RetryBackoff      string // "linear" or "exponential"
	PerAttemptTimeout time.Duration

	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration

	OfferCountdownSeconds int
	AssumedSpeedKph       float64
	FareBase              float64
	FarePerMile           float64
	FarePerMinute         float64

	RedisAddr     string
	RedisPassword string
	FallbackTTL   time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	StripeAPIKey string

	LogLevel string
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		APIBaseURL:            "http://localhost:8080",
		WSURL:                 "ws://localhost:8080/ws",
		StatusAddr:            ":2112",
		ShutdownTimeout:       15 * time.Second,
		RetryMaxAttempts:      3,
		RetryBaseDelay:        time.Second,
		RetryBackoff:          "linear",
		PerAttemptTimeout:     30 * time.Second,
		ReconnectMaxAttempts:  5,
		ReconnectBaseDelay:    2 * time.Second,
		OfferCountdownSeconds: 30,
		AssumedSpeedKph:       25,
		FareBase:              5.00,
		FarePerMile:           2.50,
		FarePerMinute:         0.25,
		FallbackTTL:           24 * time.Hour,
		KafkaTopic:            "driver-locations",
		LogLevel:              "info",
	}
}

func LoadAgentConfig() (AgentConfig, error) {
	cfg := defaultAgentConfig()
	var errs []error

	setStringFromEnv(&cfg.APIBaseURL, "API_BASE_URL")
	setStringFromEnv(&cfg.WSURL, "WS_URL")
	setStringFromEnv(&cfg.DriverID, "DRIVER_ID")
	cfg.Token = os.Getenv("DRIVER_TOKEN")
	setStringFromEnv(&cfg.StatusAddr, "STATUS_ADDR")
	setDurationFromEnv(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT", &errs)

	setIntFromEnv(&cfg.RetryMaxAttempts, "RETRY_MAX_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.RetryBaseDelay, "RETRY_BASE_DELAY", &errs)
	setStringFromEnv(&cfg.RetryBackoff, "RETRY_BACKOFF")
	setDurationFromEnv(&cfg.PerAttemptTimeout, "PER_ATTEMPT_TIMEOUT", &errs)

	setIntFromEnv(&cfg.ReconnectMaxAttempts, "RECONNECT_MAX_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.ReconnectBaseDelay, "RECONNECT_BASE_DELAY", &errs)

	setIntFromEnv(&cfg.OfferCountdownSeconds, "OFFER_COUNTDOWN_SECONDS", &errs)
	setFloatFromEnv(&cfg.AssumedSpeedKph, "ASSUMED_SPEED_KPH", &errs)
	setFloatFromEnv(&cfg.FareBase, "FARE_BASE", &errs)
	setFloatFromEnv(&cfg.FarePerMile, "FARE_PER_MILE", &errs)
	setFloatFromEnv(&cfg.FarePerMinute, "FARE_PER_MINUTE", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.FallbackTTL, "FALLBACK_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.RetryMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS must be > 0"))
	}
	if cfg.OfferCountdownSeconds <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_COUNTDOWN_SECONDS must be > 0"))
	}
	if cfg.RetryBackoff != "linear" && cfg.RetryBackoff != "exponential" {
		errs = append(errs, fmt.Errorf("RETRY_BACKOFF must be linear or exponential"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
