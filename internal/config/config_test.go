package config

import (
	"testing"
	"time"
)

func TestDefaultsLoadCleanly(t *testing.T) {
	cfg, err := LoadAgentConfig()
	if err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryBaseDelay != time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
	if cfg.OfferCountdownSeconds != 30 || cfg.AssumedSpeedKph != 25 {
		t.Fatalf("unexpected offer defaults: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF", "exponential")
	t.Setenv("OFFER_COUNTDOWN_SECONDS", "15")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	cfg, err := LoadAgentConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RetryMaxAttempts != 5 || cfg.RetryBackoff != "exponential" || cfg.OfferCountdownSeconds != 15 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("broker list not trimmed: %v", cfg.KafkaBrokers)
	}
}

func TestInvalidValuesAggregate(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	t.Setenv("RETRY_BACKOFF", "fibonacci")
	t.Setenv("PER_ATTEMPT_TIMEOUT", "soon")
	if _, err := LoadAgentConfig(); err == nil {
		t.Fatal("expected aggregated validation errors")
	}
}
