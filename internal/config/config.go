// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries the daemon's runtime settings. Storage and blob driver
// selection stay env-driven inside their factories; this struct covers the
// rest.
type Config struct {
	HTTPAddr string

	SyncEndpoint string
	SyncUserID   string
	SyncDebounce time.Duration
	SyncInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Load reads .env if present, then the process environment.
//
//	BAKEHOUSE_HTTP_ADDR: listen address (default :8080)
//	BAKEHOUSE_SYNC_ENDPOINT: remote sync URL; empty disables outbound sync
//	BAKEHOUSE_SYNC_USER_ID: identity tag on flush payloads
//	BAKEHOUSE_SYNC_DEBOUNCE / BAKEHOUSE_SYNC_INTERVAL: Go durations
//	BAKEHOUSE_KAFKA_BROKERS: comma-separated; empty disables the listener
//	BAKEHOUSE_KAFKA_TOPIC / BAKEHOUSE_KAFKA_GROUP_ID
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:     getenv("BAKEHOUSE_HTTP_ADDR", ":8080"),
		SyncEndpoint: os.Getenv("BAKEHOUSE_SYNC_ENDPOINT"),
		SyncUserID:   getenv("BAKEHOUSE_SYNC_USER_ID", "local"),
		SyncDebounce: getduration("BAKEHOUSE_SYNC_DEBOUNCE", 5*time.Second),
		SyncInterval: getduration("BAKEHOUSE_SYNC_INTERVAL", 30*time.Second),
		KafkaTopic:   getenv("BAKEHOUSE_KAFKA_TOPIC", "bakehouse-snapshots"),
		KafkaGroupID: getenv("BAKEHOUSE_KAFKA_GROUP_ID", "bakehouse"),
	}
	if brokers := os.Getenv("BAKEHOUSE_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

// NewLogger builds the process-wide JSON logger. BAKEHOUSE_LOG_LEVEL accepts
// the logrus level names (default info).
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(getenv("BAKEHOUSE_LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
