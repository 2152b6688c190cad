package config

import (
	"os"
	"strconv"
	"time"
)

type RenewalConfig struct {
	Interval      time.Duration // how often the engine wakes up
	Lookahead     time.Duration // renew subscriptions ending within this window
	RenewalPeriod time.Duration // how far one successful renewal extends
	Concurrency   int           // max owners processed in parallel
	LeaseTTL      time.Duration // redis single-flight lease
}

func LoadRenewalConfig() *RenewalConfig {
	return &RenewalConfig{
		Interval:      getEnvAsDuration("RENEWAL_INTERVAL", 24*time.Hour),
		Lookahead:     getEnvAsDuration("RENEWAL_LOOKAHEAD", 24*time.Hour),
		RenewalPeriod: getEnvAsDuration("RENEWAL_PERIOD", 30*24*time.Hour),
		Concurrency:   getEnvAsInt("RENEWAL_CONCURRENCY", 4),
		LeaseTTL:      getEnvAsDuration("RENEWAL_LEASE_TTL", 10*time.Minute),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
