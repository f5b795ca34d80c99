// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server, the backing stores
// and the scan pipeline timings.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	MySQLDSN  string
	RedisAddr string // empty means the in-process resolution cache is used

	CacheTTL       time.Duration
	Debounce       time.Duration
	FlushThreshold int
	HIDIdleFlush   time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	RecoveryDelay  time.Duration
	BatchDelay     time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/inventory?parseTime=true"),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		CacheTTL:        durenvs("CACHE_TTL", 30),
		Debounce:        durenvms("SCAN_DEBOUNCE_MS", 500),
		FlushThreshold:  atoienv("SCAN_FLUSH_THRESHOLD", 5),
		HIDIdleFlush:    durenvms("HID_IDLE_FLUSH_MS", 300),
		RetryAttempts:   atoienv("LOOKUP_RETRY_ATTEMPTS", 4),
		RetryDelay:      durenvs("LOOKUP_RETRY_DELAY", 2),
		RecoveryDelay:   durenvs("SCAN_RECOVERY_DELAY", 2),
		BatchDelay:      durenvms("BATCH_REOPEN_DELAY_MS", 250),
	}
}
