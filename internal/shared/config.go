package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	MySQLDSN      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	DirectoryBase string
	DirectoryKey  string
	DirectoryJSON string
	DirectoryRPS  int
	ScanWorkers   int
	ScanRPS       int
	ScanLimit     int
	CacheTTL      time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/infinity?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisPass:     env("REDIS_PASSWORD", ""),
		DirectoryBase: env("DIRECTORY_BASE_URL", ""),
		DirectoryKey:  env("DIRECTORY_API_KEY", ""),
		DirectoryJSON: env("DIRECTORY_JSON", ""),
		DirectoryRPS:  atoi("DIRECTORY_RPS", 5),
		ScanWorkers:   atoi("SCAN_WORKERS", 8),
		ScanRPS:       atoi("SCAN_RPS", 5),
		ScanLimit:     atoi("SCAN_LIMIT", 500),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	if c.DirectoryBase == "" && c.DirectoryJSON == "" {
		log.Warn().Msg("no actor directory configured; audit views show raw actor IDs")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
