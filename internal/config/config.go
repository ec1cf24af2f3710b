package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthSecret     string
	AccessTokenTTL time.Duration

	AllowOversell     bool
	DashboardCacheTTL time.Duration
	PrinterAddr       string
	PrinterTimeout    time.Duration
}

func (c Config) Address() string {
	return ":" + c.Port
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		AuthSecret:        os.Getenv("AUTH_SECRET"),
		AccessTokenTTL:    time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		AllowOversell:     getEnvBool("ALLOW_OVERSELL", false),
		DashboardCacheTTL: time.Duration(getEnvInt("DASHBOARD_CACHE_TTL_SECONDS", 30)) * time.Second,
		PrinterAddr:       os.Getenv("PRINTER_ADDR"),
		PrinterTimeout:    time.Duration(getEnvInt("PRINTER_TIMEOUT_SECONDS", 5)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
