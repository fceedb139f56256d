package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server wiring configuration
type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	HTTPPort  string
	LogMode   string

	// CacheBackend selects the AI response cache store: "redis", "memory" or
	// "tiered" (in-process in front of Redis)
	CacheBackend string
	AICacheTTL   time.Duration
	SessionTTL   time.Duration

	HostUsername string
	HostPassword string
	JWTSecret    string

	CORSAllowedOrigins string
}

// Load reads configuration from the environment
func Load() *Config {
	return &Config{
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGO_DB", "smartsurvey"),
		RedisAddr:          strings.TrimPrefix(getEnv("REDIS_URI", "localhost:6379"), "redis://"),
		HTTPPort:           getEnv("PORT", "8080"),
		LogMode:            getEnv("LOG_MODE", "dev"),
		CacheBackend:       getEnv("CACHE_BACKEND", "redis"),
		AICacheTTL:         time.Duration(getEnvInt("AI_CACHE_TTL_SEC", 86400)) * time.Second,
		SessionTTL:         time.Duration(getEnvInt("SESSION_TTL_SEC", 86400)) * time.Second,
		HostUsername:       getEnv("HOST_USERNAME", "admin"),
		HostPassword:       getEnv("HOST_PASSWORD", "password123"),
		JWTSecret:          getEnv("JWT_SECRET", "super-secret-key-change-in-production"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
