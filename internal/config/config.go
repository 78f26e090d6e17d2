package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, loaded from environment variables.
type Config struct {
	Port          string
	RedisAddr     string
	JWTSecret     []byte
	AdminUsername string
	// RoomTTL is how long a room may sit without activity before the
	// sweeper removes it.
	RoomTTL       time.Duration
	SweepInterval time.Duration
}

func Load() *Config {
	ttlHours := getEnvInt("ROOM_TTL_HOURS", 12)
	sweepMin := getEnvInt("SWEEP_INTERVAL_MINUTES", 5)

	return &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		JWTSecret:     []byte(getEnvOrDefault("JWT_SECRET", "poemgrid-dev-secret")),
		AdminUsername: getEnvOrDefault("ADMIN_USERNAME", "管理员"),
		RoomTTL:       time.Duration(ttlHours) * time.Hour,
		SweepInterval: time.Duration(sweepMin) * time.Minute,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
