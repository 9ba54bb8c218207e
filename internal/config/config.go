package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every knob the server reads from the environment.
// Defaults match a local single-process deployment.
type Config struct {
	Port       string
	Env        string
	CORSOrigin string
	LogLevel   string

	RoomTTL       time.Duration
	SweepInterval time.Duration

	SocketRateLimitWindow time.Duration
	SocketRateLimitMax    int

	YouTubeAPIKey string

	RedisAddr     string
	RedisPassword string

	MySQLHost     string
	MySQLPort     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string
}

func Load() Config {
	return Config{
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RoomTTL:       getDuration("ROOM_TTL_HOURS", 12) * time.Hour,
		SweepInterval: getDuration("ROOM_SWEEP_MINUTES", 5) * time.Minute,

		SocketRateLimitWindow: getDuration("SOCKET_RATE_LIMIT_WINDOW_SECONDS", 60) * time.Second,
		SocketRateLimitMax:    getInt("SOCKET_RATE_LIMIT_MAX", 60),

		YouTubeAPIKey: getEnv("YOUTUBE_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MySQLHost:     getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:     getEnv("MYSQL_PORT", "3306"),
		MySQLUser:     getEnv("MYSQL_USER", "root"),
		MySQLPassword: getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase: getEnv("MYSQL_DATABASE", "vietparty"),

		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "room-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "room-server"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback))
}
