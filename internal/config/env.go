package config

import (
	"os"
	"strconv"
	"strings"

	"transitbook/internal/store"

	"github.com/joho/godotenv"
)

const (
	BusLocal = "local"
	BusRedis = "redis"
)

type Env struct {
	AppAddr  string
	GinMode  string
	LogLevel string

	AuthJWTSecret        string
	DefaultLoyaltyPoints int

	BusBackend    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DBDSN enables the MySQL event log when set.
	DBDSN string

	CORSAllowedOrigins []string
}

// LoadEnv reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func LoadEnv(files ...string) Env {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	return Env{
		AppAddr:              getenv("APP_ADDR", ":8080"),
		GinMode:              getenv("GIN_MODE", ""),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		AuthJWTSecret:        getenv("AUTH_JWT_SECRET", ""),
		DefaultLoyaltyPoints: getenvInt("DEFAULT_LOYALTY_POINTS", store.DefaultLoyaltyPoints),
		BusBackend:           strings.ToLower(getenv("BUS_BACKEND", BusLocal)),
		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getenv("REDIS_PASSWORD", ""),
		RedisDB:              getenvInt("REDIS_DB", 0),
		DBDSN:                getenv("DB_DSN", ""),
		CORSAllowedOrigins:   splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
