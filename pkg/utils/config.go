package utils

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file, using process environment")
		return
	}
	log.Println("[config] loaded .env")
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	SessionTTL    time.Duration
	AdminUsername string
	AdminPassword string
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("BOOKHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	return AuthConfig{
		JWTSecret:     secret,
		JWTIssuer:     getEnvOrDefault("BOOKHUB_JWT_ISSUER", "bookhub"),
		TokenTTL:      getEnvDuration("BOOKHUB_TOKEN_TTL", time.Minute),
		SessionTTL:    getEnvDuration("BOOKHUB_SESSION_TTL", 2*time.Hour),
		AdminUsername: os.Getenv("BOOKHUB_ADMIN_USERNAME"),
		AdminPassword: os.Getenv("BOOKHUB_ADMIN_PASSWORD"),
	}
}

type ServerConfig struct {
	HTTPAddr string
	TCPAddr  string
	UDPAddr  string
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr: getEnvOrDefault("BOOKHUB_HTTP_ADDR", ":8080"),
		TCPAddr:  getEnvOrDefault("BOOKHUB_TCP_ADDR", ":7070"),
		UDPAddr:  getEnvOrDefault("BOOKHUB_UDP_ADDR", ":7071"),
	}
}

type SweeperConfig struct {
	Schedule  string
	InProcess bool
}

func LoadSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Schedule:  getEnvOrDefault("BOOKHUB_OVERDUE_CRON", "@every 1h"),
		InProcess: getEnvBool("BOOKHUB_OVERDUE_IN_PROCESS", false),
	}
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvDuration accepts Go durations ("90s", "1h") or a plain number of
// seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("[config] invalid %s=%q, using %s", key, v, def)
	return def
}
