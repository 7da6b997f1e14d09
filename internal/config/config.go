package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration, loaded once in main and passed
// down explicitly. No package-level state.
type Config struct {
	Port        string
	Development bool

	DatabaseDSN string

	JWTSecret []byte

	SMTP SMTPConfig

	Worker WorkerConfig
}

// SMTPConfig configures the outbound mail transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// WorkerConfig tunes the email delivery worker.
type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
	MaxAttempts  int
	RetryDelay   time.Duration
	SoftTimeout  time.Duration
	HardTimeout  time.Duration
}

// Load reads configs/.env when present, then the environment.
func Load() Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Development: os.Getenv("GIN_MODE") != "release",
		JWTSecret:   []byte(jwtSecret()),
		SMTP: SMTPConfig{
			Host:     getEnv("MAIL_HOST", "localhost"),
			Port:     getEnvInt("MAIL_PORT", 587),
			Username: os.Getenv("MAIL_USERNAME"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     getEnv("MAIL_FROM", "noreply@solicitudes.local"),
		},
		Worker: WorkerConfig{
			PollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			Concurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
			MaxAttempts:  getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			RetryDelay:   getEnvDuration("WORKER_RETRY_DELAY", 60*time.Second),
			SoftTimeout:  getEnvDuration("WORKER_SOFT_TIMEOUT", 20*time.Second),
			HardTimeout:  getEnvDuration("WORKER_HARD_TIMEOUT", 30*time.Second),
		},
	}
	cfg.DatabaseDSN = databaseDSN()

	return cfg
}

func databaseDSN() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	name := getEnv("DB_NAME", "postgres")
	sslMode := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=" + sslMode
}

func jwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return secret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
