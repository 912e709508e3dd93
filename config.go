package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port    string
	GinMode string

	DBDriver       string // sqlite | postgres | mysql
	DBDSN          string
	DBMaxOpenConns int
	DBMaxIdleConns int
	LogLevel       string // gorm logger: silent | error | warn | info

	MediaDir string
	SeedPath string

	SecureCookies bool
	CORSOrigins   []string

	SubmissionRetention time.Duration
	JanitorSchedule     string
}

// LoadConfig reads configuration from the environment, loading .env first when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment variables")
	}

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", ""),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:          getEnv("DB_DSN", ""),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "warn")),

		MediaDir: getEnv("MEDIA_DIR", "./media"),
		SeedPath: getEnv("SEED_PATH", "data/quizzes.json"),

		SecureCookies: getEnvBool("SECURE_COOKIES", false),
		CORSOrigins:   getEnvCSV("CORS_ORIGINS", "http://localhost:8080"),

		SubmissionRetention: getEnvDuration("SUBMISSION_RETENTION", 30*24*time.Hour),
		JanitorSchedule:     getEnv("JANITOR_SCHEDULE", "@daily"),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDSN == "" {
		log.Printf("Warning: DB_DRIVER=%s without DB_DSN; the driver default will be used", cfg.DBDriver)
	}
	return cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error parsing environment variable %s as duration: %v", key, err)
		return defaultValue
	}
	return d
}

func getEnvCSV(key, defaultValue string) []string {
	parts := strings.Split(getEnv(key, defaultValue), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
