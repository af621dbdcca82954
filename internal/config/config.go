package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, read from HEALIX_* environment
// variables with a .env file as a local convenience.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	// Object storage for avatars and payment receipts.
	S3Endpoint      string
	S3Bucket        string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	// Plan generation API.
	PlanBaseURL string
	PlanAPIKey  string
	PlanModel   string
	PlanTimeout time.Duration

	// Transactional email.
	PostmarkToken string
	EmailFrom     string

	// Web push.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:      getEnv("HEALIX_PORT", "8080"),
		DBPath:    getEnv("HEALIX_DB_PATH", "healix.db"),
		LogLevel:  getEnv("HEALIX_LOG_LEVEL", "info"),
		LogFormat: getEnv("HEALIX_LOG_FORMAT", "json"),

		S3Endpoint:      os.Getenv("HEALIX_S3_ENDPOINT"),
		S3Bucket:        os.Getenv("HEALIX_S3_BUCKET"),
		S3Region:        getEnv("HEALIX_S3_REGION", "us-east-1"),
		S3AccessKey:     os.Getenv("HEALIX_S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("HEALIX_S3_SECRET_KEY"),
		S3PublicBaseURL: os.Getenv("HEALIX_S3_PUBLIC_URL"),

		PlanBaseURL: os.Getenv("HEALIX_PLAN_API_URL"),
		PlanAPIKey:  os.Getenv("HEALIX_PLAN_API_KEY"),
		PlanModel:   getEnv("HEALIX_PLAN_MODEL", "healix-plan-1"),
		PlanTimeout: getDuration("HEALIX_PLAN_TIMEOUT", 30*time.Second),

		PostmarkToken: os.Getenv("HEALIX_POSTMARK_TOKEN"),
		EmailFrom:     getEnv("HEALIX_EMAIL_FROM", "noreply@healix.app"),

		VAPIDPublicKey:  os.Getenv("HEALIX_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("HEALIX_VAPID_PRIVATE_KEY"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
