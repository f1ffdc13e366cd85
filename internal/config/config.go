package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
// All credentials live here and are passed into constructors at startup;
// nothing reads the environment after Load.
type App struct {
	Env             string
	HTTPPort        string
	DatabaseURL     string
	RedisAddr       string
	JWTIssuer       string
	JWTSigningKey   string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	OperatorUser    string
	OperatorPass    string
	FaceServiceURL  string
	FaceSkip        bool
	QueueBackend    string
	RateLimitPerMin int
	LateHour        int
	MatchTimeout    time.Duration
	StoreTimeout    time.Duration
	UploadDir       string

	SMTPHost        string
	SMTPPort        string
	SMTPFrom        string
	SMTPPassword    string
	NotifyRecipient string
}

// Load returns application config populated from environment variables with
// sensible defaults.
func Load() App {
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		DatabaseURL:     getEnv("DATABASE_URL", "data/attendance.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTIssuer:       getEnv("JWT_ISSUER", "campus-attendance"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:       durationEnv("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:      durationEnv("REFRESH_TTL", 24*time.Hour),
		OperatorUser:    getEnv("OPERATOR_USER", "operator"),
		OperatorPass:    getEnv("OPERATOR_PASSWORD", "operator123"),
		FaceServiceURL:  getEnv("FACE_SERVICE_URL", "http://localhost:8000"),
		FaceSkip:        boolEnv("FACE_SKIP", true),
		QueueBackend:    getEnv("QUEUE_BACKEND", "redis"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
		LateHour:        intEnv("LATE_HOUR", 9),
		MatchTimeout:    durationEnv("MATCH_TIMEOUT", 30*time.Second),
		StoreTimeout:    durationEnv("STORE_TIMEOUT", 5*time.Second),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPFrom:        getEnv("SMTP_FROM", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		NotifyRecipient: getEnv("NOTIFY_RECIPIENT", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
