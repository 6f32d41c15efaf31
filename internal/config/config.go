package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Delivery modes for OTP_DELIVERY.
const (
	DeliveryLog  = "log"
	DeliverySMTP = "smtp"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	OTPTTL           time.Duration
	OTPCooldown      time.Duration
	OTPMaxRecords    int
	OTPSweepInterval time.Duration
	OTPExposeCode    bool // returns the code in HTTP responses; never honoured in production
	OTPDelivery      string

	NotifyRetryAttempts int

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	SNSRegion      string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	MailAppName  string
	SMTPTimeout  time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-Ip.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// Load reads all configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		OTPTTL:           time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		OTPCooldown:      time.Duration(getEnvInt("OTP_RESEND_COOLDOWN_SECONDS", 30)) * time.Second,
		OTPMaxRecords:    getEnvInt("OTP_MAX_RECORDS", 100000),
		OTPSweepInterval: time.Duration(getEnvInt("OTP_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		OTPExposeCode:    getEnvBool("OTP_EXPOSE_CODE", false),
		OTPDelivery:      strings.ToLower(getEnv("OTP_DELIVERY", DeliveryLog)),

		NotifyRetryAttempts: getEnvInt("NOTIFY_RETRY_ATTEMPTS", 3),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SNSRegion:      getEnv("SNS_REGION", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailAppName:  getEnv("MAIL_APP_NAME", "IES FESTHIVE"),
		SMTPTimeout:  time.Duration(getEnvInt("SMTP_TIMEOUT_SECONDS", 10)) * time.Second,

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_MINUTES", 30)) * time.Minute,

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
	if cfg.SNSRegion == "" {
		cfg.SNSRegion = cfg.AWSRegion
	}
	if cfg.IsProduction() {
		cfg.OTPExposeCode = false
	}
	return cfg
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
