package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"meufin/internal/delivery"
)

// MinJWTSecretLength matches the HS256 key size.
const MinJWTSecretLength = 32

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Delivery
	EmailAPIURL        string
	EmailFlushInterval time.Duration
	WebhookTimeout     time.Duration

	// Notifications
	NotifyInterval   time.Duration
	DiscordBotToken  string
	DiscordChannelID string

	// Authentication
	AuthEnabled bool
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration
	BcryptCost  int

	// Rate limiting for mutating requests
	RateLimitRPS   float64
	RateLimitBurst int

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	Timezone string
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/meufin.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "meufin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		EmailAPIURL:        getEnv("EMAIL_API_URL", delivery.DefaultEmailAPIURL),
		EmailFlushInterval: getEnvDuration("EMAIL_FLUSH_INTERVAL", time.Minute),
		WebhookTimeout:     getEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second),

		NotifyInterval:   getEnvDuration("NOTIFY_INTERVAL", 15*time.Minute),
		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),

		AuthEnabled: getEnvBool("AUTH_ENABLED", false),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "meufin"),
		JWTTTL:      getEnvDuration("JWT_TTL", 12*time.Hour),
		BcryptCost:  getEnvInt("BCRYPT_COST", 12),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Meufin"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		Timezone: getEnv("TIMEZONE", "America/Sao_Paulo"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	// AMQP is optional; when set it must be complete
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if u, err := url.Parse(c.EmailAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid EMAIL_API_URL '%s': must be an http(s) URL", c.EmailAPIURL))
	}
	if c.EmailFlushInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid email flush interval %v: must be at least 1 second", c.EmailFlushInterval))
	}
	if c.WebhookTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid webhook timeout %v: must be positive", c.WebhookTimeout))
	}
	if c.NotifyInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid notify interval %v: must be at least 1 minute", c.NotifyInterval))
	}
	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		errors = append(errors, "DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}

	if c.AuthEnabled {
		if len(c.JWTSecret) < MinJWTSecretLength {
			errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters when auth is enabled", MinJWTSecretLength))
		}
		if c.JWTTTL < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid JWT TTL %v: must be at least 1 minute", c.JWTTTL))
		}
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// DiscordEnabled reports whether notifications also go to Discord.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordBotToken != "" && c.DiscordChannelID != ""
}

// Location returns the configured zone, falling back to the local one.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
