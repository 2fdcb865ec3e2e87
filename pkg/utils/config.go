package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const minJWTSecretLength = 32

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	OTP      OTPConfig
	Password PasswordConfig
	TOTP     TOTPConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Debug       bool
	LogPath     string
	StoreDriver string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
	Issuer      string
}

func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type EmailConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	AdminNotify string
}

// Enabled reports whether outbound SMTP delivery is configured.
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.User != ""
}

type OTPConfig struct {
	ExpiryMinutes       int
	Length              int
	StoreTimeoutSeconds int
	MaxIssues           int
	IssueWindowMinutes  int
	MaxAttempts         int
}

func (c OTPConfig) TTL() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

func (c OTPConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

func (c OTPConfig) IssueWindow() time.Duration {
	return time.Duration(c.IssueWindowMinutes) * time.Minute
}

type PasswordConfig struct {
	BcryptCost int
}

type TOTPConfig struct {
	Issuer string
}

// LoadConfig reads path (an optional .env file) and the process environment.
// Environment variables win over file values. A missing or short JWT_SECRET
// is a configuration error: the process must not start without it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	v.SetDefault("APP_NAME", "identity-core")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("JWT_ISSUER", "identity-core")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("OTP_EXPIRY_MINUTES", 10)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_STORE_TIMEOUT_SECONDS", 5)
	v.SetDefault("OTP_MAX_ISSUES", 5)
	v.SetDefault("OTP_ISSUE_WINDOW_MINUTES", 15)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("TOTP_ISSUER", "identity-core")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Port:        v.GetString("PORT"),
			Debug:       v.GetBool("DEBUG"),
			LogPath:     v.GetString("LOG_PATH"),
			StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
			CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
			Issuer:      v.GetString("JWT_ISSUER"),
		},
		Email: EmailConfig{
			Host:        v.GetString("SMTP_HOST"),
			Port:        v.GetInt("SMTP_PORT"),
			User:        v.GetString("SMTP_USER"),
			Password:    v.GetString("SMTP_PASS"),
			From:        v.GetString("EMAIL_FROM"),
			AdminNotify: v.GetString("ADMIN_NOTIFY_EMAIL"),
		},
		OTP: OTPConfig{
			ExpiryMinutes:       v.GetInt("OTP_EXPIRY_MINUTES"),
			Length:              v.GetInt("OTP_LENGTH"),
			StoreTimeoutSeconds: v.GetInt("OTP_STORE_TIMEOUT_SECONDS"),
			MaxIssues:           v.GetInt("OTP_MAX_ISSUES"),
			IssueWindowMinutes:  v.GetInt("OTP_ISSUE_WINDOW_MINUTES"),
			MaxAttempts:         v.GetInt("OTP_MAX_ATTEMPTS"),
		},
		Password: PasswordConfig{
			BcryptCost: v.GetInt("BCRYPT_COST"),
		},
		TOTP: TOTPConfig{
			Issuer: v.GetString("TOTP_ISSUER"),
		},
	}

	if config.Email.From == "" {
		config.Email.From = config.Email.User
	}
	if config.Email.AdminNotify == "" {
		config.Email.AdminNotify = config.Email.User
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}
	if c.JWT.ExpiryHours <= 0 {
		return errors.New("JWT_EXPIRY_HOURS must be positive")
	}
	if c.OTP.Length < 6 || c.OTP.Length > 10 {
		return errors.New("OTP_LENGTH must be between 6 and 10")
	}
	if c.OTP.ExpiryMinutes <= 0 {
		return errors.New("OTP_EXPIRY_MINUTES must be positive")
	}
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch c.App.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.App.StoreDriver)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
