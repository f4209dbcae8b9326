package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/elskow/tourfurr/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "TOURFURR"

var registrationDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func LoadConfig() (*config.AppConfig, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath("./config/server")
	if dir := os.Getenv(envPrefix + "_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}

	return loadConfig(v, env)
}

func loadConfig(v *viper.Viper, env string) (*config.AppConfig, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific server overrides
	if envSettings := v.GetStringMap(fmt.Sprintf("server.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("server.%s", env), &cfg.Server); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	cfg.Env = env

	opensAt, err := parseRegistrationDate(cfg.Auth.RegistrationOpens)
	if err != nil {
		return nil, err
	}
	cfg.Auth.RegistrationOpensAt = opensAt

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.public_url", "http://localhost:5173")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", "9090")
	v.SetDefault("grpc.enable_reflection", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_age", 7*24*time.Hour)
	v.SetDefault("log.rotation_time", 24*time.Hour)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiration", 7*24*time.Hour)
	v.SetDefault("auth.password_hash_cost", 0)
	v.SetDefault("auth.issuer", "tourfurr")
	v.SetDefault("auth.cookie_name", "auth_token")
	v.SetDefault("auth.csrf_enabled", false)
	v.SetDefault("auth.admin_pin", "")
	v.SetDefault("auth.grace_period", 15*time.Minute)
	v.SetDefault("auth.reset_confirm_window", 10*time.Minute)
	v.SetDefault("auth.profile_cache_ttl", time.Minute)
	v.SetDefault("auth.registration_opens_at", "2026-03-01T00:00:00Z")

	for _, kind := range []string{"email", "password_reset"} {
		v.SetDefault("verification."+kind+".length", 6)
		v.SetDefault("verification."+kind+".ttl", 15*time.Minute)
		v.SetDefault("verification."+kind+".max_attempts", 3)
		v.SetDefault("verification."+kind+".secret", "")
	}
	v.SetDefault("verification.retain_expired", 24*time.Hour)

	setPolicyDefault(v, "login", 5, 15*time.Minute, 30*time.Minute)
	setPolicyDefault(v, "register", 3, time.Hour, 2*time.Hour)
	setPolicyDefault(v, "password_reset", 3, time.Hour, time.Hour)
	setPolicyDefault(v, "password_update", 5, 15*time.Minute, 30*time.Minute)
	setPolicyDefault(v, "email_check", 20, time.Minute, 5*time.Minute)
	setPolicyDefault(v, "resend", 5, 15*time.Minute, 15*time.Minute)
	v.SetDefault("rate_limit.cleanup_interval", 5*time.Minute)
	v.SetDefault("rate_limit.stale_after", time.Hour)
	v.SetDefault("rate_limit.throttle.requests_per_second", 10)
	v.SetDefault("rate_limit.throttle.burst", 20)
	v.SetDefault("rate_limit.throttle.ttl", 3*time.Minute)

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from", "TourFurr <noreply@tourfurr.ru>")
	v.SetDefault("mail.resend_api_key", "")
	v.SetDefault("mail.resend_base_url", "https://api.resend.com")
	v.SetDefault("mail.timeout", 15*time.Second)
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.max_avatar_bytes", 5<<20)

	v.SetDefault("turnstile.enabled", false)
	v.SetDefault("turnstile.secret_key", "")
	v.SetDefault("turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("turnstile.timeout", 15*time.Second)

	v.SetDefault("payment.shop_id", "")
	v.SetDefault("payment.secret_key", "")
	v.SetDefault("payment.base_url", "https://api.yookassa.ru/v3")
	v.SetDefault("payment.amount", 0)
	v.SetDefault("payment.currency", "RUB")
	v.SetDefault("payment.description", "TourFurr 2026 participation fee")
	v.SetDefault("payment.verify_webhooks", true)
	v.SetDefault("payment.timeout", 15*time.Second)

	v.SetDefault("cleanup.secret", "")
	v.SetDefault("cleanup.interval", 5*time.Minute)
	v.SetDefault("cleanup.timeout", time.Minute)
}

func setPolicyDefault(v *viper.Viper, name string, maxAttempts int, window, block time.Duration) {
	v.SetDefault("rate_limit."+name+".max_attempts", maxAttempts)
	v.SetDefault("rate_limit."+name+".window", window)
	v.SetDefault("rate_limit."+name+".block_duration", block)
}

func parseRegistrationDate(raw string) (time.Time, error) {
	for _, layout := range registrationDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid auth.registration_opens_at %q", raw)
}

// validate aborts startup when settings without a safe default are missing.
func validate(cfg *config.AppConfig) error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("auth.jwt_secret", cfg.Auth.JWTSecret)
	require("database.host", cfg.Database.Host)
	require("database.name", cfg.Database.Name)
	require("cleanup.secret", cfg.Cleanup.Secret)

	if cfg.Env == EnvProduction {
		require("auth.admin_pin", cfg.Auth.AdminPIN)
		require("verification.email.secret", cfg.Verification.Email.Secret)
		require("verification.password_reset.secret", cfg.Verification.PasswordReset.Secret)
		switch cfg.Mail.Driver {
		case "resend":
			require("mail.resend_api_key", cfg.Mail.ResendAPIKey)
		case "smtp":
			require("mail.smtp.host", cfg.Mail.SMTP.Host)
		}
		if cfg.Turnstile.Enabled {
			require("turnstile.secret_key", cfg.Turnstile.SecretKey)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if cfg.Verification.Email.Length < 4 || cfg.Verification.PasswordReset.Length < 4 {
		return errors.New("verification code length must be at least 4 digits")
	}

	return nil
}
