package config

import "time"

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	PublicURL       string        `mapstructure:"public_url"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type GRPCConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

type LogConfig struct {
	Level        string        `mapstructure:"level"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret"`
	TokenExpiration     time.Duration `mapstructure:"token_expiration"`
	PasswordHashCost    int           `mapstructure:"password_hash_cost"`
	Issuer              string        `mapstructure:"issuer"`
	CookieName          string        `mapstructure:"cookie_name"`
	CSRFEnabled         bool          `mapstructure:"csrf_enabled"`
	AdminPIN            string        `mapstructure:"admin_pin"`
	GracePeriod         time.Duration `mapstructure:"grace_period"`
	ResetConfirmWindow  time.Duration `mapstructure:"reset_confirm_window"`
	ProfileCacheTTL     time.Duration `mapstructure:"profile_cache_ttl"`
	RegistrationOpens   string        `mapstructure:"registration_opens_at"`

	// RegistrationOpensAt is parsed from RegistrationOpens by server.LoadConfig.
	RegistrationOpensAt time.Time `mapstructure:"-"`
}

// CodePolicy controls one-time numeric codes. Length and attempt cap bound
// brute-force odds and are not meant to be tuned casually.
type CodePolicy struct {
	Length      int           `mapstructure:"length"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Secret      string        `mapstructure:"secret"`
}

type VerificationConfig struct {
	Email         CodePolicy    `mapstructure:"email"`
	PasswordReset CodePolicy    `mapstructure:"password_reset"`
	RetainExpired time.Duration `mapstructure:"retain_expired"`
}

type RateLimitPolicy struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

type ThrottleConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	TTL               time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Login           RateLimitPolicy `mapstructure:"login"`
	Register        RateLimitPolicy `mapstructure:"register"`
	PasswordReset   RateLimitPolicy `mapstructure:"password_reset"`
	PasswordUpdate  RateLimitPolicy `mapstructure:"password_update"`
	EmailCheck      RateLimitPolicy `mapstructure:"email_check"`
	Resend          RateLimitPolicy `mapstructure:"resend"`
	CleanupInterval time.Duration   `mapstructure:"cleanup_interval"`
	StaleAfter      time.Duration   `mapstructure:"stale_after"`
	Throttle        ThrottleConfig  `mapstructure:"throttle"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type MailConfig struct {
	Driver        string        `mapstructure:"driver"`
	From          string        `mapstructure:"from"`
	ResendAPIKey  string        `mapstructure:"resend_api_key"`
	ResendBaseURL string        `mapstructure:"resend_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SMTP          SMTPConfig    `mapstructure:"smtp"`
}

type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	MaxAvatarBytes  int64  `mapstructure:"max_avatar_bytes"`
}

type TurnstileConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	SecretKey string        `mapstructure:"secret_key"`
	VerifyURL string        `mapstructure:"verify_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	ShopID         string        `mapstructure:"shop_id"`
	SecretKey      string        `mapstructure:"secret_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Amount         float64       `mapstructure:"amount"`
	Currency       string        `mapstructure:"currency"`
	Description    string        `mapstructure:"description"`
	VerifyWebhooks bool          `mapstructure:"verify_webhooks"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type CleanupConfig struct {
	Secret   string        `mapstructure:"secret"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AppConfig struct {
	Env          string             `mapstructure:"env"`
	Server       ServerConfig       `mapstructure:"server"`
	GRPC         GRPCConfig         `mapstructure:"grpc"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Verification VerificationConfig `mapstructure:"verification"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Mail         MailConfig         `mapstructure:"mail"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Turnstile    TurnstileConfig    `mapstructure:"turnstile"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Cleanup      CleanupConfig      `mapstructure:"cleanup"`
}
