package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvPort           = "PORT"
	EnvBaseURL        = "BASE_URL"
	EnvOwnerEmail     = "OWNER_EMAIL"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"
	EnvTrustedProxies = "TRUSTED_PROXIES"
	EnvSMTPHost       = "SMTP_HOST"
	EnvSMTPPort       = "SMTP_PORT"
	EnvSMTPUser       = "SMTP_USER"
	EnvSMTPPassword   = "SMTP_PASSWORD"
	EnvSMTPFrom       = "SMTP_FROM"
	EnvS3Endpoint     = "S3_ENDPOINT"
	EnvS3Region       = "S3_REGION"
	EnvS3Bucket       = "S3_BUCKET"
	EnvS3AccessKey    = "S3_ACCESS_KEY"
	EnvS3SecretKey    = "S3_SECRET_KEY"
	EnvS3PublicURL    = "S3_PUBLIC_URL"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds the session signing secret.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig holds HTTP listener and session cookie settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Debug          bool          `yaml:"debug"`
	BaseURL        string        `yaml:"base-url"`
	OwnerEmail     string        `yaml:"owner-email"`
	AllowedOrigins []string      `yaml:"allowed-origins"`
	TrustedProxies []string      `yaml:"trusted-proxies"` // IPs/CIDRs whose X-Forwarded-For is honored; none by default.
	SecureCookies  bool          `yaml:"secure-cookies"`
	StoreTimeout   time.Duration `yaml:"store-timeout"`
	SweepInterval  time.Duration `yaml:"sweep-interval"` // Housekeeping interval; default 15m.
}

// MailConfig holds SMTP delivery settings. An empty Host disables SMTP.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Insecure bool   `yaml:"insecure"`
}

// StorageConfig holds S3-compatible object storage settings for template images.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	PublicURL string `yaml:"public-url"`
}

// Enabled reports whether enough settings are present to presign uploads.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// RateLimitConfig holds per-IP limits for the public auth routes.
type RateLimitConfig struct {
	Limit         int    `yaml:"limit"`
	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db"`
	RedisPrefix   string `yaml:"redis-prefix"`
}

// fileConfig maps the full YAML config file.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Server    ServerConfig    `yaml:"server"`
	Mail      MailConfig      `yaml:"mail"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
}

// readFileConfig reads and parses the YAML config file.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// readOptionalFileConfig is readFileConfig where a missing file yields an
// empty config. Parse errors are still returned.
func readOptionalFileConfig(configPath string) (fileConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return fileConfig{}, nil
	}
	return cfg, err
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	cfg, err := readFileConfig(configPath)
	if err != nil {
		return "", err
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// ErrMissingJWTSecret indicates neither the file nor the environment set a secret.
var ErrMissingJWTSecret = errors.New("missing jwt secret (set `jwt.secret` in config file or JWT_SECRET)")

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	var result JWTConfig
	cfg, errRead := readOptionalFileConfig(configPath)
	if errRead != nil {
		return result, errRead
	}
	result = cfg.JWT
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	result.Secret = strings.TrimSpace(result.Secret)
	if result.Secret == "" {
		return result, ErrMissingJWTSecret
	}
	return result, nil
}

const (
	defaultPort         = 8080
	defaultStoreTimeout = 5 * time.Second
	defaultBaseURL      = "http://localhost:3000"
)

// LoadServerConfig loads listener, cookie and account settings.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	var result ServerConfig
	cfg, errRead := readOptionalFileConfig(configPath)
	if errRead != nil {
		return result, errRead
	}
	result = cfg.Server

	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, errParse := strconv.Atoi(raw)
		if errParse != nil {
			return result, fmt.Errorf("parse %s: %w", EnvPort, errParse)
		}
		result.Port = port
	}
	if baseURL := strings.TrimSpace(os.Getenv(EnvBaseURL)); baseURL != "" {
		result.BaseURL = baseURL
	}
	if owner := strings.TrimSpace(os.Getenv(EnvOwnerEmail)); owner != "" {
		result.OwnerEmail = owner
	}
	if origins := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); origins != "" {
		result.AllowedOrigins = splitList(origins)
	}
	if proxies := strings.TrimSpace(os.Getenv(EnvTrustedProxies)); proxies != "" {
		result.TrustedProxies = splitList(proxies)
	}
	for _, proxy := range result.TrustedProxies {
		if !validProxy(proxy) {
			return result, fmt.Errorf("invalid trusted proxy %q", proxy)
		}
	}

	if result.Port <= 0 {
		result.Port = defaultPort
	}
	if result.StoreTimeout <= 0 {
		result.StoreTimeout = defaultStoreTimeout
	}
	result.BaseURL = strings.TrimSuffix(strings.TrimSpace(result.BaseURL), "/")
	if result.BaseURL == "" {
		result.BaseURL = defaultBaseURL
	}
	result.OwnerEmail = strings.ToLower(strings.TrimSpace(result.OwnerEmail))
	return result, nil
}

const defaultSMTPPort = 587

// LoadMailConfig loads SMTP settings.
func LoadMailConfig(configPath string) (MailConfig, error) {
	var result MailConfig
	cfg, errRead := readOptionalFileConfig(configPath)
	if errRead != nil {
		return result, errRead
	}
	result = cfg.Mail

	if host := strings.TrimSpace(os.Getenv(EnvSMTPHost)); host != "" {
		result.Host = host
	}
	if raw := strings.TrimSpace(os.Getenv(EnvSMTPPort)); raw != "" {
		port, errParse := strconv.Atoi(raw)
		if errParse != nil {
			return result, fmt.Errorf("parse %s: %w", EnvSMTPPort, errParse)
		}
		result.Port = port
	}
	if user := strings.TrimSpace(os.Getenv(EnvSMTPUser)); user != "" {
		result.Username = user
	}
	if password := os.Getenv(EnvSMTPPassword); password != "" {
		result.Password = password
	}
	if from := strings.TrimSpace(os.Getenv(EnvSMTPFrom)); from != "" {
		result.From = from
	}

	result.Host = strings.TrimSpace(result.Host)
	if result.Port <= 0 {
		result.Port = defaultSMTPPort
	}
	if result.From == "" {
		result.From = result.Username
	}
	return result, nil
}

const defaultS3Region = "us-east-1"

// LoadStorageConfig loads object storage settings.
func LoadStorageConfig(configPath string) (StorageConfig, error) {
	var result StorageConfig
	cfg, errRead := readOptionalFileConfig(configPath)
	if errRead != nil {
		return result, errRead
	}
	result = cfg.Storage

	overrides := []struct {
		env    string
		target *string
	}{
		{EnvS3Endpoint, &result.Endpoint},
		{EnvS3Region, &result.Region},
		{EnvS3Bucket, &result.Bucket},
		{EnvS3AccessKey, &result.AccessKey},
		{EnvS3SecretKey, &result.SecretKey},
		{EnvS3PublicURL, &result.PublicURL},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}

	if strings.TrimSpace(result.Region) == "" {
		result.Region = defaultS3Region
	}
	result.PublicURL = strings.TrimSuffix(strings.TrimSpace(result.PublicURL), "/")
	return result, nil
}

// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
const DefaultRateLimitRedisPrefix = "sc:rl"

// LoadRateLimitConfig loads auth route rate limit settings.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	var result RateLimitConfig
	cfg, errRead := readOptionalFileConfig(configPath)
	if errRead != nil {
		return result, errRead
	}
	result = cfg.RateLimit

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.RedisAddr = addr
	}
	if password := os.Getenv(EnvRedisPassword); password != "" {
		result.RedisPassword = password
	}

	result.RedisAddr = strings.TrimSpace(result.RedisAddr)
	result.RedisPrefix = strings.TrimSpace(result.RedisPrefix)
	if result.RedisPrefix == "" {
		result.RedisPrefix = DefaultRateLimitRedisPrefix
	}
	if result.RedisDB < 0 {
		result.RedisDB = 0
	}
	if result.Limit < 0 {
		result.Limit = 0
	}
	return result, nil
}

// Config aggregates every section needed to run the server.
type Config struct {
	DatabaseDSN string
	JWT         JWTConfig
	Server      ServerConfig
	Mail        MailConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
}

// Load resolves all sections for the given config path.
func Load(configPath string) (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.DatabaseDSN, err = LoadDatabaseDSN(configPath); err != nil {
		return cfg, err
	}
	if cfg.JWT, err = LoadJWTConfig(configPath); err != nil {
		return cfg, err
	}
	if cfg.Server, err = LoadServerConfig(configPath); err != nil {
		return cfg, err
	}
	if cfg.Mail, err = LoadMailConfig(configPath); err != nil {
		return cfg, err
	}
	if cfg.Storage, err = LoadStorageConfig(configPath); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = LoadRateLimitConfig(configPath); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validProxy reports whether v is an IP address or CIDR.
func validProxy(v string) bool {
	if net.ParseIP(v) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(v)
	return err == nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
