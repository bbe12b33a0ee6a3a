package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the YAML file read when Load gets an empty path.
// CONFIG_PATH overrides it.
var ConfigPath = "config.yaml"

const (
	defaultPort                = "8000"
	defaultLogLevel            = "info"
	defaultDatabaseURL         = "sqlite://quotes.db"
	defaultPageSize            = 10
	defaultSessionTTL          = 14 * 24 * time.Hour
	defaultOpenAIModel         = "gpt-4o-mini"
	defaultAITimeout           = 30 * time.Second
	defaultLoginRatePerMinute  = 10
	defaultSignupRatePerMinute = 5
	insecureDevSecret          = "change-this-secret-key"
)

// FileConfig represents configuration loaded from YAML and the environment.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	LogLevel                   string   `yaml:"logLevel"`
	DatabaseURL                string   `yaml:"databaseURL"`
	SecretKey                  string   `yaml:"secretKey"`
	PageSize                   int      `yaml:"pageSize"`
	SessionTTL                 string   `yaml:"sessionTTL"`
	CookieSecure               bool     `yaml:"cookieSecure"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	OpenAIAPIKey               string   `yaml:"openaiApiKey"`
	OpenAIModel                string   `yaml:"openaiModel"`
	OpenAIBaseURL              string   `yaml:"openaiBaseURL"`
	AITimeout                  string   `yaml:"aiTimeout"`

	sessionTTL time.Duration
	aiTimeout  time.Duration
}

// SessionTTLDuration is the parsed SessionTTL.
func (c FileConfig) SessionTTLDuration() time.Duration { return c.sessionTTL }

// AITimeoutDuration is the parsed AITimeout.
func (c FileConfig) AITimeoutDuration() time.Duration { return c.aiTimeout }

// UsesInsecureSecret reports whether the well-known development secret is in use.
func (c FileConfig) UsesInsecureSecret() bool { return c.SecretKey == insecureDevSecret }

// Load reads config from path (defaults to ConfigPath). A missing file is
// not an error: every setting has a default or an environment variable.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
		if v := strings.TrimSpace(os.Getenv("CONFIG_PATH")); v != "" {
			path = v
		}
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) error {
	strs := map[string]*string{
		"PORT":            &cfg.Port,
		"LOG_LEVEL":       &cfg.LogLevel,
		"DATABASE_URL":    &cfg.DatabaseURL,
		"SECRET_KEY":      &cfg.SecretKey,
		"SESSION_TTL":     &cfg.SessionTTL,
		"REDIS_ADDR":      &cfg.RedisAddr,
		"REDIS_PASSWORD":  &cfg.RedisPassword,
		"OPENAI_API_KEY":  &cfg.OpenAIAPIKey,
		"OPENAI_MODEL":    &cfg.OpenAIModel,
		"OPENAI_BASE_URL": &cfg.OpenAIBaseURL,
		"AI_TIMEOUT":      &cfg.AITimeout,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	ints := map[string]*int{
		"PAGE_SIZE":                      &cfg.PageSize,
		"LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
	}
	for key, dst := range ints {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		if key == "PAGE_SIZE" && n < 1 {
			return errors.New("config: PAGE_SIZE must be a positive integer")
		}
		*dst = n
	}
	if v := strings.TrimSpace(os.Getenv("COOKIE_SECURE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: COOKIE_SECURE must be a boolean: %w", err)
		}
		cfg.CookieSecure = b
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = insecureDevSecret
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = defaultOpenAIModel
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = defaultLoginRatePerMinute
	}
	if cfg.RegisterRateLimitPerMinute == 0 {
		cfg.RegisterRateLimitPerMinute = defaultSignupRatePerMinute
	}
}

func validateConfig(cfg *FileConfig) error {
	if cfg.PageSize < 1 {
		return errors.New("config: pageSize must be a positive integer")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	ttl, err := parseDuration(cfg.SessionTTL, defaultSessionTTL)
	if err != nil || ttl <= 0 {
		return fmt.Errorf("config: invalid sessionTTL %q", cfg.SessionTTL)
	}
	cfg.sessionTTL = ttl
	timeout, err := parseDuration(cfg.AITimeout, defaultAITimeout)
	if err != nil || timeout <= 0 {
		return fmt.Errorf("config: invalid aiTimeout %q", cfg.AITimeout)
	}
	cfg.aiTimeout = timeout
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("config: invalid port %q", cfg.Port)
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return time.ParseDuration(strings.TrimSpace(raw))
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
