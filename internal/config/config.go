package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the resumatch server.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	Scrape    ScrapeConfig
	AI        AIConfig
	Secret    SecretConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	MaxUploadBytes int64
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	APIKeyHashes       []string
	RateLimitPerMinute int
}

type SchedulerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

type ScrapeConfig struct {
	Timeout         time.Duration
	PrefetchTimeout time.Duration
	CacheTTL        time.Duration
	MaxBodyBytes    int64

	// AllowPrivateNetworks lets job URLs point at loopback and private
	// addresses. Local development only.
	AllowPrivateNetworks bool
}

type AIConfig struct {
	InferenceTimeout time.Duration
	OpenAIBaseURL    string
	GeminiBaseURL    string
}

type SecretConfig struct {
	CredentialKey []byte
}

// fileConfig is the optional YAML overlay. Every value is a base that the
// matching environment variable overrides.
type fileConfig struct {
	Server struct {
		Port           int    `yaml:"port"`
		Env            string `yaml:"env"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Database struct {
		URL             string `yaml:"url"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Auth struct {
		APIKeyHashes       []string `yaml:"api_key_hashes"`
		RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	} `yaml:"auth"`
	Scheduler struct {
		Interval   string `yaml:"interval"`
		StaleAfter string `yaml:"stale_after"`
		BatchSize  int    `yaml:"batch_size"`
	} `yaml:"scheduler"`
	Scrape struct {
		Timeout         string `yaml:"timeout"`
		PrefetchTimeout string `yaml:"prefetch_timeout"`
		CacheTTL        string `yaml:"cache_ttl"`

		AllowPrivateNetworks bool `yaml:"allow_private_networks"`
	} `yaml:"scrape"`
	AI struct {
		InferenceTimeoutSecs int    `yaml:"inference_timeout_secs"`
		OpenAIBaseURL        string `yaml:"openai_base_url"`
		GeminiBaseURL        string `yaml:"gemini_base_url"`
	} `yaml:"ai"`
	CredentialKey string `yaml:"credential_key"`
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	credentialKeySize    = 32
)

// Load reads configuration from the optional YAML file at path and from
// environment variables, then validates it. An empty path falls back to the
// RESUMATCH_CONFIG environment variable; if that is empty too, only the
// environment is used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("RESUMATCH_CONFIG")
	}

	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	fileDur := func(field, raw string, def time.Duration) (time.Duration, error) {
		if raw == "" {
			return def, nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
		}
		return d, nil
	}

	connLifetime, err := fileDur("database.conn_max_lifetime", fc.Database.ConnMaxLifetime, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	interval, err := fileDur("scheduler.interval", fc.Scheduler.Interval, 2*time.Second)
	if err != nil {
		return nil, err
	}
	staleAfter, err := fileDur("scheduler.stale_after", fc.Scheduler.StaleAfter, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	scrapeTimeout, err := fileDur("scrape.timeout", fc.Scrape.Timeout, 20*time.Second)
	if err != nil {
		return nil, err
	}
	prefetchTimeout, err := fileDur("scrape.prefetch_timeout", fc.Scrape.PrefetchTimeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	scrapeTTL, err := fileDur("scrape.cache_ttl", fc.Scrape.CacheTTL, 30*time.Minute)
	if err != nil {
		return nil, err
	}
	inferenceTimeout := 120 * time.Second
	if fc.AI.InferenceTimeoutSecs > 0 {
		inferenceTimeout = time.Duration(fc.AI.InferenceTimeoutSecs) * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("RESUMATCH_PORT", orInt(fc.Server.Port, 8080)),
			Env:            envString("RESUMATCH_ENV", orString(fc.Server.Env, "development")),
			MaxUploadBytes: int64(envInt("RESUME_MAX_UPLOAD_BYTES", int(orInt64(fc.Server.MaxUploadBytes, 10<<20)))),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", orString(fc.Log.Level, "info"))),
			Format: strings.ToLower(envString("LOG_FORMAT", orString(fc.Log.Format, "json"))),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", fc.Database.URL),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", orInt(fc.Database.MaxOpenConns, 25)),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", orInt(fc.Database.MaxIdleConns, 5)),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", connLifetime),
		},
		Redis: RedisConfig{
			URL: envString("REDIS_URL", fc.Redis.URL),
		},
		Auth: AuthConfig{
			APIKeyHashes:       envList("API_KEY_HASHES", fc.Auth.APIKeyHashes),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", orInt(fc.Auth.RateLimitPerMinute, 60)),
		},
		Scheduler: SchedulerConfig{
			Interval:   envDuration("SCHEDULER_INTERVAL", interval),
			StaleAfter: envDuration("SCHEDULER_STALE_AFTER", staleAfter),
			BatchSize:  envInt("SCHEDULER_BATCH_SIZE", fc.Scheduler.BatchSize),
		},
		Scrape: ScrapeConfig{
			Timeout:         envDuration("SCRAPE_TIMEOUT", scrapeTimeout),
			PrefetchTimeout: envDuration("SCRAPE_PREFETCH_TIMEOUT", prefetchTimeout),
			CacheTTL:        envDuration("SCRAPE_CACHE_TTL", scrapeTTL),
			MaxBodyBytes:    5 << 20,

			AllowPrivateNetworks: envBool("SCRAPE_ALLOW_PRIVATE_NETWORKS", fc.Scrape.AllowPrivateNetworks),
		},
		AI: AIConfig{
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", inferenceTimeout),
			OpenAIBaseURL:    envString("OPENAI_BASE_URL", orString(fc.AI.OpenAIBaseURL, defaultOpenAIBaseURL)),
			GeminiBaseURL:    envString("GEMINI_BASE_URL", orString(fc.AI.GeminiBaseURL, defaultGeminiBaseURL)),
		},
	}

	rawKey := envString("CREDENTIAL_KEY", fc.CredentialKey)
	if rawKey == "" {
		return nil, fmt.Errorf("CREDENTIAL_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIAL_KEY must be base64: %w", err)
	}
	cfg.Secret.CredentialKey = key

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.Secret.CredentialKey) != credentialKeySize {
		return fmt.Errorf("CREDENTIAL_KEY must decode to %d bytes, got %d", credentialKeySize, len(c.Secret.CredentialKey))
	}

	if c.IsProduction() && len(c.Auth.APIKeyHashes) == 0 {
		return fmt.Errorf("API_KEY_HASHES is required when RESUMATCH_ENV is production")
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %v", c.Scheduler.Interval)
	}
	if c.AI.InferenceTimeout <= 0 {
		return fmt.Errorf("AI_INFERENCE_TIMEOUT_SECS must be positive, got %v", c.AI.InferenceTimeout)
	}
	if c.Scrape.Timeout <= 0 {
		return fmt.Errorf("SCRAPE_TIMEOUT must be positive, got %v", c.Scrape.Timeout)
	}
	// A job may legitimately stay PROCESSING for one fetch plus one AI call.
	if busy := c.AI.InferenceTimeout + c.Scrape.Timeout; c.Scheduler.StaleAfter > 0 && c.Scheduler.StaleAfter <= busy {
		return fmt.Errorf("SCHEDULER_STALE_AFTER must be 0 or longer than %v (scrape + inference timeouts), got %v", busy, c.Scheduler.StaleAfter)
	}
	if c.Scheduler.BatchSize < 0 {
		return fmt.Errorf("SCHEDULER_BATCH_SIZE must not be negative, got %d", c.Scheduler.BatchSize)
	}

	for name, u := range map[string]string{"OPENAI_BASE_URL": c.AI.OpenAIBaseURL, "GEMINI_BASE_URL": c.AI.GeminiBaseURL} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", name, u)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.Log.Format)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orInt64(v, def int64) int64 {
	if v != 0 {
		return v
	}
	return def
}
