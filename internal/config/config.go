package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env" validate:"required"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Backend  BackendConfig  `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Identity IdentityConfig `yaml:"identity"`
	Query    QueryConfig    `yaml:"query"`
	Browse   BrowseConfig   `yaml:"browse"`
	Limits   LimitsConfig   `yaml:"limits"`
	Stub     StubConfig     `yaml:"stub"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"required"`
}

type BackendConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig controls when the gateway stops treating the backend as reachable.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name" validate:"required"`
	Secret     string        `yaml:"secret" validate:"required,min=16"`
	MaxAge     time.Duration `yaml:"max_age"`
	Secure     bool          `yaml:"secure"`
}

type IdentityConfig struct {
	ProviderURL string        `yaml:"provider_url" validate:"required,url"`
	TokenSecret string        `yaml:"token_secret" validate:"required"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

type QueryConfig struct {
	ActiveParticipantsInterval time.Duration `yaml:"active_participants_interval"`
	MessagesInterval           time.Duration `yaml:"messages_interval"`
	WatchIdle                  time.Duration `yaml:"watch_idle"`
	ClientIdleTTL              time.Duration `yaml:"client_idle_ttl"`
	SweepInterval              time.Duration `yaml:"sweep_interval"`
}

type BrowseConfig struct {
	MatchNotice time.Duration `yaml:"match_notice"`
}

// LimitsConfig throttles write actions per identity. Zero disables a window.
type LimitsConfig struct {
	LikesPerMinute    int `yaml:"likes_per_minute" validate:"gte=0"`
	LikesPer10Seconds int `yaml:"likes_per_10sec" validate:"gte=0"`
	MessagesPerMinute int `yaml:"messages_per_minute" validate:"gte=0"`
}

// StubConfig is only read by the local development backend.
type StubConfig struct {
	Addr     string        `yaml:"addr"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	Seed     bool          `yaml:"seed"`
}

func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "debug"},
		Backend: BackendConfig{
			URL:     "http://localhost:8090",
			Timeout: 8 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 15 * time.Second,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Session: SessionConfig{
			CookieName: "connect-session",
			Secret:     "change-me-change-me",
			MaxAge:     30 * 24 * time.Hour,
			Secure:     false,
		},
		Identity: IdentityConfig{
			ProviderURL: "http://localhost:8090/idp/authorize",
			TokenSecret: "change-me",
			SessionTTL:  8 * time.Hour,
		},
		Query: QueryConfig{
			ActiveParticipantsInterval: 30 * time.Second,
			MessagesInterval:           5 * time.Second,
			WatchIdle:                  2 * time.Minute,
			ClientIdleTTL:              30 * time.Minute,
			SweepInterval:              time.Minute,
		},
		Browse: BrowseConfig{
			MatchNotice: 5 * time.Second,
		},
		Limits: LimitsConfig{
			LikesPerMinute:    60,
			LikesPer10Seconds: 15,
			MessagesPerMinute: 30,
		},
		Stub: StubConfig{
			Addr:     ":8090",
			TokenTTL: 8 * time.Hour,
			Seed:     true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if err := overrideDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if err := overrideDuration("BACKEND_TIMEOUT", &cfg.Backend.Timeout); err != nil {
		return err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if err := overrideBool("SESSION_SECURE", &cfg.Session.Secure); err != nil {
		return err
	}

	if v := os.Getenv("IDENTITY_PROVIDER_URL"); v != "" {
		cfg.Identity.ProviderURL = v
	}
	if v := os.Getenv("IDENTITY_TOKEN_SECRET"); v != "" {
		cfg.Identity.TokenSecret = v
	}
	if err := overrideDuration("IDENTITY_SESSION_TTL", &cfg.Identity.SessionTTL); err != nil {
		return err
	}

	if err := overrideDuration("QUERY_PARTICIPANTS_INTERVAL", &cfg.Query.ActiveParticipantsInterval); err != nil {
		return err
	}
	if err := overrideDuration("QUERY_MESSAGES_INTERVAL", &cfg.Query.MessagesInterval); err != nil {
		return err
	}

	if err := overrideInt("LIMIT_LIKES_PER_MINUTE", &cfg.Limits.LikesPerMinute); err != nil {
		return err
	}
	if err := overrideInt("LIMIT_MESSAGES_PER_MINUTE", &cfg.Limits.MessagesPerMinute); err != nil {
		return err
	}

	if v := os.Getenv("STUB_ADDR"); v != "" {
		cfg.Stub.Addr = v
	}

	return nil
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}
