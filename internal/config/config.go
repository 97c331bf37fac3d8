package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	TokenTTL string `yaml:"token_ttl"`
}

type SessionConfig struct {
	TTL           string `yaml:"ttl"`
	SweepInterval string `yaml:"sweep_interval"`
}

type FlowConfig struct {
	HistorySize         int    `yaml:"history_size"`
	LoopThreshold       int    `yaml:"loop_threshold"`
	DisconnectionWindow string `yaml:"disconnection_window"`
	NLUTimeout          string `yaml:"nlu_timeout"`
	BackendTimeout      string `yaml:"backend_timeout"`
	RetryAttempts       int    `yaml:"retry_attempts"`
	RetryDelay          string `yaml:"retry_delay"`
	MaxOptions          int    `yaml:"max_options"`
}

type ResolverConfig struct {
	Threshold float64 `yaml:"threshold"`
	CacheSize int     `yaml:"cache_size"`
	CacheTTL  string  `yaml:"cache_ttl"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type NLUConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type SpeechConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ConfigFile struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Session  SessionConfig  `yaml:"session"`
	Flow     FlowConfig     `yaml:"flow"`
	Resolver ResolverConfig `yaml:"resolver"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	NLU      NLUConfig      `yaml:"nlu"`
	Speech   SpeechConfig   `yaml:"speech"`
	Casbin   CasbinConfig   `yaml:"casbin"`
	Admin    AdminConfig    `yaml:"admin"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Port    string
	GinMode string

	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	SessionTTL    time.Duration
	SweepInterval time.Duration

	FlowHistorySize     int
	FlowLoopThreshold   int
	DisconnectionWindow time.Duration
	NLUTimeout          time.Duration
	BackendTimeout      time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
	MaxOptions          int

	ResolverThreshold float64
	ResolverCacheSize int
	ResolverCacheTTL  time.Duration

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string

	NLUBaseURL string
	NLUAPIKey  string

	SpeechBaseURL string
	SpeechAPIKey  string
	SpeechTimeout time.Duration

	CasbinModelPath string

	AdminUser     string
	AdminPassword string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads config/config.yml, resolving duration strings and applying env
// overrides for secrets.
func Load() (*Config, error) {
	configFile, err := loadConfigFile(env("CHATDEX_CONFIG", "config/config.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	tokenTTL, err := duration(configFile.JWT.TokenTTL, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT token TTL: %w", err)
	}
	sessionTTL, err := duration(configFile.Session.TTL, 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid session TTL: %w", err)
	}
	sweepInterval, err := duration(configFile.Session.SweepInterval, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	disconnection, err := duration(configFile.Flow.DisconnectionWindow, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid disconnection window: %w", err)
	}
	nluTimeout, err := duration(configFile.Flow.NLUTimeout, 8*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid NLU timeout: %w", err)
	}
	backendTimeout, err := duration(configFile.Flow.BackendTimeout, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid backend timeout: %w", err)
	}
	retryDelay, err := duration(configFile.Flow.RetryDelay, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid retry delay: %w", err)
	}
	resolverCacheTTL, err := duration(configFile.Resolver.CacheTTL, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid resolver cache TTL: %w", err)
	}
	speechTimeout, err := duration(configFile.Speech.Timeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid speech timeout: %w", err)
	}

	return &Config{
		Port:    fmt.Sprintf("%d", configFile.App.Port),
		GinMode: configFile.App.GinMode,

		DSN:           env("DATABASE_DSN", configFile.Database.DSN),
		RedisAddr:     env("REDIS_ADDR", configFile.Redis.Addr),
		RedisPassword: env("REDIS_PASSWORD", configFile.Redis.Password),
		RedisDB:       configFile.Redis.DB,

		JWTSecret: env("JWT_SECRET", configFile.JWT.Secret),
		JWTIssuer: configFile.JWT.Issuer,
		TokenTTL:  tokenTTL,

		SessionTTL:    sessionTTL,
		SweepInterval: sweepInterval,

		FlowHistorySize:     configFile.Flow.HistorySize,
		FlowLoopThreshold:   configFile.Flow.LoopThreshold,
		DisconnectionWindow: disconnection,
		NLUTimeout:          nluTimeout,
		BackendTimeout:      backendTimeout,
		RetryAttempts:       configFile.Flow.RetryAttempts,
		RetryDelay:          retryDelay,
		MaxOptions:          configFile.Flow.MaxOptions,

		ResolverThreshold: configFile.Resolver.Threshold,
		ResolverCacheSize: configFile.Resolver.CacheSize,
		ResolverCacheTTL:  resolverCacheTTL,

		TwilioSID:   env("TWILIO_ACCOUNT_SID", configFile.Twilio.AccountSID),
		TwilioToken: env("TWILIO_AUTH_TOKEN", configFile.Twilio.AuthToken),
		TwilioFrom:  env("TWILIO_FROM_NUMBER", configFile.Twilio.FromNumber),

		NLUBaseURL: env("NLU_BASE_URL", configFile.NLU.BaseURL),
		NLUAPIKey:  env("NLU_API_KEY", configFile.NLU.APIKey),

		SpeechBaseURL: env("SPEECH_BASE_URL", configFile.Speech.BaseURL),
		SpeechAPIKey:  env("SPEECH_API_KEY", configFile.Speech.APIKey),
		SpeechTimeout: speechTimeout,

		CasbinModelPath: configFile.Casbin.ModelPath,

		AdminUser:     env("ADMIN_USER", configFile.Admin.Username),
		AdminPassword: env("ADMIN_PASSWORD", configFile.Admin.Password),
	}, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}
	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}
	return &config, nil
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
