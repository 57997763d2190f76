package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "INFODIGEST_CONFIG"

	logLevelEnv  = "LOG_LEVEL"
	logFormatEnv = "LOG_FORMAT"

	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"

	aiProviderEnv    = "AI_PROVIDER"
	aiTemperatureEnv = "AI_TEMPERATURE"
	openAIKeyEnv     = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	openAIBaseEnv    = "OPENAI_API_BASE_URL"
	qwenKeyEnv       = "QWEN_API_KEY"
	qwenModelEnv     = "QWEN_MODEL"
	qwenBaseEnv      = "QWEN_API_BASE_URL"

	requestTimeoutEnv = "REQUEST_TIMEOUT"
	maxTextLengthEnv  = "MAX_TEXT_LENGTH"
	cacheTTLDaysEnv   = "CACHE_TTL_DAYS"

	rateLimitWindowEnv = "RATE_LIMIT_WINDOW"
	rateLimitMaxEnv    = "RATE_LIMIT_MAX_REQUESTS"

	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"

	dashboardAddrEnv = "DASHBOARD_ADDR"
)

const (
	ProviderOpenAI = "openai"
	ProviderQwen   = "qwen"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	AI        AIConfig        `yaml:"ai"`
	Extractor ExtractorConfig `yaml:"extractor"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelegramConfig wires the bot transport.
type TelegramConfig struct {
	BotToken      string `yaml:"botToken"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
}

// AIConfig selects the summarization provider and its retry budget.
type AIConfig struct {
	Provider    string         `yaml:"provider"`
	OpenAI      ProviderConfig `yaml:"openai"`
	Qwen        ProviderConfig `yaml:"qwen"`
	Temperature float32        `yaml:"temperature"`
	Timeout     time.Duration  `yaml:"timeout"`
	MaxAttempts int            `yaml:"maxAttempts"`
	BaseDelay   time.Duration  `yaml:"baseDelay"`
	KeyPoints   int            `yaml:"keyPoints"`
}

// ProviderConfig is the credential set for one LLM vendor.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

// Active returns the settings of the selected provider.
func (a AIConfig) Active() ProviderConfig {
	if strings.EqualFold(a.Provider, ProviderQwen) {
		return a.Qwen
	}
	return a.OpenAI
}

// ExtractorConfig bounds fetching and parsing.
type ExtractorConfig struct {
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	MaxTextLength    int           `yaml:"maxTextLength"`
	MinTextLength    int           `yaml:"minTextLength"`
	Workers          int           `yaml:"workers"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	BaseDelay        time.Duration `yaml:"baseDelay"`
	HostRPS          float64       `yaml:"hostRps"`
	HostBurst        int           `yaml:"hostBurst"`
	UserAgent        string        `yaml:"userAgent"`
	CaptionLanguages []string      `yaml:"captionLanguages"`
	VideoHosts       []string      `yaml:"videoHosts"`
}

// RateLimitConfig is the per-user sliding window.
type RateLimitConfig struct {
	Window        time.Duration `yaml:"window"`
	MaxRequests   int           `yaml:"maxRequests"`
	SweepSchedule string        `yaml:"sweepSchedule"`
}

// CacheConfig controls digest reuse. A zero TTL keeps records forever.
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	HotTTL time.Duration `yaml:"hotTtl"`
}

// DatabaseConfig describes the digest store location.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// DashboardConfig is the read-only HTTP API.
type DashboardConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env and YAML configuration (if present) and applies
// environment overrides. An explicit path wins over INFODIGEST_CONFIG.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)

		var explicit explicitFields
		if err := yaml.Unmarshal(raw, &explicit); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		explicit.apply(&cfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	return cfg, nil
}

// ValidateBot checks everything the message pipeline needs before it may
// accept requests.
func (c Config) ValidateBot() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", telegramTokenEnv))
	}
	errs = append(errs, c.ValidateAI())
	errs = append(errs, c.ValidateStore())
	return errors.Join(errs...)
}

// ValidateAI checks provider selection and credentials.
func (c Config) ValidateAI() error {
	var errs []error
	switch c.AI.Provider {
	case ProviderOpenAI:
		if c.AI.OpenAI.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required for provider openai", openAIKeyEnv))
		}
		if c.AI.OpenAI.Model == "" {
			errs = append(errs, fmt.Errorf("%s is required for provider openai", openAIModelEnv))
		}
	case ProviderQwen:
		if c.AI.Qwen.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required for provider qwen", qwenKeyEnv))
		}
		if c.AI.Qwen.Model == "" {
			errs = append(errs, fmt.Errorf("%s is required for provider qwen", qwenModelEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ai provider %q (want openai or qwen)", c.AI.Provider))
	}
	if c.AI.KeyPoints <= 0 {
		errs = append(errs, errors.New("ai.keyPoints must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateStore checks the database settings.
func (c Config) ValidateStore() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%s is required", databaseDSNEnv)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Logging.Format, logFormatEnv)
	setString(&c.Telegram.BotToken, telegramTokenEnv)

	setString(&c.AI.Provider, aiProviderEnv)
	setString(&c.AI.OpenAI.APIKey, openAIKeyEnv)
	setString(&c.AI.OpenAI.Model, openAIModelEnv)
	setString(&c.AI.OpenAI.BaseURL, openAIBaseEnv)
	setString(&c.AI.Qwen.APIKey, qwenKeyEnv)
	setString(&c.AI.Qwen.Model, qwenModelEnv)
	setString(&c.AI.Qwen.BaseURL, qwenBaseEnv)

	setString(&c.Database.Driver, databaseDriverEnv)
	setString(&c.Database.DSN, databaseDSNEnv)
	setString(&c.Dashboard.Addr, dashboardAddrEnv)

	var errs []error
	if v := os.Getenv(aiTemperatureEnv); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		errs = append(errs, envErr(aiTemperatureEnv, err))
		if err == nil {
			c.AI.Temperature = float32(f)
		}
	}
	if v := os.Getenv(requestTimeoutEnv); v != "" {
		secs, err := strconv.Atoi(v)
		errs = append(errs, envErr(requestTimeoutEnv, err))
		if err == nil {
			c.Extractor.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv(maxTextLengthEnv); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr(maxTextLengthEnv, err))
		if err == nil {
			c.Extractor.MaxTextLength = n
		}
	}
	if v := os.Getenv(cacheTTLDaysEnv); v != "" {
		days, err := strconv.Atoi(v)
		errs = append(errs, envErr(cacheTTLDaysEnv, err))
		if err == nil {
			c.Cache.TTL = time.Duration(days) * 24 * time.Hour
		}
	}
	if v := os.Getenv(rateLimitWindowEnv); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr(rateLimitWindowEnv, err))
		if err == nil {
			c.RateLimit.Window = d
		}
	}
	if v := os.Getenv(rateLimitMaxEnv); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr(rateLimitMaxEnv, err))
		if err == nil {
			c.RateLimit.MaxRequests = n
		}
	}
	return errors.Join(errs...)
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = strings.Trim(v, `"'`)
	}
}

func envErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("env %s: %w", name, err)
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.MaxConcurrent > 0 {
		base.Telegram.MaxConcurrent = override.Telegram.MaxConcurrent
	}

	if override.AI.Provider != "" {
		base.AI.Provider = override.AI.Provider
	}
	base.AI.OpenAI = mergeProvider(base.AI.OpenAI, override.AI.OpenAI)
	base.AI.Qwen = mergeProvider(base.AI.Qwen, override.AI.Qwen)
	if override.AI.Temperature != 0 {
		base.AI.Temperature = override.AI.Temperature
	}
	if override.AI.Timeout > 0 {
		base.AI.Timeout = override.AI.Timeout
	}
	if override.AI.MaxAttempts > 0 {
		base.AI.MaxAttempts = override.AI.MaxAttempts
	}
	if override.AI.BaseDelay > 0 {
		base.AI.BaseDelay = override.AI.BaseDelay
	}
	if override.AI.KeyPoints > 0 {
		base.AI.KeyPoints = override.AI.KeyPoints
	}

	ex := override.Extractor
	if ex.RequestTimeout > 0 {
		base.Extractor.RequestTimeout = ex.RequestTimeout
	}
	if ex.MaxTextLength > 0 {
		base.Extractor.MaxTextLength = ex.MaxTextLength
	}
	if ex.MinTextLength > 0 {
		base.Extractor.MinTextLength = ex.MinTextLength
	}
	if ex.Workers > 0 {
		base.Extractor.Workers = ex.Workers
	}
	if ex.MaxAttempts > 0 {
		base.Extractor.MaxAttempts = ex.MaxAttempts
	}
	if ex.BaseDelay > 0 {
		base.Extractor.BaseDelay = ex.BaseDelay
	}
	if ex.HostRPS > 0 {
		base.Extractor.HostRPS = ex.HostRPS
	}
	if ex.HostBurst > 0 {
		base.Extractor.HostBurst = ex.HostBurst
	}
	if ex.UserAgent != "" {
		base.Extractor.UserAgent = ex.UserAgent
	}
	if len(ex.CaptionLanguages) > 0 {
		base.Extractor.CaptionLanguages = ex.CaptionLanguages
	}
	if len(ex.VideoHosts) > 0 {
		base.Extractor.VideoHosts = ex.VideoHosts
	}

	if override.RateLimit.Window > 0 {
		base.RateLimit.Window = override.RateLimit.Window
	}
	if override.RateLimit.MaxRequests > 0 {
		base.RateLimit.MaxRequests = override.RateLimit.MaxRequests
	}
	if override.RateLimit.SweepSchedule != "" {
		base.RateLimit.SweepSchedule = override.RateLimit.SweepSchedule
	}

	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}
	if override.Cache.HotTTL > 0 {
		base.Cache.HotTTL = override.Cache.HotTTL
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Dashboard.Addr != "" {
		base.Dashboard.Addr = override.Dashboard.Addr
	}

	return base
}

// explicitFields holds settings whose zero value is meaningful, so the
// file layer must tell "set to zero" apart from "absent".
type explicitFields struct {
	AI struct {
		Temperature *float32 `yaml:"temperature"`
	} `yaml:"ai"`
}

func (e explicitFields) apply(cfg *Config) {
	if e.AI.Temperature != nil {
		cfg.AI.Temperature = *e.AI.Temperature
	}
}

func mergeProvider(base, override ProviderConfig) ProviderConfig {
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Telegram: TelegramConfig{MaxConcurrent: 16},
		AI: AIConfig{
			Provider: ProviderOpenAI,
			OpenAI: ProviderConfig{
				Model:   "gpt-4o-mini",
				BaseURL: "https://api.openai.com/v1",
			},
			Qwen: ProviderConfig{
				Model:   "qwen-plus",
				BaseURL: "https://dashscope-intl.aliyuncs.com/compatible-mode",
			},
			Temperature: 0.3,
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			KeyPoints:   3,
		},
		Extractor: ExtractorConfig{
			RequestTimeout:   30 * time.Second,
			MaxTextLength:    100000,
			MinTextLength:    100,
			Workers:          runtime.NumCPU(),
			MaxAttempts:      2,
			BaseDelay:        time.Second,
			HostRPS:          2,
			HostBurst:        4,
			UserAgent:        "InfoDigestBot/1.0",
			CaptionLanguages: []string{"en", "ko"},
		},
		RateLimit: RateLimitConfig{
			Window:        time.Minute,
			MaxRequests:   5,
			SweepSchedule: "@every 10m",
		},
		Cache:     CacheConfig{HotTTL: 10 * time.Minute},
		Database:  DatabaseConfig{Driver: DriverSQLite, DSN: "infodigest.db"},
		Dashboard: DashboardConfig{Addr: ":8080"},
	}
}
