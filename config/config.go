package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"fii-monitor/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLM providers accepted by LLM_PROVIDER
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// DefaultWatchlist is monitored when neither WATCHLIST nor WATCHLIST_FILE is set
var DefaultWatchlist = []string{
	"MXRF11.SA", "MCRE11.SA", "VGHF11.SA", "VISC11.SA",
	"RURA11.SA", "TRXF11.SA", "XPLG11.SA", "RZTR11.SA",
	"CPTS11.SA", "HSML11.SA", "PVBI11.SA", "OUJP11.SA",
	"VILG11.SA", "VRTA11.SA", "HGRU11.SA", "RBRP11.SA",
}

// Config holds all application configuration
type Config struct {
	// DemoMode serves deterministic sample data instead of calling Yahoo
	DemoMode bool

	HTTP      HTTPConfig
	Log       LogConfig
	Yahoo     YahooConfig
	Telegram  TelegramConfig
	OpenAI    OpenAIConfig
	Bedrock   BedrockConfig
	Research  ResearchConfig
	Alerts    AlertConfig
	Monitor   MonitorConfig
	Market    MarketConfig
	Watchlist []string
	Sectors   *SectorMap
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               int
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string // text or json
	Level  string
}

// YahooConfig holds Yahoo Finance client configuration
type YahooConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MinInterval time.Duration
	Concurrency int
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Provider    string
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region    string
	ModelID   string
	MaxTokens int
}

// ResearchConfig holds public fund research configuration
type ResearchConfig struct {
	Enabled    bool
	BaseURL    string
	MaxTickers int
}

// AlertConfig holds the monitor alert thresholds
type AlertConfig struct {
	HighPct     float64 // ALERTA_ALTA_MINIMA, day change in percent
	LowPct      float64 // ALERTA_BAIXA_MINIMA, day change in percent
	DiscountPVP float64 // ALERTA_DESCONTO_PVP
}

// MonitorConfig holds the scheduled monitor configuration
type MonitorConfig struct {
	IntervalMinutes int
	FundAlerts      bool
	DashboardURL    string
}

// MarketConfig holds the trading-hours gate
type MarketConfig struct {
	Timezone  string
	StartHour int
	EndHour   int
	location  *time.Location
}

// Location returns the exchange timezone
func (m MarketConfig) Location() *time.Location {
	if m.location != nil {
		return m.location
	}
	if loc, err := time.LoadLocation(m.Timezone); err == nil {
		return loc
	}
	return models.MarketLocation()
}

// Load loads configuration from the secrets file and environment variables
func Load() (*Config, error) {
	secrets := getEnvString("SECRETS_FILE", ".env")
	if err := godotenv.Load(secrets); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", secrets, err)
	}

	cfg := &Config{
		DemoMode: getEnvBool("DEMO_MODE", false),
		HTTP: HTTPConfig{
			Port:               getEnvInt("PORT", getEnvInt("FLASK_RUN_PORT", 5001)),
			RequestTimeout:     time.Duration(getEnvInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Log: LogConfig{
			Format: getEnvString("LOG_FORMAT", "text"),
			Level:  getEnvString("LOG_LEVEL", "info"),
		},
		Yahoo: YahooConfig{
			BaseURL:     getEnvString("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:     time.Duration(getEnvInt("YAHOO_TIMEOUT_SECONDS", 10)) * time.Second,
			MinInterval: time.Duration(getEnvInt("YAHOO_MIN_INTERVAL_MS", 500)) * time.Millisecond,
			Concurrency: getEnvInt("YAHOO_CONCURRENCY", 4),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
			BaseURL:  getEnvString("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnvString("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 650),
			Temperature: getEnvFloatRange("OPENAI_TEMPERATURE", 0.4, 0, 2),
			Provider:    strings.ToLower(getEnvString("LLM_PROVIDER", ProviderOpenAI)),
		},
		Bedrock: BedrockConfig{
			Region:    getEnvString("AWS_REGION", "us-east-1"),
			ModelID:   getEnvString("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
			MaxTokens: getEnvInt("BEDROCK_MAX_TOKENS", 650),
		},
		Research: ResearchConfig{
			Enabled:    getEnvBool("RESEARCH_ENABLED", false),
			BaseURL:    getEnvString("RESEARCH_BASE_URL", "https://www.fundsexplorer.com.br"),
			MaxTickers: getEnvInt("RESEARCH_MAX_TICKERS", 5),
		},
		Alerts: AlertConfig{
			HighPct:     getEnvFloatUnbounded("ALERTA_ALTA_MINIMA", 1.5),
			LowPct:      getEnvFloatUnbounded("ALERTA_BAIXA_MINIMA", -1.5),
			DiscountPVP: getEnvFloatUnbounded("ALERTA_DESCONTO_PVP", 0.95),
		},
		Monitor: MonitorConfig{
			IntervalMinutes: getEnvInt("MONITOR_INTERVAL_MINUTES", 30),
			FundAlerts:      getEnvBool("MONITOR_FUND_ALERTS", false),
			DashboardURL:    getEnvString("DASHBOARD_URL", "http://localhost:5173"),
		},
		Market: MarketConfig{
			Timezone:  getEnvString("MARKET_TIMEZONE", models.MarketTimezone),
			StartHour: getEnvHour("TRADING_START_HOUR", 10),
			EndHour:   getEnvHour("TRADING_END_HOUR", 17),
		},
	}

	watchlist, err := loadWatchlist()
	if err != nil {
		return nil, err
	}
	cfg.Watchlist = watchlist

	sectors, err := LoadSectors()
	if err != nil {
		return nil, err
	}
	cfg.Sectors = sectors

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Yahoo.Concurrency <= 0 {
		return fmt.Errorf("YAHOO_CONCURRENCY must be positive, got %d", c.Yahoo.Concurrency)
	}
	if c.Yahoo.Timeout <= 0 {
		return fmt.Errorf("YAHOO_TIMEOUT_SECONDS must be positive, got %v", c.Yahoo.Timeout)
	}

	if c.OpenAI.Provider != ProviderOpenAI && c.OpenAI.Provider != ProviderBedrock {
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderBedrock, c.OpenAI.Provider)
	}

	if c.Alerts.HighPct <= 0 {
		return fmt.Errorf("ALERTA_ALTA_MINIMA must be positive, got %.2f", c.Alerts.HighPct)
	}
	if c.Alerts.LowPct >= 0 {
		return fmt.Errorf("ALERTA_BAIXA_MINIMA must be negative, got %.2f", c.Alerts.LowPct)
	}
	if c.Alerts.DiscountPVP <= 0 || c.Alerts.DiscountPVP > 3 {
		return fmt.Errorf("ALERTA_DESCONTO_PVP must be in (0, 3], got %.2f", c.Alerts.DiscountPVP)
	}

	if c.Monitor.IntervalMinutes <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL_MINUTES must be positive, got %d", c.Monitor.IntervalMinutes)
	}
	if c.Market.StartHour >= c.Market.EndHour {
		return fmt.Errorf("TRADING_START_HOUR (%d) must be before TRADING_END_HOUR (%d)", c.Market.StartHour, c.Market.EndHour)
	}
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q is not a valid timezone: %w", c.Market.Timezone, err)
	}
	c.Market.location = loc

	if len(c.Watchlist) == 0 {
		return errors.New("watchlist must contain at least one ticker")
	}

	return nil
}

// HasTelegram returns true if the Telegram bot is configured
func (c *Config) HasTelegram() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// HasOpenAI returns true if OpenAI configuration is available
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

// UseBedrock returns true if narration should go through AWS Bedrock
func (c *Config) UseBedrock() bool {
	return c.OpenAI.Provider == ProviderBedrock
}

// HasNarrator returns true if the selected language-model provider can be built
func (c *Config) HasNarrator() bool {
	if c.UseBedrock() {
		return c.Bedrock.ModelID != ""
	}
	return c.HasOpenAI()
}

// MonitorInterval returns the monitor schedule period
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMinutes) * time.Minute
}

type watchlistFile struct {
	Tickers []string `yaml:"tickers"`
}

func loadWatchlist() ([]string, error) {
	if raw := os.Getenv("WATCHLIST"); raw != "" {
		return ParseTickers(raw), nil
	}

	path := os.Getenv("WATCHLIST_FILE")
	if path == "" {
		return append([]string(nil), DefaultWatchlist...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist file: %w", err)
	}
	var wf watchlistFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist file %s: %w", path, err)
	}
	return ParseTickers(strings.Join(wf.Tickers, ",")), nil
}

// ParseTickers splits a comma-separated list, dropping blanks
func ParseTickers(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvHour(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 && parsed <= 24 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatUnbounded(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	sectors, _ := LoadSectors()
	return &Config{
		DemoMode: false,
		HTTP: HTTPConfig{
			Port:               5001,
			RequestTimeout:     60 * time.Second,
			CORSAllowedOrigins: "*",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Yahoo: YahooConfig{
			BaseURL:     "https://query1.finance.yahoo.com",
			Timeout:     10 * time.Second,
			MinInterval: 500 * time.Millisecond,
			Concurrency: 4,
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
		},
		OpenAI: OpenAIConfig{
			APIKey:      "",
			Model:       "gpt-4o-mini",
			MaxTokens:   650,
			Temperature: 0.4,
			Provider:    ProviderOpenAI,
		},
		Bedrock: BedrockConfig{
			Region:    "us-east-1",
			ModelID:   "anthropic.claude-3-haiku-20240307-v1:0",
			MaxTokens: 650,
		},
		Research: ResearchConfig{
			BaseURL:    "https://www.fundsexplorer.com.br",
			MaxTickers: 5,
		},
		Alerts: AlertConfig{
			HighPct:     1.5,
			LowPct:      -1.5,
			DiscountPVP: 0.95,
		},
		Monitor: MonitorConfig{
			IntervalMinutes: 30,
			DashboardURL:    "http://localhost:5173",
		},
		Market: MarketConfig{
			Timezone:  models.MarketTimezone,
			StartHour: 10,
			EndHour:   17,
		},
		Watchlist: append([]string(nil), DefaultWatchlist...),
		Sectors:   sectors,
	}
}
