package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
	// never pick up a developer's secrets file
	os.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

var allEnvKeys = []string{
	"SECRETS_FILE",
	"PORT",
	"FLASK_RUN_PORT",
	"HTTP_REQUEST_TIMEOUT_SECONDS",
	"CORS_ALLOWED_ORIGINS",
	"LOG_FORMAT",
	"LOG_LEVEL",
	"DEMO_MODE",
	"YAHOO_BASE_URL",
	"YAHOO_TIMEOUT_SECONDS",
	"YAHOO_MIN_INTERVAL_MS",
	"YAHOO_CONCURRENCY",
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID",
	"TELEGRAM_BASE_URL",
	"OPENAI_API_KEY",
	"OPENAI_MODEL",
	"OPENAI_MAX_TOKENS",
	"OPENAI_TEMPERATURE",
	"LLM_PROVIDER",
	"AWS_REGION",
	"BEDROCK_MODEL_ID",
	"BEDROCK_MAX_TOKENS",
	"RESEARCH_ENABLED",
	"ALERTA_ALTA_MINIMA",
	"ALERTA_BAIXA_MINIMA",
	"ALERTA_DESCONTO_PVP",
	"MONITOR_INTERVAL_MINUTES",
	"MONITOR_FUND_ALERTS",
	"TRADING_START_HOUR",
	"TRADING_END_HOUR",
	"MARKET_TIMEZONE",
	"DASHBOARD_URL",
	"WATCHLIST",
	"WATCHLIST_FILE",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.HTTP.Port != 5001 {
		t.Errorf("expected Port=5001, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.CORSAllowedOrigins != "*" {
		t.Errorf("expected CORSAllowedOrigins='*', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.DemoMode {
		t.Error("expected DemoMode=false")
	}
	if cfg.Yahoo.MinInterval != 500*time.Millisecond {
		t.Errorf("expected MinInterval=500ms, got %v", cfg.Yahoo.MinInterval)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected OpenAI.Model='gpt-4o-mini', got %s", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.MaxTokens != 650 {
		t.Errorf("expected OpenAI.MaxTokens=650, got %d", cfg.OpenAI.MaxTokens)
	}
	if cfg.OpenAI.Temperature != 0.4 {
		t.Errorf("expected OpenAI.Temperature=0.4, got %f", cfg.OpenAI.Temperature)
	}
	if cfg.Alerts.HighPct != 1.5 || cfg.Alerts.LowPct != -1.5 || cfg.Alerts.DiscountPVP != 0.95 {
		t.Errorf("unexpected alert thresholds: %+v", cfg.Alerts)
	}
	if cfg.Monitor.IntervalMinutes != 30 {
		t.Errorf("expected IntervalMinutes=30, got %d", cfg.Monitor.IntervalMinutes)
	}
	if cfg.Market.StartHour != 10 || cfg.Market.EndHour != 17 {
		t.Errorf("expected trading hours 10-17, got %d-%d", cfg.Market.StartHour, cfg.Market.EndHour)
	}
	if cfg.Market.Location().String() != "America/Sao_Paulo" {
		t.Errorf("expected America/Sao_Paulo, got %s", cfg.Market.Location())
	}
	if len(cfg.Watchlist) != 16 {
		t.Errorf("expected 16 watchlist tickers, got %d", len(cfg.Watchlist))
	}
	if cfg.Sectors == nil {
		t.Error("expected embedded sector map to be loaded")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("PORT", "8080")
	os.Setenv("DEMO_MODE", "true")
	os.Setenv("YAHOO_CONCURRENCY", "2")
	os.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	os.Setenv("TELEGRAM_CHAT_ID", "42")
	os.Setenv("LLM_PROVIDER", "Bedrock")
	os.Setenv("ALERTA_ALTA_MINIMA", "2.5")
	os.Setenv("ALERTA_BAIXA_MINIMA", "-3")
	os.Setenv("ALERTA_DESCONTO_PVP", "0.9")
	os.Setenv("MONITOR_INTERVAL_MINUTES", "15")
	os.Setenv("WATCHLIST", "hglg11, knri11.sa,,")
	os.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if !cfg.DemoMode {
		t.Error("expected DemoMode=true")
	}
	if cfg.Yahoo.Concurrency != 2 {
		t.Errorf("expected Concurrency=2, got %d", cfg.Yahoo.Concurrency)
	}
	if !cfg.HasTelegram() {
		t.Error("expected HasTelegram() to be true")
	}
	if !cfg.UseBedrock() {
		t.Error("expected UseBedrock() to be true")
	}
	if cfg.Alerts.HighPct != 2.5 || cfg.Alerts.LowPct != -3 || cfg.Alerts.DiscountPVP != 0.9 {
		t.Errorf("unexpected alert thresholds: %+v", cfg.Alerts)
	}
	if cfg.MonitorInterval() != 15*time.Minute {
		t.Errorf("expected 15m interval, got %v", cfg.MonitorInterval())
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[0] != "HGLG11" || cfg.Watchlist[1] != "KNRI11.SA" {
		t.Errorf("unexpected watchlist: %v", cfg.Watchlist)
	}
	if cfg.HTTP.CORSAllowedOrigins != "http://localhost:5173" {
		t.Errorf("expected CORSAllowedOrigins='http://localhost:5173', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
}

func TestLoad_FlaskPortFallback(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("FLASK_RUN_PORT", "5050")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.HTTP.Port != 5050 {
		t.Errorf("expected Port=5050, got %d", cfg.HTTP.Port)
	}
}

func TestLoad_SecretsFile(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	path := filepath.Join(t.TempDir(), ".env")
	content := "TELEGRAM_BOT_TOKEN=file-token\nTELEGRAM_CHAT_ID=99\nOPENAI_API_KEY=sk-test\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("SECRETS_FILE", path)
	defer os.Unsetenv("TELEGRAM_BOT_TOKEN")
	defer os.Unsetenv("TELEGRAM_CHAT_ID")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Telegram.BotToken != "file-token" || cfg.Telegram.ChatID != "99" {
		t.Errorf("expected telegram credentials from file, got %+v", cfg.Telegram)
	}
	if !cfg.HasOpenAI() || !cfg.HasNarrator() {
		t.Error("expected OpenAI narrator to be available")
	}
}

func TestLoad_WatchlistFile(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	if err := os.WriteFile(path, []byte("tickers:\n  - mxrf11\n  - HGLG11.SA\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("WATCHLIST_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[0] != "MXRF11" {
		t.Errorf("unexpected watchlist: %v", cfg.Watchlist)
	}

	os.Setenv("WATCHLIST_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing watchlist file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"unknown provider", func(c *Config) { c.OpenAI.Provider = "gemini" }, true},
		{"positive low threshold", func(c *Config) { c.Alerts.LowPct = 1 }, true},
		{"negative high threshold", func(c *Config) { c.Alerts.HighPct = -1 }, true},
		{"discount above plausible range", func(c *Config) { c.Alerts.DiscountPVP = 4 }, true},
		{"inverted trading hours", func(c *Config) { c.Market.StartHour, c.Market.EndHour = 17, 10 }, true},
		{"bad timezone", func(c *Config) { c.Market.Timezone = "Mars/Olympus" }, true},
		{"empty watchlist", func(c *Config) { c.Watchlist = nil }, true},
		{"zero concurrency", func(c *Config) { c.Yahoo.Concurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_InvalidValuesUseDefaults(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
	}{
		{"negative timeout", "YAHOO_TIMEOUT_SECONDS", "-5"},
		{"zero concurrency", "YAHOO_CONCURRENCY", "0"},
		{"invalid number", "OPENAI_MAX_TOKENS", "not-a-number"},
		{"temperature out of range", "OPENAI_TEMPERATURE", "5"},
		{"hour out of range", "TRADING_END_HOUR", "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := saveEnv(t, allEnvKeys)
			defer restoreEnv(t, saved)
			clearEnv(t, allEnvKeys)

			os.Setenv(tt.envKey, tt.envVal)

			if _, err := Load(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestHasTelegram(t *testing.T) {
	cfg := NewTestConfig()
	if cfg.HasTelegram() {
		t.Error("expected HasTelegram() to return false for empty config")
	}

	cfg.Telegram.BotToken = "token"
	if cfg.HasTelegram() {
		t.Error("expected HasTelegram() to return false without chat id")
	}

	cfg.Telegram.ChatID = "42"
	if !cfg.HasTelegram() {
		t.Error("expected HasTelegram() to return true for complete config")
	}
}

func TestHasNarrator(t *testing.T) {
	cfg := NewTestConfig()
	if cfg.HasNarrator() {
		t.Error("expected HasNarrator() to return false without an OpenAI key")
	}

	cfg.OpenAI.APIKey = "sk-test"
	if !cfg.HasNarrator() {
		t.Error("expected HasNarrator() to return true with an OpenAI key")
	}

	cfg.OpenAI.APIKey = ""
	cfg.OpenAI.Provider = ProviderBedrock
	if !cfg.HasNarrator() {
		t.Error("expected HasNarrator() to return true for Bedrock with a model id")
	}

	cfg.Bedrock.ModelID = ""
	if cfg.HasNarrator() {
		t.Error("expected HasNarrator() to return false for Bedrock without a model id")
	}
}

func TestParseTickers(t *testing.T) {
	got := ParseTickers(" mxrf11 ,, HGLG11.SA ,")
	if len(got) != 2 || got[0] != "MXRF11" || got[1] != "HGLG11.SA" {
		t.Errorf("unexpected tickers: %v", got)
	}
	if got := ParseTickers(""); len(got) != 0 {
		t.Errorf("expected no tickers, got %v", got)
	}
}

func TestSectorLookup(t *testing.T) {
	sectors, err := LoadSectors()
	if err != nil {
		t.Fatalf("LoadSectors() failed: %v", err)
	}

	sec := sectors.Lookup("mxrf11.sa")
	if sec.Name != "Real Estate Receivables" {
		t.Errorf("expected Real Estate Receivables, got %q", sec.Name)
	}
	if len(sec.RisesWith) == 0 || len(sec.Indices) == 0 {
		t.Error("expected sector drivers to be resolved")
	}
	if !sec.Resilient {
		t.Error("expected receivables to be resilient")
	}

	if got := sectors.Lookup("ZZZZ11"); got.Name != "Other" {
		t.Errorf("expected unknown sector, got %q", got.Name)
	}

	var nilMap *SectorMap
	if got := nilMap.Lookup("MXRF11"); got.Name != "Other" {
		t.Errorf("expected unknown sector from nil map, got %q", got.Name)
	}
}

func TestParseSectors_Invalid(t *testing.T) {
	if _, err := ParseSectors([]byte("funds:\n  ABCD11: {type: x}\n")); err == nil {
		t.Error("expected error for fund without sector")
	}
	if _, err := ParseSectors([]byte("funds: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_GET_ENV_STRING"
	defer os.Unsetenv(key)

	os.Unsetenv(key)
	if got := getEnvString(key, "default"); got != "default" {
		t.Errorf("expected 'default', got %q", got)
	}

	os.Setenv(key, "value")
	if got := getEnvString(key, "default"); got != "value" {
		t.Errorf("expected 'value', got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT"
	defer os.Unsetenv(key)

	tests := []struct {
		val  string
		want int
	}{
		{"", 10},
		{"42", 42},
		{"-1", 10},
		{"0", 10},
		{"abc", 10},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			os.Setenv(key, tt.val)
			if got := getEnvInt(key, 10); got != tt.want {
				t.Errorf("getEnvInt(%q) = %d, want %d", tt.val, got, tt.want)
			}
		})
	}
}

func TestGetEnvHour(t *testing.T) {
	key := "TEST_GET_ENV_HOUR"
	defer os.Unsetenv(key)

	tests := []struct {
		val  string
		want int
	}{
		{"0", 0},
		{"24", 24},
		{"25", 10},
		{"-1", 10},
	}

	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			os.Setenv(key, tt.val)
			if got := getEnvHour(key, 10); got != tt.want {
				t.Errorf("getEnvHour(%q) = %d, want %d", tt.val, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_GET_ENV_BOOL"
	defer os.Unsetenv(key)

	os.Setenv(key, "true")
	if !getEnvBool(key, false) {
		t.Error("expected true")
	}
	os.Setenv(key, "garbage")
	if getEnvBool(key, false) {
		t.Error("expected default for unparsable value")
	}
}
