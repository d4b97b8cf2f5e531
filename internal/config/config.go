package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete configuration for the scalping bot
type Config struct {
	// Trading parameters
	Trading TradingConfig `json:"trading"`

	// Daily risk governor limits
	Risk RiskConfig `json:"risk"`

	// Exchange connection
	Exchange ExchangeConfig `json:"exchange"`

	// Cost model
	Costs CostsConfig `json:"costs"`

	// Journal output
	Journal JournalConfig `json:"journal"`

	// Metrics and health endpoints (optional)
	Monitoring MonitoringConfig `json:"monitoring"`

	// Notification configuration (optional)
	Notifications *NotificationConfig `json:"notifications,omitempty"`
}

// TradingConfig holds the core trading parameters
type TradingConfig struct {
	Underlying       string  `json:"underlying"`         // Underlying index or coin (e.g. NIFTY, BTC)
	LotSize          int     `json:"lot_size"`           // Contract lot multiple
	Capital          float64 `json:"capital"`            // Trading capital for sizing
	PollIntervalSecs int     `json:"poll_interval_secs"` // Market data poll cadence
	MaxPositions     int     `json:"max_positions"`      // Concurrent open trade cap
	StaleTickSecs    int     `json:"stale_tick_secs"`    // Drop snapshots older than this
	SessionStart     string  `json:"session_start"`      // HH:MM; empty means trade around the clock
	SessionEnd       string  `json:"session_end"`        // HH:MM; positions square off at this time
}

// RiskConfig holds the daily risk governor limits
type RiskConfig struct {
	MaxDailyLoss         float64 `json:"max_daily_loss"`         // Kill switch floor (currency)
	DailyProfitTarget    float64 `json:"daily_profit_target"`    // 0 disables the profit halt
	MaxTradesPerDay      int     `json:"max_trades_per_day"`     // Entry cap per day
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"` // Losses before cooldown
	CooldownMinutes      int     `json:"cooldown_minutes"`       // Cooldown length
	StatePath            string  `json:"state_path"`             // Day-state persistence file
}

// ExchangeConfig holds exchange connection settings
type ExchangeConfig struct {
	Name      string `json:"name"`       // bybit or sim
	APIKey    string `json:"api_key"`    // Overridden by BYBIT_API_KEY
	APISecret string `json:"api_secret"` // Overridden by BYBIT_API_SECRET
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
}

// CostsConfig holds the broker cost model selection
type CostsConfig struct {
	Broker string `json:"broker"` // angel, zerodha or fyers
}

// JournalConfig holds journal output settings
type JournalConfig struct {
	Dir string `json:"dir"`
}

// MonitoringConfig holds the metrics/health endpoint settings
type MonitoringConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty"`
}

// PollInterval returns the poll cadence as a duration.
func (t TradingConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSecs) * time.Second
}

// StaleTick returns the snapshot staleness cutoff as a duration.
func (t TradingConfig) StaleTick() time.Duration {
	return time.Duration(t.StaleTickSecs) * time.Second
}

// Session returns the configured trading window as minutes since midnight.
// enabled is false when no window is set; entries are then allowed around
// the clock and positions only square off at shutdown.
func (t TradingConfig) Session() (startMin, endMin int, enabled bool) {
	if t.SessionStart == "" || t.SessionEnd == "" {
		return 0, 0, false
	}
	start, err := time.Parse("15:04", t.SessionStart)
	if err != nil {
		return 0, 0, false
	}
	end, err := time.Parse("15:04", t.SessionEnd)
	if err != nil {
		return 0, 0, false
	}
	return start.Hour()*60 + start.Minute(), end.Hour()*60 + end.Minute(), true
}

// Cooldown returns the loss-streak cooldown as a duration.
func (r RiskConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Load loads configuration from file, applies environment overrides,
// defaults and validation.
func Load(configFile string) (*Config, error) {
	// Bare names resolve against the configs/ directory
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}

	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()

	if err := config.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets credentials live in the environment instead of the
// config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		if c.Notifications == nil {
			c.Notifications = &NotificationConfig{Enabled: true}
		}
		c.Notifications.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if c.Notifications == nil {
			c.Notifications = &NotificationConfig{Enabled: true}
		}
		c.Notifications.TelegramChat = v
	}
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() error {
	if c.Trading.Underlying == "" {
		c.Trading.Underlying = "NIFTY"
	}
	if c.Trading.LotSize == 0 {
		c.Trading.LotSize = 75
	}
	if c.Trading.Capital == 0 {
		c.Trading.Capital = 100000
	}
	if c.Trading.PollIntervalSecs == 0 {
		c.Trading.PollIntervalSecs = 3
	}
	if c.Trading.MaxPositions == 0 {
		c.Trading.MaxPositions = 1
	}
	if c.Trading.StaleTickSecs == 0 {
		c.Trading.StaleTickSecs = 10
	}

	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 3000
	}
	if c.Risk.MaxTradesPerDay == 0 {
		c.Risk.MaxTradesPerDay = 5
	}
	if c.Risk.MaxConsecutiveLosses == 0 {
		c.Risk.MaxConsecutiveLosses = 3
	}
	if c.Risk.CooldownMinutes == 0 {
		c.Risk.CooldownMinutes = 15
	}
	if c.Risk.StatePath == "" {
		c.Risk.StatePath = filepath.Join("data", "risk_state.json")
	}

	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}

	if c.Costs.Broker == "" {
		c.Costs.Broker = "angel"
	}

	if c.Journal.Dir == "" {
		c.Journal.Dir = "journal"
	}

	if c.Monitoring.Addr == "" {
		c.Monitoring.Addr = ":9090"
	}

	return nil
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Trading.Capital <= 0 {
		return fmt.Errorf("trading capital must be greater than 0")
	}
	if c.Trading.LotSize <= 0 {
		return fmt.Errorf("lot size must be greater than 0")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		return fmt.Errorf("max daily loss must be greater than 0")
	}
	if c.Risk.MaxTradesPerDay <= 0 {
		return fmt.Errorf("max trades per day must be greater than 0")
	}

	if (c.Trading.SessionStart == "") != (c.Trading.SessionEnd == "") {
		return fmt.Errorf("session_start and session_end must be set together")
	}
	if c.Trading.SessionStart != "" {
		start, end, ok := c.Trading.Session()
		if !ok {
			return fmt.Errorf("session window must use HH:MM times, got %q..%q",
				c.Trading.SessionStart, c.Trading.SessionEnd)
		}
		if end <= start {
			return fmt.Errorf("session_end %q must be after session_start %q",
				c.Trading.SessionEnd, c.Trading.SessionStart)
		}
	}

	switch strings.ToLower(c.Exchange.Name) {
	case "sim":
		// No credentials needed.
	case "bybit":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("bybit credentials are required (config or BYBIT_API_KEY/BYBIT_API_SECRET)")
		}
	default:
		return fmt.Errorf("unsupported exchange %q", c.Exchange.Name)
	}

	if c.Notifications != nil && c.Notifications.Enabled {
		if c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "" {
			return fmt.Errorf("telegram notifications enabled but token/chat missing")
		}
	}

	return nil
}
