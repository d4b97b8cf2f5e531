package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY"},
		"exchange": {"name": "sim"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Trading.LotSize)
	assert.Equal(t, 100000.0, cfg.Trading.Capital)
	assert.Equal(t, 3*time.Second, cfg.Trading.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.Trading.StaleTick())
	assert.Equal(t, 3000.0, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, 5, cfg.Risk.MaxTradesPerDay)
	assert.Equal(t, 15*time.Minute, cfg.Risk.Cooldown())
	assert.Equal(t, "angel", cfg.Costs.Broker)
	assert.Equal(t, "journal", cfg.Journal.Dir)
	assert.Equal(t, ":9090", cfg.Monitoring.Addr)
}

func TestLoadRejectsMissingBybitCredentials(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")

	path := writeConfig(t, `{
		"trading": {"underlying": "BTC"},
		"exchange": {"name": "bybit"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "env-key")
	t.Setenv("BYBIT_API_SECRET", "env-secret")

	path := writeConfig(t, `{
		"trading": {"underlying": "BTC"},
		"exchange": {"name": "bybit", "api_key": "file-key", "api_secret": "file-secret", "demo": true}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
	assert.True(t, cfg.Exchange.Demo)
}

func TestLoadRejectsUnknownExchange(t *testing.T) {
	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY"},
		"exchange": {"name": "kraken"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exchange")
}

func TestLoadRejectsHalfConfiguredTelegram(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY"},
		"exchange": {"name": "sim"},
		"notifications": {"enabled": true, "telegram_token": "tok"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSessionWindowParsing(t *testing.T) {
	tc := TradingConfig{SessionStart: "09:20", SessionEnd: "15:10"}
	start, end, enabled := tc.Session()
	require.True(t, enabled)
	assert.Equal(t, 9*60+20, start)
	assert.Equal(t, 15*60+10, end)
}

func TestSessionWindowDisabledWhenUnset(t *testing.T) {
	_, _, enabled := TradingConfig{}.Session()
	assert.False(t, enabled)
}

func TestLoadAcceptsSessionWindow(t *testing.T) {
	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY", "session_start": "09:20", "session_end": "15:10"},
		"exchange": {"name": "sim"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	start, end, enabled := cfg.Trading.Session()
	assert.True(t, enabled)
	assert.Equal(t, 9*60+20, start)
	assert.Equal(t, 15*60+10, end)
}

func TestLoadRejectsHalfConfiguredSession(t *testing.T) {
	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY", "session_start": "09:20"},
		"exchange": {"name": "sim"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_start and session_end")
}

func TestLoadRejectsInvertedSessionWindow(t *testing.T) {
	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY", "session_start": "15:10", "session_end": "09:20"},
		"exchange": {"name": "sim"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be after")
}

func TestLoadRejectsMalformedSessionTimes(t *testing.T) {
	path := writeConfig(t, `{
		"trading": {"underlying": "NIFTY", "session_start": "9am", "session_end": "3pm"},
		"exchange": {"name": "sim"}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HH:MM")
}
