package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BOT_TOKEN", "GHEYMAT_BOT_TOKEN", "DATA_DIR", "GHEYMAT_DATA_DIR", "GHEYMAT_STORAGE",
		"BRS_API_KEY", "GHEYMAT_HTTP_ADDR", "LOG_LEVEL", "GHEYMAT_DEBUG", "GHEYMAT_ALLOW_PAIRS",
		"LABEL_PRICE_FA", "LABEL_MODES_FA", "LABEL_CUSTOMIZE_FA", "LABEL_REFRESH_FA", "WELCOME_TEXT",
	} {
		t.Setenv(k, "")
	}
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "file", cfg.Storage)
	assert.Equal(t, 1500, cfg.DailyLimit)
	assert.Equal(t, 30*time.Second, cfg.BitpinTTL())
	assert.Equal(t, 60*time.Second, cfg.BRSTTL())
	assert.Equal(t, 8*time.Second, cfg.BitpinTimeout())
	assert.Equal(t, 30*time.Second, cfg.BRSTimeout())
	assert.Equal(t, DefaultWarmSchedule, cfg.WarmSchedule)
	assert.Equal(t, "Price", cfg.Labels.Price)
	assert.Equal(t, DefaultWelcome, cfg.Labels.Welcome)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	clearEnv(t)
	p := write(t, "config.json", `{"bot_token":"file-token","data_dir":"/tmp/x/../y","daily_limit":10,
		"labels":{"price":"قیمت"},"allow_pairs":["BTC"]}`)
	t.Setenv("GHEYMAT_BOT_TOKEN", "env-token")
	t.Setenv("LABEL_REFRESH_FA", "بروزرسانی")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.BotToken)
	assert.Equal(t, "/tmp/y", cfg.DataDir)
	assert.Equal(t, 10, cfg.DailyLimit)
	assert.Equal(t, "قیمت", cfg.Labels.Price)
	assert.Equal(t, "بروزرسانی", cfg.Labels.Refresh)
	assert.Equal(t, []string{"BTC"}, cfg.AllowPairs)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	p := write(t, "config.yaml", "bot_token: y\nstorage: sqlite\nwarm_brs: true\nbrs_ttl_seconds: 120\nlabels:\n  modes: حالت\n")
	t.Setenv("GHEYMAT_ALLOW_PAIRS", "btc, usdt,")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.True(t, cfg.WarmBRS)
	assert.Equal(t, 2*time.Minute, cfg.BRSTTL())
	assert.Equal(t, "حالت", cfg.Labels.Modes)
	assert.Equal(t, []string{"BTC", "USDT"}, cfg.AllowPairs)
}

func TestAllowPairsFromFileAreUppercased(t *testing.T) {
	clearEnv(t)
	p := write(t, "config.yaml", "bot_token: y\nallow_pairs: [btc, \" usdt \", \"\"]\n")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "USDT"}, cfg.AllowPairs)
}

func TestDebugRaisesLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("GHEYMAT_DEBUG", "yes")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.ErrorContains(t, err, "bot_token")

	p := write(t, "config.json", `{"bot_token":"t","storage":"redis"}`)
	_, err = Load(p)
	require.ErrorContains(t, err, "storage")

	p = write(t, "config.json", `{"bot_token":"t","daily_limit":-1}`)
	_, err = Load(p)
	require.ErrorContains(t, err, "daily_limit")

	p = write(t, "config.json", `{"bot_token":"t","quota_retention_days":-3}`)
	_, err = Load(p)
	require.ErrorContains(t, err, "quota_retention_days")

	p = write(t, "config.json", `{"bot_token":`)
	_, err = Load(p)
	require.ErrorContains(t, err, "invalid config json")
}
