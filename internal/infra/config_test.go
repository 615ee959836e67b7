package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	chdir(t, dir)
}

func TestLoadConfigDefaults(t *testing.T) {
	writeConfig(t, `
discord:
  token: "tok"
  app_id: "123"
database:
  url: "postgres://localhost/trapgate"
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Discord.Token)
	assert.Equal(t, "https://discord.com/api/v10", cfg.Discord.APIBase)

	// Политика по умолчанию: сутки чистки, час нативного окна, иерархия
	assert.Equal(t, 24*time.Hour, cfg.Enforce.PurgeWindow)
	assert.Equal(t, time.Hour, cfg.Enforce.NativeDeleteWindow)
	assert.True(t, cfg.Enforce.CheckHierarchy)
	assert.Equal(t, "Honeypot trip", cfg.Enforce.Reason)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, "info", cfg.Logger.Level)
	// Redis не задан — валидное состояние, пауза работает локально
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfigOverrides(t *testing.T) {
	writeConfig(t, `
discord:
  token: "tok"
  app_id: "123"
database:
  url: "postgres://localhost/trapgate"
enforce:
  purge_window: 48h
  check_hierarchy: false
  reason: "Trap triggered"
logger:
  level: debug
  format: console
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Enforce.PurgeWindow)
	assert.False(t, cfg.Enforce.CheckHierarchy)
	assert.Equal(t, "Trap triggered", cfg.Enforce.Reason)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadConfigEnvOnly(t *testing.T) {
	// Деплой без файла: все обязательные значения приходят из окружения
	chdir(t, t.TempDir())
	t.Setenv("DISCORD_TOKEN", "env-tok")
	t.Setenv("DISCORD_APP_ID", "456")
	t.Setenv("DATABASE_URL", "postgres://db/trapgate")
	t.Setenv("ENFORCE_PURGE_WINDOW", "12h")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-tok", cfg.Discord.Token)
	assert.Equal(t, "456", cfg.Discord.AppID)
	assert.Equal(t, "postgres://db/trapgate", cfg.Database.URL)
	assert.Equal(t, 12*time.Hour, cfg.Enforce.PurgeWindow)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	// Дефолты продолжают работать рядом с ENV
	assert.Equal(t, time.Hour, cfg.Enforce.NativeDeleteWindow)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Discord:  DiscordConfig{Token: "tok", AppID: "123"},
			Database: DatabaseConfig{URL: "postgres://localhost/trapgate"},
			Enforce:  EnforceConfig{PurgeWindow: 24 * time.Hour},
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Discord.Token = ""
	assert.ErrorContains(t, c.Validate(), "discord.token")

	c = base()
	c.Discord.AppID = ""
	assert.ErrorContains(t, c.Validate(), "discord.app_id")

	c = base()
	c.Database.URL = ""
	assert.ErrorContains(t, c.Validate(), "database.url")

	c = base()
	c.Enforce.PurgeWindow = 0
	assert.ErrorContains(t, c.Validate(), "purge_window")
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)

	_, err = NewLogger(LoggerConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.ErrorContains(t, err, "invalid level")
}
