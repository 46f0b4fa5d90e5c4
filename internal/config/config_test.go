package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	dir := writeConfig(t, "SLACK_BOT_TOKEN: xoxb-test\nSLACK_CHANNEL_ID: C123\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "xoxb-test", cfg.SlackBotToken)
	assert.Equal(t, "C123", cfg.SlackChannelID)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "./data/slack_links.json", cfg.CachePath)
	assert.Equal(t, 7, cfg.MaxAgeDays)
	assert.Equal(t, 1000, cfg.MaxCacheEntries)
	assert.Equal(t, "*/15 * * * *", cfg.SyncSchedule)
}

func TestLoadConfig_MissingToken(t *testing.T) {
	viper.Reset()
	dir := writeConfig(t, "SLACK_CHANNEL_ID: C123\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLACK_BOT_TOKEN")
}

func TestLoadConfig_MissingChannel(t *testing.T) {
	viper.Reset()
	dir := writeConfig(t, "SLACK_BOT_TOKEN: xoxb-test\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLACK_CHANNEL_ID")
}

func TestLoadConfig_EnvironmentOnly(t *testing.T) {
	viper.Reset()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("SLACK_CHANNEL_ID", "C999")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "xoxb-env", cfg.SlackBotToken)
	assert.Equal(t, "C999", cfg.SlackChannelID)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	viper.Reset()
	dir := writeConfig(t, `SLACK_BOT_TOKEN: xoxb-test
SLACK_CHANNEL_ID: C123
SERVER_PORT: 9090
MAX_CACHE_ENTRIES: 50
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 50, cfg.MaxCacheEntries)
}
