package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	SlackBotToken    string `mapstructure:"SLACK_BOT_TOKEN"`
	SlackChannelID   string `mapstructure:"SLACK_CHANNEL_ID"`
	SlackChannelName string `mapstructure:"SLACK_CHANNEL_NAME"`

	BadgerDBPath string `mapstructure:"BADGERDB_PATH"`
	CachePath    string `mapstructure:"CACHE_PATH"`

	ServerPort  int      `mapstructure:"SERVER_PORT"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	SyncSchedule string `mapstructure:"SYNC_SCHEDULE"`

	MaxAgeDays      int `mapstructure:"MAX_AGE_DAYS"`
	PageSize        int `mapstructure:"PAGE_SIZE"`
	MaxCacheEntries int `mapstructure:"MAX_CACHE_ENTRIES"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing Slack token or channel id is a fatal configuration error.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Required keys have no defaults; bind them so environment-only
	// values survive Unmarshal.
	_ = viper.BindEnv("SLACK_BOT_TOKEN")
	_ = viper.BindEnv("SLACK_CHANNEL_ID")
	_ = viper.BindEnv("SLACK_CHANNEL_NAME")

	viper.SetDefault("BADGERDB_PATH", "./data/badger")
	viper.SetDefault("CACHE_PATH", "./data/slack_links.json")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SYNC_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("MAX_AGE_DAYS", 7)
	viper.SetDefault("PAGE_SIZE", 200)
	viper.SetDefault("MAX_CACHE_ENTRIES", 1000)
	viper.SetDefault("LOG_LEVEL", "info")

	err = viper.ReadInConfig()
	if err != nil {
		// A missing config file is fine when the environment carries
		// the required values.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.SlackBotToken == "" {
		return Config{}, fmt.Errorf("SLACK_BOT_TOKEN is not set")
	}
	if config.SlackChannelID == "" {
		return Config{}, fmt.Errorf("SLACK_CHANNEL_ID is not set")
	}

	return config, nil
}
