package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sagikazarmark/locafero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errViperConfigNotFound viper.ConfigFileNotFoundError

type Config struct {
	BotToken     string  `mapstructure:"bot-token" yaml:"bot-token"`
	OperatorChat int64   `mapstructure:"operator-chat" yaml:"operator-chat"`
	AllowedUsers []int64 `mapstructure:"allowed-users" yaml:"allowed-users"`
	DatabaseDir  string  `mapstructure:"database-dir" yaml:"database-dir"`

	// Loop intervals, in seconds. Zero keeps the defaults.
	ScreenshotPollSeconds int `mapstructure:"screenshot-poll-seconds" yaml:"screenshot-poll-seconds"`
	RetentionSeconds      int `mapstructure:"retention-seconds" yaml:"retention-seconds"`
	LogFlushSeconds       int `mapstructure:"log-flush-seconds" yaml:"log-flush-seconds"`
}

// ScreenshotPoll returns the configured screenshot polling interval.
func (c *Config) ScreenshotPoll() time.Duration {
	if c.ScreenshotPollSeconds > 0 {
		return time.Duration(c.ScreenshotPollSeconds) * time.Second
	}
	return ScreenshotPollInterval
}

// Retention returns the configured cleanup interval.
func (c *Config) Retention() time.Duration {
	if c.RetentionSeconds > 0 {
		return time.Duration(c.RetentionSeconds) * time.Second
	}
	return RetentionInterval
}

// LogFlush returns the configured event log flush interval.
func (c *Config) LogFlush() time.Duration {
	if c.LogFlushSeconds > 0 {
		return time.Duration(c.LogFlushSeconds) * time.Second
	}
	return EventLogFlushInterval
}

// SetupFlags registers the daemon flags on a pflag set.
func SetupFlags(flags *pflag.FlagSet) {
	flags.String("bot-token", "", "Telegram bot token")
	flags.Int64("operator-chat", 0, "chat ID receiving screenshots and status updates")
	flags.Int64Slice("allowed-users", []int64{}, "user IDs allowed to issue commands (comma-separated)")
	flags.String("database-dir", DefaultDatabaseDir, "local store directory")
	flags.Int("screenshot-poll-seconds", 0, "screenshot polling interval in seconds (0 = default)")
	flags.Int("retention-seconds", 0, "mailbox cleanup interval in seconds (0 = default)")
	flags.Int("log-flush-seconds", 0, "event log flush interval in seconds (0 = default)")
	flags.String("config", "", "config file path")
}

// Load reads the configuration from file, environment and flags.
//
// Discovery order matches the usual daemon layout: an explicit --config path,
// otherwise telepult.{yaml,json,...} in the working directory or /etc/telepult.
func Load(flags *pflag.FlagSet) (*Config, error) {
	configFile, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	finder := locafero.Finder{
		Paths: []string{".", DefaultConfigDir},
		Names: locafero.NameWithExtensions("telepult", viper.SupportedExts...),
		Type:  locafero.FileTypeFile,
	}
	if configFile != "" {
		path, file := filepath.Split(configFile)
		finder.Paths = []string{path}
		finder.Names = []string{file}
	}

	v := viper.NewWithOptions(viper.WithFinder(finder))

	v.SetDefault("bot-token", "")
	v.SetDefault("operator-chat", 0)
	v.SetDefault("allowed-users", []int64{})
	v.SetDefault("database-dir", DefaultDatabaseDir)
	v.SetDefault("screenshot-poll-seconds", 0)
	v.SetDefault("retention-seconds", 0)
	v.SetDefault("log-flush-seconds", 0)

	v.SetEnvPrefix("TELEPULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" || !errors.As(err, &errViperConfigNotFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
