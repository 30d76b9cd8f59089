package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings holds all configuration values
type Settings struct {
	// Server configuration
	Server struct {
		URL     string
		Token   string
		Timeout time.Duration
	}

	// Stream configuration
	Stream struct {
		// Fixed delay before redialing after a completed assistant turn.
		ReconnectDelay time.Duration
		// Base delay of the exponential backoff schedule.
		BackoffBase time.Duration
		// Upper bound of the backoff schedule.
		BackoffCap time.Duration
	}

	// Warmup (cold-start detection) configuration
	Warmup struct {
		InitialTimeout time.Duration
		PollInterval   time.Duration
		MaxWait        time.Duration
	}

	// Conversation persistence
	Conversation struct {
		File string
	}

	// Logging configuration
	Logging struct {
		LogFile string
		Persist bool
		Level   string
	}

	// ConfigFile stores the path to the config file used
	ConfigFile string
}

// Global settings instance
var Global *Settings

// Init initializes the configuration system
func Init(cfgFile string) error {
	Global = &Settings{}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		Global.ConfigFile = cfgFile
	} else {
		viper.AddConfigPath("./.parley")
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
		Global.ConfigFile = ".parley/settings.yaml"
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.BindEnv("server.url", "PARLEY_SERVER_URL")
	viper.BindEnv("server.token", "PARLEY_TOKEN")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	return Load()
}

// setDefaults sets all default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.timeout", "30s")

	// Stream defaults
	viper.SetDefault("stream.reconnect_delay", "250ms")
	viper.SetDefault("stream.backoff_base", "1s")
	viper.SetDefault("stream.backoff_cap", "16s")

	// Warmup defaults
	viper.SetDefault("warmup.initial_timeout", "3s")
	viper.SetDefault("warmup.poll_interval", "2s")
	viper.SetDefault("warmup.max_wait", "60s")

	// Conversation defaults
	viper.SetDefault("conversation.file", "conversation.json")

	// Logging defaults
	viper.SetDefault("logging.log_file", "system.log")
	viper.SetDefault("logging.persist", false)
	viper.SetDefault("logging.level", "info")
}

// Load loads configuration from viper into the Settings struct
func Load() error {
	Global.Server.URL = viper.GetString("server.url")
	Global.Server.Token = viper.GetString("server.token")
	Global.Server.Timeout = viper.GetDuration("server.timeout")

	Global.Stream.ReconnectDelay = viper.GetDuration("stream.reconnect_delay")
	Global.Stream.BackoffBase = viper.GetDuration("stream.backoff_base")
	Global.Stream.BackoffCap = viper.GetDuration("stream.backoff_cap")

	Global.Warmup.InitialTimeout = viper.GetDuration("warmup.initial_timeout")
	Global.Warmup.PollInterval = viper.GetDuration("warmup.poll_interval")
	Global.Warmup.MaxWait = viper.GetDuration("warmup.max_wait")

	Global.Conversation.File = viper.GetString("conversation.file")

	Global.Logging.LogFile = viper.GetString("logging.log_file")
	Global.Logging.Persist = viper.GetBool("logging.persist")
	Global.Logging.Level = viper.GetString("logging.level")

	if Global.Server.URL == "" {
		return fmt.Errorf("server.url must not be empty")
	}

	return nil
}

// Get returns the global settings, initializing defaults if Init was never
// called (primarily for tests).
func Get() *Settings {
	if Global == nil {
		Global = &Settings{}
		setDefaults()
		if err := Load(); err != nil {
			panic(err)
		}
	}
	return Global
}

// SettingsDir returns the directory holding the active config file. Files
// the client persists, the conversation identity and the log file, live
// alongside it. Tests point it somewhere disposable via settings.dir.
func SettingsDir() string {
	if dir := viper.GetString("settings.dir"); dir != "" {
		return dir
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return filepath.Dir(used)
	}
	if Global != nil && Global.ConfigFile != "" {
		return filepath.Dir(Global.ConfigFile)
	}
	return ".parley"
}

// BuildSettingsPath resolves target inside the settings directory.
func BuildSettingsPath(target string) string {
	return filepath.Join(SettingsDir(), target)
}
