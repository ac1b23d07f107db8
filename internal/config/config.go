package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RootConfig is the layout of the configuration file: base settings plus named
// profiles that override them.
type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config,omitempty"`
	Config       `mapstructure:",squash" yaml:",inline"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs,omitempty"`
}

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Speech  SpeechConfig  `mapstructure:"speech" yaml:"speech"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`

	// Profile is the name of the applied profile, empty for the base settings.
	Profile string `mapstructure:"-" yaml:"profile,omitempty"`
}

type AudioConfig struct {
	SampleRate    int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels      int    `mapstructure:"channels" yaml:"channels"`
	Device        string `mapstructure:"device" yaml:"device"`               // capture device name or substring, empty for default
	OpenAttempts  int    `mapstructure:"open_attempts" yaml:"open_attempts"` // capture device acquisition attempts
	Player        string `mapstructure:"player" yaml:"player"`               // "auto", "malgo", "command"
	LevelWindowMs int    `mapstructure:"level_window_ms" yaml:"level_window_ms"`
}

type SpeechConfig struct {
	Backend           string        `mapstructure:"backend" yaml:"backend"` // "auto", "command", "google"
	Voice             string        `mapstructure:"voice" yaml:"voice"`
	Language          string        `mapstructure:"language" yaml:"language"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	GoogleCredentials string        `mapstructure:"google_credentials" yaml:"google_credentials"`
}

type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	Database  string `mapstructure:"database" yaml:"database"`
	AssetsDir string `mapstructure:"assets_dir" yaml:"assets_dir"`
}

type ReportConfig struct {
	SentryDSN string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Metrics   bool   `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:    44100,
			Channels:      1,
			OpenAttempts:  1,
			Player:        "auto",
			LevelWindowMs: 200,
		},
		Speech: SpeechConfig{
			Backend:  "auto",
			Language: "en-US",
			CacheTTL: 10 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir:   filepath.Join("~", ".local", "share", "voicecards"),
			Database:  "items.db",
			AssetsDir: "assets",
		},
		Report: ReportConfig{
			Metrics: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8089",
		},
	}
}

// DefaultConfigPath returns $HOME/.config/voicecards.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "voicecards.yaml"
	}
	return filepath.Join(homeDir, ".config", "voicecards.yaml")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.device", d.Audio.Device)
	v.SetDefault("audio.open_attempts", d.Audio.OpenAttempts)
	v.SetDefault("audio.player", d.Audio.Player)
	v.SetDefault("audio.level_window_ms", d.Audio.LevelWindowMs)
	v.SetDefault("speech.backend", d.Speech.Backend)
	v.SetDefault("speech.voice", d.Speech.Voice)
	v.SetDefault("speech.language", d.Speech.Language)
	v.SetDefault("speech.cache_ttl", d.Speech.CacheTTL)
	v.SetDefault("speech.google_credentials", d.Speech.GoogleCredentials)
	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.database", d.Storage.Database)
	v.SetDefault("storage.assets_dir", d.Storage.AssetsDir)
	v.SetDefault("report.sentry_dsn", d.Report.SentryDSN)
	v.SetDefault("report.metrics", d.Report.Metrics)
	v.SetDefault("server.addr", d.Server.Addr)
}

// LoadWithProfile reads configFile and applies the named profile on top of the base
// settings. An empty configFile means the default path, which may be absent. An empty
// profile falls back to active_config.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VOICECARDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigPath()
	}

	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = root.ActiveConfig
	}

	selected := &root.Config
	if configName != "" && configName != "default" {
		p, exists := root.Configs[configName]
		if !exists || p == nil {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		selected = mergeConfigs(&root.Config, p)
		selected.Profile = configName
	}

	selected.Storage.DataDir = expandPath(selected.Storage.DataDir)
	selected.Speech.GoogleCredentials = expandPath(selected.Speech.GoogleCredentials)

	if err := selected.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selected, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// mergeConfigs overlays every non-zero profile setting onto base.
func mergeConfigs(base, profile *Config) *Config {
	result := *base
	if profile == nil {
		return &result
	}

	if profile.Audio.SampleRate != 0 {
		result.Audio.SampleRate = profile.Audio.SampleRate
	}
	if profile.Audio.Channels != 0 {
		result.Audio.Channels = profile.Audio.Channels
	}
	if profile.Audio.Device != "" {
		result.Audio.Device = profile.Audio.Device
	}
	if profile.Audio.OpenAttempts != 0 {
		result.Audio.OpenAttempts = profile.Audio.OpenAttempts
	}
	if profile.Audio.Player != "" {
		result.Audio.Player = profile.Audio.Player
	}
	if profile.Audio.LevelWindowMs != 0 {
		result.Audio.LevelWindowMs = profile.Audio.LevelWindowMs
	}

	if profile.Speech.Backend != "" {
		result.Speech.Backend = profile.Speech.Backend
	}
	if profile.Speech.Voice != "" {
		result.Speech.Voice = profile.Speech.Voice
	}
	if profile.Speech.Language != "" {
		result.Speech.Language = profile.Speech.Language
	}
	if profile.Speech.CacheTTL != 0 {
		result.Speech.CacheTTL = profile.Speech.CacheTTL
	}
	if profile.Speech.GoogleCredentials != "" {
		result.Speech.GoogleCredentials = profile.Speech.GoogleCredentials
	}

	if profile.Storage.DataDir != "" {
		result.Storage.DataDir = profile.Storage.DataDir
	}
	if profile.Storage.Database != "" {
		result.Storage.Database = profile.Storage.Database
	}
	if profile.Storage.AssetsDir != "" {
		result.Storage.AssetsDir = profile.Storage.AssetsDir
	}

	if profile.Report.SentryDSN != "" {
		result.Report.SentryDSN = profile.Report.SentryDSN
	}
	if profile.Report.Metrics {
		result.Report.Metrics = true
	}

	if profile.Server.Addr != "" {
		result.Server.Addr = profile.Server.Addr
	}

	return &result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// DatabasePath returns the item database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.Database)
}

// AssetsPath returns the asset directory.
func (c *Config) AssetsPath() string {
	if filepath.IsAbs(c.Storage.AssetsDir) {
		return c.Storage.AssetsDir
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.AssetsDir)
}

// LogPath returns the log file used while the interactive UI owns the terminal.
func (c *Config) LogPath() string {
	return filepath.Join(c.Storage.DataDir, "voicecards.log")
}

// LevelWindow returns the input level window as a duration.
func (c *Config) LevelWindow() time.Duration {
	return time.Duration(c.Audio.LevelWindowMs) * time.Millisecond
}
