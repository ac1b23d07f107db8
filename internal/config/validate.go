package config

import (
	"fmt"
	"net"
	"strings"
)

var (
	validPlayers        = []string{"auto", "malgo", "command"}
	validSpeechBackends = []string{"auto", "command", "google"}
)

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := validateAudio(c.Audio); err != nil {
		return err
	}
	if err := validateSpeech(c.Speech); err != nil {
		return err
	}
	if err := validateStorage(c.Storage); err != nil {
		return err
	}
	return validateServer(c.Server)
}

func validateAudio(a AudioConfig) error {
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 192000, got: %d", a.SampleRate)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", a.Channels)
	}
	if a.OpenAttempts < 1 {
		return fmt.Errorf("audio.open_attempts must be >= 1, got: %d", a.OpenAttempts)
	}
	if !oneOf(a.Player, validPlayers) {
		return fmt.Errorf("audio.player must be one of %s, got: %s", strings.Join(validPlayers, ", "), a.Player)
	}
	if a.LevelWindowMs <= 0 {
		return fmt.Errorf("audio.level_window_ms must be > 0, got: %d", a.LevelWindowMs)
	}
	return nil
}

func validateSpeech(s SpeechConfig) error {
	if !oneOf(s.Backend, validSpeechBackends) {
		return fmt.Errorf("speech.backend must be one of %s, got: %s", strings.Join(validSpeechBackends, ", "), s.Backend)
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("speech.cache_ttl must be >= 0, got: %s", s.CacheTTL)
	}
	if s.Backend == "google" && s.Language == "" {
		return fmt.Errorf("speech.language is required for the google backend")
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	if s.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if s.Database == "" {
		return fmt.Errorf("storage.database is required")
	}
	if strings.ContainsAny(s.Database, `/\`) {
		return fmt.Errorf("storage.database must be a file name, got: %s", s.Database)
	}
	if s.AssetsDir == "" {
		return fmt.Errorf("storage.assets_dir is required")
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("server.addr must be host:port, got: %s", s.Addr)
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
