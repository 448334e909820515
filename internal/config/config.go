// Package config loads and saves the user configuration at ~/.tmz/config.toml.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the global config.toml.
type Config struct {
	Logging LoggingConfig     `toml:"logging"`
	Sync    SyncConfig        `toml:"sync"`
	Aliases map[string]string `toml:"aliases"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// SyncConfig tunes the background sync cadence and depth.
type SyncConfig struct {
	TopConversations        int `toml:"top_conversations"`
	MessagesPerConversation int `toml:"messages_per_conversation"`
	SyncIntervalMinutes     int `toml:"sync_interval_minutes"`
	RefreshIntervalMinutes  int `toml:"refresh_interval_minutes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Sync: SyncConfig{
			TopConversations:        30,
			MessagesPerConversation: 50,
			SyncIntervalMinutes:     5,
			RefreshIntervalMinutes:  50,
		},
		Aliases: map[string]string{},
	}
}

// Load reads config from the given path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize backfills defaults for fields the file left unset.
func (c *Config) normalize() {
	d := Default()
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Sync.TopConversations <= 0 {
		c.Sync.TopConversations = d.Sync.TopConversations
	}
	if c.Sync.MessagesPerConversation <= 0 {
		c.Sync.MessagesPerConversation = d.Sync.MessagesPerConversation
	}
	if c.Sync.SyncIntervalMinutes <= 0 {
		c.Sync.SyncIntervalMinutes = d.Sync.SyncIntervalMinutes
	}
	if c.Sync.RefreshIntervalMinutes <= 0 {
		c.Sync.RefreshIntervalMinutes = d.Sync.RefreshIntervalMinutes
	}
	if c.Aliases == nil {
		c.Aliases = map[string]string{}
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ResolveAlias looks up a target in the alias map, exact match first, then
// case-insensitive. Returns the mapped value and whether a match was found.
func (c *Config) ResolveAlias(name string) (string, bool) {
	if v, ok := c.Aliases[name]; ok {
		return v, true
	}
	lower := strings.ToLower(name)
	for k, v := range c.Aliases {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return "", false
}

// AddAlias sets one alias key and writes the updated config back to disk.
func AddAlias(path, name, value string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	cfg.Aliases[name] = value
	return Save(path, cfg)
}

// RemoveAlias deletes one alias key and writes the updated config back.
// Removing an absent alias is not an error.
func RemoveAlias(path, name string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	delete(cfg.Aliases, name)
	return Save(path, cfg)
}
