package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.tmz, or $TMZ_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("TMZ_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tmz")
}

// CacheDBPath returns the cache.db path.
func CacheDBPath() string {
	return filepath.Join(BaseDir(), "cache.db")
}

// TokensPath returns the credential bundle file path.
func TokensPath() string {
	return filepath.Join(BaseDir(), "tokens.json")
}

// PIDPath returns the daemon PID marker path.
func PIDPath() string {
	return filepath.Join(BaseDir(), "tmzd.pid")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "tmzd.log")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDirs creates the base directory tree with owner-only permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
