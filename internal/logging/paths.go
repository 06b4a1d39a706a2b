package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the directory for logseek log files (~/.logseek/logs).
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "logseek", "logs")
	}
	return filepath.Join(home, ".logseek", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "logseek.log")
}

// EnsureLogDir creates the log directory if it does not exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
