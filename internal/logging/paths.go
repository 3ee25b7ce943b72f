package logging

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory holding feedsearch state and logs.
const HomeEnv = "FEEDSEARCH_HOME"

// BaseDir returns ~/.feedsearch, or $FEEDSEARCH_HOME when set.
// Falls back to the temp directory if the home directory is unavailable.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".feedsearch")
	}
	return filepath.Join(home, ".feedsearch")
}

// DefaultLogDir returns the default log directory.
func DefaultLogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "feedsearch.log")
}
