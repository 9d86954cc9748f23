//nolint:revive // var-naming - package name is meaningful
package util

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the marksync home directory.
const HomeEnv = "MARKSYNC_HOME"

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// MarksyncHome returns the directory holding config and state,
// $MARKSYNC_HOME or ~/.marksync.
func MarksyncHome() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	return filepath.Join(HomeDir(), ".marksync")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(MarksyncHome(), "config.yaml")
}

// StatePath returns the default JSON state file path.
func StatePath() string {
	return filepath.Join(MarksyncHome(), "state.json")
}

// BoltStatePath returns the default bbolt state database path.
func BoltStatePath() string {
	return filepath.Join(MarksyncHome(), "state.db")
}

// ExpandPath replaces a leading ~ with the home directory.
func ExpandPath(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}
