package xpath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand resolves a leading "~/" to the user's home directory and
// environment variables ("$XDG_CONFIG_HOME/predictctl").
func Expand(rawPath string) (string, error) {
	rawPath = os.ExpandEnv(rawPath)
	switch {
	case rawPath == "~":
		return os.UserHomeDir()
	case strings.HasPrefix(rawPath, "~/"):
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to get user home dir: %w", err)
		}
		return filepath.Join(homeDir, rawPath[2:]), nil
	}
	return rawPath, nil
}

// DefaultDataDir is the directory used when none is configured.
func DefaultDataDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Expand("~/.predictctl")
	}
	return filepath.Join(configDir, "predictctl"), nil
}
