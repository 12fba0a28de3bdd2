package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

// PathManager handles cross-platform path resolution for promptgen data
type PathManager struct {
	homeDir string
	dataDir string
}

// NewPathManager creates a path manager rooted at ~/.promptgen
func NewPathManager() *PathManager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &PathManager{
		homeDir: homeDir,
		dataDir: filepath.Join(homeDir, ".promptgen"),
	}
}

// NewPathManagerAt roots all data under dir.
func NewPathManagerAt(dir string) *PathManager {
	homeDir, _ := os.UserHomeDir()
	return &PathManager{homeDir: homeDir, dataDir: dir}
}

// GetDataDir returns the main data directory, creating it if needed
func (pm *PathManager) GetDataDir() (string, error) {
	if err := os.MkdirAll(pm.dataDir, 0755); err != nil {
		return "", err
	}
	return pm.dataDir, nil
}

// GetDatabasePath returns the path for the key-value database
func (pm *PathManager) GetDatabasePath() (string, error) {
	return pm.file("promptgen.db")
}

// GetStatePath returns the path for the CLI session state file
func (pm *PathManager) GetStatePath() (string, error) {
	return pm.file("session.toml")
}

// GetLogPath returns the path for the log file
func (pm *PathManager) GetLogPath() (string, error) {
	return pm.file("promptgen.log")
}

func (pm *PathManager) file(name string) (string, error) {
	dir, err := pm.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// GetPlatformInfo returns platform-specific information
func (pm *PathManager) GetPlatformInfo() map[string]string {
	return map[string]string{
		"os":       runtime.GOOS,
		"arch":     runtime.GOARCH,
		"home_dir": pm.homeDir,
		"data_dir": pm.dataDir,
	}
}
