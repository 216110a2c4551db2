package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"
)

const envHome = "STEPWISE_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the stepwise home directory.
//
// Resolution order:
//  1. $STEPWISE_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. ~/.stepwise
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// SearchDirs returns the directories searched for stepwise.yaml after the working directory.
func SearchDirs() []string {
	return []string{GetHome()}
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if dir, err := homedir.Expand("~/.stepwise"); err == nil {
		return dir
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
