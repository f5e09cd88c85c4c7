package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/tinyland-inc/aobridge/pkg/config"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

const Logo = "🌉"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// GetConfigPath returns AOBRIDGE_CONFIG when set, else ~/.aobridge/config.json.
func GetConfigPath() string {
	if p := os.Getenv("AOBRIDGE_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aobridge", "config.json")
}

func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(GetConfigPath())
}

// LoadValidConfig loads the configuration, applies its log level and checks
// that everything role needs is present.
func LoadValidConfig(role config.Role, debug bool) (*config.Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	SetupLogging(cfg.Log.Level, debug)
	if err := cfg.Validate(role); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogging applies the configured level; debug always wins.
func SetupLogging(level string, debug bool) {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
		return
	}
	if level != "" {
		logger.SetLevel(logger.ParseLevel(level))
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
