package internal

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/aobridge/pkg/config"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("AOBRIDGE_CONFIG", "")
	assert.True(t, strings.HasSuffix(GetConfigPath(), filepath.Join(".aobridge", "config.json")))

	t.Setenv("AOBRIDGE_CONFIG", "/etc/aobridge.json")
	assert.Equal(t, "/etc/aobridge.json", GetConfigPath())
}

func TestSetupLogging(t *testing.T) {
	prev := logger.GetLevel()
	defer logger.SetLevel(prev)

	SetupLogging("warn", false)
	assert.Equal(t, logger.WARN, logger.GetLevel())

	SetupLogging("warn", true)
	assert.Equal(t, logger.DEBUG, logger.GetLevel())
}

func TestLoadValidConfig_ReportsMissing(t *testing.T) {
	t.Setenv("AOBRIDGE_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
	for _, key := range []string{"DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID", "AOS_WALLET_PATH", "AOS_PID", "GETTING_STARTED_PID"} {
		t.Setenv(key, "")
	}

	_, err := LoadValidConfig(config.RoleAll, false)
	require.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "DISCORD_BOT_TOKEN")
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", FormatVersion())
	_, goVer := FormatBuildInfo()
	assert.NotEmpty(t, goVer)
}
