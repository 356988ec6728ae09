package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("JSRT_REPL_HISTORY")
	os.Unsetenv("JSRT_HTTP_CONNECT_TIMEOUT_MS")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, 10_000, cfg.HTTPConnectTimeoutMS)
	assert.Equal(t, 30_000, cfg.HTTPReadTimeoutMS)
	assert.NotEmpty(t, cfg.ReplHistoryPath)
}

func TestLoadHistoryOverride(t *testing.T) {
	t.Setenv("JSRT_REPL_HISTORY", "/tmp/custom_history")
	cfg := Load()
	assert.Equal(t, "/tmp/custom_history", cfg.ReplHistoryPath)
}

func TestLoadMalformedIntFallsBack(t *testing.T) {
	t.Setenv("JSRT_HTTP_READ_TIMEOUT_MS", "not-a-number")
	cfg := Load()
	assert.Equal(t, 30_000, cfg.HTTPReadTimeoutMS)
}

func TestModuleSuffixesOrder(t *testing.T) {
	assert.Equal(t, []string{"", ".js", ".mjs"}, ModuleSuffixes)
}
