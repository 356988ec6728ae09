// Package config loads the small set of environment-driven settings the
// runtime needs, following the teacher's env-first configuration style
// (internal/config/config.go) rather than a config-file parser — this
// runtime has no persistent config file, only documented environment
// variables (spec §6).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ModuleSuffixes is the probe order the resolver tries (spec §4.4 step 5).
var ModuleSuffixes = []string{"", ".js", ".mjs"}

// BytecodeBoundary is the literal footer marker (spec §4.8 / §6), 22 bytes.
const BytecodeBoundary = "JSRT_BYTECODE_BOUNDARY"

// Config holds runtime-wide tunables.
type Config struct {
	// ReplHistoryPath is $JSRT_REPL_HISTORY, defaulting to $HOME/.jsrt_repl.
	ReplHistoryPath string

	// HTTPConnectTimeoutMS, HTTPReadTimeoutMS and HTTPMaxResponseBytes are
	// loaded from the environment for the fetch client's CONNECTING/READING
	// timeouts and response-size cap (§4.7); internal/httpclient does not
	// read them.
	HTTPConnectTimeoutMS int
	HTTPReadTimeoutMS    int
	HTTPMaxResponseBytes int

	// LogLevel / LogFormat are loaded from the environment; no caller passes
	// them to pkg/logger.LoggingConfig.
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, applying documented
// defaults for anything unset. It never fails: missing or malformed values
// fall back silently, mirroring the teacher's tolerant env parsing.
//
// A .env file in the working directory is loaded first, if present, the
// same way the teacher's cmd/appserver picks up local overrides — errors
// loading it are ignored since .env is optional in every environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ReplHistoryPath:      defaultHistoryPath(),
		HTTPConnectTimeoutMS: envInt("JSRT_HTTP_CONNECT_TIMEOUT_MS", 10_000),
		HTTPReadTimeoutMS:    envInt("JSRT_HTTP_READ_TIMEOUT_MS", 30_000),
		HTTPMaxResponseBytes: envInt("JSRT_HTTP_MAX_RESPONSE_BYTES", 0),
		LogLevel:             envString("JSRT_LOG_LEVEL", "info"),
		LogFormat:            envString("JSRT_LOG_FORMAT", "text"),
	}
	if v := strings.TrimSpace(os.Getenv("JSRT_REPL_HISTORY")); v != "" {
		cfg.ReplHistoryPath = v
	}
	return cfg
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".jsrt_repl"
	}
	return home + string(os.PathSeparator) + ".jsrt_repl"
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
