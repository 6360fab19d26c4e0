package testutil

import (
	"os"
	"testing"
)

// ConfigEnv lists the environment variables that override config files.
var ConfigEnv = []string{"KEEPA_API_KEY", "FBASCOUT_DB", "LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR"}

// ClearConfigEnv blanks every config override for the duration of t, so a
// developer's shell doesn't leak into tests that load config.
func ClearConfigEnv(t testing.TB) {
	t.Helper()
	for _, name := range ConfigEnv {
		t.Setenv(name, "")
	}
}

// KeepaTestKey is the API key stub servers expect. TEST_KEEPA_API_KEY
// overrides it.
func KeepaTestKey() string {
	if key := os.Getenv("TEST_KEEPA_API_KEY"); key != "" {
		return key
	}
	return "test-key"
}
