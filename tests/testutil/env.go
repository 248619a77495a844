package testutil

import (
	"os"
	"testing"
)

// SetupTestEnv sets environment variables for the duration of a test and
// restores the previous values on cleanup. Tests using it must not call
// t.Parallel.
//
//	SetupTestEnv(t, map[string]string{
//	    "AWS_SECRET_IDS":  "db-creds",
//	    "RECIPIENT_EMAIL": "ops@example.com",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		restoreOnCleanup(t, key)
		if err := os.Setenv(key, value); err != nil {
			t.Fatalf("Failed to set environment variable %s: %v", key, err)
		}
	}
}

// UnsetTestEnv removes keys from the environment for the duration of a test,
// so values from the developer's shell cannot leak into config loading.
func UnsetTestEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		restoreOnCleanup(t, key)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset environment variable %s: %v", key, err)
		}
	}
}

func restoreOnCleanup(t *testing.T, key string) {
	t.Helper()
	orig, had := os.LookupEnv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, orig)
			return
		}
		_ = os.Unsetenv(key)
	})
}
