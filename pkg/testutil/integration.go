package testutil

import (
	"os"
	"testing"
)

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireEnv returns the value of an environment variable, skipping the test
// when it is unset. Tests against external databases read their DSN this way.
func RequireEnv(t *testing.T, name string) string {
	t.Helper()
	IntegrationTest(t)
	v := os.Getenv(name)
	if v == "" {
		t.Skipf("Skipping: %s is not set", name)
	}
	return v
}
