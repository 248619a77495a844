package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/secretcron/internal/logging"
)

// LogBuffer is a concurrency-safe buffer for captured log output.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the non-empty logged lines.
func (b *LogBuffer) Lines() []string {
	var out []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// NewTestLogger returns an uncolored logger writing into the returned buffer.
//
//	logger, logs := NewTestLogger(t, true)
//	logger.Debug("value: %s", logging.Secret("hunter2"))
//	AssertNoSecretLeak(t, logs.String(), "hunter2")
func NewTestLogger(t *testing.T, debug bool) (*logging.Logger, *LogBuffer) {
	t.Helper()
	buf := &LogBuffer{}
	return logging.NewWithWriter(buf, debug, true), buf
}

// AssertNoSecretLeak fails if any of secrets appears in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets ...string) {
	t.Helper()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, output, secret, "secret value leaked into output")
	}
}
