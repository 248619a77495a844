package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/systmms/secretcron/internal/cache"
)

// WriteDotenv writes vars as KEY=value lines to dir/.env and returns the path.
// Keys are written sorted so failures are easy to diff.
func WriteDotenv(t *testing.T, dir string, vars map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(vars[key])
		b.WriteByte('\n')
	}

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// SeedCache writes a cache record for secretID. A nil next leaves the
// rotation date unset.
func SeedCache(t *testing.T, store *cache.Store, secretID, secret string, next *time.Time) {
	t.Helper()
	require.NoError(t, store.Save(secretID, &cache.Record{
		Secret:           cache.EncodeSecret(secret),
		NextRotationDate: next,
	}))
}

// WriteRawCache writes data verbatim as the cache file for secretID, for
// exercising malformed records.
func WriteRawCache(t *testing.T, store *cache.Store, secretID string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(store.Dir(), 0o700))
	require.NoError(t, os.WriteFile(store.Path(secretID), data, 0o600))
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
