// Package cache persists one JSON record per secret ID under a cache directory.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sys/unix"
)

var (
	// ErrNotFound is returned by Load when no record exists for a secret ID.
	ErrNotFound = errors.New("cache record not found")
	// ErrMalformed is returned by Load when a record exists but cannot be used.
	ErrMalformed = errors.New("cache record malformed")
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// recordSchema describes the on-disk cache record.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["secret"],
  "properties": {
    "secret": {},
    "nextRotationDate": {
      "oneOf": [
        {"type": "null"},
        {"type": "string", "format": "date-time"}
      ]
    }
  }
}`

// Record is the cached copy of one secret.
type Record struct {
	// Secret is the provider value. JSON secrets are stored as-is, anything else as a JSON string.
	Secret json.RawMessage `json:"secret"`
	// NextRotationDate is nil when the provider did not report one.
	NextRotationDate *time.Time `json:"nextRotationDate"`
}

// HasRotationDate reports whether the record carries a next rotation date.
func (r *Record) HasRotationDate() bool {
	return r != nil && r.NextRotationDate != nil && !r.NextRotationDate.IsZero()
}

// Store reads and writes cache records.
type Store struct {
	dir    string
	schema *gojsonschema.Schema
}

// NewStore returns a store rooted at dir. The directory is created on first write.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile cache schema: %w", err)
	}
	return &Store{dir: dir, schema: schema}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record file for secretID. IDs are path-escaped so ARNs and
// hierarchical names map to a single file inside the cache directory.
func (s *Store) Path(secretID string) string {
	return filepath.Join(s.dir, url.PathEscape(secretID)+".json")
}

// Load reads the record for secretID. A missing file yields ErrNotFound and an
// unparsable or invalid file yields an error wrapping ErrMalformed.
func (s *Store) Load(secretID string) (*Record, error) {
	data, err := os.ReadFile(s.Path(secretID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := s.validate(data); err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &rec, nil
}

func (s *Store) validate(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: not valid JSON", ErrMalformed)
	}
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		msg := "schema validation failed"
		if errs := result.Errors(); len(errs) > 0 {
			msg = errs[0].String()
		}
		return fmt.Errorf("%w: %s", ErrMalformed, msg)
	}
	return nil
}

// Save writes rec for secretID. The write holds an exclusive flock on a sibling
// lock file and replaces the record with a rename, so readers never see a partial file.
func (s *Store) Save(secretID string, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil cache record for %s", secretID)
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	out := *rec
	if len(out.Secret) == 0 {
		out.Secret = json.RawMessage("null")
	}
	if out.NextRotationDate != nil {
		t := out.NextRotationDate.UTC()
		out.NextRotationDate = &t
	}
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache record: %w", err)
	}

	path := s.Path(secretID)
	unlock, err := lockFile(path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return fmt.Errorf("failed to set cache file permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// lockFile takes an exclusive flock on path and returns the release func.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock cache file: %w", err)
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}

// EncodeSecret turns a provider secret string into the cached JSON value.
// Valid JSON is kept verbatim; anything else is stored as a JSON string.
func EncodeSecret(value string) json.RawMessage {
	if value != "" && json.Valid([]byte(value)) {
		return json.RawMessage(value)
	}
	quoted, _ := json.Marshal(value)
	return quoted
}
