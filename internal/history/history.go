// Package history keeps a per-secret record of what each check and refresh run did.
package history

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/systmms/secretcron/internal/rotation"
)

const timestampLayout = "20060102-150405"

// Entry is one secret's result in one run.
type Entry struct {
	RunID        string           `json:"runId" yaml:"runId"`
	Timestamp    time.Time        `json:"timestamp" yaml:"timestamp"`
	Command      string           `json:"command" yaml:"command"`
	SecretID     string           `json:"secretId" yaml:"secretId"`
	Action       rotation.Action  `json:"action,omitempty" yaml:"action,omitempty"`
	Outcome      rotation.Outcome `json:"outcome" yaml:"outcome"`
	NextRotation *time.Time       `json:"nextRotationDate,omitempty" yaml:"nextRotationDate,omitempty"`
	Armed        bool             `json:"armed" yaml:"armed"`
	EmailSent    bool             `json:"emailSent" yaml:"emailSent"`
	Error        string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store writes history entries as JSON files under dir/<secret>/.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the history directory.
func (s *Store) Dir() string {
	return s.dir
}

// Record saves one entry per result in report.
func (s *Store) Record(command string, report *rotation.Report) error {
	if report == nil {
		return nil
	}
	for _, res := range report.Results {
		entry := &Entry{
			RunID:        report.RunID,
			Timestamp:    report.FinishedAt.UTC(),
			Command:      command,
			SecretID:     res.SecretID,
			Action:       res.Action,
			Outcome:      res.Outcome,
			NextRotation: res.NextRotation,
			Armed:        res.Armed,
			EmailSent:    res.EmailSent,
			Error:        res.Error,
		}
		if err := s.Save(entry); err != nil {
			return err
		}
	}
	return nil
}

// Save writes entry.
func (s *Store) Save(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, url.PathEscape(entry.SecretID))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	run := entry.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.json", entry.Timestamp.UTC().Format(timestampLayout), run))
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// List returns the newest entries for secretID first. A limit <= 0 returns all.
func (s *Store) List(secretID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(filepath.Join(s.dir, url.PathEscape(secretID)), limit)
}

func (s *Store) list(dir string, limit int) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() > files[j].Name()
	})

	entries := []Entry{}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// ListAll returns the newest entries across all secrets first.
func (s *Store) ListAll(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	all := []Entry{}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		entries, err := s.list(filepath.Join(s.dir, d.Name()), 0)
		if err != nil {
			continue
		}
		all = append(all, entries...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Latest returns the newest entry for secretID, or nil.
func (s *Store) Latest(secretID string) (*Entry, error) {
	entries, err := s.List(secretID, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Prune removes entries written before cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".json" {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), ".json")
		if len(stem) < len(timestampLayout) {
			return nil
		}
		ts, perr := time.Parse(timestampLayout, stem[:len(timestampLayout)])
		if perr != nil || !ts.Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}
