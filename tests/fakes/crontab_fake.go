package fakes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// FakeCrontab is an in-memory crontab that satisfies exec.CommandExecutor.
// It understands "crontab -l" and "crontab -"; anything else fails.
type FakeCrontab struct {
	mu sync.Mutex

	// Content is the installed table. Installed=false simulates a user with no crontab.
	Content   string
	Installed bool

	// ReadErr and WriteErr make -l and - fail.
	ReadErr  error
	WriteErr error
	// Missing makes LookPath fail.
	Missing bool

	Reads  int
	Writes int
}

// NewFakeCrontab returns a fake with no crontab installed.
func NewFakeCrontab() *FakeCrontab {
	return &FakeCrontab{}
}

// WithLines installs a table made of lines.
func (f *FakeCrontab) WithLines(lines ...string) *FakeCrontab {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Installed = true
	f.Content = strings.Join(lines, "\n")
	if len(lines) > 0 {
		f.Content += "\n"
	}
	return f
}

// Lines returns the non-empty lines of the installed table.
func (f *FakeCrontab) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, line := range strings.Split(f.Content, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// LinesContaining returns installed lines that contain substr.
func (f *FakeCrontab) LinesContaining(substr string) []string {
	var out []string
	for _, line := range f.Lines() {
		if strings.Contains(line, substr) {
			out = append(out, line)
		}
	}
	return out
}

// Execute handles "crontab -l".
func (f *FakeCrontab) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(args) != 1 || args[0] != "-l" {
		return nil, []byte("usage: crontab [-l | -]\n"), fmt.Errorf("unexpected invocation: %s %v", name, args)
	}
	f.Reads++
	if f.ReadErr != nil {
		return nil, []byte(f.ReadErr.Error()), f.ReadErr
	}
	if !f.Installed {
		return nil, []byte("no crontab for tester\n"), errors.New("exit status 1")
	}
	return []byte(f.Content), nil, nil
}

// ExecuteWithInput handles "crontab -".
func (f *FakeCrontab) ExecuteWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(args) != 1 || args[0] != "-" {
		return nil, []byte("usage: crontab [-l | -]\n"), fmt.Errorf("unexpected invocation: %s %v", name, args)
	}
	if f.WriteErr != nil {
		return nil, []byte(f.WriteErr.Error()), f.WriteErr
	}
	f.Writes++
	f.Installed = true
	f.Content = string(input)
	return nil, nil, nil
}

// LookPath reports the crontab binary as present unless Missing is set.
func (f *FakeCrontab) LookPath(name string) (string, error) {
	if f.Missing {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}
