package fakes

import (
	"context"
	"sync"

	"github.com/systmms/secretcron/internal/notify"
)

// FakeMailer records messages instead of sending them.
type FakeMailer struct {
	mu sync.Mutex

	Sent []notify.Message
	// Err is returned by every Send when set.
	Err error
}

// Send records msg.
func (f *FakeMailer) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (f *FakeMailer) Messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.Sent...)
}
