package fakes

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/systmms/secretcron/internal/notify"
)

// FakeSESClient records SendEmail calls.
type FakeSESClient struct {
	mu sync.Mutex

	Inputs []*sesv2.SendEmailInput
	// Err is returned by every SendEmail when set.
	Err error
}

// SendEmail records params.
func (f *FakeSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Inputs = append(f.Inputs, params)
	return &sesv2.SendEmailOutput{MessageId: aws.String("fake-message-id")}, nil
}

// Messages returns the recorded emails as notify messages.
func (f *FakeSESClient) Messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Message, 0, len(f.Inputs))
	for _, in := range f.Inputs {
		msg := notify.Message{From: aws.ToString(in.FromEmailAddress)}
		if in.Destination != nil && len(in.Destination.ToAddresses) > 0 {
			msg.To = in.Destination.ToAddresses[0]
		}
		if in.Content != nil && in.Content.Simple != nil {
			if in.Content.Simple.Subject != nil {
				msg.Subject = aws.ToString(in.Content.Simple.Subject.Data)
			}
			if in.Content.Simple.Body != nil && in.Content.Simple.Body.Text != nil {
				msg.Body = aws.ToString(in.Content.Simple.Body.Text.Data)
			}
		}
		out = append(out, msg)
	}
	return out
}
