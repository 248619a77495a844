package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	dserrors "github.com/systmms/secretcron/internal/errors"
)

// Mailer transports selectable with NOTIFIER.
const (
	MailerSES  = "ses"
	MailerSMTP = "smtp"
)

// SESClientAPI is the subset of the SES v2 client used here.
type SESClientAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends plain-text mail through Amazon SES. The client is created
// on the first Send, so broken AWS configuration fails the emails and nothing else.
type SESMailer struct {
	loadConfig func(ctx context.Context) (aws.Config, error)
	endpoint   string

	once   sync.Once
	client SESClientAPI
	err    error
}

// SESOption configures an SESMailer.
type SESOption func(*SESMailer)

// WithSESClient sets a custom client (for testing)
func WithSESClient(client SESClientAPI) SESOption {
	return func(m *SESMailer) {
		m.client = client
	}
}

// WithSESEndpoint points the client at a custom endpoint such as LocalStack.
func WithSESEndpoint(endpoint string) SESOption {
	return func(m *SESMailer) {
		m.endpoint = endpoint
	}
}

// NewSESMailer returns a mailer whose client is built from loadConfig.
func NewSESMailer(loadConfig func(ctx context.Context) (aws.Config, error), opts ...SESOption) *SESMailer {
	m := &SESMailer{loadConfig: loadConfig}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SESMailer) sesClient(ctx context.Context) (SESClientAPI, error) {
	m.once.Do(func() {
		if m.client != nil {
			return
		}
		awsCfg, err := m.loadConfig(ctx)
		if err != nil {
			m.err = err
			return
		}
		var clientOpts []func(*sesv2.Options)
		if m.endpoint != "" {
			endpoint := m.endpoint
			clientOpts = append(clientOpts, func(o *sesv2.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		m.client = sesv2.NewFromConfig(awsCfg, clientOpts...)
	})
	return m.client, m.err
}

// Send delivers msg with ses:SendEmail.
func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	client, err := m.sesClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	_, err = client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(sanitizeHeader(msg.Subject)),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.Body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", dserrors.ProviderError("aws.ses", "SendEmail", err))
	}
	return nil
}
