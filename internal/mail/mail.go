// Package mail isolates the email transport behind a small interface. The
// notification trigger only cares about the success/failure contract; the
// SMTP mechanics stay on this side of the boundary.
package mail

import (
	"context"
	"sync"

	gomail "github.com/wneessen/go-mail"

	"github.com/austindbirch/task_sync/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages to an external transport.
type Sender interface {
	// Send delivers one message. A nil error means the transport accepted it.
	Send(ctx context.Context, msg Message) error
	// Verify checks that the transport is reachable, for health reporting.
	Verify(ctx context.Context) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender builds a sender from the SMTP configuration.
func NewSMTPSender(cfg config.SMTP) (*SMTPSender, error) {
	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Pass),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return err
	}
	if err := m.To(msg.To); err != nil {
		return err
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return s.client.DialAndSendWithContext(ctx, m)
}

func (s *SMTPSender) Verify(ctx context.Context) error {
	if err := s.client.DialWithContext(ctx); err != nil {
		return err
	}
	return s.client.Close()
}

// Recorder is an in-memory Sender for tests and local runs. It records every
// message and can be told to fail.
type Recorder struct {
	mu        sync.Mutex
	sent      []Message
	SendErr   error // returned by Send when non-nil
	VerifyErr error // returned by Verify when non-nil
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return r.SendErr
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Verify(context.Context) error {
	return r.VerifyErr
}

// Sent returns a snapshot of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
