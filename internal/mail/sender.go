package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mailgun/mailgun-go/v4"
)

// Sender delivers one outbound envelope.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// TransportError wraps any failure delivering an envelope. By the time it
// occurs the turn is already persisted; callers log it and move on.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MailgunSender sends envelopes through the Mailgun messages API.
type MailgunSender struct {
	mg     *mailgun.MailgunImpl
	client *http.Client
}

func NewMailgunSender(domain, apiKey, apiBase string) *MailgunSender {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunSender{mg: mg, client: &http.Client{}}
}

func (s *MailgunSender) Send(ctx context.Context, env Envelope) error {
	// mailgun-go posts a subject field even when it is empty. A reply to a
	// subject-less email must omit the field entirely, or Mailgun cannot
	// apply its own thread-continuation default, so that case posts the form
	// directly.
	if env.Subject == "" {
		return s.sendWithoutSubject(ctx, env)
	}

	msg := s.mg.NewMessage(env.From, env.Subject, env.Text, env.To)
	if env.InReplyTo != "" {
		msg.AddHeader("In-Reply-To", env.InReplyTo)
	}
	if _, _, err := s.mg.Send(ctx, msg); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func (s *MailgunSender) sendWithoutSubject(ctx context.Context, env Envelope) error {
	form := url.Values{}
	form.Set("from", env.From)
	form.Set("to", env.To)
	form.Set("text", env.Text)
	if env.InReplyTo != "" {
		form.Set("h:In-Reply-To", env.InReplyTo)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.mg.APIBase(), s.mg.Domain())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Err: err}
	}
	req.SetBasicAuth("api", s.mg.APIKey())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))}
	}
	return nil
}
