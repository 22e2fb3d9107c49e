package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) (providerID string, err error)
	Provider() string
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@barbershop.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) Provider() string { return "smtp" }

func (s *SMTPSender) Send(_ context.Context, msg Message) (string, error) {
	raw := buildMessage(s.from, msg.To, msg.Subject, msg.Body)
	return "", s.send(s.addr, nil, s.from, []string{msg.To}, []byte(raw))
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client   sendgridClient
	fromAddr string
	fromName string
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

func NewSendGridSender(cfg SendGridConfig) (*SendGridSender, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("sendgrid api key and from address required")
	}
	if cfg.FromName == "" {
		cfg.FromName = "Barbearia"
	}
	return &SendGridSender{
		client:   sendgrid.NewSendClient(cfg.APIKey),
		fromAddr: cfg.FromEmail,
		fromName: cfg.FromName,
	}, nil
}

func (s *SendGridSender) Provider() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) (string, error) {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.Body)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}
