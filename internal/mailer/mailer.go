// Package mailer renders and delivers account emails.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sendcertificates/server/internal/config"
	log "github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when a host is configured, otherwise a sender
// that only logs.
func New(cfg config.MailConfig) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		log.Warn("mail: smtp host not configured, emails will be logged only")
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg config.MailConfig
}

var errNoRecipient = errors.New("mail: missing recipient")

// Send builds the message and delivers it in a single SMTP session.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errNoRecipient
	}
	m := gomail.NewMsg()
	if errFrom := m.From(s.cfg.From); errFrom != nil {
		return fmt.Errorf("mail: from: %w", errFrom)
	}
	if errTo := m.To(msg.To); errTo != nil {
		return fmt.Errorf("mail: to: %w", errTo)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		m.AddAlternativeString(gomail.TypeTextPlain, msg.Text)
	}

	client, errClient := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if errClient != nil {
		return fmt.Errorf("mail: client: %w", errClient)
	}
	if errSend := client.DialAndSendWithContext(ctx, m); errSend != nil {
		return fmt.Errorf("mail: send: %w", errSend)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{gomail.WithPort(s.cfg.Port)}
	if s.cfg.Insecure {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

// Send logs the recipient and subject.
func (LogSender) Send(_ context.Context, msg Message) error {
	log.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("mail: delivery disabled, message not sent")
	return nil
}

// Recorder keeps sent messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Send records msg and returns r.Err.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return r.Err
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
