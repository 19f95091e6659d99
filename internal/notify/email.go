// Package notify delivers job summaries once a job finishes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the mail relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Timeout  time.Duration
}

// Sender transmits a composed message
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// SMTPSender sends through an SMTP relay
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a sender for cfg
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// EmailNotifier mails an HTML summary of every finished job
type EmailNotifier struct {
	from   string
	to     []string
	sender Sender
	now    func() time.Time
}

// NewEmailNotifier creates an e-mail notifier
func NewEmailNotifier(from string, to []string, sender Sender) *EmailNotifier {
	return &EmailNotifier{
		from:   from,
		to:     to,
		sender: sender,
		now:    time.Now,
	}
}

// Notify renders and sends the job summary
func (n *EmailNotifier) Notify(ctx context.Context, job *model.Job) error {
	if len(n.to) == 0 {
		return errors.New("no summary recipients configured")
	}

	html, err := RenderReport(job, n.now())
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", n.from, err)
	}
	if err := msg.To(n.to...); err != nil {
		return fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(Subject(job))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := n.sender.Send(ctx, msg); err != nil {
		return err
	}

	slog.Info("Job summary e-mailed",
		"job_id", job.ID,
		"recipients", len(n.to),
	)
	return nil
}
