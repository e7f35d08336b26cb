package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Insecure bool
	Timeout  time.Duration
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client init failed: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		logrus.WithError(err).WithField("to", msg.To).Error("SMTP send failed")
		return fmt.Errorf("smtp send failed: %w", err)
	}

	logrus.WithField("to", msg.To).Debug("SMTP send ok")
	return nil
}

func (s *SMTPSender) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("invalid from address: %w", err)
		}
	} else if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("invalid to address: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	tlsPolicy := mail.TLSMandatory
	if s.cfg.Insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
