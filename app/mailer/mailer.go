package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Message is a rendered mail ready for a transport.
type Message struct {
	To      string `json:"to"`
	ToName  string `json:"toName,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes mails to the log instead of delivering them. Development only.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Mail delivery skipped (log transport)")
	logrus.Debug(msg.Text)
	return nil
}
