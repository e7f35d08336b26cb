package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/mailer"
)

const backgroundTimeout = 30 * time.Second

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// notifier renders and sends mails off the request path. Failures are logged only.
type notifier struct {
	sender mailSender
	run    AsyncRunner
}

func (n *notifier) dispatch(kind string, user *entity.User, build func() (mailer.Message, error)) {
	if n.sender == nil {
		return
	}
	userID := user.ID
	n.run(func() {
		logger := logrus.WithFields(logrus.Fields{"mail": kind, "user_id": userID})

		msg, err := build()
		if err != nil {
			logger.WithError(err).Error("Failed to render mail")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := n.sender.Send(ctx, msg); err != nil {
			logger.WithError(err).Error("Failed to send mail")
			return
		}
		logger.Debug("Mail sent")
	})
}
