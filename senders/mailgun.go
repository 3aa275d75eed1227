package senders

import (
	"context"
	"time"

	"github.com/fiffu/stockwatch/senders/email"
	"github.com/mailgun/mailgun-go/v4"
)

// mailgunSender treats recipients as email addresses.
type mailgunSender struct {
	base
}

func (e *mailgunSender) Limit() int { return 0 }

func (e *mailgunSender) Send(ctx context.Context, recipient, text string) error {
	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	mg.Client().Transport = e.transport

	format := email.NotificationEmailFormat{Text: text}

	// Create message with plaintext body first.
	message := mg.NewMessage(e.cfg.Mailgun.SenderFrom, format.Subject(), text, recipient)
	// SetHtml with the payload proper. This will assign the MIME type properly.
	message.SetHtml(format.Body())

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	if err == nil {
		e.log.Sugar().Debugw("Email sent", "recipient", recipient, "id", id)
	}
	return err
}
