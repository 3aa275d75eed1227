package senders

import "context"

// logSender writes notifications to the log, for running without delivery credentials.
type logSender struct {
	base
}

func (l *logSender) Limit() int { return discordMessageLimit }

func (l *logSender) Send(_ context.Context, recipient, text string) error {
	l.log.Sugar().Infow("Notification", "recipient", recipient, "text", text)
	return nil
}
