package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/stockwatch/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sender delivers one piece of text to one recipient. Callers chunk text to Limit first.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
	// Limit is the longest text Send accepts, or 0 when there is no limit.
	Limit() int
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) (Registry, error) {
	base := base{log, cfg, transport}
	reg := Registry{
		"log":   &logSender{base},
		"email": &mailgunSender{base},
	}

	if cfg.Notify.DiscordToken != "" {
		discord, err := newDiscordSender(base)
		if err != nil {
			return nil, err
		}
		reg["discord"] = discord
	}
	return reg, nil
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
