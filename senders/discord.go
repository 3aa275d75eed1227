package senders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

// discordSender direct-messages users through the REST API. The gateway is never opened.
type discordSender struct {
	base
	session *discordgo.Session
}

func newDiscordSender(b base) (*discordSender, error) {
	session, err := discordgo.New("Bot " + b.cfg.Notify.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if b.transport != nil {
		session.Client = &http.Client{Transport: b.transport, Timeout: session.Client.Timeout}
	}
	return &discordSender{base: b, session: session}, nil
}

func (d *discordSender) Limit() int { return discordMessageLimit }

func (d *discordSender) Send(ctx context.Context, recipient, text string) error {
	channel, err := d.session.UserChannelCreate(recipient, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel with %s: %w", recipient, err)
	}
	if _, err := d.session.ChannelMessageSend(channel.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}
	return nil
}
