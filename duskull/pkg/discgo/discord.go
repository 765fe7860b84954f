package discgo

import (
	"errors"
	"fmt"
	"ichor/duskull/defs"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"
)

var ErrNoChannel = errors.New("no report channel configured")

// Messager delivers a message to the report channel and returns its id.
type Messager interface {
	SendMessage(data defs.MessageData) (uint64, error)
}

type Discord struct {
	Client  *api.Client
	Logger  *zap.Logger
	Channel discord.ChannelID
}

func New(cfg defs.DiscordConfig, logger *zap.Logger) (*Discord, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: missing discord token", defs.ErrConfiguration)
	}
	if cfg.Channel == 0 {
		return nil, fmt.Errorf("%w: %v", defs.ErrConfiguration, ErrNoChannel)
	}

	return &Discord{
		Client:  api.NewClient("Bot " + cfg.Token),
		Logger:  logger,
		Channel: discord.ChannelID(discord.Snowflake(cfg.Channel)),
	}, nil
}

func (d *Discord) SendMessage(data defs.MessageData) (uint64, error) {
	msg, err := d.Client.SendMessageComplex(d.Channel, marshalSendData(data))
	if err != nil {
		return 0, fmt.Errorf("unable to send message: %w", err)
	}
	d.Logger.Debug(
		"sent message",
		zap.Uint64("channel", uint64(d.Channel)),
		zap.Int("embeds", len(data.Embeds)),
		zap.Int("files", len(data.Files)),
	)
	return uint64(msg.ID), nil
}
