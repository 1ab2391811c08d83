// Package lavalink implements the remote protocol and playback engine
// collaborators on discordgo and disgolink: one gateway session and
// one disgolink client per account, with a client-side queue per
// joined guild.
package lavalink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/discofleet/internal/fleet"
)

// Config holds the Lavalink node connection settings, shared by every
// session this process dials.
type Config struct {
	Address  string
	Password string
	Secure   bool
}

// Dialer establishes one Session per account token.
type Dialer struct {
	config Config
}

// NewDialer creates a Dialer for the given node configuration.
func NewDialer(config Config) *Dialer {
	return &Dialer{config: config}
}

var _ fleet.Dialer = (*Dialer)(nil)

// Dial opens the gateway connection, builds the disgolink client with
// its track event listeners, and registers the Lavalink node. Any
// failure tears the partial connection down and is returned to the
// caller; there is no retry.
func (d *Dialer) Dial(ctx context.Context, token string) (fleet.Session, error) {
	discord, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if err := discord.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}

	botID, err := snowflake.Parse(discord.State.User.ID)
	if err != nil {
		_ = discord.Close()
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	session := &Session{
		discord: discord,
		botID:   botID,
		queues:  make(map[snowflake.ID]*Queue),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(session.onTrackEnd),
		disgolink.WithListenerFunc(session.onTrackException),
	)
	session.link = link

	discord.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
		session.onVoiceStateUpdate(e)
	})
	discord.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceServerUpdate) {
		session.onVoiceServerUpdate(e)
	})

	node, err := link.AddNode(ctx, disgolink.NodeConfig{
		Name:     botID.String(),
		Address:  d.config.Address,
		Password: d.config.Password,
		Secure:   d.config.Secure,
	})
	if err != nil {
		link.Close()
		_ = discord.Close()
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", d.config.Address)

	return session, nil
}
