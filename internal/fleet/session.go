package fleet

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/discofleet/internal/player"
	"github.com/sglre6355/discofleet/internal/state"
)

// Session is one live connection to the remote service, owned by a
// single worker.
type Session interface {
	player.Resolver

	// ApplicationID fetches the remote-assigned application ID.
	ApplicationID(ctx context.Context) (snowflake.ID, error)

	// Guilds fetches the guild roster for the connected account.
	Guilds(ctx context.Context) ([]state.NameID, error)

	// VoiceChannels lists the voice-capable channels of a guild.
	VoiceChannels(ctx context.Context, guildID snowflake.ID) ([]state.NameID, error)

	// Join connects to a voice channel; Leave disconnects.
	Join(ctx context.Context, guildID, channelID snowflake.ID) error
	Leave(ctx context.Context, guildID snowflake.ID) error

	// Queue returns the guild's playback queue, or nil when the session
	// has not joined voice in that guild.
	Queue(guildID snowflake.ID) player.Queue

	Close() error
}

// Dialer establishes sessions. Dial blocks until the connection is
// ready or fails; there is no retry.
type Dialer interface {
	Dial(ctx context.Context, token string) (Session, error)
}
