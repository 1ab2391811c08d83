package lavalink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/discofleet/internal/player"
	"github.com/sglre6355/discofleet/internal/state"
)

// Session is one account's live Discord connection plus its disgolink
// client. Each session owns its per-guild queues; a queue exists only
// while the session is joined to voice in that guild.
type Session struct {
	discord *discordgo.Session
	link    disgolink.Client
	botID   snowflake.ID

	mu     sync.Mutex
	queues map[snowflake.ID]*Queue
}

// ApplicationID fetches the Discord application (client) ID.
func (s *Session) ApplicationID(ctx context.Context) (snowflake.ID, error) {
	app, err := s.discord.Application("@me")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch application info: %w", err)
	}
	id, err := snowflake.Parse(app.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to parse application ID: %w", err)
	}
	return id, nil
}

// Guilds fetches the guild roster for the connected account.
func (s *Session) Guilds(ctx context.Context) ([]state.NameID, error) {
	guilds, err := s.discord.UserGuilds(200, "", "", false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guilds: %w", err)
	}

	out := make([]state.NameID, 0, len(guilds))
	for _, g := range guilds {
		id, err := snowflake.Parse(g.ID)
		if err != nil {
			slog.Warn("skipping guild with unparseable ID", "id", g.ID, "error", err)
			continue
		}
		out = append(out, state.NameID{ID: id, Name: g.Name})
	}
	return out, nil
}

// VoiceChannels lists a guild's channels filtered to voice-capable
// entries.
func (s *Session) VoiceChannels(ctx context.Context, guildID snowflake.ID) ([]state.NameID, error) {
	channels, err := s.discord.GuildChannels(guildID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channels: %w", err)
	}

	var out []state.NameID
	for _, c := range channels {
		if c.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		id, err := snowflake.Parse(c.ID)
		if err != nil {
			continue
		}
		out = append(out, state.NameID{ID: id, Name: c.Name})
	}
	return out, nil
}

// Join connects to a voice channel and materializes the guild's queue.
func (s *Session) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	err := s.discord.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[guildID]
	if !ok {
		q = newQueue(s.link.Player(guildID))
		s.queues[guildID] = q
	}
	q.setChannel(channelID)
	return nil
}

// Leave destroys the guild's player and disconnects from voice.
func (s *Session) Leave(ctx context.Context, guildID snowflake.ID) error {
	if p := s.link.ExistingPlayer(guildID); p != nil {
		if err := p.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	s.mu.Lock()
	delete(s.queues, guildID)
	s.mu.Unlock()

	if err := s.discord.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// Queue returns the guild's playback queue, or nil when the session is
// not joined to voice there.
func (s *Session) Queue(guildID snowflake.ID) player.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[guildID]
	if !ok {
		return nil
	}
	return q
}

// Resolve loads a reference through the best available Lavalink node
// and returns the first playable track.
func (s *Session) Resolve(ctx context.Context, reference string) (player.Track, error) {
	node := s.link.BestNode()
	if node == nil {
		return player.Track{}, fmt.Errorf("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, reference)
	if err != nil {
		return player.Track{}, fmt.Errorf("failed to load tracks: %w", err)
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return convertTrack(data), nil
	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return player.Track{}, fmt.Errorf("playlist %q has no tracks", data.Info.Name)
		}
		return convertTrack(data.Tracks[0]), nil
	case lavalink.Search:
		if len(data) == 0 {
			return player.Track{}, fmt.Errorf("no matches for %q", reference)
		}
		return convertTrack(data[0]), nil
	case lavalink.Exception:
		return player.Track{}, fmt.Errorf("failed to load %q: %s", reference, data.Message)
	default:
		return player.Track{}, fmt.Errorf("no matches for %q", reference)
	}
}

// Close shuts down the disgolink client and the Discord session.
func (s *Session) Close() error {
	s.link.Close()
	return s.discord.Close()
}

func convertTrack(track lavalink.Track) player.Track {
	info := track.Info

	uri := ""
	if info.URI != nil {
		uri = *info.URI
	}
	artworkURL := ""
	if info.ArtworkURL != nil {
		artworkURL = *info.ArtworkURL
	}

	return player.Track{
		Encoded:    track.Encoded,
		Title:      info.Title,
		Artist:     info.Author,
		Duration:   time.Duration(info.Length) * time.Millisecond,
		URI:        uri,
		ArtworkURL: artworkURL,
	}
}

func (s *Session) queue(guildID snowflake.ID) *Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[guildID]
}

func (s *Session) onTrackEnd(p disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", p.GuildID(), "reason", event.Reason)
	if q := s.queue(p.GuildID()); q != nil {
		q.handleTrackEnd(event.Reason)
	}
}

func (s *Session) onTrackException(p disgolink.Player, event lavalink.TrackExceptionEvent) {
	slog.Warn("track exception", "guild", p.GuildID(), "error", event.Exception.Message)
	if q := s.queue(p.GuildID()); q != nil {
		q.handleTrackException(event.Exception.Message)
	}
}

// onVoiceStateUpdate forwards the bot's own voice state into disgolink.
func (s *Session) onVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != s.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	s.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, event.SessionID)
}

// onVoiceServerUpdate forwards voice server assignments into disgolink.
func (s *Session) onVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	s.link.OnVoiceServerUpdate(context.Background(), guildID, event.Token, event.Endpoint)
}
