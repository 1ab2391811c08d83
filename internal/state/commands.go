package state

import "github.com/disgoorg/snowflake/v2"

// Command is a closed set of operations a session worker accepts.
// Commands are immutable value messages, delivered FIFO per account
// over the account's command channel; each is scoped to one guild.
type Command interface {
	// CommandGuild returns the guild the command operates on.
	CommandGuild() snowflake.ID
}

// JoinCommand connects the session to a voice channel.
type JoinCommand struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
}

// LeaveCommand disconnects the session from voice in a guild.
type LeaveCommand struct {
	GuildID snowflake.ID
}

// PlayCommand resolves a URL and enqueues the resulting track.
type PlayCommand struct {
	GuildID snowflake.ID
	URL     string
}

// PauseCommand pauses playback.
type PauseCommand struct {
	GuildID snowflake.ID
}

// ResumeCommand resumes paused playback.
type ResumeCommand struct {
	GuildID snowflake.ID
}

// StopCommand stops playback and clears the queue.
type StopCommand struct {
	GuildID snowflake.ID
}

// SkipCommand skips the current track.
type SkipCommand struct {
	GuildID snowflake.ID
}

// VolumeCommand sets the volume (0.0 to 1.0) for every track the
// engine currently holds.
type VolumeCommand struct {
	GuildID snowflake.ID
	Volume  float64
}

// RemoveTrackCommand removes a queued track by its local identifier.
type RemoveTrackCommand struct {
	GuildID snowflake.ID
	LocalID string
}

// MoveTrackCommand moves a queued track between two positions. Indices
// are zero-based over the visible queue, excluding the current track.
type MoveTrackCommand struct {
	GuildID snowflake.ID
	From    int
	To      int
}

// ClearQueueCommand removes every queued track except the current one.
type ClearQueueCommand struct {
	GuildID snowflake.ID
}

// FetchChannelsCommand refreshes the guild's selectable voice channels.
type FetchChannelsCommand struct {
	GuildID snowflake.ID
}

func (c JoinCommand) CommandGuild() snowflake.ID          { return c.GuildID }
func (c LeaveCommand) CommandGuild() snowflake.ID         { return c.GuildID }
func (c PlayCommand) CommandGuild() snowflake.ID          { return c.GuildID }
func (c PauseCommand) CommandGuild() snowflake.ID         { return c.GuildID }
func (c ResumeCommand) CommandGuild() snowflake.ID        { return c.GuildID }
func (c StopCommand) CommandGuild() snowflake.ID          { return c.GuildID }
func (c SkipCommand) CommandGuild() snowflake.ID          { return c.GuildID }
func (c VolumeCommand) CommandGuild() snowflake.ID        { return c.GuildID }
func (c RemoveTrackCommand) CommandGuild() snowflake.ID   { return c.GuildID }
func (c MoveTrackCommand) CommandGuild() snowflake.ID     { return c.GuildID }
func (c ClearQueueCommand) CommandGuild() snowflake.ID    { return c.GuildID }
func (c FetchChannelsCommand) CommandGuild() snowflake.ID { return c.GuildID }
