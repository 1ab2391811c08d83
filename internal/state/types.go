package state

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Status is the lifecycle state of an account's session worker.
type Status int

const (
	StatusOffline Status = iota
	StatusStarting
	StatusOnline
	StatusError
)

// String returns a human-readable status label.
func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusStarting:
		return "starting"
	case StatusOnline:
		return "online"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// NameID pairs a Discord snowflake with its display name.
type NameID struct {
	ID   snowflake.ID
	Name string
}

// TrackMetadata describes one enqueued track. It is immutable once
// created; LocalID is generated by the owning worker and is distinct
// from the playback engine's track handle.
type TrackMetadata struct {
	LocalID    string
	Title      string
	Artist     string
	URL        string
	Duration   time.Duration // zero when unknown
	ArtworkURL string
	AddedBy    string
}

// Guild holds the playback state of one guild as last reconciled from
// the playback engine.
type Guild struct {
	ID   snowflake.ID
	Name string

	// ChannelID is the currently joined voice channel, zero when the
	// session is not connected to voice in this guild.
	ChannelID snowflake.ID

	IsPlaying bool
	IsPaused  bool
	Volume    float64 // 0.0 - 1.0
	Position  time.Duration

	NowPlaying *TrackMetadata
	Queue      []TrackMetadata

	// VoiceChannels is the selectable channel list, refreshed on demand.
	VoiceChannels []NameID
}

// NewGuild creates an empty guild record.
func NewGuild(id snowflake.ID, name string) *Guild {
	return &Guild{
		ID:     id,
		Name:   name,
		Volume: 1.0,
	}
}

// Account is one registered bot credential and its runtime state.
type Account struct {
	ID    string
	Alias string
	Token string

	// ApplicationID is the Discord application (client) ID, fetched
	// after connect. Zero until known.
	ApplicationID snowflake.ID

	// AutoStart makes the supervisor start this account at launch.
	AutoStart bool

	Status    Status
	LastError string // set when Status == StatusError

	Guilds map[snowflake.ID]*Guild

	// Commands is the inbound channel of the live worker. Non-nil iff
	// a worker is running; this is the authoritative liveness signal
	// and is read and written only under the store's lock.
	Commands chan Command
}

// NewAccount creates an offline account. AutoStart defaults to true.
func NewAccount(id, alias, token string) *Account {
	return &Account{
		ID:        id,
		Alias:     alias,
		Token:     token,
		AutoStart: true,
		Status:    StatusOffline,
		Guilds:    make(map[snowflake.ID]*Guild),
	}
}
