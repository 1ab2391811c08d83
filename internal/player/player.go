// Package player declares the contracts the session workers consume
// from the playback engine and the audio-resolution collaborator.
package player

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Handle is the engine-assigned identifier of an enqueued track. It is
// opaque to callers and distinct from the worker's local track IDs.
type Handle string

// Track is a resolved, playable source.
type Track struct {
	Encoded    string // engine-encoded track data
	Title      string
	Artist     string
	Duration   time.Duration // zero when unknown
	URI        string
	ArtworkURL string
}

// TrackStatus is the playback state of a single handle.
type TrackStatus int

const (
	StatusQueued TrackStatus = iota
	StatusPlaying
	StatusPaused
	StatusEnded
	StatusErrored
)

// TrackInfo is a point-in-time snapshot of one handle's state.
type TrackInfo struct {
	Status   TrackStatus
	Position time.Duration
	Volume   float64 // 0.0 - 1.0
}

// EventKind identifies a per-track lifecycle event.
type EventKind int

const (
	// EventEnd fires when a track finishes, is skipped, or is stopped.
	EventEnd EventKind = iota
	// EventError fires when the engine fails to play a track.
	EventError
)

// Event is delivered to subscribed listeners. Reason is set for
// EventError.
type Event struct {
	Kind   EventKind
	Handle Handle
	Reason string
}

// Listener receives track events. Invocations may occur concurrently
// with each other and with the owning worker's reconciliation pass.
type Listener func(Event)

// Queue is the engine's per-guild control surface. Implementations
// serialize access internally; callers may invoke it from multiple
// goroutines.
//
// The snapshot ordering convention is the engine's own: index 0 is the
// currently playing track, followed by the pending tracks in order.
type Queue interface {
	// Enqueue adds a resolved track and returns its engine handle.
	// The first track enqueued into an idle queue starts playing.
	Enqueue(ctx context.Context, track Track) (Handle, error)

	// Snapshot returns the current and pending handles.
	Snapshot() []Handle

	// Len returns the number of handles the engine currently holds.
	Len() int

	// Info reports the state of a handle still held by the engine.
	Info(handle Handle) (TrackInfo, bool)

	// Stop ends the current track and drops the pending queue.
	Stop(ctx context.Context) error

	// Skip ends the current track and starts the next pending one.
	Skip(ctx context.Context) error

	Pause(ctx context.Context) error
	Resume(ctx context.Context) error

	// SetTrackVolume sets the volume for one handle. The engine applies
	// it immediately when the handle is current.
	SetTrackVolume(ctx context.Context, handle Handle, volume float64) error

	// StopTrack ends one handle: the current track advances as on Skip,
	// a pending track is removed from the queue.
	StopTrack(ctx context.Context, handle Handle) error

	// Move reorders the queue by engine indices (0 is the current
	// track). Out-of-range indices are ignored.
	Move(from, to int)

	// Truncate drops every pending track, keeping the current one.
	Truncate()

	// Subscribe registers a listener for one event kind on one handle.
	Subscribe(handle Handle, kind EventKind, fn Listener)

	// ChannelID reports the joined voice channel, if any.
	ChannelID() (snowflake.ID, bool)
}

// Resolver turns a reference (URL) into a playable track. No retry and
// no timeout are applied by callers.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (Track, error)
}
