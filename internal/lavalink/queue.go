package lavalink

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"

	"github.com/sglre6355/discofleet/internal/player"
)

// playerAPI is the slice of disgolink.Player the queue drives.
type playerAPI interface {
	Update(ctx context.Context, opts ...lavalink.PlayerUpdateOpt) error
	Paused() bool
	Position() lavalink.Duration
}

type entry struct {
	handle    player.Handle
	track     player.Track
	status    player.TrackStatus
	volume    float64
	listeners map[player.EventKind][]player.Listener
}

func newEntry(track player.Track) *entry {
	return &entry{
		handle:    player.Handle(uuid.NewString()),
		track:     track,
		status:    player.StatusQueued,
		volume:    1.0,
		listeners: make(map[player.EventKind][]player.Listener),
	}
}

// Queue is the per-guild engine queue. Lavalink players hold a single
// track, so the queue lives client-side: slot zero is the current
// track, advancement happens only when the node reports a track end,
// and a deliberate skip or stop swallows the end event it provokes so
// it is not mistaken for the next track finishing.
//
// All methods serialize on the queue's own lock, independent of the
// shared state store.
type Queue struct {
	mu         sync.Mutex
	api        playerAPI
	channelID  snowflake.ID
	current    *entry
	pending    []*entry
	swallowEnd bool
}

func newQueue(api playerAPI) *Queue {
	return &Queue{api: api}
}

var _ player.Queue = (*Queue)(nil)

// Enqueue adds a track, starting it when the queue is idle.
func (q *Queue) Enqueue(ctx context.Context, track player.Track) (player.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := newEntry(track)
	if q.current == nil {
		if err := q.play(ctx, e); err != nil {
			return "", err
		}
		q.current = e
	} else {
		q.pending = append(q.pending, e)
	}
	return e.handle, nil
}

// play pushes an entry to the node. Callers hold q.mu.
func (q *Queue) play(ctx context.Context, e *entry) error {
	err := q.api.Update(ctx,
		lavalink.WithEncodedTrack(e.track.Encoded),
		lavalink.WithVolume(volumeScale(e.volume)),
		lavalink.WithPaused(false),
	)
	if err != nil {
		return err
	}
	e.status = player.StatusPlaying
	return nil
}

// Snapshot returns the current handle followed by the pending ones.
func (q *Queue) Snapshot() []player.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]player.Handle, 0, len(q.pending)+1)
	if q.current != nil {
		out = append(out, q.current.handle)
	}
	for _, e := range q.pending {
		out = append(out, e.handle)
	}
	return out
}

// Len returns the number of held handles, current included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	if q.current != nil {
		n++
	}
	return n
}

// Info reports the live state of one handle.
func (q *Queue) Info(handle player.Handle) (player.TrackInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil && q.current.handle == handle {
		status := player.StatusPlaying
		if q.api.Paused() {
			status = player.StatusPaused
		}
		return player.TrackInfo{
			Status:   status,
			Position: time.Duration(q.api.Position()) * time.Millisecond,
			Volume:   q.current.volume,
		}, true
	}
	for _, e := range q.pending {
		if e.handle == handle {
			return player.TrackInfo{Status: player.StatusQueued, Volume: e.volume}, true
		}
	}
	return player.TrackInfo{}, false
}

// Stop ends the current track and drops the pending queue.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	ended := q.current
	q.current = nil
	for _, e := range q.pending {
		e.status = player.StatusEnded
	}
	q.pending = nil
	var err error
	if ended != nil {
		ended.status = player.StatusEnded
		q.swallowEnd = true
		err = q.api.Update(ctx, lavalink.WithNullTrack())
	}
	q.mu.Unlock()

	if ended != nil {
		q.notify(ended, player.Event{Kind: player.EventEnd, Handle: ended.handle})
	}
	return err
}

// Skip ends the current track and starts the next pending one.
func (q *Queue) Skip(ctx context.Context) error {
	q.mu.Lock()
	ended := q.current
	if ended == nil {
		q.mu.Unlock()
		return nil
	}
	ended.status = player.StatusEnded
	q.swallowEnd = true

	var (
		failed []*entry
		err    error
	)
	q.current = nil
	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		if perr := q.play(ctx, next); perr != nil {
			next.status = player.StatusErrored
			failed = append(failed, next)
			continue
		}
		q.current = next
		break
	}
	if q.current == nil {
		err = q.api.Update(ctx, lavalink.WithNullTrack())
	}
	q.mu.Unlock()

	q.notify(ended, player.Event{Kind: player.EventEnd, Handle: ended.handle})
	for _, e := range failed {
		q.notify(e, player.Event{Kind: player.EventError, Handle: e.handle, Reason: "failed to start track"})
	}
	return err
}

// Pause pauses the current track.
func (q *Queue) Pause(ctx context.Context) error {
	return q.api.Update(ctx, lavalink.WithPaused(true))
}

// Resume resumes the current track.
func (q *Queue) Resume(ctx context.Context) error {
	return q.api.Update(ctx, lavalink.WithPaused(false))
}

// SetTrackVolume stores the handle's volume, applying it to the node
// immediately when the handle is current.
func (q *Queue) SetTrackVolume(ctx context.Context, handle player.Handle, volume float64) error {
	q.mu.Lock()
	var target *entry
	if q.current != nil && q.current.handle == handle {
		target = q.current
	} else {
		for _, e := range q.pending {
			if e.handle == handle {
				target = e
				break
			}
		}
	}
	if target == nil {
		q.mu.Unlock()
		return nil
	}
	target.volume = volume
	isCurrent := target == q.current
	q.mu.Unlock()

	if isCurrent {
		return q.api.Update(ctx, lavalink.WithVolume(volumeScale(volume)))
	}
	return nil
}

// StopTrack ends one handle. The current track advances as on Skip; a
// pending track is removed from the queue.
func (q *Queue) StopTrack(ctx context.Context, handle player.Handle) error {
	q.mu.Lock()
	if q.current != nil && q.current.handle == handle {
		q.mu.Unlock()
		return q.Skip(ctx)
	}
	var removed *entry
	for i, e := range q.pending {
		if e.handle == handle {
			removed = e
			removed.status = player.StatusEnded
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	if removed != nil {
		q.notify(removed, player.Event{Kind: player.EventEnd, Handle: removed.handle})
	}
	return nil
}

// Move reorders by engine indices; index zero (the current track) and
// out-of-range indices are ignored.
func (q *Queue) Move(from, to int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending) + 1
	if q.current == nil {
		n = len(q.pending)
	}
	if from <= 0 || to <= 0 || from >= n || to >= n {
		return
	}
	i, j := from-1, to-1
	e := q.pending[i]
	q.pending = append(q.pending[:i], q.pending[i+1:]...)
	q.pending = append(q.pending[:j], append([]*entry{e}, q.pending[j:]...)...)
}

// Truncate drops every pending track, keeping the current one.
func (q *Queue) Truncate() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.pending {
		e.status = player.StatusEnded
	}
	q.pending = nil
}

// Subscribe registers a listener for one event kind on one handle.
// Unknown handles are ignored.
func (q *Queue) Subscribe(handle player.Handle, kind player.EventKind, fn player.Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil && q.current.handle == handle {
		q.current.listeners[kind] = append(q.current.listeners[kind], fn)
		return
	}
	for _, e := range q.pending {
		if e.handle == handle {
			e.listeners[kind] = append(e.listeners[kind], fn)
			return
		}
	}
}

// ChannelID reports the joined voice channel.
func (q *Queue) ChannelID() (snowflake.ID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.channelID, q.channelID != 0
}

func (q *Queue) setChannel(id snowflake.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.channelID = id
}

// handleTrackEnd reacts to the node reporting a track end: the current
// entry retires and, when the reason allows, the next pending entry
// starts. Ends provoked by Skip/Stop/StopTrack were already handled
// and are swallowed here.
func (q *Queue) handleTrackEnd(reason lavalink.TrackEndReason) {
	q.mu.Lock()
	if q.swallowEnd {
		q.swallowEnd = false
		q.mu.Unlock()
		return
	}

	ended := q.current
	q.current = nil
	var failed []*entry
	if ended != nil {
		ended.status = player.StatusEnded
	}
	if reason.MayStartNext() {
		for len(q.pending) > 0 {
			next := q.pending[0]
			q.pending = q.pending[1:]
			if err := q.play(context.Background(), next); err != nil {
				next.status = player.StatusErrored
				failed = append(failed, next)
				continue
			}
			q.current = next
			break
		}
	}
	q.mu.Unlock()

	if ended != nil {
		q.notify(ended, player.Event{Kind: player.EventEnd, Handle: ended.handle})
	}
	for _, e := range failed {
		q.notify(e, player.Event{Kind: player.EventError, Handle: e.handle, Reason: "failed to start track"})
	}
}

// handleTrackException surfaces a node playback failure to the entry's
// error listeners. The node follows up with a track end, which drives
// any advancement.
func (q *Queue) handleTrackException(message string) {
	q.mu.Lock()
	current := q.current
	q.mu.Unlock()

	if current != nil {
		q.notify(current, player.Event{Kind: player.EventError, Handle: current.handle, Reason: message})
	}
}

func (q *Queue) notify(e *entry, ev player.Event) {
	q.mu.Lock()
	fns := make([]player.Listener, len(e.listeners[ev.Kind]))
	copy(fns, e.listeners[ev.Kind])
	q.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func volumeScale(v float64) int {
	return int(math.Round(v * 100))
}
