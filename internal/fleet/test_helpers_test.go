package fleet

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/discofleet/internal/player"
	"github.com/sglre6355/discofleet/internal/state"
)

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeQueue is an in-memory player.Queue recording control calls.
type fakeQueue struct {
	mu        sync.Mutex
	handles   []player.Handle
	infos     map[player.Handle]player.TrackInfo
	subs      map[player.Handle]map[player.EventKind][]player.Listener
	channelID snowflake.ID

	volumes    map[player.Handle]float64
	moves      [][2]int
	truncates  int
	stopped    []player.Handle
	stops      int
	skips      int
	pauses     int
	resumes    int
	enqueueErr error
	nextHandle int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		infos:   make(map[player.Handle]player.TrackInfo),
		subs:    make(map[player.Handle]map[player.EventKind][]player.Listener),
		volumes: make(map[player.Handle]float64),
	}
}

func (q *fakeQueue) Enqueue(_ context.Context, track player.Track) (player.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.nextHandle++
	h := player.Handle(fmt.Sprintf("engine-%d", q.nextHandle))
	status := player.StatusQueued
	if len(q.handles) == 0 {
		status = player.StatusPlaying
	}
	q.handles = append(q.handles, h)
	q.infos[h] = player.TrackInfo{Status: status, Volume: 1.0}
	return h, nil
}

func (q *fakeQueue) Snapshot() []player.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]player.Handle, len(q.handles))
	copy(out, q.handles)
	return out
}

func (q *fakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles)
}

func (q *fakeQueue) Info(h player.Handle) (player.TrackInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.infos[h]
	return info, ok
}

func (q *fakeQueue) Stop(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stops++
	return nil
}

func (q *fakeQueue) Skip(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.skips++
	return nil
}

func (q *fakeQueue) Pause(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pauses++
	return nil
}

func (q *fakeQueue) Resume(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resumes++
	return nil
}

func (q *fakeQueue) SetTrackVolume(_ context.Context, h player.Handle, volume float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.volumes[h] = volume
	return nil
}

func (q *fakeQueue) StopTrack(_ context.Context, h player.Handle) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = append(q.stopped, h)
	return nil
}

func (q *fakeQueue) Move(from, to int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.moves = append(q.moves, [2]int{from, to})
}

func (q *fakeQueue) Truncate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.truncates++
}

func (q *fakeQueue) Subscribe(h player.Handle, kind player.EventKind, fn player.Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.subs[h] == nil {
		q.subs[h] = make(map[player.EventKind][]player.Listener)
	}
	q.subs[h][kind] = append(q.subs[h][kind], fn)
}

func (q *fakeQueue) ChannelID() (snowflake.ID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.channelID, q.channelID != 0
}

// emit fires an event to the handle's listeners, as the engine would.
func (q *fakeQueue) emit(h player.Handle, kind player.EventKind, reason string) {
	q.mu.Lock()
	fns := append([]player.Listener(nil), q.subs[h][kind]...)
	q.mu.Unlock()
	for _, fn := range fns {
		fn(player.Event{Kind: kind, Handle: h, Reason: reason})
	}
}

// dropHandle removes a handle from the snapshot, as the engine does
// once a track ends.
func (q *fakeQueue) dropHandle(h player.Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, have := range q.handles {
		if have == h {
			q.handles = append(q.handles[:i], q.handles[i+1:]...)
			break
		}
	}
	delete(q.infos, h)
	if len(q.handles) > 0 {
		info := q.infos[q.handles[0]]
		info.Status = player.StatusPlaying
		q.infos[q.handles[0]] = info
	}
}

func (q *fakeQueue) recordedMoves() [][2]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][2]int(nil), q.moves...)
}

func (q *fakeQueue) recordedStops() []player.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]player.Handle(nil), q.stopped...)
}

// fakeSession is a test double for Session.
type fakeSession struct {
	mu sync.Mutex

	appID   snowflake.ID
	appErr  error
	guilds  []state.NameID
	rosters error

	channels    map[snowflake.ID][]state.NameID
	channelsErr error

	queues map[snowflake.ID]*fakeQueue

	resolve func(string) (player.Track, error)

	joined []snowflake.ID
	left   []snowflake.ID
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		channels: make(map[snowflake.ID][]state.NameID),
		queues:   make(map[snowflake.ID]*fakeQueue),
	}
}

func (s *fakeSession) ApplicationID(context.Context) (snowflake.ID, error) {
	if s.appErr != nil {
		return 0, s.appErr
	}
	return s.appID, nil
}

func (s *fakeSession) Guilds(context.Context) ([]state.NameID, error) {
	if s.rosters != nil {
		return nil, s.rosters
	}
	return s.guilds, nil
}

func (s *fakeSession) VoiceChannels(_ context.Context, guildID snowflake.ID) ([]state.NameID, error) {
	if s.channelsErr != nil {
		return nil, s.channelsErr
	}
	return s.channels[guildID], nil
}

func (s *fakeSession) Join(_ context.Context, guildID, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, channelID)
	if _, ok := s.queues[guildID]; !ok {
		s.queues[guildID] = newFakeQueue()
	}
	s.queues[guildID].channelID = channelID
	return nil
}

func (s *fakeSession) Leave(_ context.Context, guildID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, guildID)
	delete(s.queues, guildID)
	return nil
}

func (s *fakeSession) Queue(guildID snowflake.ID) player.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[guildID]
	if !ok {
		return nil
	}
	return q
}

func (s *fakeSession) Resolve(_ context.Context, reference string) (player.Track, error) {
	if s.resolve != nil {
		return s.resolve(reference)
	}
	return player.Track{Encoded: "enc:" + reference, Title: reference}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeDialer counts dials and hands out a prepared session.
type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	session *fakeSession
	err     error
}

func (d *fakeDialer) Dial(context.Context, string) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
