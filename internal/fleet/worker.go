package fleet

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"

	"github.com/sglre6355/discofleet/internal/player"
	"github.com/sglre6355/discofleet/internal/state"
)

// reconcileInterval is the cadence of the engine-state sync tick.
const reconcileInterval = 500 * time.Millisecond

// Worker drives one account's session: it owns the connection, the
// per-guild queues, and a local index mapping engine handles to track
// metadata. Commands are processed one at a time, so per-account
// ordering is FIFO; workers for different accounts run in parallel
// with no ordering between them.
type Worker struct {
	accountID string
	store     *state.Store
	dialer    Dialer

	// commands is held bidirectionally for identity comparison against
	// the handle installed on the account record; the loop only
	// receives from it.
	commands chan state.Command

	// lookup maps engine handles to metadata. Pruned every
	// reconciliation pass to the handles observed in that pass.
	lookup map[player.Handle]state.TrackMetadata

	interval time.Duration
}

func newWorker(accountID string, store *state.Store, dialer Dialer, commands chan state.Command) *Worker {
	return &Worker{
		accountID: accountID,
		store:     store,
		dialer:    dialer,
		commands:  commands,
		lookup:    make(map[player.Handle]state.TrackMetadata),
		interval:  reconcileInterval,
	}
}

// Run connects and enters the command loop. On connect failure the
// account goes to StatusError and the worker ends without starting
// the loop.
func (w *Worker) Run(ctx context.Context, token string) {
	w.logf("initializing session")

	session, err := w.dialer.Dial(ctx, token)
	if err != nil {
		w.logf("connection failed: %v", err)
		w.store.UpdateAccount(w.accountID, func(a *state.Account) {
			a.Status = state.StatusError
			a.LastError = err.Error()
			// The supervisor installed this handle before the dial;
			// drop it so handle presence keeps meaning "worker alive".
			if a.Commands == w.commands {
				a.Commands = nil
			}
		})
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "account", w.accountID, "error", err)
		}
	}()

	if appID, err := session.ApplicationID(ctx); err != nil {
		w.logf("failed to fetch application ID: %v", err)
	} else {
		w.store.UpdateAccount(w.accountID, func(a *state.Account) {
			a.ApplicationID = appID
		})
	}

	guilds, err := session.Guilds(ctx)
	if err != nil {
		w.logf("failed to fetch guild roster: %v", err)
	}
	w.store.UpdateAccount(w.accountID, func(a *state.Account) {
		a.Status = state.StatusOnline
		// Merge, never replace: guild records surviving a reconnect
		// keep their in-flight playback state.
		for _, g := range guilds {
			if _, ok := a.Guilds[g.ID]; !ok {
				a.Guilds[g.ID] = state.NewGuild(g.ID, g.Name)
			}
		}
	})

	w.logf("connected and ready")
	w.loop(ctx, session)
}

// loop is the worker's single select between the next inbound command
// and the reconciliation tick. A closed command channel is the sole
// normal exit path.
func (w *Worker) loop(ctx context.Context, session Session) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case cmd, ok := <-w.commands:
			if !ok {
				w.logf("command channel closed, shutting down")
				w.store.UpdateAccount(w.accountID, func(a *state.Account) {
					a.Status = state.StatusOffline
				})
				return
			}
			w.handle(ctx, session, cmd)
		case <-ticker.C:
			w.reconcile(ctx, session)
		}
	}
}

func (w *Worker) handle(ctx context.Context, session Session, cmd state.Command) {
	switch c := cmd.(type) {
	case state.JoinCommand:
		if err := session.Join(ctx, c.GuildID, c.ChannelID); err != nil {
			w.logf("failed to join channel: %v", err)
		}
	case state.LeaveCommand:
		if err := session.Leave(ctx, c.GuildID); err != nil {
			w.logf("failed to leave channel: %v", err)
		}
		w.store.UpdateGuild(w.accountID, c.GuildID, func(g *state.Guild) {
			g.ChannelID = 0
		})
	case state.PlayCommand:
		w.play(ctx, session, c.GuildID, c.URL)
	case state.StopCommand:
		w.control(session, c.GuildID, func(q player.Queue) { _ = q.Stop(ctx) })
	case state.SkipCommand:
		w.control(session, c.GuildID, func(q player.Queue) { _ = q.Skip(ctx) })
	case state.PauseCommand:
		w.control(session, c.GuildID, func(q player.Queue) { _ = q.Pause(ctx) })
	case state.ResumeCommand:
		w.control(session, c.GuildID, func(q player.Queue) { _ = q.Resume(ctx) })
	case state.VolumeCommand:
		w.setVolume(ctx, session, c.GuildID, c.Volume)
	case state.RemoveTrackCommand:
		w.removeTrack(ctx, session, c.GuildID, c.LocalID)
	case state.MoveTrackCommand:
		w.moveTrack(session, c.GuildID, c.From, c.To)
	case state.ClearQueueCommand:
		if q := session.Queue(c.GuildID); q != nil {
			q.Truncate()
		}
	case state.FetchChannelsCommand:
		w.fetchChannels(ctx, session, c.GuildID)
	}
}

// play resolves a reference and enqueues the result, indexing the new
// handle and registering end/error event interest. Failures are logged
// and never crash or block the loop.
func (w *Worker) play(ctx context.Context, session Session, guildID snowflake.ID, url string) {
	queue := session.Queue(guildID)
	if queue == nil {
		w.logf("not connected to a voice channel in guild %d", guildID)
		return
	}

	track, err := session.Resolve(ctx, url)
	if err != nil {
		w.logf("source error: %v", err)
		return
	}

	handle, err := queue.Enqueue(ctx, track)
	if err != nil {
		w.logf("failed to enqueue %q: %v", track.Title, err)
		return
	}

	w.lookup[handle] = state.TrackMetadata{
		LocalID:    uuid.NewString(),
		Title:      track.Title,
		Artist:     track.Artist,
		URL:        url,
		Duration:   track.Duration,
		ArtworkURL: track.ArtworkURL,
		AddedBy:    "User",
	}

	observer := w.observer(guildID)
	queue.Subscribe(handle, player.EventEnd, observer)
	queue.Subscribe(handle, player.EventError, observer)

	w.logf("queued: %s", track.Title)
}

// setVolume applies the volume to every handle the engine currently
// holds and mirrors it into the guild record immediately, so the
// change is visible before the next reconciliation tick.
func (w *Worker) setVolume(ctx context.Context, session Session, guildID snowflake.ID, volume float64) {
	w.control(session, guildID, func(q player.Queue) {
		for _, handle := range q.Snapshot() {
			_ = q.SetTrackVolume(ctx, handle, volume)
		}
	})
	w.store.UpdateGuild(w.accountID, guildID, func(g *state.Guild) {
		g.Volume = volume
	})
}

// removeTrack stops the first engine entry whose metadata matches the
// local identifier. The guild record catches up on the next tick.
func (w *Worker) removeTrack(ctx context.Context, session Session, guildID snowflake.ID, localID string) {
	queue := session.Queue(guildID)
	if queue == nil {
		return
	}
	for _, handle := range queue.Snapshot() {
		if meta, ok := w.lookup[handle]; ok && meta.LocalID == localID {
			w.control(session, guildID, func(q player.Queue) {
				_ = q.StopTrack(ctx, handle)
			})
			w.logf("track removed from queue")
			break
		}
	}
}

// moveTrack translates visible (upcoming-queue) indices to engine
// indices: the current track always occupies engine position zero, so
// the offset is one. Out-of-range requests are ignored.
func (w *Worker) moveTrack(session Session, guildID snowflake.ID, from, to int) {
	queue := session.Queue(guildID)
	if queue == nil {
		return
	}
	length := queue.Len()
	if length <= 1 {
		return
	}
	realFrom := from + 1
	realTo := to + 1
	if realFrom >= length || realTo >= length {
		return
	}
	queue.Move(realFrom, realTo)
}

// fetchChannels replaces the guild's selectable-channel list wholesale.
func (w *Worker) fetchChannels(ctx context.Context, session Session, guildID snowflake.ID) {
	channels, err := session.VoiceChannels(ctx, guildID)
	if err != nil {
		w.logf("failed to fetch channels: %v", err)
		return
	}
	w.store.UpdateGuild(w.accountID, guildID, func(g *state.Guild) {
		g.VoiceChannels = channels
	})
}

// control runs an engine operation without blocking the command loop.
// Results of these operations are unobservable by design.
func (w *Worker) control(session Session, guildID snowflake.ID, fn func(player.Queue)) {
	queue := session.Queue(guildID)
	if queue == nil {
		return
	}
	go fn(queue)
}

// reconcile rebuilds every guild record from the engine's authoritative
// snapshot, then prunes the handle index to the handles observed in
// this pass, bounding it to the true size of all live queues.
func (w *Worker) reconcile(ctx context.Context, session Session) {
	active := make(map[player.Handle]struct{})

	for _, guildID := range w.store.GuildIDs(w.accountID) {
		queue := session.Queue(guildID)
		if queue == nil {
			continue
		}

		snapshot := queue.Snapshot()

		var (
			nowPlaying *state.TrackMetadata
			isPlaying  bool
			isPaused   bool
			position   time.Duration
			volume     = 1.0
		)

		if len(snapshot) > 0 {
			current := snapshot[0]
			active[current] = struct{}{}
			if info, ok := queue.Info(current); ok {
				isPlaying = info.Status == player.StatusPlaying
				isPaused = info.Status == player.StatusPaused
				position = info.Position
				volume = info.Volume
				if meta, ok := w.lookup[current]; ok {
					nowPlaying = &meta
				}
			}
		}

		upcoming := make([]state.TrackMetadata, 0, max(len(snapshot)-1, 0))
		for _, handle := range snapshot[min(1, len(snapshot)):] {
			active[handle] = struct{}{}
			// Handles with no index entry are not yet indexed or
			// already evicted; they are dropped from the display.
			if meta, ok := w.lookup[handle]; ok {
				upcoming = append(upcoming, meta)
			}
		}

		channelID, _ := queue.ChannelID()

		w.store.UpdateGuild(w.accountID, guildID, func(g *state.Guild) {
			g.IsPlaying = isPlaying
			g.IsPaused = isPaused
			g.Position = position
			g.Volume = volume
			g.NowPlaying = nowPlaying
			g.Queue = upcoming
			g.ChannelID = channelID
		})
	}

	for handle := range w.lookup {
		if _, ok := active[handle]; !ok {
			delete(w.lookup, handle)
		}
	}
}

func (w *Worker) logf(format string, args ...any) {
	w.store.Logf("[%s] "+format, append([]any{w.accountID}, args...)...)
}
