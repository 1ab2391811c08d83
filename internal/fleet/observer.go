package fleet

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/discofleet/internal/player"
	"github.com/sglre6355/discofleet/internal/state"
)

// observer returns the playback-event listener registered for each
// enqueued track. It keeps the shared state responsive between
// reconciliation ticks: an end event clears the guild's now-playing
// immediately, an error event lands in the system log.
//
// Invocations arrive on the engine's event goroutines, concurrently
// with the worker's tick and with each other; each takes its own
// short-lived store acquisition and assumes no ordering.
func (w *Worker) observer(guildID snowflake.ID) player.Listener {
	accountID := w.accountID
	store := w.store

	return func(ev player.Event) {
		switch ev.Kind {
		case player.EventEnd:
			store.UpdateGuild(accountID, guildID, func(g *state.Guild) {
				g.NowPlaying = nil
				g.IsPlaying = false
			})
		case player.EventError:
			store.Logf("[%s] playback error in guild %d: %s", accountID, guildID, ev.Reason)
		}
	}
}
