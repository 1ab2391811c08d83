// Package fleet implements the supervisor/worker concurrency model: a
// single supervisor task arbitrating start/stop lifecycle requests and
// one worker goroutine per live account session.
package fleet

import (
	"context"
	"log/slog"

	"github.com/sglre6355/discofleet/internal/state"
)

// commandBuffer is the per-account command channel capacity.
const commandBuffer = 32

// RequestKind selects a supervisor lifecycle operation.
type RequestKind int

const (
	// RequestStart spawns a worker for the account.
	RequestStart RequestKind = iota
	// RequestStop signals the account's worker to shut down.
	RequestStop
)

// Request is a lifecycle request sent to the supervisor. Requests for
// unknown accounts are silently ignored.
type Request struct {
	Kind      RequestKind
	AccountID string
}

// Supervisor processes lifecycle requests one at a time from a single
// inbound queue and enforces at most one live worker per account.
type Supervisor struct {
	store    *state.Store
	dialer   Dialer
	requests <-chan Request
}

// NewSupervisor creates a supervisor reading from requests.
func NewSupervisor(store *state.Store, dialer Dialer, requests <-chan Request) *Supervisor {
	return &Supervisor{
		store:    store,
		dialer:   dialer,
		requests: requests,
	}
}

// Run processes requests until the request channel closes or ctx is
// cancelled. The serialization of this loop is what makes the start
// check-and-set atomic with respect to other lifecycle requests.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case req, ok := <-s.requests:
			if !ok {
				return
			}
			switch req.Kind {
			case RequestStart:
				s.startBot(ctx, req.AccountID)
			case RequestStop:
				s.stopBot(req.AccountID)
			}
		case <-ctx.Done():
			return
		}
	}
}

// startBot spawns a worker for the account unless one is already
// starting or online.
//
// Two-phase handshake: the status check-and-set happens under one lock
// acquisition, the command-channel install under a second, and only
// then does the worker goroutine begin connecting. A concurrent start
// request observes Starting and backs off.
func (s *Supervisor) startBot(ctx context.Context, accountID string) {
	var (
		token string
		spawn bool
	)
	s.store.UpdateAccount(accountID, func(a *state.Account) {
		if a.Status == state.StatusStarting || a.Status == state.StatusOnline {
			return
		}
		a.Status = state.StatusStarting
		a.LastError = ""
		token = a.Token
		spawn = true
	})
	if !spawn {
		return
	}

	commands := make(chan state.Command, commandBuffer)
	s.store.UpdateAccount(accountID, func(a *state.Account) {
		a.Commands = commands
	})

	worker := newWorker(accountID, s.store, s.dialer, commands)
	go worker.Run(ctx, token)

	slog.Info("spawned session worker", "account", accountID)
}

// stopBot clears the account's command channel and closes it. The
// closed channel is the worker's only shutdown signal; the worker task
// is never forcibly aborted.
func (s *Supervisor) stopBot(accountID string) {
	s.store.UpdateAccount(accountID, func(a *state.Account) {
		if a.Commands != nil {
			close(a.Commands)
			a.Commands = nil
		}
		a.Status = state.StatusOffline
	})
}
