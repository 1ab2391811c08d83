package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// MaxLogLines bounds the shared system log.
const MaxLogLines = 1000

// Selection is the presentation layer's current account/guild choice.
type Selection struct {
	AccountID string
	GuildID   snowflake.ID
}

// Store is the single shared state tree. Every component holds a
// reference and mutates through short, synchronous closures executed
// under the store's lock; callers must not block inside a closure.
//
// The lock is released by defer even if a closure panics, so a crashed
// holder cannot wedge the store. The partial effect of a panicking
// mutation is not rolled back.
type Store struct {
	mu        sync.Mutex
	accounts  map[string]*Account
	logs      []string
	selection Selection
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*Account),
	}
}

// Add inserts or replaces an account record.
func (s *Store) Add(account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// Remove deletes an account record. Removing an unknown ID is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
}

// UpdateAccount runs fn against the account under the store's lock.
// Returns false without calling fn when the ID is unknown.
func (s *Store) UpdateAccount(id string, fn func(*Account)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return false
	}
	fn(account)
	return true
}

// UpdateGuild runs fn against one guild record under the store's lock.
// Returns false without calling fn when the account or guild is unknown.
func (s *Store) UpdateGuild(id string, guildID snowflake.ID, fn func(*Guild)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return false
	}
	guild, ok := account.Guilds[guildID]
	if !ok {
		return false
	}
	fn(guild)
	return true
}

// GuildIDs returns the guild IDs currently known to an account.
func (s *Store) GuildIDs(id string) []snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(account.Guilds))
	for guildID := range account.Guilds {
		ids = append(ids, guildID)
	}
	return ids
}

// Dispatch delivers a command to the account's live worker. The send
// never blocks; the command is silently dropped when the account has
// no live worker or its buffer is full.
func (s *Store) Dispatch(id string, cmd Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok || account.Commands == nil {
		return false
	}
	select {
	case account.Commands <- cmd:
		return true
	default:
		return false
	}
}

// View runs fn with read access to the full tree under the store's
// lock. fn must not retain the map or any record past its return.
func (s *Store) View(fn func(accounts map[string]*Account, logs []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.accounts, s.logs)
}

// Select records the presentation layer's current account/guild.
func (s *Store) Select(accountID string, guildID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = Selection{AccountID: accountID, GuildID: guildID}
}

// Selected returns the current selection.
func (s *Store) Selected() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Logf appends a timestamped line to the system log, evicting the
// oldest lines beyond MaxLogLines.
func (s *Store) Logf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	s.logs = append(s.logs, line)
	if len(s.logs) > MaxLogLines {
		s.logs = s.logs[len(s.logs)-MaxLogLines:]
	}
}

// Logs returns a copy of the system log.
func (s *Store) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.logs))
	copy(out, s.logs)
	return out
}
