// Package config handles environment settings and the persisted
// account list.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"

	"github.com/sglre6355/discofleet/internal/state"
)

// Env holds process configuration loaded from environment variables.
type Env struct {
	AccountsPath     string `env:"DISCOFLEET_CONFIG" envDefault:"config.json"`
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`
}

// LoadEnv loads configuration from environment variables. Returns an
// error if required fields are missing.
func LoadEnv() (*Env, error) {
	cfg := &Env{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SavedAccount is one persisted credential.
type SavedAccount struct {
	ID        string `json:"uuid"`
	Alias     string `json:"alias"`
	Token     string `json:"token"`
	AutoStart bool   `json:"auto_start"`
}

// File is the on-disk account list.
type File struct {
	Accounts            []SavedAccount `json:"accounts"`
	LastSelectedAccount string         `json:"last_selected_account,omitempty"`
}

// Load reads the account file. A missing file yields an empty config;
// a present but unreadable file is an error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Accounts saved before an ID was assigned get one now.
	for i := range f.Accounts {
		if f.Accounts[i].ID == "" {
			f.Accounts[i].ID = uuid.NewString()
		}
	}
	return &f, nil
}

// Save writes the account file.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Hydrate converts the saved accounts into offline store records.
func (f *File) Hydrate(store *state.Store) {
	for _, saved := range f.Accounts {
		account := state.NewAccount(saved.ID, saved.Alias, saved.Token)
		account.AutoStart = saved.AutoStart
		store.Add(account)
	}
	store.Select(f.LastSelectedAccount, 0)
}

// FromStore extracts the persistable slice of the runtime state,
// sorted by alias for stable file output.
func FromStore(store *state.Store) *File {
	f := &File{}

	store.View(func(accounts map[string]*state.Account, _ []string) {
		for _, a := range accounts {
			f.Accounts = append(f.Accounts, SavedAccount{
				ID:        a.ID,
				Alias:     a.Alias,
				Token:     a.Token,
				AutoStart: a.AutoStart,
			})
		}
	})
	sort.Slice(f.Accounts, func(i, j int) bool {
		return f.Accounts[i].Alias < f.Accounts[j].Alias
	})

	f.LastSelectedAccount = store.Selected().AccountID
	return f
}
