package progress

import (
	"fmt"
	"sort"
	"sync"
)

// Roster tracks every live Account keyed by player id. Roster methods are
// safe for concurrent use; the Accounts they hand out must still only be
// mutated on the engine loop. Hydration happens before an account is
// published here, so a stored account is never seen half-built.
type Roster struct {
	mu       sync.RWMutex
	settings *Settings
	accounts map[string]*Account
}

// NewRoster validates settings and creates an empty Roster.
//
// Postcondition: Returns a ready Roster or the settings validation error.
func NewRoster(settings *Settings) (*Roster, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Roster{
		settings: settings,
		accounts: make(map[string]*Account),
	}, nil
}

// Settings returns the shared progression settings.
func (r *Roster) Settings() *Settings { return r.settings }

// Create builds a fresh account with every default profession and publishes it.
//
// Postcondition: Returns the live account, or an error if the player id is
// already present.
func (r *Roster) Create(playerID string) (*Account, error) {
	acct := NewAccount(playerID, r.settings)
	acct.Bootstrap()
	acct.EndInit()
	if err := r.add(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Load hydrates an account from a snapshot and publishes it.
//
// Postcondition: Returns the live account, or an error if the player id is
// already present or the snapshot fails to restore.
func (r *Roster) Load(playerID string, snap *Snapshot) (*Account, error) {
	acct := NewAccount(playerID, r.settings)
	if err := acct.Restore(snap); err != nil {
		return nil, err
	}
	acct.EndInit()
	if err := r.add(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (r *Roster) add(acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acct.playerID]; exists {
		return fmt.Errorf("account %q already live", acct.playerID)
	}
	r.accounts[acct.playerID] = acct
	return nil
}

// Remove detaches the account's world presence and drops it from the roster.
//
// Postcondition: Returns an error if the player id is not present.
func (r *Roster) Remove(playerID string) error {
	r.mu.Lock()
	acct, exists := r.accounts[playerID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("account %q not found", playerID)
	}
	delete(r.accounts, playerID)
	r.mu.Unlock()

	acct.Detach()
	return nil
}

// Get returns the live account for the given player id.
//
// Postcondition: Returns (account, true) if present, or (nil, false) otherwise.
func (r *Roster) Get(playerID string) (*Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[playerID]
	return acct, ok
}

// All returns every live account sorted by player id.
func (r *Roster) All() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].playerID < out[j].playerID })
	return out
}

// Count returns the number of live accounts.
func (r *Roster) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
