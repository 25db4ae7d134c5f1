package holder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/a2f-auth/a2f/internal/identity"
)

var (
	// ErrNoState is returned by a Store that has nothing persisted yet.
	ErrNoState = errors.New("no holder state")
	// ErrUnknownProvider is returned for provider names that were never authorized.
	ErrUnknownProvider = errors.New("unknown provider")
)

// State is the persisted form of a holder: encoded identity, token id and
// authorized providers.
type State struct {
	Account   string            `json:"account"`
	Asset     uint64            `json:"asset"`
	Providers map[string]string `json:"providers"`
	Sealed    bool              `json:"sealed,omitempty"`
}

// Store loads and saves holder state.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps state as JSON in a single file. With a passphrase the
// mnemonic is sealed before it is written.
type FileStore struct {
	Path       string
	Passphrase string
}

// Load reads the state file, returning ErrNoState when it does not exist.
func (s FileStore) Load() (State, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, ErrNoState
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if st.Sealed {
		if s.Passphrase == "" {
			return State{}, errors.New("state is sealed: passphrase required")
		}
		plain, err := open(st.Account, s.Passphrase)
		if err != nil {
			return State{}, err
		}
		st.Account = string(plain)
		st.Sealed = false
	}
	if st.Providers == nil {
		st.Providers = map[string]string{}
	}
	return st, nil
}

// Save writes the state atomically with owner-only permissions.
func (s FileStore) Save(st State) error {
	if s.Passphrase != "" && !st.Sealed {
		sealed, err := seal([]byte(st.Account), s.Passphrase)
		if err != nil {
			return err
		}
		st.Account = sealed
		st.Sealed = true
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// Profile is a holder in the Ready stage.
type Profile struct {
	Identity  identity.Identity
	TokenID   uint64
	Providers map[string]string
}

// ProfileFromState decodes persisted state.
func ProfileFromState(st State) (*Profile, error) {
	id, err := identity.FromMnemonic(st.Account)
	if err != nil {
		return nil, err
	}
	providers := make(map[string]string, len(st.Providers))
	for name, addr := range st.Providers {
		providers[name] = addr
	}
	return &Profile{Identity: id, TokenID: st.Asset, Providers: providers}, nil
}

// State encodes the profile for persistence.
func (p *Profile) State() (State, error) {
	phrase, err := p.Identity.Mnemonic()
	if err != nil {
		return State{}, err
	}
	providers := make(map[string]string, len(p.Providers))
	for name, addr := range p.Providers {
		providers[name] = addr
	}
	return State{Account: phrase, Asset: p.TokenID, Providers: providers}, nil
}

// ProviderNames lists authorized providers in name order.
func (p *Profile) ProviderNames() []string {
	names := make([]string, 0, len(p.Providers))
	for name := range p.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveProvider forgets an authorized provider.
func (p *Profile) RemoveProvider(name string) error {
	if _, ok := p.Providers[name]; !ok {
		return fmt.Errorf("%w %s", ErrUnknownProvider, name)
	}
	delete(p.Providers, name)
	return nil
}
