package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"gitlab.com/walletsweep/sweepnode/common"
)

// HiddenRepo is the persistent set of tokens a user chose to hide. Hiding is
// a purely local remediation, no transaction ever leaves the process for it.
// Entries are token keys in CHAIN:address form.
type HiddenRepo struct {
	path string
	mu   sync.Mutex
	keys map[string]bool
}

// NewHiddenRepo loads the hidden set from path if the file exists. An empty
// path keeps the set in memory only.
func NewHiddenRepo(path string) (*HiddenRepo, error) {
	repo := &HiddenRepo{
		path: path,
		keys: make(map[string]bool),
	}
	if path == "" {
		return repo, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return repo, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fail to read hidden set: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("fail to parse hidden set: %w", err)
	}
	for _, key := range keys {
		repo.keys[key] = true
	}
	return repo, nil
}

// Hide adds the tokens to the set and persists it. Hiding an already hidden
// token is a no-op, so replays are safe.
func (r *HiddenRepo) Hide(tokens ...common.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range tokens {
		r.keys[token.Key()] = true
	}
	return r.persist()
}

// Unhide removes the tokens from the set and persists it.
func (r *HiddenRepo) Unhide(tokens ...common.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range tokens {
		delete(r.keys, token.Key())
	}
	return r.persist()
}

// IsHidden reports whether the token is in the set.
func (r *HiddenRepo) IsHidden(token common.Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[token.Key()]
}

// All returns every hidden token key, sorted.
func (r *HiddenRepo) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.keys))
	for key := range r.keys {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (r *HiddenRepo) persist() error {
	if r.path == "" {
		return nil
	}
	keys := make([]string, 0, len(r.keys))
	for key := range r.keys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	raw, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("fail to marshal hidden set: %w", err)
	}
	if err := os.WriteFile(r.path, raw, 0o600); err != nil {
		return fmt.Errorf("fail to write hidden set: %w", err)
	}
	return nil
}
