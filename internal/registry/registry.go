// Package registry maintains the orchestrator's mapping from cabinet id to
// endpoint address and cached strip dimensions.
package registry

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicate rejects re-registration of a known id. Replacing a
	// cabinet requires an explicit deregister first.
	ErrDuplicate = errors.New("cabinet already registered")
	// ErrNotFound covers both lookups of unknown ids and deregistration
	// of ids that were never registered.
	ErrNotFound = errors.New("unknown cabinet")
)

// Entry is one registered cabinet. RowLen/ColLen are cached from the
// endpoint's state at registration time and not re-validated per command.
type Entry struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	RowLen int    `json:"row_len"`
	ColLen int    `json:"col_len"`
}

// Registry is the shared cabinet table. Entries keep registration order.
// Every mutation holds the lock across the in-memory change and the store
// write; a failed persist rolls the change back so memory and disk never
// diverge.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
	index   map[string]int
	store   *Store // nil = in-memory only
}

// New builds a registry backed by store, loading any persisted entries.
// A nil store keeps the registry purely in memory.
func New(store *Store) (*Registry, error) {
	r := &Registry{index: make(map[string]int), store: store}
	if store == nil {
		return r, nil
	}
	entries, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		r.index[e.ID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// Add registers a new cabinet and persists the full table.
func (r *Registry) Add(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[e.ID]; ok {
		return ErrDuplicate
	}
	r.entries = append(r.entries, e)
	r.index[e.ID] = len(r.entries) - 1
	if err := r.persistLocked(); err != nil {
		r.entries = r.entries[:len(r.entries)-1]
		delete(r.index, e.ID)
		return err
	}
	return nil
}

// Remove deregisters a cabinet and persists the full table.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return ErrNotFound
	}
	removed := r.entries[pos]
	r.entries = append(r.entries[:pos], r.entries[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.entries); i++ {
		r.index[r.entries[i].ID] = i
	}
	if err := r.persistLocked(); err != nil {
		r.entries = append(r.entries[:pos], append([]Entry{removed}, r.entries[pos:]...)...)
		for i := pos; i < len(r.entries); i++ {
			r.index[r.entries[i].ID] = i
		}
		return err
	}
	return nil
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[pos], true
}

// List returns all entries in registration order.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) persistLocked() error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(r.entries)
}
