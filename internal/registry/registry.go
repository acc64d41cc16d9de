// Package registry implements the Registry component of spec section 4.1:
// the single exclusively-locked table of managed processes. No per-entry
// locking is used anywhere in this package — cross-entry invariants like
// name uniqueness during a rolling restart require one critical section
// (spec section 5).
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adasa/adasa/internal/adasaerr"
	"github.com/adasa/adasa/internal/cgroup"
	"github.com/adasa/adasa/internal/process"
	"github.com/adasa/adasa/internal/restartpolicy"
)

func policyFromConfig(cfg process.Config) restartpolicy.Policy {
	return restartpolicy.FromConfig(cfg.AutoRestart, cfg.MaxRestarts, time.Duration(cfg.RestartDelaySecs)*time.Second)
}

// ID is the opaque monotonic identifier of spec section 3.
type ID uint64

// Entry is ManagedProcess (spec section 3): everything the Registry owns
// for one managed process.
type Entry struct {
	ID      ID
	Name    string
	Config  process.Config
	State   process.State
	Handle  *process.Handle
	Stats   process.Stats
	Policy  restartpolicy.Policy
	Tracker *restartpolicy.Tracker
	Cgroup  *cgroup.Manager // non-nil only when config.MaxCPU is set
}

// Registry is the exclusively-locked table of Entry, keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID]*Entry
	nextID  uint64
}

func New() *Registry {
	return &Registry{entries: make(map[ID]*Entry)}
}

// Insert allocates a new ID for cfg and stores a fresh Entry in Starting
// state. Rejects a duplicate name (Invariant 1).
func (r *Registry) Insert(cfg process.Config) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Name == cfg.Name {
			return 0, adasaerr.New(adasaerr.AlreadyExists, "process named %q already registered", cfg.Name)
		}
	}

	r.nextID++
	id := ID(r.nextID)
	r.entries[id] = &Entry{
		ID:      id,
		Name:    cfg.Name,
		Config:  cfg,
		State:   process.Starting,
		Tracker: restartpolicy.NewTracker(),
		Policy:  policyFromConfig(cfg),
	}
	return id, nil
}

// InsertWithID restores an entry under an explicit id, used by snapshot
// restore where ids must be preserved. Fails on id or name collision
// (Invariant 1 and spec section 4.7's duplicate-id/name fatal-load rule).
func (r *Registry) InsertWithID(id ID, cfg process.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return adasaerr.New(adasaerr.StateError, "duplicate id %d in snapshot", id)
	}
	for _, e := range r.entries {
		if e.Name == cfg.Name {
			return adasaerr.New(adasaerr.StateError, "duplicate name %q in snapshot", cfg.Name)
		}
	}
	r.entries[id] = &Entry{
		ID:      id,
		Name:    cfg.Name,
		Config:  cfg,
		State:   process.Starting,
		Tracker: restartpolicy.NewTracker(),
		Policy:  policyFromConfig(cfg),
	}
	if uint64(id) > r.nextID {
		r.nextID = uint64(id)
	}
	return nil
}

// Get returns the entry for id, or NotFound.
func (r *Registry) Get(id ID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, adasaerr.New(adasaerr.NotFound, "no process with id %d", id)
	}
	return e, nil
}

// GetByName returns the entry with an exact name match, or NotFound.
func (r *Registry) GetByName(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, adasaerr.New(adasaerr.NotFound, "no process named %q", name)
}

// FindReplicas returns every entry whose name equals baseName or starts
// with baseName + "-", in a stable order (ascending ID, which for replicas
// spawned together matches enumeration order per spec section 4.2).
func (r *Registry) FindReplicas(baseName string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.entries {
		if e.Name == baseName || strings.HasPrefix(e.Name, baseName+"-") {
			out = append(out, e)
		}
	}
	sortByID(out)
	return out
}

// Remove deletes the entry for id. Not an error if already absent — callers
// needing NotFound semantics should Get first.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// List returns a stable-ordered snapshot of every entry. Readers that will
// not trigger a state transition may use this without promoting to the
// exclusive lock (it is itself a read lock).
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sortByID(out)
	return out
}

// Mutate runs fn with the exclusive lock held, re-fetching the entry inside
// the critical section so a caller that slept (e.g. during backoff) can
// re-validate the entry still exists before mutating it, per spec section 5.
func (r *Registry) Mutate(id ID, fn func(*Entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return adasaerr.New(adasaerr.NotFound, "no process with id %d", id)
	}
	return fn(e)
}

// Snapshot acquires the exclusive lock and runs fn with the whole entry map
// visible, for operations that need a consistent multi-entry view (e.g.
// Insert-time uniqueness checks composed with other mutations). No package
// in this module calls it at present; background loops use List+Mutate to
// keep critical sections short.
func (r *Registry) Snapshot(fn func(map[ID]*Entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.entries)
}

func sortByID(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}
