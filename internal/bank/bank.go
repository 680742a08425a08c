// Package bank implements the repair bank: a persistent
// signature→(template, hole-space, constraints, assignment) store that
// warm-starts the enumerator across runs.
package bank

import (
	"sync"
	"time"

	"github.com/simjay/celor/internal/constraint"
	"github.com/simjay/celor/internal/patch"
	"github.com/simjay/celor/internal/signature"
)

// Entry is one stored repair pattern.
type Entry struct {
	Signature            signature.Signature
	Template             patch.Template
	HoleSpace            *patch.HoleSpace
	LearnedConstraints   []constraint.Constraint
	SuccessfulAssignment patch.Assignment
	SuccessCount         int
	CandidatesTried      int
	FirstUsed            time.Time
	LastUsed             time.Time
}

// Bank is the in-memory, mutex-guarded view over a persistence backend.
// It is safe for single-process concurrent use; cross-process sharing
// requires reload-before-lookup and save-after-success (the backend's
// atomic rename covers the write side).
type Bank struct {
	mu      sync.Mutex
	entries map[string]*Entry // keyed by signature.Key()
	order   []string          // insertion order, for List
	store   Store
}

// Store is the persistence backend a Bank loads from and saves to. The
// file-backed implementation is in store_file.go; tests may substitute an
// in-memory one.
type Store interface {
	Load() ([]*Entry, error)
	Save(entries []*Entry) error
}

// New builds a Bank over store, loading any existing entries. A load
// failure is reported as (*Bank, error) with BankCorrupted-shaped detail,
// but the returned Bank is always usable (starts empty); no failure
// escapes the bank API.
func New(store Store) (*Bank, error) {
	b := &Bank{entries: make(map[string]*Entry), store: store}
	entries, err := store.Load()
	if err != nil {
		return b, &CorruptedError{Err: err}
	}
	for _, e := range entries {
		b.insert(e)
	}
	return b, nil
}

// CorruptedError reports that the backing store could not be parsed; the
// bank starts empty rather than propagating a fatal error.
type CorruptedError struct {
	Err error
}

func (e *CorruptedError) Error() string { return "bank: corrupted store: " + e.Err.Error() }
func (e *CorruptedError) Unwrap() error { return e.Err }

func (b *Bank) insert(e *Entry) {
	key := e.Signature.Key()
	if _, exists := b.entries[key]; !exists {
		b.order = append(b.order, key)
	}
	b.entries[key] = e
}

// Lookup returns the entry stored under sig, if any, by exact signature
// equality.
func (b *Bank) Lookup(sig signature.Signature) (*Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[sig.Key()]
	return e, ok
}

// Store inserts a new entry for sig, or merges into the existing one:
// the stored template and hole space are kept as-is, learned constraints
// are set-unioned (after canonicalisation), the successful assignment is
// updated to the latest, the success count increments, and the
// candidates-tried total accumulates. Constraints whose holes are absent
// from the stored hole space are dropped on merge, so stored constraints
// always reference holes the stored space has.
func (b *Bank) Store(
	sig signature.Signature,
	tmpl patch.Template,
	space *patch.HoleSpace,
	learned []constraint.Constraint,
	assignment patch.Assignment,
	candidatesTried int,
	now time.Time,
) *Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := sig.Key()
	if existing, ok := b.entries[key]; ok {
		holeNames := make(map[string]bool, space.Len())
		for _, n := range existing.HoleSpace.Names() {
			holeNames[n] = true
		}
		merged := constraint.NewSet(existing.LearnedConstraints...)
		merged.AddAll(constraint.ReferencingHoles(learned, holeNames))
		existing.LearnedConstraints = merged.List()
		existing.SuccessfulAssignment = assignment
		existing.SuccessCount++
		existing.CandidatesTried += candidatesTried
		existing.LastUsed = now
		return existing
	}

	holeNames := make(map[string]bool, space.Len())
	for _, n := range space.Names() {
		holeNames[n] = true
	}
	e := &Entry{
		Signature:            sig,
		Template:             tmpl,
		HoleSpace:            space,
		LearnedConstraints:   constraint.ReferencingHoles(learned, holeNames),
		SuccessfulAssignment: assignment,
		SuccessCount:         1,
		CandidatesTried:      candidatesTried,
		FirstUsed:            now,
		LastUsed:             now,
	}
	b.insert(e)
	return e
}

// List returns all entries in insertion order, for diagnostics.
func (b *Bank) List() []*Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Entry, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.entries[k])
	}
	return out
}

// Len returns the number of stored entries.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Delete removes the entry stored under sig, if any, returning whether one
// was removed. Used by the `bank gc` CLI subcommand.
func (b *Bank) Delete(sig signature.Signature) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := sig.Key()
	if _, ok := b.entries[key]; !ok {
		return false
	}
	delete(b.entries, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Flush persists the current entry set via the backing Store.
func (b *Bank) Flush() error {
	b.mu.Lock()
	entries := make([]*Entry, 0, len(b.order))
	for _, k := range b.order {
		entries = append(entries, b.entries[k])
	}
	b.mu.Unlock()
	return b.store.Save(entries)
}
