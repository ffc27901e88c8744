// Package memstore implements the package-indexer/internal/indexer dual-map
// design generalized to the store.Store contract, with an optional on-disk
// JSON snapshot. It is grounded on the teacher's internal/indexer.Indexer:
// same dual forward/dependents maps under a single lock, same StringSet
// idea for O(1) set membership, generalized here to fix the re-index
// idempotency invariant and to add the §4.3 snapshot persistence.
package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kitsutliff/depindex/internal/store"
)

// stringSet is a set of strings backed by a map, giving O(1) membership
// checks and insertion for dependency bookkeeping.
type stringSet map[string]struct{}

func newStringSet(items []string) stringSet {
	s := make(stringSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s stringSet) sortedSlice() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// MemoryStore holds the package dependency graph in process memory,
// optionally backed by a JSON snapshot file on disk.
//
// Architecture decision carried from the teacher: a single RWMutex
// guards both maps, admitting concurrent Query calls while serializing
// every mutation (and, uniquely to this store, the snapshot rewrite that
// accompanies it) behind one exclusive critical section.
type MemoryStore struct {
	mu sync.RWMutex

	forward map[string]stringSet // package -> its dependencies
	reverse map[string]stringSet // package -> packages that depend on it

	snapshotPath string
	log          *zap.Logger
}

// snapshotDoc is the on-disk JSON shape: top-level "forward" and "reverse"
// objects, "forward" mapping a package name to its (possibly empty)
// dependency list and "reverse" mapping a package name to the packages
// that depend on it.
type snapshotDoc struct {
	Forward map[string][]string `json:"forward"`
	Reverse map[string][]string `json:"reverse"`
}

// New constructs a MemoryStore. If snapshotPath is empty the store is
// purely in-memory. If snapshotPath is non-empty and the file exists, its
// contents are loaded and validated; a malformed file (missing either
// top-level key) is a fatal startup error returned to the caller, which
// per spec.md §4.3 must abort the process before accepting connections.
// If snapshotPath is non-empty and the file does not yet exist, the store
// starts empty and the file is created on the first successful mutation.
func New(snapshotPath string, log *zap.Logger) (*MemoryStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &MemoryStore{
		forward:      make(map[string]stringSet),
		reverse:      make(map[string]stringSet),
		snapshotPath: snapshotPath,
		log:          log,
	}

	if snapshotPath == "" {
		return s, nil
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("memstore: reading snapshot %s: %w", snapshotPath, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("memstore: parsing snapshot %s: %w", snapshotPath, err)
	}
	forwardRaw, ok := raw["forward"]
	if !ok {
		return nil, fmt.Errorf("memstore: snapshot %s missing top-level %q key", snapshotPath, "forward")
	}
	reverseRaw, ok := raw["reverse"]
	if !ok {
		return nil, fmt.Errorf("memstore: snapshot %s missing top-level %q key", snapshotPath, "reverse")
	}

	var forwardDoc, reverseDoc map[string][]string
	if err := json.Unmarshal(forwardRaw, &forwardDoc); err != nil {
		return nil, fmt.Errorf("memstore: snapshot %s has malformed %q: %w", snapshotPath, "forward", err)
	}
	if err := json.Unmarshal(reverseRaw, &reverseDoc); err != nil {
		return nil, fmt.Errorf("memstore: snapshot %s has malformed %q: %w", snapshotPath, "reverse", err)
	}

	for pkg, deps := range forwardDoc {
		s.forward[pkg] = newStringSet(deps)
	}
	for pkg, dependents := range reverseDoc {
		s.reverse[pkg] = newStringSet(dependents)
	}

	return s, nil
}

// Index implements store.Store. Re-indexing an already-present package is
// a pure no-op: the originally recorded dependency set is retained, not
// replaced, per the idempotent-re-index invariant.
func (s *MemoryStore) Index(pkg string, deps []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, present := s.forward[pkg]; present {
		return true
	}

	depSet := newStringSet(deps)
	for dep := range depSet {
		if _, ok := s.forward[dep]; !ok {
			return false
		}
	}

	s.forward[pkg] = depSet
	for dep := range depSet {
		if s.reverse[dep] == nil {
			s.reverse[dep] = make(stringSet)
		}
		s.reverse[dep][pkg] = struct{}{}
	}

	s.writebackOrFatal()
	return true
}

// Remove implements store.Store.
func (s *MemoryStore) Remove(pkg string) store.RemoveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, present := s.forward[pkg]; !present {
		return store.RemoveNotIndexed
	}
	if len(s.reverse[pkg]) > 0 {
		return store.RemoveBlocked
	}

	for dep := range s.forward[pkg] {
		delete(s.reverse[dep], pkg)
		if len(s.reverse[dep]) == 0 {
			delete(s.reverse, dep)
		}
	}
	delete(s.forward, pkg)
	delete(s.reverse, pkg)

	s.writebackOrFatal()
	return store.RemoveOK
}

// Query implements store.Store.
func (s *MemoryStore) Query(pkg string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, present := s.forward[pkg]
	return present
}

// writebackOrFatal serializes the whole document and rewrites the
// snapshot file, called with mu already held for writing. Per spec.md
// §4.3, a writeback failure is fatal: the in-memory mutation has already
// diverged from its persisted copy of record, so the process is not left
// running in an unrecoverable state silently. log.Fatal terminates the
// process (zap's contract for the Fatal level), matching the teacher's
// own log.Fatalf usage for unrecoverable startup errors.
func (s *MemoryStore) writebackOrFatal() {
	if s.snapshotPath == "" {
		return
	}

	doc := snapshotDoc{
		Forward: make(map[string][]string, len(s.forward)),
		Reverse: make(map[string][]string, len(s.reverse)),
	}
	for pkg, deps := range s.forward {
		doc.Forward[pkg] = deps.sortedSlice()
	}
	for pkg, dependents := range s.reverse {
		doc.Reverse[pkg] = dependents.sortedSlice()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		s.log.Fatal("memstore: encoding snapshot", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.snapshotPath, data, 0o644); err != nil {
		s.log.Fatal("memstore: writing snapshot", zap.String("path", s.snapshotPath), zap.Error(err))
	}
}
