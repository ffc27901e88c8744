// Package fsstore implements the filesystem-backed package dependency
// index described in spec.md §4.4: each package's forward dependency list
// and reverse dependent list is a small file in a shallow hash fan-out
// keyed by the package's first character. Grounded on
// _examples/original_source/indexer/index.py's FilesystemIndex, which
// this package follows file-for-file (same forward/<c>/<name> and
// reverse/<c>/<name> layout, same pre-created a-z buckets) while adapting
// its asyncio single-lock discipline to a plain sync.Mutex.
package fsstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kitsutliff/depindex/internal/store"
)

const (
	forwardDir = "forward"
	reverseDir = "reverse"
	dirPerm    = 0o755
	filePerm   = 0o644
)

// FSStore is a package dependency index backed by a directory tree.
//
// Concurrency model: existence checks (Query, and the "is pkg already
// present" checks inside Index/Remove) are lock-free reads of otherwise
// stable filesystem state, matching spec.md §4.4's "query(P) = existence
// check" and the fact that a concurrent mutation never leaves the
// forward file in a half-written state (it's a single truncate-write).
// Every multi-step mutation (the write-forward-then-touch-reverse-files
// sequence of Index, and the read-then-rewrite sequence of Remove) runs
// under mu, so no two mutators interleave.
type FSStore struct {
	root string
	mu   sync.Mutex
	log  *zap.Logger
}

// New creates (or reopens) a filesystem-backed store rooted at root,
// pre-creating forward/<c> and reverse/<c> for c in a-z as spec.md §4.4
// requires.
func New(root string, log *zap.Logger) (*FSStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FSStore{root: root, log: log}

	for _, sub := range []string{forwardDir, reverseDir} {
		for c := byte('a'); c <= 'z'; c++ {
			dir := filepath.Join(root, sub, string(c))
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return nil, fmt.Errorf("fsstore: creating bucket %s: %w", dir, err)
			}
		}
	}

	return s, nil
}

// bucket returns the fan-out directory name for pkg's first byte. Names
// starting outside a-z fall into an on-demand bucket (auto-created by
// forwardPath/reversePath) rather than being rejected — the wire decoder
// already accepted the line, so refusing it here would surface as a
// surprising, undiagnosable FAIL. This resolves the corresponding
// spec.md Open Question in favor of auto-creation.
func (s *FSStore) bucket(pkg string) string {
	return string(pkg[0])
}

func (s *FSStore) forwardPath(pkg string) (string, error) {
	dir := filepath.Join(s.root, forwardDir, s.bucket(pkg))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", err
	}
	return filepath.Join(dir, pkg), nil
}

func (s *FSStore) reversePath(pkg string) (string, error) {
	dir := filepath.Join(s.root, reverseDir, s.bucket(pkg))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", err
	}
	return filepath.Join(dir, pkg), nil
}

// safeName rejects package names that would escape their fan-out bucket
// on disk (a path separator embedded in the name, or the name "." or
// ".."). The wire protocol
// only forbids '|' and ',' (spec.md §3); this is a store-level guard
// against the remaining case, treated the same way the spec treats an
// empty name: a store-level concern, not a decode rejection.
func safeName(pkg string) bool {
	return pkg != "" && pkg != "." && pkg != ".." && !strings.ContainsRune(pkg, os.PathSeparator)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readCommaSet(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	set := map[string]struct{}{}
	for _, name := range strings.Split(string(data), ",") {
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set, nil
}

func writeCommaSet(path string, set map[string]struct{}) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return os.WriteFile(path, []byte(strings.Join(names, ",")), filePerm)
}

// Index implements store.Store.
func (s *FSStore) Index(pkg string, deps []string) bool {
	if !safeName(pkg) {
		return false
	}

	forwardP, err := s.forwardPath(pkg)
	if err != nil {
		s.log.Warn("fsstore: bucket creation failed", zap.String("pkg", pkg), zap.Error(err))
		return false
	}
	if exists(forwardP) {
		return true
	}

	depSet := map[string]struct{}{}
	for _, dep := range deps {
		depSet[dep] = struct{}{}
	}

	for dep := range depSet {
		depForward, err := s.forwardPath(dep)
		if err != nil || !exists(depForward) {
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if exists(forwardP) { // re-check under lock: a racing Index may have won
		return true
	}

	if err := writeCommaSet(forwardP, depSet); err != nil {
		s.log.Warn("fsstore: writing forward file", zap.String("pkg", pkg), zap.Error(err))
		return false
	}

	for dep := range depSet {
		reverseP, err := s.reversePath(dep)
		if err != nil {
			s.log.Warn("fsstore: bucket creation failed", zap.String("pkg", dep), zap.Error(err))
			return false
		}
		dependents, err := readCommaSet(reverseP)
		if err != nil {
			s.log.Warn("fsstore: reading reverse file", zap.String("pkg", dep), zap.Error(err))
			return false
		}
		dependents[pkg] = struct{}{}
		if err := writeCommaSet(reverseP, dependents); err != nil {
			s.log.Warn("fsstore: writing reverse file", zap.String("pkg", dep), zap.Error(err))
			return false
		}
	}

	return true
}

// Remove implements store.Store.
func (s *FSStore) Remove(pkg string) store.RemoveResult {
	if !safeName(pkg) {
		return store.RemoveNotIndexed
	}

	forwardP, err := s.forwardPath(pkg)
	if err != nil {
		s.log.Warn("fsstore: bucket creation failed", zap.String("pkg", pkg), zap.Error(err))
		return store.RemoveBlocked
	}
	if !exists(forwardP) {
		return store.RemoveNotIndexed
	}

	reverseP, err := s.reversePath(pkg)
	if err != nil {
		s.log.Warn("fsstore: bucket creation failed", zap.String("pkg", pkg), zap.Error(err))
		return store.RemoveBlocked
	}
	if exists(reverseP) {
		return store.RemoveBlocked
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if exists(reverseP) { // re-check under lock
		return store.RemoveBlocked
	}

	deps, err := readCommaSet(forwardP)
	if err != nil {
		s.log.Warn("fsstore: reading forward file", zap.String("pkg", pkg), zap.Error(err))
		return store.RemoveBlocked
	}

	for dep := range deps {
		depReverseP, err := s.reversePath(dep)
		if err != nil {
			s.log.Warn("fsstore: bucket creation failed", zap.String("pkg", dep), zap.Error(err))
			continue
		}
		dependents, err := readCommaSet(depReverseP)
		if err != nil {
			s.log.Warn("fsstore: reading reverse file", zap.String("pkg", dep), zap.Error(err))
			continue
		}
		delete(dependents, pkg)
		if len(dependents) == 0 {
			if err := os.Remove(depReverseP); err != nil && !os.IsNotExist(err) {
				s.log.Warn("fsstore: removing empty reverse file", zap.String("pkg", dep), zap.Error(err))
			}
			continue
		}
		if err := writeCommaSet(depReverseP, dependents); err != nil {
			s.log.Warn("fsstore: writing reverse file", zap.String("pkg", dep), zap.Error(err))
		}
	}

	if err := os.Remove(forwardP); err != nil && !os.IsNotExist(err) {
		s.log.Warn("fsstore: removing forward file", zap.String("pkg", pkg), zap.Error(err))
	}

	return store.RemoveOK
}

// Query implements store.Store.
func (s *FSStore) Query(pkg string) bool {
	if !safeName(pkg) {
		return false
	}
	forwardP, err := s.forwardPath(pkg)
	if err != nil {
		return false
	}
	return exists(forwardP)
}
