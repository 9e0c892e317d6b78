// ABOUTME: Resident document store keyed by (namespace, docid)
// ABOUTME: Lazy loads from disk, saves with git commit, evicts idle documents

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lingtools/docserve/internal/metrics"
	"github.com/lingtools/docserve/pkg/document"
	"github.com/lingtools/docserve/pkg/vcs"
)

// ErrNoSuchDocument is returned when a key resolves to no file on disk.
var ErrNoSuchDocument = errors.New("store: no such document")

// TestNamespace is the reserved namespace used by the test suite of the
// annotation editor. Documents in it are never persisted and every key in
// it collapses onto a single well-known document.
const TestNamespace = "testflat"

const docExt = ".json"

// saveGrace is how long after our own write a file event on the same path
// is still attributed to us rather than to an external editor.
const saveGrace = 2 * time.Second

type record struct {
	mu         sync.Mutex
	doc        *document.Document
	lastChange time.Time
	stale      bool
}

// Store keeps documents resident between requests. Documents load lazily
// on first access, persist as versioned JSON files under
// workdir/<namespace>/<docid>.json, and are evicted again after an idle
// period. Access to a single document is serialized through its record, so
// eviction never races an in-flight edit.
type Store struct {
	mu      sync.Mutex
	docs    map[document.Key]*record
	saves   map[string]time.Time
	workdir string
	expiry  time.Duration
	repo    *vcs.Repo
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// New opens a store rooted at workdir, creating it when missing. When the
// workdir is a git checkout, saves are committed. A file watcher marks
// resident documents stale when their backing file changes outside the
// server.
func New(workdir string, expiry time.Duration, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating workdir: %w", err)
	}
	s := &Store{
		docs:    make(map[document.Key]*record),
		saves:   make(map[string]time.Time),
		workdir: workdir,
		expiry:  expiry,
		repo:    vcs.Detect(workdir),
		log:     log,
	}
	if s.repo != nil {
		s.log.Info().Str("workdir", workdir).Msg("git checkout detected, saves will be committed")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn().Err(err).Msg("file watcher unavailable, external changes will not be picked up")
		return s, nil
	}
	s.watcher = w
	if err := s.watchAll(); err != nil {
		s.log.Warn().Err(err).Msg("unable to watch workdir")
	}
	go s.watchLoop()
	return s, nil
}

// Close stops the file watcher. It does not flush resident documents; call
// Flush first when shutting down.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Normalize maps a key onto its canonical form: every key in the test
// namespace names the one test document.
func Normalize(key document.Key) document.Key {
	if key.Namespace == TestNamespace {
		return document.Key{Namespace: TestNamespace, ID: TestNamespace}
	}
	return key
}

func (s *Store) path(key document.Key) string {
	return filepath.Join(s.workdir, key.Namespace, key.ID+docExt)
}

func (s *Store) relpath(key document.Key) string {
	return filepath.Join(key.Namespace, key.ID+docExt)
}

// record returns the record for a key, creating an empty one on first use.
func (s *Store) record(key document.Key) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[key]
	if !ok {
		rec = &record{}
		s.docs[key] = rec
	}
	return rec
}

// lockRecord returns the record for a key with its lock held. A record
// evicted between lookup and lock is discarded and the lookup retried, so
// a key never has more than one resident document instance.
func (s *Store) lockRecord(key document.Key) *record {
	for {
		rec := s.record(key)
		rec.mu.Lock()
		s.mu.Lock()
		current := s.docs[key]
		s.mu.Unlock()
		if current == rec {
			return rec
		}
		rec.mu.Unlock()
	}
}

// loadLocked ensures rec.doc is loaded and fresh. Caller holds rec.mu.
func (s *Store) loadLocked(key document.Key, rec *record) error {
	if rec.doc != nil && !rec.stale {
		return nil
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s/%s", ErrNoSuchDocument, key.Namespace, key.ID)
		}
		return fmt.Errorf("store: reading %s/%s: %w", key.Namespace, key.ID, err)
	}
	doc, err := document.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("store: parsing %s/%s: %w", key.Namespace, key.ID, err)
	}
	if rec.stale {
		s.log.Info().Str("namespace", key.Namespace).Str("docid", key.ID).
			Msg("reloaded externally modified document")
	}
	if rec.doc == nil {
		metrics.DocumentsResident.Inc()
	}
	rec.doc = doc
	rec.stale = false
	rec.lastChange = time.Now()
	return nil
}

// View runs fn with the document loaded, holding its lock for the
// duration.
func (s *Store) View(key document.Key, fn func(*document.Document) error) error {
	key = Normalize(key)
	rec := s.lockRecord(key)
	defer rec.mu.Unlock()
	if err := s.loadLocked(key, rec); err != nil {
		return err
	}
	rec.lastChange = time.Now()
	return fn(rec.doc)
}

// Update runs fn with the document loaded and, when fn succeeds, persists
// the result using the commit message fn returned. Documents in the test
// namespace are never persisted and are dropped after the update, so the
// next access sees a fresh copy from disk.
func (s *Store) Update(key document.Key, fn func(*document.Document) (string, error)) error {
	key = Normalize(key)
	rec := s.lockRecord(key)
	defer rec.mu.Unlock()
	if err := s.loadLocked(key, rec); err != nil {
		return err
	}
	rec.lastChange = time.Now()
	msg, err := fn(rec.doc)
	if key.Namespace == TestNamespace {
		s.dropLocked(key, rec)
		return err
	}
	if err != nil {
		return err
	}
	return s.saveLocked(key, rec, msg)
}

// Save persists a resident document. Loading first is the caller's
// responsibility; saving a document that is not resident is a no-op.
func (s *Store) Save(key document.Key, message string) error {
	key = Normalize(key)
	if key.Namespace == TestNamespace {
		return nil
	}
	rec := s.lockRecord(key)
	defer rec.mu.Unlock()
	if rec.doc == nil {
		return nil
	}
	return s.saveLocked(key, rec, message)
}

// saveLocked writes the document to disk and commits it. Commit failures
// are logged, not returned: the save itself succeeded. Caller holds rec.mu.
func (s *Store) saveLocked(key document.Key, rec *record, message string) error {
	data, err := document.Marshal(rec.doc)
	if err != nil {
		return fmt.Errorf("store: encoding %s/%s: %w", key.Namespace, key.ID, err)
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: creating namespace dir: %w", err)
	}
	s.markOwnSave(path)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: writing %s/%s: %w", key.Namespace, key.ID, err)
	}
	s.log.Debug().Str("namespace", key.Namespace).Str("docid", key.ID).Msg("document saved")
	if s.repo != nil {
		if err := s.repo.Commit(s.relpath(key), message); err != nil {
			s.log.Error().Err(err).Str("docid", key.ID).Msg("git commit failed")
		} else {
			metrics.GitCommits.Inc()
		}
	}
	return nil
}

// Unload evicts a document from memory, optionally saving it first.
func (s *Store) Unload(key document.Key, save bool) error {
	key = Normalize(key)
	rec := s.lockRecord(key)
	defer rec.mu.Unlock()
	if rec.doc == nil {
		return nil
	}
	if save && key.Namespace != TestNamespace {
		if err := s.saveLocked(key, rec, "unloading "+key.ID); err != nil {
			return err
		}
	}
	s.dropLocked(key, rec)
	return nil
}

// dropLocked discards the resident copy. Caller holds rec.mu.
func (s *Store) dropLocked(key document.Key, rec *record) {
	if rec.doc != nil {
		metrics.DocumentsResident.Dec()
	}
	rec.doc = nil
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
}

// Put installs an uploaded document under a namespace, picking a free id
// when the requested one already has a file, and persists it immediately.
// The key actually used is returned.
func (s *Store) Put(key document.Key, doc *document.Document) (document.Key, error) {
	key = Normalize(key)
	if key.Namespace != TestNamespace {
		base := key.ID
		for n := 1; ; n++ {
			if _, err := os.Stat(s.path(key)); os.IsNotExist(err) {
				break
			}
			key.ID = fmt.Sprintf("%s.%d", base, n)
		}
	}
	doc.ID = key.ID
	rec := s.lockRecord(key)
	defer rec.mu.Unlock()
	if rec.doc == nil {
		metrics.DocumentsResident.Inc()
	}
	rec.doc = doc
	rec.stale = false
	rec.lastChange = time.Now()
	if key.Namespace == TestNamespace {
		return key, nil
	}
	if err := s.saveLocked(key, rec, "uploaded "+key.ID); err != nil {
		return key, err
	}
	s.watchNamespace(key.Namespace)
	return key, nil
}

// Sweep evicts documents that have been idle longer than the expiry,
// saving them on the way out. It is called opportunistically from the
// request path, never from a background goroutine, so evictions happen
// under the same locks as edits.
func (s *Store) Sweep() {
	s.mu.Lock()
	keys := make([]document.Key, 0, len(s.docs))
	for key := range s.docs {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	cutoff := time.Now().Add(-s.expiry)
	for _, key := range keys {
		rec := s.lockRecord(key)
		if rec.doc != nil && rec.lastChange.Before(cutoff) {
			s.log.Info().Str("namespace", key.Namespace).Str("docid", key.ID).Msg("evicting idle document")
			if key.Namespace != TestNamespace {
				if err := s.saveLocked(key, rec, "saving changes on "+key.ID); err != nil {
					s.log.Error().Err(err).Str("docid", key.ID).Msg("save on eviction failed")
				}
			}
			s.dropLocked(key, rec)
		}
		rec.mu.Unlock()
	}
}

// Flush saves every resident document. Used on shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	keys := make([]document.Key, 0, len(s.docs))
	for key := range s.docs {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	for _, key := range keys {
		if key.Namespace == TestNamespace {
			continue
		}
		if err := s.Save(key, "saving changes on "+key.ID); err != nil {
			s.log.Error().Err(err).Str("docid", key.ID).Msg("save on shutdown failed")
		}
	}
}

// History returns the git history of a document's backing file.
func (s *Store) History(key document.Key) ([]vcs.Commit, error) {
	key = Normalize(key)
	if s.repo == nil {
		return nil, fmt.Errorf("store: working directory is not under version control")
	}
	return s.repo.Log(s.relpath(key))
}

// Revert restores a document to an earlier revision and drops the resident
// copy so the next access loads the restored file.
func (s *Store) Revert(key document.Key, hash string) error {
	key = Normalize(key)
	if s.repo == nil {
		return fmt.Errorf("store: working directory is not under version control")
	}
	rec := s.lockRecord(key)
	defer rec.mu.Unlock()
	if err := s.repo.Revert(s.relpath(key), hash); err != nil {
		return err
	}
	s.dropLocked(key, rec)
	return nil
}

// Namespaces lists the namespaces present on disk.
func (s *Store) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(s.workdir)
	if err != nil {
		return nil, fmt.Errorf("store: listing namespaces: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Documents lists the document ids in a namespace.
func (s *Store) Documents(namespace string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.workdir, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: namespace %s", ErrNoSuchDocument, namespace)
		}
		return nil, fmt.Errorf("store: listing namespace %s: %w", namespace, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), docExt) {
			out = append(out, strings.TrimSuffix(e.Name(), docExt))
		}
	}
	return out, nil
}

// MakeNamespace creates a namespace directory.
func (s *Store) MakeNamespace(namespace string) error {
	if namespace == "" || strings.ContainsAny(namespace, "/\\.") {
		return fmt.Errorf("store: invalid namespace %q", namespace)
	}
	if err := os.MkdirAll(filepath.Join(s.workdir, namespace), 0o755); err != nil {
		return fmt.Errorf("store: creating namespace: %w", err)
	}
	s.watchNamespace(namespace)
	return nil
}
