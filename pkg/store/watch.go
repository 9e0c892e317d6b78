// ABOUTME: fsnotify integration marking resident documents stale
// ABOUTME: External edits to backing files force a reload on next access

package store

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lingtools/docserve/pkg/document"
)

// watchAll registers the workdir and every namespace directory. fsnotify
// watches are not recursive, so each namespace needs its own watch.
func (s *Store) watchAll() error {
	if err := s.watcher.Add(s.workdir); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.workdir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			if err := s.watcher.Add(filepath.Join(s.workdir, e.Name())); err != nil {
				s.log.Warn().Err(err).Str("namespace", e.Name()).Msg("unable to watch namespace")
			}
		}
	}
	return nil
}

func (s *Store) watchNamespace(namespace string) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Add(filepath.Join(s.workdir, namespace)); err != nil {
		s.log.Warn().Err(err).Str("namespace", namespace).Msg("unable to watch namespace")
	}
}

func (s *Store) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (s *Store) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	// New namespace directories need a watch of their own.
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if filepath.Dir(ev.Name) == filepath.Clean(s.workdir) {
			if err := s.watcher.Add(ev.Name); err != nil {
				s.log.Warn().Err(err).Str("dir", ev.Name).Msg("unable to watch new namespace")
			}
		}
		return
	}
	if !strings.HasSuffix(ev.Name, docExt) || s.isOwnSave(ev.Name) {
		return
	}
	key, ok := s.keyForPath(ev.Name)
	if !ok {
		return
	}
	s.mu.Lock()
	rec, resident := s.docs[key]
	s.mu.Unlock()
	if !resident {
		return
	}
	rec.mu.Lock()
	if rec.doc != nil {
		rec.stale = true
		s.log.Info().Str("namespace", key.Namespace).Str("docid", key.ID).
			Msg("backing file changed externally, document marked stale")
	}
	rec.mu.Unlock()
}

func (s *Store) keyForPath(path string) (document.Key, bool) {
	rel, err := filepath.Rel(s.workdir, path)
	if err != nil {
		return document.Key{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return document.Key{}, false
	}
	return document.Key{
		Namespace: parts[0],
		ID:        strings.TrimSuffix(parts[1], docExt),
	}, true
}

// markOwnSave records that the next events on this path are ours.
func (s *Store) markOwnSave(path string) {
	s.mu.Lock()
	s.saves[path] = time.Now()
	s.mu.Unlock()
}

func (s *Store) isOwnSave(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.saves[path]
	if !ok {
		return false
	}
	if time.Since(t) > saveGrace {
		delete(s.saves, path)
		return false
	}
	return true
}
