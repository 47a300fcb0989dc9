package compose

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/devservers/devserversd/internal/catalog"
	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 120 * time.Millisecond

// Loader owns the compose file watchers and the in-memory compose
// service cache, one entry per registered project. It is the only
// mutator of both; reads take a brief read lock and return a snapshot
// copied out to callers.
type Loader struct {
	log *slog.Logger

	mu      sync.RWMutex
	entries map[string]*projectEntry // project name -> entry
}

type projectEntry struct {
	path     string // project root
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	services []catalog.Service
}

// New returns an empty Loader.
func New(log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{log: log, entries: map[string]*projectEntry{}}
}

// Sync reconciles watched projects against the given registered
// project list: closes watchers for projects no longer present,
// starts watchers (and parses) new ones, and reloads any whose root
// path changed.
func (l *Loader) Sync(projects []catalog.Project) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wanted := make(map[string]catalog.Project, len(projects))
	for _, p := range projects {
		wanted[p.Name] = p
	}

	for name, entry := range l.entries {
		p, ok := wanted[name]
		if !ok {
			l.closeEntry(entry)
			delete(l.entries, name)
			continue
		}
		if p.Path != entry.path {
			l.closeEntry(entry)
			delete(l.entries, name)
		}
	}

	for name, p := range wanted {
		if _, ok := l.entries[name]; ok {
			continue
		}
		l.entries[name] = l.startEntry(p)
	}
}

func (l *Loader) startEntry(p catalog.Project) *projectEntry {
	entry := &projectEntry{path: p.Path, stop: make(chan struct{})}
	entry.services = l.reload(p)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.Error("compose: creating watcher failed", "project", p.Name, "error", err)
		return entry
	}
	if err := watcher.Add(p.Path); err != nil {
		l.log.Error("compose: watching project root failed", "project", p.Name, "path", p.Path, "error", err)
		watcher.Close()
		return entry
	}
	entry.watcher = watcher

	go l.watchLoop(p, entry)
	return entry
}

func (l *Loader) watchLoop(p catalog.Project, entry *projectEntry) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-entry.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-entry.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != ComposeFileName {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C
		case <-timerC:
			l.mu.Lock()
			entry.services = l.reload(p)
			l.mu.Unlock()
		case _, ok := <-entry.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// reload parses the project's compose file, logging and reducing to
// an empty service list on any parse failure. The watcher keeps
// running regardless.
func (l *Loader) reload(p catalog.Project) []catalog.Service {
	path := filepath.Join(p.Path, ComposeFileName)
	result, err := Parse(path, p.Path, p.Name)
	if err != nil {
		l.log.Error("compose: parse failed, project services cleared", "project", p.Name, "error", err)
		return nil
	}
	for _, w := range result.Warnings {
		l.log.Warn("compose: "+w, "project", p.Name)
	}
	return result.Services
}

func (l *Loader) closeEntry(entry *projectEntry) {
	close(entry.stop)
	if entry.watcher != nil {
		entry.watcher.Close()
	}
}

// Services returns a snapshot of every compose-sourced service across
// all watched projects.
func (l *Loader) Services() []catalog.Service {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []catalog.Service
	for _, entry := range l.entries {
		out = append(out, entry.services...)
	}
	return out
}

// Close stops every watcher. Intended for daemon shutdown.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, entry := range l.entries {
		l.closeEntry(entry)
		delete(l.entries, name)
	}
}
