package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyBackend adapts a non-recursive fsnotify subscription to the
// Backend interface. Only the watched directory itself is registered, so
// notifications cover direct children plus the directory's own removal.
type fsnotifyBackend struct {
	fsw       *fsnotify.Watcher
	path      string
	events    chan RawEvent
	errors    chan error
	stopCh    chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

var _ Backend = (*fsnotifyBackend)(nil)

// newFsnotifyBackend creates the backend. Fails when the OS declines the
// subscription mechanism (e.g. inotify instance exhaustion).
func newFsnotifyBackend(opts Options) (*fsnotifyBackend, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &fsnotifyBackend{
		fsw:    fsw,
		events: make(chan RawEvent, opts.EventBufferSize),
		errors: make(chan error, 10),
		stopCh: make(chan struct{}),
	}, nil
}

// Start registers the directory and begins translating notifications.
func (b *fsnotifyBackend) Start(path string) error {
	b.path = filepath.Clean(path)
	if err := b.fsw.Add(b.path); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.path, err)
	}
	go b.run()
	return nil
}

// run is the sole sender on the events and errors channels and closes
// the events channel on exit.
func (b *fsnotifyBackend) run() {
	defer close(b.events)
	for {
		select {
		case <-b.stopCh:
			return
		case event, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			if done := b.handle(event); done {
				return
			}
		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			select {
			case b.errors <- err:
			default:
			}
		}
	}
}

// handle translates one fsnotify event. Returns true when the watched
// directory itself is gone and the backend must stop.
func (b *fsnotifyBackend) handle(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) == b.path {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			b.emit(RawEvent{Op: RawRootRemoved})
			return true
		}
		// Events targeting the directory itself (e.g. chmod) are not
		// entry changes.
		return false
	}

	name := filepath.Base(event.Name)
	var op RawOp
	switch {
	case event.Op&fsnotify.Create != 0:
		op = RawCreate
	case event.Op&fsnotify.Write != 0:
		op = RawWrite
	case event.Op&fsnotify.Chmod != 0:
		op = RawChmod
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = RawRemove
	default:
		return false
	}

	b.emit(RawEvent{Name: name, Op: op})
	return false
}

// emit sends a raw event without blocking the notification loop.
func (b *fsnotifyBackend) emit(ev RawEvent) {
	select {
	case b.events <- ev:
	default:
		count := b.dropped.Add(1)
		slog.Warn("raw event buffer full, dropping event",
			slog.String("name", ev.Name),
			slog.Uint64("total_dropped", count),
		)
	}
}

// Events returns the raw notification channel.
func (b *fsnotifyBackend) Events() <-chan RawEvent {
	return b.events
}

// Errors returns the channel of subscription errors.
func (b *fsnotifyBackend) Errors() <-chan error {
	return b.errors
}

// Close releases the OS subscription. Safe to call multiple times.
func (b *fsnotifyBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopCh)
		err = b.fsw.Close()
	})
	return err
}

// Dropped returns the number of discarded raw events.
func (b *fsnotifyBackend) Dropped() uint64 {
	return b.dropped.Load()
}

// Name identifies the backend.
func (b *fsnotifyBackend) Name() string {
	return BackendFsnotify
}
