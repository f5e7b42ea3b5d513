package watcher

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// pollBackend detects changes by periodically listing the watched
// directory's direct entries and diffing against the previous listing.
// Used when fsnotify is unavailable (network mounts, inotify exhaustion)
// or when explicitly selected.
//
// Metadata-only changes that leave size and mtime untouched are invisible
// to this backend; that is within the engine's tolerated band.
type pollBackend struct {
	interval  time.Duration
	snapshot  map[string]entrySnapshot
	path      string
	events    chan RawEvent
	errors    chan error
	stopCh    chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

type entrySnapshot struct {
	modTime time.Time
	size    int64
}

var _ Backend = (*pollBackend)(nil)

// newPollBackend creates a polling backend with the configured interval.
func newPollBackend(opts Options) *pollBackend {
	return &pollBackend{
		interval: opts.PollInterval,
		snapshot: make(map[string]entrySnapshot),
		events:   make(chan RawEvent, opts.EventBufferSize),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start takes the baseline listing and begins the poll loop.
func (p *pollBackend) Start(path string) error {
	p.path = path
	// Baseline: entries present now are not reported as created later.
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		p.snapshot[entry.Name()] = entrySnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	go p.run()
	return nil
}

func (p *pollBackend) run() {
	defer close(p.events)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if done := p.diff(); done {
				return
			}
		}
	}
}

// diff compares the current listing against the snapshot and emits raw
// events for the differences. Returns true when the watched directory
// itself is gone.
func (p *pollBackend) diff() bool {
	entries, err := os.ReadDir(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			p.emit(RawEvent{Op: RawRootRemoved})
			return true
		}
		// Transient listing failure: skip this tick.
		slog.Warn("poll listing failed",
			slog.String("path", p.path),
			slog.String("error", err.Error()))
		return false
	}

	current := make(map[string]entrySnapshot, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snap := entrySnapshot{modTime: info.ModTime(), size: info.Size()}
		current[entry.Name()] = snap

		prev, seen := p.snapshot[entry.Name()]
		switch {
		case !seen:
			p.emit(RawEvent{Name: entry.Name(), Op: RawCreate})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.emit(RawEvent{Name: entry.Name(), Op: RawWrite})
		}
	}

	for name := range p.snapshot {
		if _, exists := current[name]; !exists {
			p.emit(RawEvent{Name: name, Op: RawRemove})
		}
	}

	p.snapshot = current
	return false
}

// emit sends a raw event without blocking the poll loop.
func (p *pollBackend) emit(ev RawEvent) {
	select {
	case p.events <- ev:
	default:
		count := p.dropped.Add(1)
		slog.Warn("raw event buffer full, dropping event",
			slog.String("name", ev.Name),
			slog.Uint64("total_dropped", count),
		)
	}
}

// Events returns the raw notification channel.
func (p *pollBackend) Events() <-chan RawEvent {
	return p.events
}

// Errors returns the channel of subscription errors.
func (p *pollBackend) Errors() <-chan error {
	return p.errors
}

// Close stops the poll loop. Safe to call multiple times.
func (p *pollBackend) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopCh)
	})
	return nil
}

// Dropped returns the number of discarded raw events.
func (p *pollBackend) Dropped() uint64 {
	return p.dropped.Load()
}

// Name identifies the backend.
func (p *pollBackend) Name() string {
	return BackendPoll
}
