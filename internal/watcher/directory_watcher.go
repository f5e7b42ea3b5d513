package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	dwerrors "github.com/Aman-CERP/dirwatch/internal/errors"
)

// DirectoryWatcher observes the direct contents of a single directory and
// reports changes as a serialized event stream to one consumer. The watch
// moves strictly forward through Scanning, Live, and Invalidated; the
// terminal WatcherInvalidated event is delivered exactly once, after
// which the consumer is never called again.
type DirectoryWatcher struct {
	path       string
	backend    Backend
	dispatcher *dispatcher
	debounce   time.Duration

	state       atomic.Int32
	scanFailed  atomic.Bool
	stopCh      chan struct{}
	stopOnce    sync.Once
	initialDone chan struct{}
	monitorDone chan struct{}
}

// New creates a watch on path and starts delivering events to consumer.
//
// The path must be an existing, readable directory; anything else is a
// hard creation error and no watch is left behind. The subscription is
// registered before the initial scan, so changes racing the scan are not
// lost (they may surface as duplicate live Modified events).
//
// With waitForInitialSync set, New does not return until the initial
// batch has been computed and handed off for delivery. Otherwise the
// scan runs on a background goroutine and New returns immediately; the
// initial batch still precedes every live batch.
func New(path string, consumer Consumer, waitForInitialSync bool, opts Options) (*DirectoryWatcher, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, dwerrors.ValidationError("invalid watch options", err)
	}
	if consumer == nil {
		return nil, dwerrors.ValidationError("consumer must not be nil", nil)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, dwerrors.New(dwerrors.ErrCodePathNotFound, "resolve watch path", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, dwerrors.New(dwerrors.ErrCodePathNotFound, "watch path does not exist", err).
			WithDetail("path", absPath)
	}
	if !info.IsDir() {
		return nil, dwerrors.New(dwerrors.ErrCodeNotADirectory, "watch path is not a directory", nil).
			WithDetail("path", absPath)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, dwerrors.New(dwerrors.ErrCodePathPermission, "watch path is not readable", err).
			WithDetail("path", absPath)
	}
	_ = f.Close()

	backend, err := newBackend(opts)
	if err != nil {
		return nil, dwerrors.New(dwerrors.ErrCodeSubscription, "initialize notification backend", err)
	}
	if err := backend.Start(absPath); err != nil {
		_ = backend.Close()
		return nil, dwerrors.New(dwerrors.ErrCodeSubscription, "start notification backend", err).
			WithDetail("path", absPath)
	}

	w := &DirectoryWatcher{
		path:        absPath,
		backend:     backend,
		dispatcher:  newDispatcher(consumer, opts.EventBufferSize),
		debounce:    opts.DebounceWindow,
		stopCh:      make(chan struct{}),
		initialDone: make(chan struct{}),
		monitorDone: make(chan struct{}),
	}
	w.state.Store(int32(StateScanning))

	go w.monitor()

	if waitForInitialSync {
		w.runInitialScan()
	} else {
		go w.runInitialScan()
	}
	return w, nil
}

// runInitialScan computes the initial batch and hands it off for
// delivery. A scan failure means the directory vanished after
// validation; the monitor turns that into terminal invalidation.
func (w *DirectoryWatcher) runInitialScan() {
	defer close(w.initialDone)

	events, err := scanDirectory(w.path)
	if err != nil {
		slog.Warn("initial scan failed, invalidating watch",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		w.scanFailed.Store(true)
		return
	}
	if len(events) > 0 {
		w.dispatcher.enqueue(eventBatch{events: events, initial: true})
	}
	w.state.CompareAndSwap(int32(StateScanning), int32(StateLive))
}

// monitor owns the live phase: it is the only producer of non-initial
// batches and the only goroutine that closes the dispatcher, which makes
// the ordering and single-terminal-event invariants structural.
func (w *DirectoryWatcher) monitor() {
	defer close(w.monitorDone)
	defer func() { _ = w.backend.Close() }()

	// Live batches must not be enqueued before the initial batch.
	<-w.initialDone

	if w.scanFailed.Load() {
		w.invalidate(true)
		return
	}

	for {
		select {
		case <-w.stopCh:
			w.invalidate(false)
			return
		case err := <-w.backend.Errors():
			slog.Warn("subscription lost, invalidating watch",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
			w.invalidate(true)
			return
		case raw, ok := <-w.backend.Events():
			if !ok {
				// Subscription revoked without an explicit error.
				w.invalidate(true)
				return
			}
			if rootGone := w.forward(raw); rootGone {
				w.invalidate(true)
				return
			}
		}
	}
}

// forward translates raw notifications into one live batch. Without a
// debounce window it coalesces whatever is already queued; with one, the
// batch stays open until the window elapses so rapid successive changes
// land in a single delivery. Arrival order is preserved either way.
// Returns true when the watched directory itself is gone.
func (w *DirectoryWatcher) forward(first RawEvent) (rootGone bool) {
	var events []Event
	add := func(raw RawEvent) bool {
		switch raw.Op {
		case RawRootRemoved:
			return true
		case RawRemove:
			events = append(events, Event{Filename: raw.Name, Kind: Removed})
		default:
			events = append(events, Event{Filename: raw.Name, Kind: Modified})
		}
		return false
	}

	rootGone = add(first)

	var window <-chan time.Time
	if w.debounce > 0 && !rootGone {
		timer := time.NewTimer(w.debounce)
		defer timer.Stop()
		window = timer.C
	}

drain:
	for !rootGone {
		if window != nil {
			select {
			case raw, ok := <-w.backend.Events():
				if !ok {
					rootGone = true
					break drain
				}
				rootGone = add(raw)
			case <-window:
				break drain
			case <-w.stopCh:
				// Flush early; the monitor loop handles shutdown.
				break drain
			}
			continue
		}
		select {
		case raw, ok := <-w.backend.Events():
			if !ok {
				rootGone = true
				break drain
			}
			rootGone = add(raw)
		default:
			break drain
		}
	}

	if len(events) > 0 {
		w.dispatcher.enqueue(eventBatch{events: events})
	}
	return rootGone
}

// invalidate emits the terminal event sequence and ends delivery.
// Called exactly once, from the monitor goroutine.
func (w *DirectoryWatcher) invalidate(dirRemoved bool) {
	w.state.Store(int32(StateInvalidated))
	if dirRemoved {
		w.dispatcher.enqueue(eventBatch{events: []Event{{Kind: WatchedDirRemoved}}})
	}
	w.dispatcher.enqueue(eventBatch{events: []Event{{Kind: WatcherInvalidated}}})
	w.dispatcher.close()
}

// Close requests disposal of the watch. It returns without waiting for
// teardown: the terminal WatcherInvalidated event and goroutine shutdown
// may complete shortly after. Observe completion via the consumer stream
// or Done. Safe to call multiple times.
func (w *DirectoryWatcher) Close() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	return nil
}

// Done is closed once the terminal event has been delivered and no
// further consumer invocations can occur.
func (w *DirectoryWatcher) Done() <-chan struct{} {
	return w.dispatcher.doneCh()
}

// State reports the current lifecycle phase.
func (w *DirectoryWatcher) State() State {
	return State(w.state.Load())
}

// Path returns the absolute path being watched.
func (w *DirectoryWatcher) Path() string {
	return w.path
}

// BackendName reports which notification backend serves this watch.
func (w *DirectoryWatcher) BackendName() string {
	return w.backend.Name()
}

// DroppedEvents returns the number of raw notifications discarded under
// buffer pressure. Consumer deliveries themselves are never dropped.
func (w *DirectoryWatcher) DroppedEvents() uint64 {
	return w.backend.Dropped()
}
