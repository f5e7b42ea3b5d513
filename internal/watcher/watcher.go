package watcher

import (
	"fmt"
	"time"
)

// EventKind classifies a single watch event.
type EventKind int

const (
	// Modified indicates an entry was created or its content changed.
	// Every entry found by the initial scan is also reported as Modified.
	Modified EventKind = iota
	// Removed indicates an entry was deleted from the watched directory.
	Removed
	// WatchedDirRemoved indicates the watched directory itself disappeared.
	// Always followed by WatcherInvalidated.
	WatchedDirRemoved
	// WatcherInvalidated is the terminal event of every watch. It is
	// delivered exactly once, after which no further events arrive.
	WatcherInvalidated
)

// String returns a human-readable representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case Modified:
		return "MODIFIED"
	case Removed:
		return "REMOVED"
	case WatchedDirRemoved:
		return "WATCHED_DIR_REMOVED"
	case WatcherInvalidated:
		return "WATCHER_INVALIDATED"
	default:
		return "UNKNOWN"
	}
}

// Event is a single change observed on the watched directory.
type Event struct {
	// Filename is the entry name relative to the watched directory.
	// Empty exactly for the watch-scoped kinds WatchedDirRemoved and
	// WatcherInvalidated.
	Filename string

	// Kind is the type of change.
	Kind EventKind
}

// Consumer receives batches of events. Batches are non-empty and
// invocations never overlap: the engine serializes all deliveries.
// The initial scan arrives as a single batch with isInitial set; every
// later batch has isInitial unset. The callback may run on an internal
// goroutine and must not assume it runs on the creating goroutine.
type Consumer func(events []Event, isInitial bool)

// State is the lifecycle phase of a watch. Transitions are strictly
// forward: Scanning -> Live -> Invalidated.
type State int32

const (
	// StateScanning holds from construction until the initial batch has
	// been handed off for delivery.
	StateScanning State = iota
	// StateLive holds while the monitor observes ongoing changes.
	StateLive
	// StateInvalidated is terminal, reached via directory removal,
	// subscription loss, or Close.
	StateInvalidated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateLive:
		return "live"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Backend selection values for Options.Backend.
const (
	// BackendAuto tries fsnotify first and falls back to polling when
	// the OS subscription cannot be initialized.
	BackendAuto = ""
	// BackendFsnotify forces the fsnotify backend.
	BackendFsnotify = "fsnotify"
	// BackendPoll forces the polling backend.
	BackendPoll = "poll"
)

// Options configures a watch.
type Options struct {
	// Backend selects the raw notification backend.
	// One of BackendAuto, BackendFsnotify, BackendPoll. Default: auto.
	Backend string

	// PollInterval is the scan interval for the polling backend.
	// Default: 100ms
	PollInterval time.Duration

	// EventBufferSize is the size of the internal raw event and delivery
	// queues. Default: 1000
	EventBufferSize int

	// DebounceWindow, when positive, keeps a live batch open for this
	// long so that rapid successive changes coalesce into one delivery.
	// Events keep their arrival order; nothing is merged or dropped.
	// Zero disables the window and only already-buffered events are
	// coalesced. Default: 0
	DebounceWindow time.Duration
}

// DefaultOptions returns the default watch options.
func DefaultOptions() Options {
	return Options{
		Backend:         BackendAuto,
		PollInterval:    100 * time.Millisecond,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	switch o.Backend {
	case BackendAuto, BackendFsnotify, BackendPoll:
	default:
		return fmt.Errorf("unknown backend %q", o.Backend)
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if o.EventBufferSize < 0 {
		return fmt.Errorf("event buffer size must not be negative")
	}
	if o.DebounceWindow < 0 {
		return fmt.Errorf("debounce window must not be negative")
	}
	return nil
}
