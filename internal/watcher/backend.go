package watcher

import (
	"log/slog"
)

// RawOp is the operation a backend observed on a directory entry.
type RawOp int

const (
	// RawCreate indicates a new entry appeared in the watched directory.
	RawCreate RawOp = iota
	// RawWrite indicates an entry's content changed.
	RawWrite
	// RawChmod indicates an entry's metadata changed without a content
	// change. Translated to a best-effort duplicate Modified.
	RawChmod
	// RawRemove indicates an entry was deleted or moved out.
	RawRemove
	// RawRootRemoved indicates the watched directory itself was removed
	// or renamed. Terminal for the subscription.
	RawRootRemoved
)

// RawEvent is a single low-level notification from a Backend.
type RawEvent struct {
	// Name is the entry name relative to the watched directory.
	// Empty for RawRootRemoved.
	Name string

	// Op is the observed operation.
	Op RawOp
}

// Backend is the raw change notification source for a single directory.
// One implementation exists per notification mechanism; the implementation
// is chosen once at watch creation and held for the watch's lifetime.
//
// Start must be called exactly once before reading Events. After Close,
// or after the backend loses its subscription, the Events channel is
// closed. Backends report direct children only; they never recurse.
type Backend interface {
	// Start activates the subscription for path. Notifications arriving
	// after Start returns are buffered on the Events channel.
	Start(path string) error

	// Events returns the raw notification channel. Closed when the
	// backend stops, whether by Close or by subscription loss.
	Events() <-chan RawEvent

	// Errors returns the channel of fatal subscription errors.
	Errors() <-chan error

	// Close releases the subscription. Safe to call multiple times.
	Close() error

	// Dropped returns the number of raw events discarded because the
	// notification buffer was full.
	Dropped() uint64

	// Name identifies the backend ("fsnotify" or "poll").
	Name() string
}

// newBackend constructs the backend selected by opts. In auto mode the
// fsnotify backend is preferred; if the OS declines the subscription the
// polling backend is used instead.
func newBackend(opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendFsnotify:
		return newFsnotifyBackend(opts)
	case BackendPoll:
		return newPollBackend(opts), nil
	default:
		b, err := newFsnotifyBackend(opts)
		if err != nil {
			slog.Warn("fsnotify unavailable, falling back to polling",
				slog.String("error", err.Error()))
			return newPollBackend(opts), nil
		}
		return b, nil
	}
}
