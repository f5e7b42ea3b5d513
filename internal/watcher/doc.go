// Package watcher observes changes to the direct contents of a single
// directory and reports them as a typed event stream to one consumer.
//
// A watch starts with a one-time scan of the directory, delivered as a
// single initial batch of Modified events, then switches to live
// monitoring on a dedicated goroutine. Two notification backends exist:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Delivery is serialized: the consumer callback never runs concurrently
// with itself, the initial batch always precedes every live batch, and
// the stream always ends with exactly one WatcherInvalidated event,
// whether the watch is closed or the watched directory disappears.
//
// Usage:
//
//	w, err := watcher.New("/path/to/dir", func(events []watcher.Event, isInitial bool) {
//	    for _, ev := range events {
//	        // Handle ev.Kind / ev.Filename
//	    }
//	}, true, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
// Recursive watching, content diffing, and path filtering are out of
// scope; the engine reports direct children only and keeps no history.
package watcher
