package watcher

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dwerrors "github.com/Aman-CERP/dirwatch/internal/errors"
)

// resultTimeout bounds how long tests wait for the event stream to reach
// the expected state.
const resultTimeout = 3 * time.Second

type fixture struct {
	watchedDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	watched := filepath.Join(t.TempDir(), "watch")
	require.NoError(t, os.Mkdir(watched, 0o755))
	return &fixture{watchedDir: watched}
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.watchedDir, name)
}

func (f *fixture) addFile(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.path(name), nil, 0o644))
}

func (f *fixture) writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.path(name), []byte(content), 0o644))
}

func (f *fixture) removeFile(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.Remove(f.path(name)))
}

// verifyingConsumer checks the delivered stream against expectations.
// File-scoped events are matched as sets (entry order within the initial
// batch is unspecified); optionalLive tolerates best-effort duplicates.
// Watch-scoped events are collected separately and asserted in order.
type verifyingConsumer struct {
	mu              sync.Mutex
	expectedInitial []Event
	expectedLive    []Event
	optionalLive    []Event
	unexpected      []Event
	terminalSeq     []Event
	wantInitial     bool
	initialSeen     bool
	orderViolations int
	resolved        chan struct{}
	once            sync.Once
}

func newVerifyingConsumer(expectedInitial, expectedLive, optionalLive []Event) *verifyingConsumer {
	return &verifyingConsumer{
		expectedInitial: slices.Clone(expectedInitial),
		expectedLive:    slices.Clone(expectedLive),
		optionalLive:    slices.Clone(optionalLive),
		wantInitial:     len(expectedInitial) > 0,
		resolved:        make(chan struct{}),
	}
}

func (c *verifyingConsumer) consume(events []Event, isInitial bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isInitial {
		c.initialSeen = true
	} else if c.wantInitial && !c.initialSeen {
		c.orderViolations++
	}

	for _, ev := range events {
		if ev.Kind == WatchedDirRemoved || ev.Kind == WatcherInvalidated {
			c.terminalSeq = append(c.terminalSeq, ev)
			if isInitial {
				c.unexpected = append(c.unexpected, ev)
			}
			continue
		}

		pool := &c.expectedLive
		if isInitial {
			pool = &c.expectedInitial
		}
		if i := slices.Index(*pool, ev); i >= 0 {
			*pool = slices.Delete(*pool, i, i+1)
			continue
		}
		if !isInitial {
			if i := slices.Index(c.optionalLive, ev); i >= 0 {
				c.optionalLive = slices.Delete(c.optionalLive, i, i+1)
				continue
			}
		}
		c.unexpected = append(c.unexpected, ev)
	}

	if len(c.unexpected) > 0 || (len(c.expectedInitial) == 0 && len(c.expectedLive) == 0) {
		c.once.Do(func() { close(c.resolved) })
	}
}

// waitResolved blocks until every expected event arrived or something
// unexpected was seen, then asserts the stream was clean.
func (c *verifyingConsumer) waitResolved(t *testing.T) {
	t.Helper()
	select {
	case <-c.resolved:
	case <-time.After(resultTimeout):
		c.mu.Lock()
		defer c.mu.Unlock()
		t.Fatalf("expected events not seen before timeout: initial=%v live=%v",
			c.expectedInitial, c.expectedLive)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.unexpected, "unexpected events seen")
	assert.Zero(t, c.orderViolations, "live events delivered before the initial batch")
}

// assertClean re-checks that nothing unexpected arrived, without waiting.
func (c *verifyingConsumer) assertClean(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.unexpected, "unexpected events seen")
	assert.Zero(t, c.orderViolations, "live events delivered before the initial batch")
}

// assertTerminal asserts the watch-scoped tail of the stream: the
// optional WatchedDirRemoved followed by exactly one WatcherInvalidated,
// each with an empty filename.
func (c *verifyingConsumer) assertTerminal(t *testing.T, wantDirRemoved bool) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	want := []Event{{Kind: WatcherInvalidated}}
	if wantDirRemoved {
		want = []Event{{Kind: WatchedDirRemoved}, {Kind: WatcherInvalidated}}
	}
	assert.Equal(t, want, c.terminalSeq)
}

func waitDone(t *testing.T, w *DirectoryWatcher) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(resultTimeout):
		t.Fatal("watch did not reach terminal delivery before timeout")
	}
}

func modified(names ...string) []Event {
	events := make([]Event, 0, len(names))
	for _, name := range names {
		events = append(events, Event{Filename: name, Kind: Modified})
	}
	return events
}

func TestDirectoryWatcher_InitialScanSync(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "a")
	f.addFile(t, "b")
	f.addFile(t, "c")

	c := newVerifyingConsumer(modified("a", "b", "c"), nil, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	c.waitResolved(t)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_InitialScanAsync(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "a")
	f.addFile(t, "b")
	f.addFile(t, "c")

	c := newVerifyingConsumer(modified("a", "b", "c"), nil, nil)
	w, err := New(f.watchedDir, c.consume, false, DefaultOptions())
	require.NoError(t, err)

	c.waitResolved(t)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_AddFiles(t *testing.T) {
	f := newFixture(t)

	// Duplicate Modified events are best-effort noise, never required.
	c := newVerifyingConsumer(nil, modified("a", "b", "c"), modified("a", "b", "c"))
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	f.addFile(t, "a")
	f.addFile(t, "b")
	f.addFile(t, "c")

	c.waitResolved(t)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_ModifyFile(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "a")

	c := newVerifyingConsumer(modified("a"), modified("a"), modified("a"))
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	f.writeFile(t, "a", "foo")

	c.waitResolved(t)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_ModifyThenRemove(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "a")

	c := newVerifyingConsumer(
		modified("a"),
		[]Event{{Filename: "a", Kind: Modified}, {Filename: "a", Kind: Removed}},
		modified("a"))
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	f.writeFile(t, "a", "foo")
	f.removeFile(t, "a")

	c.waitResolved(t)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_DeleteFile(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "a")

	c := newVerifyingConsumer(modified("a"), []Event{{Filename: "a", Kind: Removed}}, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	f.removeFile(t, "a")

	c.waitResolved(t)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_DeleteWatchedDir(t *testing.T) {
	f := newFixture(t)

	c := newVerifyingConsumer(nil, nil, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(f.watchedDir))

	waitDone(t, w)
	c.assertTerminal(t, true)
	c.assertClean(t)
	assert.Equal(t, StateInvalidated, w.State())
}

func TestDirectoryWatcher_CloseDeliversInvalidated(t *testing.T) {
	f := newFixture(t)

	c := newVerifyingConsumer(nil, nil, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Close())

	waitDone(t, w)
	c.assertTerminal(t, false)
	c.assertClean(t)
}

func TestDirectoryWatcher_CloseIdempotent(t *testing.T) {
	f := newFixture(t)

	c := newVerifyingConsumer(nil, nil, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	waitDone(t, w)
	// Still exactly one terminal event.
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_ChangeMetadata(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "a")

	// A duplicate Modified is tolerated; Removed or anything else is not.
	c := newVerifyingConsumer(modified("a"), nil, modified("a"))
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	c.waitResolved(t)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(f.path("a"), past, past))

	// Give a spurious notification time to surface.
	time.Sleep(500 * time.Millisecond)

	require.NoError(t, w.Close())
	waitDone(t, w)
	c.assertClean(t)
	c.assertTerminal(t, false)
}

func TestDirectoryWatcher_StateProgression(t *testing.T) {
	f := newFixture(t)

	c := newVerifyingConsumer(nil, nil, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)

	// Synchronous startup hands off the initial batch before returning.
	assert.Equal(t, StateLive, w.State())

	require.NoError(t, w.Close())
	waitDone(t, w)
	assert.Equal(t, StateInvalidated, w.State())
}

func TestDirectoryWatcher_Accessors(t *testing.T) {
	f := newFixture(t)

	c := newVerifyingConsumer(nil, nil, nil)
	w, err := New(f.watchedDir, c.consume, true, DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.Equal(t, f.watchedDir, w.Path())
	assert.Contains(t, []string{BackendFsnotify, BackendPoll}, w.BackendName())
	assert.Zero(t, w.DroppedEvents())
}

func TestNew_CreationErrors(t *testing.T) {
	f := newFixture(t)
	f.addFile(t, "plain")
	consumer := func([]Event, bool) {}

	tests := []struct {
		name     string
		path     string
		consumer Consumer
		opts     Options
		wantCode string
	}{
		{
			name:     "missing path",
			path:     filepath.Join(f.watchedDir, "absent"),
			consumer: consumer,
			opts:     DefaultOptions(),
			wantCode: dwerrors.ErrCodePathNotFound,
		},
		{
			name:     "path is a file",
			path:     f.path("plain"),
			consumer: consumer,
			opts:     DefaultOptions(),
			wantCode: dwerrors.ErrCodeNotADirectory,
		},
		{
			name:     "nil consumer",
			path:     f.watchedDir,
			consumer: nil,
			opts:     DefaultOptions(),
			wantCode: dwerrors.ErrCodeInvalidInput,
		},
		{
			name:     "invalid backend option",
			path:     f.watchedDir,
			consumer: consumer,
			opts:     Options{Backend: "carrier-pigeon"},
			wantCode: dwerrors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.path, tt.consumer, true, tt.opts)
			require.Error(t, err)
			assert.Nil(t, w)
			assert.ErrorIs(t, err, dwerrors.New(tt.wantCode, "", nil))
		})
	}
}
