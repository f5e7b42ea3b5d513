package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/dirwatch/internal/config"
	dwerrors "github.com/Aman-CERP/dirwatch/internal/errors"
	"github.com/Aman-CERP/dirwatch/internal/logging"
	"github.com/Aman-CERP/dirwatch/internal/watcher"
)

// eventLine is the JSON-lines output record for one event.
type eventLine struct {
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	Initial  bool   `json:"initial"`
	Time     string `json:"time"`
}

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var (
		cfgPath      string
		jsonOut      bool
		backend      string
		pollInterval time.Duration
		debounce     time.Duration
		noWait       bool
		eventLog     string
	)

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and print its change events",
		Long: `Watch prints one line per event: the initial snapshot first, then
live changes, ending with WATCHER_INVALIDATED when the watch stops
(Ctrl-C) or the directory is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			// Flags override file configuration.
			if cmd.Flags().Changed("json") {
				cfg.Output.JSON = jsonOut
			}
			if cmd.Flags().Changed("backend") {
				cfg.Watch.Backend = backend
			}
			if cmd.Flags().Changed("poll-interval") {
				cfg.Watch.PollInterval = config.Duration(pollInterval)
			}
			if cmd.Flags().Changed("debounce-window") {
				cfg.Watch.DebounceWindow = config.Duration(debounce)
			}
			if cmd.Flags().Changed("no-wait-initial") {
				cfg.Watch.WaitForInitialSync = !noWait
			}
			if cmd.Flags().Changed("event-log") {
				cfg.Output.EventLog = eventLog
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runWatch(cmd, args[0], cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", config.DefaultFileName, "Path to config file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Force JSON-lines output")
	cmd.Flags().StringVar(&backend, "backend", "", "Notification backend: fsnotify or poll (default: auto)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 100*time.Millisecond, "Scan interval for the polling backend")
	cmd.Flags().DurationVar(&debounce, "debounce-window", 0, "Coalesce rapid changes into one delivery within this window")
	cmd.Flags().BoolVar(&noWait, "no-wait-initial", false, "Return from startup before the initial scan completes")
	cmd.Flags().StringVar(&eventLog, "event-log", "", "Append every event to this file (single session per file)")

	return cmd
}

func runWatch(cmd *cobra.Command, dir string, cfg config.Config) error {
	cleanup, err := logging.SetupDefault(logging.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()

	jsonMode := cfg.Output.JSON || !isatty.IsTerminal(os.Stdout.Fd())

	// Optional event log, guarded against a second session appending to
	// the same file.
	var logWriter io.Writer
	if cfg.Output.EventLog != "" {
		lock := flock.New(cfg.Output.EventLog + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire event log lock: %w", err)
		}
		if !locked {
			return dwerrors.New(dwerrors.ErrCodeLockHeld,
				"event log is in use by another dirwatch session", nil).
				WithDetail("path", cfg.Output.EventLog)
		}
		defer func() { _ = lock.Unlock() }()

		f, err := os.OpenFile(cfg.Output.EventLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer f.Close()
		logWriter = f
	}

	out := cmd.OutOrStdout()
	// The engine serializes consumer invocations, so the writers need no
	// extra locking.
	consumer := func(events []watcher.Event, isInitial bool) {
		for _, ev := range events {
			line := formatEvent(ev, isInitial, jsonMode)
			fmt.Fprintln(out, line)
			if logWriter != nil {
				fmt.Fprintln(logWriter, line)
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(dir, consumer, cfg.Watch.WaitForInitialSync, watcher.Options{
		Backend:         cfg.Watch.Backend,
		PollInterval:    cfg.Watch.PollInterval.Std(),
		EventBufferSize: cfg.Watch.EventBufferSize,
		DebounceWindow:  cfg.Watch.DebounceWindow.Std(),
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return w.Close()
	})
	g.Go(func() error {
		// Terminal event delivered; release the signal goroutine.
		<-w.Done()
		stop()
		return nil
	})
	return g.Wait()
}

// formatEvent renders one event as a human-readable or JSON line.
func formatEvent(ev watcher.Event, isInitial bool, jsonMode bool) string {
	if jsonMode {
		data, err := json.Marshal(eventLine{
			Filename: ev.Filename,
			Kind:     ev.Kind.String(),
			Initial:  isInitial,
			Time:     time.Now().Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Sprintf(`{"kind":%q}`, ev.Kind.String())
		}
		return string(data)
	}
	if isInitial {
		return fmt.Sprintf("%-22s %s (initial)", ev.Kind, ev.Filename)
	}
	return fmt.Sprintf("%-22s %s", ev.Kind, ev.Filename)
}
