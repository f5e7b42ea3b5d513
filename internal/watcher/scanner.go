package watcher

import (
	"log/slog"
	"os"
)

// scanDirectory enumerates the direct entries of path and synthesizes one
// Modified event per entry. Subdirectories are listed, not recursed into.
// Entry order is unspecified; consumers treat the initial batch as a set.
//
// Entries that cannot be stat'd (e.g. permission denied, deleted mid-scan)
// are skipped. An unreadable or missing directory is a hard error.
func scanDirectory(path string) ([]Event, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(entries))
	for _, entry := range entries {
		if _, err := entry.Info(); err != nil {
			slog.Warn("skipping unreadable entry in initial scan",
				slog.String("name", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		events = append(events, Event{Filename: entry.Name(), Kind: Modified})
	}
	return events, nil
}
