package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	TotalBytes        int
	Errors            int
	EventsByLayer     map[log.Layer]int
	EventsByDirection map[log.Direction]int
	EventsByAddress   map[string]int
	Sessions          map[string]int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByAddress:   make(map[string]int),
		Sessions:          make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.TotalBytes += event.Size
		stats.EventsByLayer[event.Layer]++
		stats.EventsByDirection[event.Direction]++
		if event.Category == log.CategoryError {
			stats.Errors++
		}
		if event.Address != "" {
			stats.EventsByAddress[event.Address]++
		}
		if event.SessionID != "" {
			stats.Sessions[event.SessionID]++
		}

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintf(w, "Events:   %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Bytes:    %d\n", stats.TotalBytes)
	fmt.Fprintf(w, "Errors:   %d\n", stats.Errors)
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if !stats.TimeRange.Start.IsZero() {
		fmt.Fprintf(w, "Span:     %s to %s (%s)\n",
			stats.TimeRange.Start.UTC().Format(time.RFC3339),
			stats.TimeRange.End.UTC().Format(time.RFC3339),
			stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
	}

	fmt.Fprintln(w, "\nBy layer:")
	for _, layer := range []log.Layer{log.LayerDiscovery, log.LayerControl, log.LayerDirectory, log.LayerService} {
		if n := stats.EventsByLayer[layer]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", layer.String(), n)
		}
	}

	fmt.Fprintln(w, "\nBy direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if n := stats.EventsByDirection[dir]; n > 0 {
			fmt.Fprintf(w, "  %-3s %d\n", dir.String(), n)
		}
	}

	if len(stats.EventsByAddress) > 0 {
		type addrCount struct {
			addr string
			n    int
		}
		addrs := make([]addrCount, 0, len(stats.EventsByAddress))
		for addr, n := range stats.EventsByAddress {
			addrs = append(addrs, addrCount{addr, n})
		}
		sort.Slice(addrs, func(i, j int) bool {
			if addrs[i].n != addrs[j].n {
				return addrs[i].n > addrs[j].n
			}
			return addrs[i].addr < addrs[j].addr
		})
		if len(addrs) > 10 {
			addrs = addrs[:10]
		}
		fmt.Fprintln(w, "\nTop addresses:")
		for _, a := range addrs {
			fmt.Fprintf(w, "  %-40s %d\n", a.addr, a.n)
		}
	}
}
