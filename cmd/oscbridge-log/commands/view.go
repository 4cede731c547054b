// Package commands implements the oscbridge-log CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
)

// Filter specifies criteria for selecting events.
type Filter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

// Matches reports whether the event passes every set criterion.
func (f Filter) Matches(event log.Event) bool {
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	return true
}

// ParseLayerFlag parses a -layer flag value.
func ParseLayerFlag(name string) (*log.Layer, error) {
	var l log.Layer
	switch name {
	case "discovery":
		l = log.LayerDiscovery
	case "control":
		l = log.LayerControl
	case "directory":
		l = log.LayerDirectory
	case "service":
		l = log.LayerService
	default:
		return nil, fmt.Errorf("unknown layer %q (want discovery, control, directory or service)", name)
	}
	return &l, nil
}

// ParseDirectionFlag parses a -direction flag value.
func ParseDirectionFlag(name string) (*log.Direction, error) {
	var d log.Direction
	switch name {
	case "in":
		d = log.DirectionIn
	case "out":
		d = log.DirectionOut
	default:
		return nil, fmt.Errorf("unknown direction %q (want in or out)", name)
	}
	return &d, nil
}

// ParseCategoryFlag parses a -category flag value.
func ParseCategoryFlag(name string) (*log.Category, error) {
	var c log.Category
	switch name {
	case "packet":
		c = log.CategoryPacket
	case "state":
		c = log.CategoryState
	case "error":
		c = log.CategoryError
	default:
		return nil, fmt.Errorf("unknown category %q (want packet, state or error)", name)
	}
	return &c, nil
}

// RunView prints matching events in human-readable format.
func RunView(path string, filter Filter, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !filter.Matches(event) {
			continue
		}
		formatEvent(w, event)
	}
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %-3s %-9s %s\n",
		ts, shortenSessionID(event.SessionID),
		event.Direction.String(), event.Layer.String(), event.Category.String())

	if event.Instance != "" {
		fmt.Fprintf(w, "  Instance: %s\n", event.Instance)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}
	if event.Address != "" {
		fmt.Fprintf(w, "  Address: %s\n", event.Address)
	}
	if event.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Size)
	}
	if event.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", event.Detail)
	}
	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	if id == "" {
		return "--------"
	}
	return id
}
