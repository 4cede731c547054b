package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
)

// jsonEvent is the JSON export shape of one event.
type jsonEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id,omitempty"`
	Direction  string    `json:"direction"`
	Layer      string    `json:"layer"`
	Category   string    `json:"category"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Instance   string    `json:"instance,omitempty"`
	Address    string    `json:"address,omitempty"`
	Size       int       `json:"size,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// RunExport writes the log file to w in the requested format.
func RunExport(path, format string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format %q (want jsonl or csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := enc.Encode(jsonEvent{
			Timestamp:  event.Timestamp,
			SessionID:  event.SessionID,
			Direction:  event.Direction.String(),
			Layer:      event.Layer.String(),
			Category:   event.Category.String(),
			RemoteAddr: event.RemoteAddr,
			Instance:   event.Instance,
			Address:    event.Address,
			Size:       event.Size,
			Detail:     event.Detail,
		}); err != nil {
			return err
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "session_id", "direction", "layer", "category",
		"remote_addr", "instance", "address", "size", "detail"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		record := []string{
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			event.SessionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.RemoteAddr,
			event.Instance,
			event.Address,
			strconv.Itoa(event.Size),
			event.Detail,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
}
