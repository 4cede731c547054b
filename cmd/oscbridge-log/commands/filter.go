package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/log"
)

// RunFilter copies matching events into a new log file.
func RunFilter(inPath, outPath string, filter Filter) error {
	reader, err := log.NewReader(inPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	enc := log.NewEncoder(out)
	kept := 0
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
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		kept++
	}

	fmt.Printf("Wrote %d events to %s\n", kept, outPath)
	return nil
}
