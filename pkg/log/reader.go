package log

import (
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads events back out of a protocol log file.
type Reader struct {
	file *os.File
	dec  *cbor.Decoder
}

// NewReader opens a protocol log file for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: logDecMode.NewDecoder(f)}, nil
}

// Next returns the next event, io.EOF at end of file.
func (r *Reader) Next() (Event, error) {
	var event Event
	if err := r.dec.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
