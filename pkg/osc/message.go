package osc

import (
	"errors"
	"fmt"
)

// Codec errors.
var (
	ErrTruncated       = errors.New("osc: truncated packet")
	ErrBadAddress      = errors.New("osc: address must start with '/'")
	ErrBadTypeTags     = errors.New("osc: malformed type tag string")
	ErrUnsupportedType = errors.New("osc: unsupported argument type")
	ErrNotABundle      = errors.New("osc: packet is not a bundle")
)

// bundleMarker introduces a bundle packet.
const bundleMarker = "#bundle"

// Message is one typed OSC message: an address path plus arguments.
// Argument values are int32, float32, bool, or string.
type Message struct {
	Address string
	Args    []any
}

// NewMessage builds a message for the given address and arguments.
func NewMessage(address string, args ...any) Message {
	return Message{Address: address, Args: args}
}

// Bundle is a container of messages sharing a time tag.
type Bundle struct {
	TimeTag  uint64
	Messages []Message
}

// typeTag returns the single-character tag for one argument value.
func typeTag(arg any) (byte, error) {
	switch v := arg.(type) {
	case int32:
		return 'i', nil
	case float32:
		return 'f', nil
	case bool:
		if v {
			return 'T', nil
		}
		return 'F', nil
	case string:
		return 's', nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, arg)
	}
}
