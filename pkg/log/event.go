package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one run of the bridge (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port), when known.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Instance is the mDNS instance name involved, when known.
	Instance string `cbor:"7,keyasint,omitempty"`

	// Address is the OSC address path, for control-layer events.
	Address string `cbor:"8,keyasint,omitempty"`

	// Size is the datagram size in bytes, for packet events.
	Size int `cbor:"9,keyasint,omitempty"`

	// Detail is a short human-readable note (state names, error text).
	Detail string `cbor:"10,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerDiscovery is the mDNS discovery layer.
	LayerDiscovery Layer = 0
	// LayerControl is the OSC control transport layer.
	LayerControl Layer = 1
	// LayerDirectory is the capability directory (HTTP) layer.
	LayerDirectory Layer = 2
	// LayerService is the orchestration layer.
	LayerService Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerDiscovery:
		return "DISCOVERY"
	case LayerControl:
		return "CONTROL"
	case LayerDirectory:
		return "DIRECTORY"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPacket indicates a wire packet was sent or received.
	CategoryPacket Category = 0
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 1
	// CategoryError indicates an absorbed or surfaced error.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPacket:
		return "PACKET"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
