package oscquery

import (
	"errors"
	"fmt"
)

// Access is the node access code used by the directory tree.
type Access int

const (
	AccessNone      Access = 0 // intermediate nodes
	AccessRead      Access = 1
	AccessWrite     Access = 2
	AccessReadWrite Access = 3
)

// ValueType is the single-letter OSC type tag of a method's value.
type ValueType string

const (
	TypeBool   ValueType = "F"
	TypeInt    ValueType = "i"
	TypeFloat  ValueType = "f"
	TypeString ValueType = "s"
)

var (
	ErrBadAddress     = errors.New("oscquery: method address must start with /")
	ErrMethodNotFound = errors.New("oscquery: method not found")
	ErrValueType      = errors.New("oscquery: value does not match declared type")
	ErrNameUnset      = errors.New("oscquery: service name not set")
	ErrNotRunning     = errors.New("oscquery: server not running")
)

// Method is one controllable endpoint registered with the directory.
type Method struct {
	Address     string
	Access      Access
	Type        ValueType
	Description string
	Value       any // nil until SetMethodValue
}

// Node is one entry of the directory tree as serialized to peers.
type Node struct {
	Description string           `json:"DESCRIPTION,omitempty"`
	FullPath    string           `json:"FULL_PATH"`
	Access      Access           `json:"ACCESS"`
	Contents    map[string]*Node `json:"CONTENTS,omitempty"`
	Type        string           `json:"TYPE,omitempty"`
	Value       []any            `json:"VALUE,omitempty"`
}

// HostInfo is the HOST_INFO document describing this host's control
// endpoint and directory capabilities.
type HostInfo struct {
	Name         string          `json:"NAME"`
	Extensions   map[string]bool `json:"EXTENSIONS"`
	OSCIP        string          `json:"OSC_IP"`
	OSCPort      uint16          `json:"OSC_PORT"`
	OSCTransport string          `json:"OSC_TRANSPORT"`
}

// coerceValue checks a value against the method's declared type and
// normalizes it to the form serialized into VALUE.
func coerceValue(t ValueType, v any) (any, error) {
	switch t {
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int32:
			return n, nil
		case int:
			return int32(n), nil
		}
	case TypeFloat:
		switch f := v.(type) {
		case float32:
			return f, nil
		case float64:
			return float32(f), nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: type %q, value %T", ErrValueType, t, v)
}
