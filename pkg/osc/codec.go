package osc

import (
	"encoding/binary"
	"math"
	"strings"
)

// Encode serializes the message: padded address, padded ",<tags>" string,
// then each argument's payload bytes (booleans carry no payload).
func (m Message) Encode() ([]byte, error) {
	if !strings.HasPrefix(m.Address, "/") {
		return nil, ErrBadAddress
	}

	tags := make([]byte, 0, len(m.Args)+1)
	tags = append(tags, ',')
	for _, arg := range m.Args {
		tag, err := typeTag(arg)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	buf := appendPaddedString(nil, m.Address)
	buf = appendPaddedString(buf, string(tags))

	for _, arg := range m.Args {
		switch v := arg.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case float32:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		case bool:
			// encoded entirely in the type tag
		case string:
			buf = appendPaddedString(buf, v)
		}
	}
	return buf, nil
}

// Encode serializes the bundle: "#bundle", 8-byte time tag, then each
// message as a size-prefixed element.
func (b Bundle) Encode() ([]byte, error) {
	buf := appendPaddedString(nil, bundleMarker)
	buf = binary.BigEndian.AppendUint64(buf, b.TimeTag)
	for _, m := range b.Messages {
		elem, err := m.Encode()
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(elem)))
		buf = append(buf, elem...)
	}
	return buf, nil
}

// IsBundle reports whether the datagram starts with the bundle marker.
func IsBundle(data []byte) bool {
	return len(data) >= len(bundleMarker)+1 && string(data[:len(bundleMarker)]) == bundleMarker
}

// DecodeMessage parses a single message datagram.
func DecodeMessage(data []byte) (Message, error) {
	address, rest, err := readPaddedString(data)
	if err != nil {
		return Message{}, err
	}
	if !strings.HasPrefix(address, "/") {
		return Message{}, ErrBadAddress
	}

	tags, rest, err := readPaddedString(rest)
	if err != nil {
		return Message{}, err
	}
	if !strings.HasPrefix(tags, ",") {
		return Message{}, ErrBadTypeTags
	}

	m := Message{Address: address}
	for _, tag := range []byte(tags[1:]) {
		switch tag {
		case 'i':
			if len(rest) < 4 {
				return Message{}, ErrTruncated
			}
			m.Args = append(m.Args, int32(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
		case 'f':
			if len(rest) < 4 {
				return Message{}, ErrTruncated
			}
			m.Args = append(m.Args, math.Float32frombits(binary.BigEndian.Uint32(rest)))
			rest = rest[4:]
		case 'T':
			m.Args = append(m.Args, true)
		case 'F':
			m.Args = append(m.Args, false)
		case 's':
			var s string
			s, rest, err = readPaddedString(rest)
			if err != nil {
				return Message{}, err
			}
			m.Args = append(m.Args, s)
		default:
			return Message{}, ErrUnsupportedType
		}
	}
	return m, nil
}

// DecodeBundle parses a bundle datagram, flattening nested bundles.
func DecodeBundle(data []byte) (Bundle, error) {
	if !IsBundle(data) {
		return Bundle{}, ErrNotABundle
	}
	_, rest, err := readPaddedString(data)
	if err != nil {
		return Bundle{}, err
	}
	if len(rest) < 8 {
		return Bundle{}, ErrTruncated
	}
	b := Bundle{TimeTag: binary.BigEndian.Uint64(rest)}
	rest = rest[8:]

	for len(rest) > 0 {
		if len(rest) < 4 {
			return Bundle{}, ErrTruncated
		}
		size := int(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if size < 0 || size > len(rest) {
			return Bundle{}, ErrTruncated
		}
		elem := rest[:size]
		rest = rest[size:]

		if IsBundle(elem) {
			nested, err := DecodeBundle(elem)
			if err != nil {
				return Bundle{}, err
			}
			b.Messages = append(b.Messages, nested.Messages...)
			continue
		}
		m, err := DecodeMessage(elem)
		if err != nil {
			return Bundle{}, err
		}
		b.Messages = append(b.Messages, m)
	}
	return b, nil
}

// Decode parses a datagram that may be either a single message or a bundle,
// returning the contained messages in order.
func Decode(data []byte) ([]Message, error) {
	if IsBundle(data) {
		b, err := DecodeBundle(data)
		if err != nil {
			return nil, err
		}
		return b.Messages, nil
	}
	m, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	return []Message{m}, nil
}

// appendPaddedString appends s, a NUL terminator, and zero padding to the
// next 4-byte boundary.
func appendPaddedString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// readPaddedString consumes a NUL-terminated, 4-byte padded string.
func readPaddedString(data []byte) (string, []byte, error) {
	end := -1
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, ErrTruncated
	}
	consumed := end + 1
	for consumed%4 != 0 {
		consumed++
	}
	if consumed > len(data) {
		return "", nil, ErrTruncated
	}
	return string(data[:end]), data[consumed:], nil
}
