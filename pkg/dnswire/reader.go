package dnswire

// maxPointerHops bounds compression-pointer chains. A legitimate name never
// needs more than a handful of hops; malformed packets can loop.
const maxPointerHops = 32

// reader is a bounds-checked big-endian cursor over one packet buffer.
// Domain-name decompression needs random access into the same buffer, so the
// reader keeps the whole packet rather than consuming a stream.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) readU8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := uint16(r.buf[r.pos])<<8 | uint16(r.buf[r.pos+1])
	r.pos += 2
	return v, nil
}

func (r *reader) readU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := uint32(r.buf[r.pos])<<24 | uint32(r.buf[r.pos+1])<<16 |
		uint32(r.buf[r.pos+2])<<8 | uint32(r.buf[r.pos+3])
	r.pos += 4
	return v, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// readLabels reads a domain name, following compression pointers. A pointer
// may only reference an earlier offset, and the total hop count is capped,
// so a crafted packet cannot recurse without bound.
func (r *reader) readLabels() ([]string, error) {
	var labels []string
	pos := r.pos
	// After the first pointer hop, pos diverges from r.pos; the cursor only
	// advances over the bytes the name physically occupies at its call site.
	jumped := false
	hops := 0

	for {
		if pos >= len(r.buf) {
			return nil, ErrTruncated
		}
		b := r.buf[pos]

		switch {
		case b == 0:
			if !jumped {
				r.pos = pos + 1
			}
			return labels, nil

		case b&0xC0 == 0xC0:
			if pos+1 >= len(r.buf) {
				return nil, ErrTruncated
			}
			offset := int(b&0x3F)<<8 | int(r.buf[pos+1])
			if offset >= pos {
				return nil, ErrPointerOutOfRange
			}
			hops++
			if hops > maxPointerHops {
				return nil, ErrPointerLoop
			}
			if !jumped {
				r.pos = pos + 2
				jumped = true
			}
			pos = offset

		default:
			length := int(b)
			if pos+1+length > len(r.buf) {
				return nil, ErrTruncated
			}
			labels = append(labels, string(r.buf[pos+1:pos+1+length]))
			pos += 1 + length
			if !jumped {
				r.pos = pos
			}
		}
	}
}
