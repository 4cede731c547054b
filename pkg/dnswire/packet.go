package dnswire

import "fmt"

// Header flag masks.
const (
	flagResponse      = 0x8000
	flagOpcodeMask    = 0x7800
	flagAuthoritative = 0x0400
	flagTruncated     = 0x0200
	flagRCodeMask     = 0x000F
)

// Decode parses a full discovery packet from raw datagram bytes.
func Decode(data []byte) (*Packet, error) {
	r := newReader(data)

	id, err := r.readU16()
	if err != nil {
		return nil, err
	}
	flags, err := r.readU16()
	if err != nil {
		return nil, err
	}

	qdcount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	ancount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	nscount, err := r.readU16()
	if err != nil {
		return nil, err
	}
	arcount, err := r.readU16()
	if err != nil {
		return nil, err
	}

	p := &Packet{
		ID:            id,
		Response:      flags&flagResponse != 0,
		Opcode:        uint8(flags & flagOpcodeMask >> 11),
		Authoritative: flags&flagAuthoritative != 0,
		Truncated:     flags&flagTruncated != 0,
		RCode:         uint8(flags & flagRCodeMask),
	}

	for i := 0; i < int(qdcount); i++ {
		q, err := decodeQuestion(r)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		p.Questions = append(p.Questions, q)
	}
	for i := 0; i < int(ancount); i++ {
		res, err := decodeResource(r)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i, err)
		}
		p.Answers = append(p.Answers, res)
	}
	for i := 0; i < int(nscount); i++ {
		res, err := decodeResource(r)
		if err != nil {
			return nil, fmt.Errorf("authority %d: %w", i, err)
		}
		p.Authorities = append(p.Authorities, res)
	}
	for i := 0; i < int(arcount); i++ {
		res, err := decodeResource(r)
		if err != nil {
			return nil, fmt.Errorf("additional %d: %w", i, err)
		}
		p.Additionals = append(p.Additionals, res)
	}

	return p, nil
}

// Encode serializes the packet for sending over UDP.
func (p *Packet) Encode() []byte {
	w := &writer{}

	w.writeU16(p.ID)

	var flags uint16
	if p.Response {
		flags |= flagResponse
	}
	flags |= uint16(p.Opcode&0x0F) << 11
	if p.Authoritative {
		flags |= flagAuthoritative
	}
	if p.Truncated {
		flags |= flagTruncated
	}
	flags |= uint16(p.RCode) & flagRCodeMask
	w.writeU16(flags)

	w.writeU16(uint16(len(p.Questions)))
	w.writeU16(uint16(len(p.Answers)))
	w.writeU16(uint16(len(p.Authorities)))
	w.writeU16(uint16(len(p.Additionals)))

	for _, q := range p.Questions {
		w.writeLabels(q.Labels)
		w.writeU16(q.QType)
		w.writeU16(q.QClass)
	}
	for _, res := range p.Answers {
		encodeResource(w, res)
	}
	for _, res := range p.Authorities {
		encodeResource(w, res)
	}
	for _, res := range p.Additionals {
		encodeResource(w, res)
	}

	return w.buf
}

func decodeQuestion(r *reader) (Question, error) {
	labels, err := r.readLabels()
	if err != nil {
		return Question{}, err
	}
	qtype, err := r.readU16()
	if err != nil {
		return Question{}, err
	}
	qclass, err := r.readU16()
	if err != nil {
		return Question{}, err
	}
	return Question{Labels: labels, QType: qtype, QClass: qclass}, nil
}

func decodeResource(r *reader) (Resource, error) {
	labels, err := r.readLabels()
	if err != nil {
		return Resource{}, err
	}
	rtype, err := r.readU16()
	if err != nil {
		return Resource{}, err
	}
	rclass, err := r.readU16()
	if err != nil {
		return Resource{}, err
	}
	ttl, err := r.readU32()
	if err != nil {
		return Resource{}, err
	}
	rdlength, err := r.readU16()
	if err != nil {
		return Resource{}, err
	}

	start := r.pos
	data, err := decodeRData(r, rtype, rdlength)
	if err != nil {
		return Resource{}, err
	}
	if r.pos-start != int(rdlength) {
		return Resource{}, ErrRDataLength
	}

	return Resource{Labels: labels, RType: rtype, RClass: rclass, TTL: ttl, Data: data}, nil
}

func decodeRData(r *reader, rtype uint16, length uint16) (RData, error) {
	switch rtype {
	case TypeA:
		raw, err := r.readBytes(int(length))
		if err != nil {
			return nil, err
		}
		if len(raw) != 4 {
			return nil, ErrRDataLength
		}
		var a AData
		copy(a.Addr[:], raw)
		return a, nil

	case TypePTR:
		labels, err := r.readLabels()
		if err != nil {
			return nil, err
		}
		return PTRData{Labels: labels}, nil

	case TypeTXT:
		raw, err := r.readBytes(int(length))
		if err != nil {
			return nil, err
		}
		var strs []string
		for len(raw) > 0 {
			n := int(raw[0])
			if n+1 > len(raw) {
				break // malformed tail; keep what decoded cleanly
			}
			strs = append(strs, string(raw[1:1+n]))
			raw = raw[1+n:]
		}
		return TXTData{Strings: strs}, nil

	case TypeSRV:
		priority, err := r.readU16()
		if err != nil {
			return nil, err
		}
		weight, err := r.readU16()
		if err != nil {
			return nil, err
		}
		port, err := r.readU16()
		if err != nil {
			return nil, err
		}
		target, err := r.readLabels()
		if err != nil {
			return nil, err
		}
		return SRVData{Priority: priority, Weight: weight, Port: port, Target: target}, nil

	default:
		// Skip by advertised length so one unknown record does not
		// invalidate the rest of the packet.
		raw, err := r.readBytes(int(length))
		if err != nil {
			return nil, err
		}
		return RawData{Bytes: raw}, nil
	}
}

func encodeResource(w *writer, res Resource) {
	w.writeLabels(res.Labels)
	w.writeU16(res.RType)
	w.writeU16(res.RClass)
	w.writeU32(res.TTL)

	// RDLENGTH is only known after serializing the payload.
	inner := &writer{}
	if res.Data != nil {
		res.Data.appendTo(inner)
	}
	w.writeU16(uint16(len(inner.buf)))
	w.writeBytes(inner.buf)
}

func (a AData) appendTo(w *writer) {
	w.writeBytes(a.Addr[:])
}

func (p PTRData) appendTo(w *writer) {
	w.writeLabels(p.Labels)
}

func (t TXTData) appendTo(w *writer) {
	for _, s := range t.Strings {
		w.writeU8(uint8(len(s)))
		w.writeBytes([]byte(s))
	}
}

func (s SRVData) appendTo(w *writer) {
	w.writeU16(s.Priority)
	w.writeU16(s.Weight)
	w.writeU16(s.Port)
	w.writeLabels(s.Target)
}

func (r RawData) appendTo(w *writer) {
	w.writeBytes(r.Bytes)
}
