package dnswire

// writer accumulates big-endian packet bytes. Label compression on output is
// optional in mDNS, so the writer always emits uncompressed names.
type writer struct {
	buf []byte
}

func (w *writer) writeU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) writeU16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

func (w *writer) writeU32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (w *writer) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) writeLabels(labels []string) {
	for _, label := range labels {
		w.writeU8(uint8(len(label)))
		w.writeBytes([]byte(label))
	}
	w.writeU8(0)
}
