package dnswire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	p := NewResponse()
	p.Answers = []Resource{
		{
			Labels: []string{"_osc", "_udp", "local"},
			RType:  TypePTR,
			RClass: ClassIN,
			TTL:    4500,
			Data:   PTRData{Labels: []string{"MAOW-ABCDEF", "_osc", "_udp", "local"}},
		},
	}
	p.Additionals = []Resource{
		{
			Labels: []string{"MAOW-ABCDEF", "_osc", "_udp", "local"},
			RType:  TypeTXT,
			RClass: ClassIN,
			TTL:    4500,
			Data:   TXTData{Strings: []string{"txtvers=1"}},
		},
		{
			Labels: []string{"MAOW-ABCDEF", "_osc", "_udp", "local"},
			RType:  TypeSRV,
			RClass: ClassIN,
			TTL:    4500,
			Data:   SRVData{Port: 9000, Target: []string{"MAOW-ABCDEF", "osc", "local"}},
		},
		{
			Labels: []string{"MAOW-ABCDEF", "osc", "local"},
			RType:  TypeA,
			RClass: ClassIN,
			TTL:    120,
			Data:   AData{Addr: [4]byte{10, 0, 0, 5}},
		},
	}

	decoded, err := Decode(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestQueryRoundTrip(t *testing.T) {
	q := NewQuery("_oscjson._tcp.local.", TypeANY)
	decoded, err := Decode(q.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Questions, 1)
	assert.False(t, decoded.Response)
	assert.Equal(t, []string{"_oscjson", "_tcp", "local"}, decoded.Questions[0].Labels)
	assert.Equal(t, TypeANY, decoded.Questions[0].QType)
	assert.Equal(t, ClassIN, decoded.Questions[0].QClass)
}

// TestDecodeCompressedName verifies that compression pointers into earlier
// offsets of the same packet are followed.
func TestDecodeCompressedName(t *testing.T) {
	// Header: id 0, response, 1 answer.
	buf := []byte{
		0x00, 0x00, 0x84, 0x00,
		0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00,
	}
	// Answer 1 at offset 12: "_osc._udp.local" PTR -> "a._osc._udp.local"
	// using a pointer back to offset 12 for the service-type suffix.
	name := []byte{
		4, '_', 'o', 's', 'c',
		4, '_', 'u', 'd', 'p',
		5, 'l', 'o', 'c', 'a', 'l',
		0,
	}
	buf = append(buf, name...)
	buf = append(buf, 0x00, 0x0C, 0x00, 0x01) // PTR, IN
	buf = append(buf, 0x00, 0x00, 0x11, 0x94) // TTL 4500
	rdata := []byte{1, 'a', 0xC0, 12}         // "a" + pointer to offset 12
	buf = append(buf, 0x00, byte(len(rdata)))
	buf = append(buf, rdata...)
	// Answer 2: owner name entirely via pointer, A record.
	buf = append(buf, 0xC0, 12)
	buf = append(buf, 0x00, 0x01, 0x00, 0x01)
	buf = append(buf, 0x00, 0x00, 0x00, 0x78)
	buf = append(buf, 0x00, 0x04, 127, 0, 0, 1)

	p, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, p.Answers, 2)

	ptr, ok := p.Answers[0].Data.(PTRData)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "_osc", "_udp", "local"}, ptr.Labels)
	assert.Equal(t, []string{"_osc", "_udp", "local"}, p.Answers[1].Labels)
}

func TestDecodePointerLoop(t *testing.T) {
	// A name whose pointer chain references a forward/self offset must be
	// rejected rather than followed.
	buf := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xC0, 12, // question name pointing at itself
		0x00, 0xFF, 0x00, 0x01,
	}
	_, err := Decode(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPointerOutOfRange))
}

func TestDecodeUnknownRecordType(t *testing.T) {
	p := NewResponse()
	p.Answers = []Resource{
		{
			Labels: []string{"x", "local"},
			RType:  0x001C, // AAAA, not implemented
			RClass: ClassIN,
			TTL:    120,
			Data:   RawData{Bytes: make([]byte, 16)},
		},
		{
			Labels: []string{"x", "local"},
			RType:  TypeA,
			RClass: ClassIN,
			TTL:    120,
			Data:   AData{Addr: [4]byte{192, 168, 1, 20}},
		},
	}

	decoded, err := Decode(p.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Answers, 2)
	_, ok := decoded.Answers[0].Data.(RawData)
	assert.True(t, ok, "unknown type should decode as raw bytes")
	assert.Equal(t, AData{Addr: [4]byte{192, 168, 1, 20}}, decoded.Answers[1].Data)
}

// TestDecodeTruncated feeds every truncation of a valid packet to the
// decoder; each must produce a typed error, never a panic.
func TestDecodeTruncated(t *testing.T) {
	p := NewResponse()
	p.Answers = []Resource{
		{
			Labels: []string{"MAOW-ABCDEF", "_osc", "_udp", "local"},
			RType:  TypeSRV,
			RClass: ClassIN,
			TTL:    4500,
			Data:   SRVData{Port: 9000, Target: []string{"MAOW-ABCDEF", "osc", "local"}},
		},
	}
	full := p.Encode()

	for n := 0; n < len(full); n++ {
		_, err := Decode(full[:n])
		assert.Error(t, err, "truncation at %d bytes", n)
	}
}

func TestSplitJoinName(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
	}{
		{"_osc._udp.local.", []string{"_osc", "_udp", "local"}},
		{"local", []string{"local"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.labels, SplitName(tt.name))
	}
	assert.Equal(t, "_osc._udp.local", JoinName([]string{"_osc", "_udp", "local"}))
}
