package dnswire

import (
	"errors"
	"fmt"
	"strings"
)

// DNS record type constants.
const (
	// TypeA is an IPv4 address record.
	TypeA uint16 = 0x0001

	// TypePTR is a service pointer record.
	TypePTR uint16 = 0x000C

	// TypeTXT is a text record.
	TypeTXT uint16 = 0x0010

	// TypeSRV is a service locator record.
	TypeSRV uint16 = 0x0021

	// TypeANY is the query type matching all records.
	TypeANY uint16 = 0x00FF
)

// ClassIN is the internet class. mDNS uses no other class.
const ClassIN uint16 = 0x0001

// Decode errors.
var (
	ErrTruncated         = errors.New("dnswire: truncated packet")
	ErrPointerLoop       = errors.New("dnswire: compression pointer loop")
	ErrPointerOutOfRange = errors.New("dnswire: compression pointer out of range")
	ErrRDataLength       = errors.New("dnswire: resource data length mismatch")
)

// Question is a single query entry.
type Question struct {
	Labels []string
	QType  uint16
	QClass uint16
}

// Resource is a single resource record with its type-tagged payload.
type Resource struct {
	Labels []string
	RType  uint16
	RClass uint16
	TTL    uint32
	Data   RData
}

// RData is the payload of a resource record. Exactly one concrete type
// exists per implemented record type, plus RawData for everything else.
type RData interface {
	// appendTo serializes the payload (without the RDLENGTH prefix).
	appendTo(w *writer)
}

// AData is an IPv4 address payload.
type AData struct {
	Addr [4]byte
}

// PTRData is a domain-name payload pointing at a service instance.
type PTRData struct {
	Labels []string
}

// TXTData is a list of length-prefixed strings.
type TXTData struct {
	Strings []string
}

// SRVData advertises a port and target host for a service instance.
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   []string
}

// RawData carries an unrecognized record type through unmodified.
type RawData struct {
	Bytes []byte
}

// Packet is the unit of wire (de)serialization.
type Packet struct {
	ID            uint16
	Response      bool
	Opcode        uint8
	Authoritative bool
	Truncated     bool
	RCode         uint8

	Questions   []Question
	Answers     []Resource
	Authorities []Resource
	Additionals []Resource
}

// NewResponse returns a packet with the usual mDNS response defaults:
// id 0, QR and AA set, no error code.
func NewResponse() *Packet {
	return &Packet{Response: true, Authoritative: true}
}

// NewQuery returns a one-question query packet for the given service type,
// e.g. "_osc._udp.local." with qtype ANY.
func NewQuery(name string, qtype uint16) *Packet {
	return &Packet{
		Questions: []Question{{
			Labels: SplitName(name),
			QType:  qtype,
			QClass: ClassIN,
		}},
	}
}

// SplitName splits a dotted domain name into labels, dropping the trailing
// root dot: "_osc._udp.local." -> ["_osc" "_udp" "local"].
func SplitName(name string) []string {
	clean := strings.TrimSuffix(name, ".")
	if clean == "" {
		return nil
	}
	return strings.Split(clean, ".")
}

// JoinName is the inverse of SplitName (no trailing dot).
func JoinName(labels []string) string {
	return strings.Join(labels, ".")
}

func (a AData) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3])
}
