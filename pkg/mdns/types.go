package mdns

import (
	"errors"
	"net"
	"time"
)

// Well-known mDNS constants.
const (
	// MulticastAddr is the IPv4 mDNS group.
	MulticastAddr = "224.0.0.251"

	// Port is the well-known mDNS port.
	Port = 5353
)

// Service type constants.
const (
	// ServiceTypeOSC is the UDP control-transport service type.
	ServiceTypeOSC = "_osc._udp.local."

	// ServiceTypeOSCQuery is the TCP capability-directory service type.
	ServiceTypeOSCQuery = "_oscjson._tcp.local."
)

// Record TTLs, matching what avatar clients announce themselves.
const (
	recordTTL  = 4500
	addressTTL = 120
)

// Timing constants.
const (
	// DefaultQueryWindow is how long QueryForService accumulates responses.
	DefaultQueryWindow = 2 * time.Second

	// pollInterval bounds how long a loop can overrun a cancellation.
	pollInterval = 100 * time.Millisecond

	// receiveErrorBackoff is the pause after an unexpected receive error.
	receiveErrorBackoff = 50 * time.Millisecond

	// maxDatagramSize is the receive buffer size. Larger datagrams from
	// other devices on the group are skipped, not fatal.
	maxDatagramSize = 4096
)

// FallbackPolicy controls which unmatched SRV records get the loopback
// default address during correlation.
type FallbackPolicy int

const (
	// FallbackAllUnmatched emits a loopback entry for every SRV record
	// that matched no A record.
	FallbackAllUnmatched FallbackPolicy = iota

	// FallbackFirstUnmatched emits a loopback entry only for the first
	// unmatched SRV record.
	FallbackFirstUnmatched

	// FallbackNone disables the loopback tier entirely.
	FallbackNone
)

// Discovery errors.
var (
	ErrAlreadyRunning = errors.New("mdns: listener already running")
	ErrStopped        = errors.New("mdns: service stopped")
)

// AdvertisedService is one service the local host announces,
// keyed by (instance name, service type).
type AdvertisedService struct {
	ServiceName string
	ServiceType string
	Port        uint16
	Address     net.IP
}

// DiscoveredService is one peer service resolved from inbound responses.
type DiscoveredService struct {
	ServiceName string
	Port        uint16
	Address     net.IP
}
