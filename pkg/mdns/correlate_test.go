package mdns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/dnswire"
)

func srvRecord(owner string, port uint16, target string) dnswire.Resource {
	return dnswire.Resource{
		Labels: dnswire.SplitName(owner),
		RType:  dnswire.TypeSRV,
		RClass: dnswire.ClassIN,
		TTL:    recordTTL,
		Data:   dnswire.SRVData{Port: port, Target: dnswire.SplitName(target)},
	}
}

func aRecord(owner string, ip net.IP) dnswire.Resource {
	var a dnswire.AData
	copy(a.Addr[:], ip.To4())
	return dnswire.Resource{
		Labels: dnswire.SplitName(owner),
		RType:  dnswire.TypeA,
		RClass: dnswire.ClassIN,
		TTL:    addressTTL,
		Data:   a,
	}
}

func TestCorrelateExactMatch(t *testing.T) {
	p := dnswire.NewResponse()
	p.Answers = []dnswire.Resource{
		srvRecord("Client-1._osc._udp.local", 9000, "client-host.local"),
	}
	p.Additionals = []dnswire.Resource{
		aRecord("client-host.local", net.IPv4(192, 168, 1, 50)),
	}

	got := correlate(p, ServiceTypeOSC, FallbackAllUnmatched)
	require.Len(t, got, 1)
	assert.Equal(t, "Client-1", got[0].ServiceName)
	assert.Equal(t, uint16(9000), got[0].Port)
	assert.True(t, got[0].Address.Equal(net.IPv4(192, 168, 1, 50)))
}

// TestCorrelatePartialMatch covers peers whose SRV target and A owner use
// different naming conventions but share the instance segment.
func TestCorrelatePartialMatch(t *testing.T) {
	p := dnswire.NewResponse()
	p.Answers = []dnswire.Resource{
		srvRecord("Foo-ABC._osc._udp.local", 9000, "Foo-ABC.osc.local"),
	}
	p.Additionals = []dnswire.Resource{
		aRecord("Foo-ABC._osc._udp.local", net.IPv4(10, 0, 0, 7)),
	}

	got := correlate(p, ServiceTypeOSC, FallbackAllUnmatched)
	require.Len(t, got, 1)
	assert.Equal(t, "Foo-ABC", got[0].ServiceName)
	assert.True(t, got[0].Address.Equal(net.IPv4(10, 0, 0, 7)))
}

// TestCorrelateLoopbackFallback covers an SRV record with no A record at
// all: the peer is assumed to run on this host.
func TestCorrelateLoopbackFallback(t *testing.T) {
	p := dnswire.NewResponse()
	p.Answers = []dnswire.Resource{
		srvRecord("Bar-XYZ._osc._udp.local", 9123, "nowhere.local"),
	}

	got := correlate(p, ServiceTypeOSC, FallbackAllUnmatched)
	require.Len(t, got, 1)
	assert.Equal(t, "Bar-XYZ", got[0].ServiceName)
	assert.Equal(t, uint16(9123), got[0].Port)
	assert.True(t, got[0].Address.Equal(net.IPv4(127, 0, 0, 1)))
}

func TestCorrelateFallbackPolicies(t *testing.T) {
	p := dnswire.NewResponse()
	p.Answers = []dnswire.Resource{
		srvRecord("One._osc._udp.local", 9000, "one.local"),
		srvRecord("Two._osc._udp.local", 9002, "two.local"),
	}

	assert.Len(t, correlate(p, ServiceTypeOSC, FallbackAllUnmatched), 2)
	assert.Len(t, correlate(p, ServiceTypeOSC, FallbackFirstUnmatched), 1)
	assert.Empty(t, correlate(p, ServiceTypeOSC, FallbackNone))
}

func TestCorrelateIgnoresOtherServices(t *testing.T) {
	p := dnswire.NewResponse()
	p.Answers = []dnswire.Resource{
		srvRecord("Printer._ipp._tcp.local", 631, "printer.local"),
	}
	p.Additionals = []dnswire.Resource{
		aRecord("printer.local", net.IPv4(192, 168, 1, 9)),
	}

	assert.Empty(t, correlate(p, ServiceTypeOSC, FallbackAllUnmatched))
}

// TestCorrelateOrderInsensitive verifies the scan covers both sections in
// either arrival order.
func TestCorrelateOrderInsensitive(t *testing.T) {
	srv := srvRecord("Baz-123._oscjson._tcp.local", 8080, "baz-host.local")
	a := aRecord("baz-host.local", net.IPv4(172, 16, 0, 3))

	first := dnswire.NewResponse()
	first.Answers = []dnswire.Resource{a}
	first.Additionals = []dnswire.Resource{srv}

	second := dnswire.NewResponse()
	second.Answers = []dnswire.Resource{srv}
	second.Additionals = []dnswire.Resource{a}

	got1 := correlate(first, ServiceTypeOSCQuery, FallbackAllUnmatched)
	got2 := correlate(second, ServiceTypeOSCQuery, FallbackAllUnmatched)
	require.Len(t, got1, 1)
	assert.Equal(t, got1, got2)
}
