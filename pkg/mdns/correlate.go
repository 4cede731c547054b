package mdns

import (
	"net"
	"strings"

	"github.com/oscbridge-protocol/oscbridge-go/pkg/dnswire"
)

// correlate resolves DiscoveredServices from one response packet.
//
// A peer's identity is split across up to three record types: a PTR
// announcing the instance, an SRV giving port and target host name, and an
// A mapping that host name to an address. They may arrive in different
// packets, and real peers are inconsistent about whether the SRV target
// exactly matches the A owner name. For every SRV owned by the service of
// interest the routine therefore tries, in order:
//
//  1. an exact match of the SRV target against an A owner name;
//  2. a partial match on the leading instance segment of the two names;
//  3. per the fallback policy, a loopback-address default, since the peer
//     commonly runs on the same host as this process.
//
// The ordering of records within the packet does not matter; the full
// record set is scanned first.
func correlate(packet *dnswire.Packet, serviceType string, policy FallbackPolicy) []DiscoveredService {
	suffix := "." + dnswire.JoinName(dnswire.SplitName(serviceType))

	type srvEntry struct {
		owner  string
		port   uint16
		target string
	}
	var srvs []srvEntry
	addrs := make(map[string]net.IP)

	for _, section := range [][]dnswire.Resource{packet.Answers, packet.Additionals} {
		for _, res := range section {
			owner := dnswire.JoinName(res.Labels)
			switch data := res.Data.(type) {
			case dnswire.SRVData:
				if !strings.HasSuffix(owner, suffix) {
					continue
				}
				srvs = append(srvs, srvEntry{
					owner:  owner,
					port:   data.Port,
					target: dnswire.JoinName(data.Target),
				})
			case dnswire.AData:
				addrs[owner] = net.IPv4(data.Addr[0], data.Addr[1], data.Addr[2], data.Addr[3])
			}
		}
	}

	var out []DiscoveredService
	fallbackUsed := false
	for _, srv := range srvs {
		instance := instanceName(srv.owner)

		// Tier 1: exact target match.
		if ip, ok := addrs[srv.target]; ok {
			out = append(out, DiscoveredService{ServiceName: instance, Port: srv.port, Address: ip})
			continue
		}

		// Tier 2: partial match on the instance segment.
		if svc, ok := partialMatch(srv.owner, srv.port, addrs); ok {
			out = append(out, svc)
			continue
		}

		// Tier 3: loopback default.
		if policy == FallbackNone || (policy == FallbackFirstUnmatched && fallbackUsed) {
			continue
		}
		fallbackUsed = true
		out = append(out, DiscoveredService{
			ServiceName: instance,
			Port:        srv.port,
			Address:     net.IPv4(127, 0, 0, 1),
		})
	}
	return out
}

// partialMatch compares the leading instance segment of the SRV owner name
// with each A owner name, accepting equality or containment in either
// direction.
func partialMatch(srvOwner string, port uint16, addrs map[string]net.IP) (DiscoveredService, bool) {
	srvInstance := instanceName(srvOwner)
	for aOwner, ip := range addrs {
		aInstance := instanceName(aOwner)
		if aInstance == srvInstance ||
			strings.Contains(aOwner, srvInstance) ||
			strings.Contains(srvOwner, aInstance) {
			return DiscoveredService{ServiceName: srvInstance, Port: port, Address: ip}, true
		}
	}
	return DiscoveredService{}, false
}

// instanceName extracts the leading instance segment:
// "MAOW-EA528F._osc._udp.local" -> "MAOW-EA528F".
func instanceName(full string) string {
	if idx := strings.Index(full, "."); idx >= 0 {
		return full[:idx]
	}
	return full
}
