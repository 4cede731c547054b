// Package mdns implements a minimal, self-contained mDNS/DNS-SD service:
// it advertises the bridge's own OSC and OSCQuery endpoints, answers
// inbound queries for them, and issues queries to discover peer services
// such as a running avatar client.
//
// The service owns one UDP socket bound to 0.0.0.0:5353 with address and
// port reuse enabled, joined to 224.0.0.251 on every non-loopback IPv4
// interface. Peer announcements split identity across PTR, SRV, and A
// records that may arrive in different packets with inconsistent naming, so
// discovery correlates them with a three-tier heuristic (exact target
// match, partial instance match, loopback default). The loopback tier
// exists because the avatar client usually runs on the same host; removing
// it breaks discovery against real peers.
package mdns
