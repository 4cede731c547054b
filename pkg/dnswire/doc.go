// Package dnswire implements the binary packet format used by mDNS/DNS-SD
// service discovery.
//
// Only the record types needed for discovery are implemented: A (address),
// PTR (service pointer), TXT (text), and SRV (service locator). Unknown
// record types are carried through as raw bytes by their advertised length,
// so a packet containing one unrecognized record still decodes.
//
// The codec is pure: it never touches a socket. Decoding follows domain-name
// compression pointers with a hop limit, so malformed packets from a shared
// multicast group cannot drive the decoder into unbounded recursion.
package dnswire
