// Package transport moves control messages over UDP. A Receiver binds the
// local receive port and decodes inbound datagrams into an unbounded queue
// drained through a channel, so a stalled consumer never drops packets at
// the socket. A Sender encodes outbound messages and writes each one
// through a short-lived ephemeral socket, matching how control peers
// expect unsolicited datagrams to arrive.
package transport
