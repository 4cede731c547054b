// Package log provides structured protocol-event logging for the OSC
// bridge.
//
// Events are captured at the discovery, control, and directory layers and
// handed to a Logger implementation. The CBOR codec gives a compact on-disk
// format for traffic captures; SlogAdapter mirrors events into a standard
// slog.Logger for development.
package log
