// Package oscquery implements the capability directory: an HTTP server
// exposing the registered control methods as a JSON node tree plus the
// HOST_INFO endpoint peers use to locate the UDP control port, and a small
// client for probing a peer's directory.
//
// The tree is rebuilt in full whenever the method registry changes and
// swapped in under the registry lock, so readers always see a consistent
// snapshot. Registries with no avatar subtree still expose the
// /avatar/change leaf, which every peer expects to exist.
package oscquery
