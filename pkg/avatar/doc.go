// Package avatar reads the avatar configuration files a control peer
// writes to disk and mirrors their parameters into the capability
// directory. A Watcher polls the configuration directory, tracks every
// known avatar by id, and swaps the registered parameter set when the peer
// reports an avatar change.
package avatar
