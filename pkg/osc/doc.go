// Package osc implements the OSC 1.0 message format used for avatar
// parameter and chatbox traffic.
//
// Only the argument types the avatar runtime understands are modeled:
// int32 ("i"), float32 ("f"), booleans ("T"/"F", no payload bytes), and
// strings ("s"). Messages can be wrapped in a bundle with a time tag;
// nested bundles are flattened on decode.
package osc
