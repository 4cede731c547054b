// Package service ties the subsystem together: discovery, the capability
// directory, the control transport and the avatar watcher, behind one
// Manager.
//
// Manager.StartAll brings the stack up in dependency order. It tries to
// locate the local control peer through multicast discovery and a
// HOST_INFO probe, and falls back to the conventional port pair (send
// 9000, receive 9001) when neither works, so the subsystem stays usable on
// hosts where discovery is unavailable.
//
// Example usage:
//
//	mgr, err := service.NewManager(service.DefaultConfig())
//	if err != nil { ... }
//	if err := mgr.StartAll(ctx); err != nil { ... }
//	defer mgr.StopAll()
//
//	mgr.SendAvatarParameterFloat("Mood", 0.8)
//	for msg := range mgr.TakeReceiveStream() {
//		...
//	}
package service
