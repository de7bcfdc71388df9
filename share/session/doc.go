// Package session provides the PIN keyed session registry for location
// sharing.
//
// The session package implements:
//   - Collision checked 6-digit PIN generation
//   - Session lifetime management with a fixed time to live
//   - One sharer slot and a viewer set per session
//   - A connection to session side-table used on disconnect
//   - Periodic removal of expired sessions
//
// Core Types:
//
// Registry holds every session and is the only way to mutate one. Session is
// the pairing record; callers only ever see Info snapshots. Peer is the
// registry's view of a connection: an id and a non-blocking Send.
//
// Expiry:
//
// A session routes messages while now is before its expiry. Expired sessions
// are invisible to Lookup, Join and Audience straight away, and are deleted
// by the next Sweep. Sessions left without sharer and viewers are kept until
// then as well.
//
// Concurrency:
//
// All state sits behind one RWMutex. Lookups share the read lock; create,
// join, detach, sweep and delete take the write lock. Audience returns a copy
// of the viewer set, so broadcasting never holds the lock while sending.
//
// Usage:
//
//	registry := session.NewRegistry(session.WithLogger(log))
//	sweeper := session.NewSweeper(registry, 30*time.Second, log)
//	sweeper.Start(ctx)
//	defer sweeper.Stop()
//
//	ticket, err := registry.Create("Alice", "", sharerConn)
//	identity, err := registry.Join(ticket.PIN, viewerConn)
//	viewers, identity, err := registry.Audience(ticket.PIN)
//	registry.Detach(viewerConn)
package session
