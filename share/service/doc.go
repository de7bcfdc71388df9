// Package service provides the business logic layer for location sharing.
//
// The service package implements:
//   - Session creation with the caller as sharer
//   - Viewer subscription by PIN
//   - Location fanout to a session's viewers
//   - Session inspection and early termination for operators
//
// Core Interfaces:
//
// PairingService is the main service interface used by every transport.
// Registry is the storage it drives; *session.Registry satisfies it.
//
// Architecture:
//
// The service layer sits between the transports (WebSocket, HTTP, MCP) and the
// session registry. Replies are returned as protocol messages so the
// websocket transport can send them unchanged.
//
// Usage:
//
//	registry := session.NewRegistry()
//	pairing := service.NewPairingService(registry, log)
//
//	pin, err := pairing.CreateSession(ctx, sharer, protocol.CreateRequest{Name: "Alice"})
//	ok, err := pairing.JoinSession(ctx, viewer, pin.PIN)
//	result, err := pairing.ShareLocation(ctx, protocol.LocationUpdate{PIN: pin.PIN, Lat: 48.8, Lng: 2.3})
//
// Fanout:
//
// ShareLocation never blocks on a viewer. Each viewer's Send either queues the
// message or refuses it, and refused deliveries are counted as skipped.
package service
