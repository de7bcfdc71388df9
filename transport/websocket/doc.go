// Package websocket provides the WebSocket transport for location sharing.
//
// The websocket package implements:
//   - Connection upgrade with an optional origin allow-list
//   - Decoding of create, join and location frames
//   - Non-blocking per-connection send queues
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks every open
// connection. Each Client has a read goroutine that dispatches inbound frames
// to the pairing service and a write goroutine that drains its send queue.
// Which session a connection belongs to is recorded by the session registry,
// so the hub only needs to know which connections are open.
//
// Message Protocol:
//
// Frames are JSON text messages with a "type" field:
//   - Incoming: {type: "create", name, avatar}, {type: "join", pin},
//     {type: "location", pin, lat, lng}
//   - Outgoing: {type: "pin", pin, expiresAt}, {type: "success", sharer},
//     {type: "error", msg}, {type: "location", lat, lng, name, avatar}
//
// Frames that fail to decode are dropped without a reply.
//
// Usage:
//
//	hub := websocket.NewHub(pairing, log, websocket.WithSendBuffer(32))
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects to /ws and is registered with the hub
// 2. Client sends create or join and receives a reply
// 3. Location frames are relayed to the session's viewers
// 4. On disconnect the session binding is released exactly once
// 5. The hub closes the send queue and the write goroutine exits
//
// Concurrency:
//
// Send never blocks. A full or closed queue refuses the message and the
// sender moves on, so one slow viewer cannot stall a broadcast.
package websocket
