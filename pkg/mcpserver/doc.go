// Package mcpserver implements the WebSocket/JSON-RPC server core: the
// TCP listener and client registry, the per-connection state machine,
// and the keepalive supervisor. It wires pkg/wsproto and pkg/jsonrpc
// together behind the Clock/Scheduler and ToolRegistry collaborators
// an embedding host editor supplies.
//
// A single-threaded event-loop implementation of this protocol can run
// every client and the keepalive ticker on one call stack, so no field
// needs a lock. This implementation instead gives each connection its
// own goroutine with blocking reads, which means two things a
// cooperative loop wouldn't need: a coarse mutex guarding the client
// registry, and a per-client dispatch goroutine fed by an inbox
// channel so that one client's inbound messages are dispatched in
// arrival order, off the read loop. Outbound writes to a client from
// any goroutine (the dispatch worker, the keepalive ticker, or a
// deferred tool completing on its own goroutine) are serialized by a
// per-client mutex.
package mcpserver
