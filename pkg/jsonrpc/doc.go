// Package jsonrpc implements the JSON-RPC 2.0 envelope and the MCP
// method dispatcher that sits on top of it. It parses inbound frames'
// payloads, routes to the built-in MCP methods or a pkg/tools.Registry,
// and tracks deferred (long-running) tool responses.
package jsonrpc
