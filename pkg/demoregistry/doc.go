// Package demoregistry is a minimal tools.Registry implementation used
// by cmd/mcp-server as a stand-in for a host editor's real tool table.
// It exists to give the server binary something to dispatch into and to
// exercise the deferred-response path end to end: "echo" answers
// immediately, "confirm" parks its caller behind a token and resolves
// it once a simulated user-confirmation delay elapses.
package demoregistry
