package jsonrpc

import (
	"errors"
	"sync"
)

// ErrUnknownToken is returned by Deferred.Resolve when no pending
// request is registered under the given token. Either it was never
// registered, it already resolved, or the server has since stopped and
// cleared the table.
var ErrUnknownToken = errors.New("deferred: unknown token")

// Sender pushes a completed Response to whichever client is waiting
// for it. pkg/mcpserver's Client implements this by writing a Text
// frame; tests can substitute a recording stub.
type Sender interface {
	Send(resp *Response) error
}

// Deferred tracks tools/call invocations a handler answered with
// tools.Deferred(token). Some host environments keep a table like this
// process-global to survive a hot reload of the handler code; a Go
// server has no such requirement, so the table simply lives on the
// Dispatcher, keyed by token, one-shot, and cleared on shutdown.
type Deferred struct {
	mu      sync.Mutex
	pending map[string]pendingEntry
}

type pendingEntry struct {
	id     any
	sender Sender
}

// NewDeferred constructs an empty deferred-response table.
func NewDeferred() *Deferred {
	return &Deferred{pending: make(map[string]pendingEntry)}
}

// Register records that id's response will arrive later via token.
// Dispatch returns to the caller without writing a response once this
// has been called.
func (d *Deferred) Register(token string, id any, sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[token] = pendingEntry{id: id, sender: sender}
}

// Resolve completes the pending request registered under token,
// sending a Response built from result with the original request's id
// preserved. Resolving an unknown or already-resolved token is a no-op
// error, not a panic.
func (d *Deferred) Resolve(token string, result any) error {
	entry, ok := d.take(token)
	if !ok {
		return ErrUnknownToken
	}
	return entry.sender.Send(Success(entry.id, result))
}

// Reject completes the pending request registered under token with an
// error response instead of a result.
func (d *Deferred) Reject(token string, code int, message string, data any) error {
	entry, ok := d.take(token)
	if !ok {
		return ErrUnknownToken
	}
	return entry.sender.Send(Failure(entry.id, code, message, data))
}

// Forget removes token's pending entry without sending anything. A
// dead client's deferred response silently drops once its entry is no
// longer in the clients table.
func (d *Deferred) Forget(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, token)
}

// Clear drops every pending entry, as happens on server stop: any
// outstanding deferred response will find no sender and silently drop.
func (d *Deferred) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = make(map[string]pendingEntry)
}

func (d *Deferred) take(token string) (pendingEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[token]
	if ok {
		delete(d.pending, token)
	}
	return entry, ok
}
