package tools

import "context"

// Tool describes one registry entry as surfaced to tools/list.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is a JSON Schema object describing a tool's arguments.
type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ToolCallParams is the params object of a tools/call request.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResponse is the result object of a resolved tools/call.
type ToolResponse struct {
	Content []ContentItem `json:"content"`
}

// ContentItem is one piece of a tool's reply, e.g. a text block.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Kind discriminates the three shapes a handler invocation can settle
// into: an immediate result, an immediate error, or a deferred token
// to be resolved later.
type Kind int

const (
	// KindOK carries an immediate successful ToolResponse.
	KindOK Kind = iota
	// KindErr carries an immediate JSON-RPC error.
	KindErr
	// KindDeferred means the invocation is long-running; the caller
	// must park the inbound request under Token and wait for a later
	// Resolve call on the same token.
	KindDeferred
)

// Error is the JSON-RPC error shape a handler can return directly,
// independent of the envelope-level errors pkg/jsonrpc produces for
// malformed requests.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Outcome is the result of ToolRegistry.Invoke: exactly one of a
// response, an error, or a deferral token is populated, selected by
// Kind.
type Outcome struct {
	Kind     Kind
	Response ToolResponse
	Err      *Error
	Token    string
}

// OK builds an immediate success Outcome.
func OK(resp ToolResponse) Outcome {
	return Outcome{Kind: KindOK, Response: resp}
}

// Failed builds an immediate error Outcome.
func Failed(err *Error) Outcome {
	return Outcome{Kind: KindErr, Err: err}
}

// Deferred builds an Outcome that tells the dispatcher to park the
// inbound request under token rather than respond now.
func Deferred(token string) Outcome {
	return Outcome{Kind: KindDeferred, Token: token}
}

// Registry is the injected mapping from tool name to host-editor
// behavior: the core accepts a Registry and emits well-defined
// callbacks against it. client is opaque to the registry; it is
// passed back unchanged so a handler can correlate a deferred
// completion with the connection that requested it, without the
// registry package importing pkg/mcpserver.
type Registry interface {
	// List returns every tool's descriptor for tools/list.
	List(ctx context.Context) []Tool
	// Invoke runs or starts a tool named by params.Name. client is the
	// calling connection's opaque identity.
	Invoke(ctx context.Context, client any, params ToolCallParams) Outcome
}
