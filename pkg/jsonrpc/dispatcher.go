package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mcploop/pkg/tools"
)

// ServerInfo names the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// outcome is the dispatcher's internal result shape. Built-in methods
// populate Result directly; tools/call is translated from a
// tools.Outcome, whose three-way Ok/Err/Deferred split this mirrors.
type outcome struct {
	result   any
	err      *ErrObject
	deferred string
}

func ok(result any) outcome { return outcome{result: result} }

func failed(code int, message string, data any) outcome {
	return outcome{err: &ErrObject{Code: code, Message: message, Data: data}}
}

// handlerFunc answers one JSON-RPC request. client is the opaque
// connection identity passed straight through to a tools.Registry.
type handlerFunc func(ctx context.Context, client any, params json.RawMessage) outcome

// Dispatcher routes parsed requests to built-in MCP methods or a
// tools.Registry. It owns the deferred-response table, keyed by
// opaque token so a handler can resolve a tools/call result well
// after Dispatch itself has returned.
type Dispatcher struct {
	registry tools.Registry
	info     ServerInfo
	handlers map[string]handlerFunc
	Deferred *Deferred
}

// New builds a Dispatcher wired to registry, advertising info in the
// initialize response.
func New(registry tools.Registry, info ServerInfo) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		info:     info,
		handlers: make(map[string]handlerFunc),
		Deferred: NewDeferred(),
	}
	d.handlers["initialize"] = d.handleInitialize
	d.handlers["notifications/initialized"] = d.handleInitialized
	d.handlers["prompts/list"] = d.handlePromptsList
	d.handlers["tools/list"] = d.handleToolsList
	d.handlers["tools/call"] = d.handleToolsCall
	return d
}

// SetRegistry swaps the tools.Registry a Dispatcher delegates tools/list
// and tools/call to. Exists for embedders whose registry constructor
// itself needs the Dispatcher (e.g. to resolve a deferred token), which
// makes supplying the registry to New up front impossible.
func (d *Dispatcher) SetRegistry(r tools.Registry) {
	d.registry = r
}

// Register adds or overrides a method handler by wrapping a plain
// tools.Registry-shaped callable. Built-in methods may be overridden
// by an embedder that needs different behavior for them.
func (d *Dispatcher) Register(method string, handler func(ctx context.Context, client any, params json.RawMessage) tools.Outcome) {
	d.handlers[method] = func(ctx context.Context, client any, params json.RawMessage) outcome {
		return fromToolOutcome(handler(ctx, client, params))
	}
}

func fromToolOutcome(out tools.Outcome) outcome {
	switch out.Kind {
	case tools.KindOK:
		return ok(out.Response)
	case tools.KindErr:
		return failed(out.Err.Code, out.Err.Message, out.Err.Data)
	case tools.KindDeferred:
		return outcome{deferred: out.Token}
	default:
		return failed(InternalError, "handler returned no outcome", nil)
	}
}

// Dispatch parses and routes one frame payload, returning the Response
// to write back, or nil for a notification or a successfully deferred
// request. sender is where a later Deferred.Resolve/Reject for this
// request will deliver its response.
func (d *Dispatcher) Dispatch(ctx context.Context, client any, payload []byte, sender Sender) *Response {
	req, err := Parse(payload)
	if err != nil {
		var malformed *Malformed
		if errors.As(err, &malformed) {
			return Failure(malformed.ID, malformed.Code, malformed.Error(), nil)
		}
		return Failure(nil, ParseError, "parse error", err.Error())
	}

	handler, found := d.handlers[req.Method]
	if !found {
		if req.IsNotification() {
			return nil
		}
		return Failure(req.ID, MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	out := d.invoke(ctx, client, handler, req.Params)

	if req.IsNotification() {
		return nil
	}

	switch {
	case out.deferred != "":
		d.Deferred.Register(out.deferred, req.ID, sender)
		return nil
	case out.err != nil:
		return Failure(req.ID, out.err.Code, out.err.Message, out.err.Data)
	default:
		return Success(req.ID, out.result)
	}
}

// invoke runs handler, converting a panic into an InternalError outcome
// carrying the panic value as Data.
func (d *Dispatcher) invoke(ctx context.Context, client any, handler handlerFunc, params json.RawMessage) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(InternalError, "internal error", fmt.Sprint(r))
		}
	}()
	return handler(ctx, client, params)
}

func (d *Dispatcher) handleInitialize(ctx context.Context, client any, params json.RawMessage) outcome {
	return ok(map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"logging": map[string]any{},
			"prompts": map[string]any{"listChanged": true},
			"resources": map[string]any{
				"subscribe":   true,
				"listChanged": true,
			},
			"tools": map[string]any{"listChanged": true},
		},
		"serverInfo": d.info,
	})
}

func (d *Dispatcher) handleInitialized(ctx context.Context, client any, params json.RawMessage) outcome {
	return ok(nil)
}

func (d *Dispatcher) handlePromptsList(ctx context.Context, client any, params json.RawMessage) outcome {
	return ok(map[string]any{"prompts": []any{}})
}

func (d *Dispatcher) handleToolsList(ctx context.Context, client any, params json.RawMessage) outcome {
	return ok(map[string]any{"tools": d.registry.List(ctx)})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, client any, params json.RawMessage) outcome {
	var callParams tools.ToolCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return failed(InvalidParams, "invalid params", err.Error())
	}
	return fromToolOutcome(d.registry.Invoke(ctx, client, callParams))
}
