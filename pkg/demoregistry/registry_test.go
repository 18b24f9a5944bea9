package demoregistry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"mcploop/pkg/jsonrpc"
	"mcploop/pkg/tools"
)

type recordingSender struct {
	responses chan *jsonrpc.Response
}

func newRecordingSender() *recordingSender {
	return &recordingSender{responses: make(chan *jsonrpc.Response, 1)}
}

func (s *recordingSender) Send(resp *jsonrpc.Response) error {
	s.responses <- resp
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListReturnsEchoAndConfirm(t *testing.T) {
	r := New(jsonrpc.New(nil, jsonrpc.ServerInfo{}), testLogger())
	list := r.List(context.Background())
	if len(list) != 2 {
		t.Fatalf("List() returned %d tools, want 2", len(list))
	}
	names := map[string]bool{}
	for _, tool := range list {
		names[tool.Name] = true
	}
	if !names["echo"] || !names["confirm"] {
		t.Fatalf("List() = %v, want echo and confirm", names)
	}
}

func TestInvokeEchoIsImmediate(t *testing.T) {
	r := New(jsonrpc.New(nil, jsonrpc.ServerInfo{}), testLogger())
	out := r.Invoke(context.Background(), "client-1", tools.ToolCallParams{
		Name:      "echo",
		Arguments: map[string]any{"message": "hello"},
	})
	if out.Kind != tools.KindOK {
		t.Fatalf("Invoke(echo).Kind = %v, want KindOK", out.Kind)
	}
	if len(out.Response.Content) != 1 || out.Response.Content[0].Text != "hello" {
		t.Fatalf("Invoke(echo).Response = %+v, want content [hello]", out.Response)
	}
}

func TestInvokeUnknownToolFails(t *testing.T) {
	r := New(jsonrpc.New(nil, jsonrpc.ServerInfo{}), testLogger())
	out := r.Invoke(context.Background(), "client-1", tools.ToolCallParams{Name: "nope"})
	if out.Kind != tools.KindErr {
		t.Fatalf("Invoke(nope).Kind = %v, want KindErr", out.Kind)
	}
	if out.Err.Code != jsonrpc.MethodNotFound {
		t.Fatalf("Invoke(nope).Err.Code = %d, want %d", out.Err.Code, jsonrpc.MethodNotFound)
	}
}

func TestInvokeConfirmDefersThenResolves(t *testing.T) {
	dispatcher := jsonrpc.New(nil, jsonrpc.ServerInfo{})
	r := New(dispatcher, testLogger())

	out := r.Invoke(context.Background(), "client-1", tools.ToolCallParams{
		Name:      "confirm",
		Arguments: map[string]any{"prompt": "delete file?"},
	})
	if out.Kind != tools.KindDeferred {
		t.Fatalf("Invoke(confirm).Kind = %v, want KindDeferred", out.Kind)
	}
	if out.Token == "" {
		t.Fatal("Invoke(confirm) returned an empty token")
	}

	sender := newRecordingSender()
	dispatcher.Deferred.Register(out.Token, 7, sender)

	select {
	case resp := <-sender.responses:
		if resp.Error != nil {
			t.Fatalf("resolved response carries an error: %+v", resp.Error)
		}
		if resp.ID != 7 {
			t.Fatalf("resolved response ID = %v, want 7", resp.ID)
		}
	case <-time.After(ConfirmDelay + time.Second):
		t.Fatal("confirm tool never resolved its deferred token")
	}
}
