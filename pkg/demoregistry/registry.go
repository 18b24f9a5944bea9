package demoregistry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mcploop/pkg/jsonrpc"
	"mcploop/pkg/tools"
)

// ConfirmDelay is how long the "confirm" tool waits before resolving
// its deferred response, standing in for the real host editor's
// user-confirmation UI.
const ConfirmDelay = 2 * time.Second

// Registry is a two-tool tools.Registry: "echo" answers immediately,
// "confirm" exercises the deferred-response path by resolving itself
// on a background timer instead of inline.
type Registry struct {
	dispatcher *jsonrpc.Dispatcher
	logger     *slog.Logger
}

// New builds a Registry. dispatcher is needed so the "confirm" tool can
// resolve its own deferred token once its simulated delay elapses.
func New(dispatcher *jsonrpc.Dispatcher, logger *slog.Logger) *Registry {
	return &Registry{dispatcher: dispatcher, logger: logger}
}

func (r *Registry) List(ctx context.Context) []tools.Tool {
	return []tools.Tool{
		{
			Name:        "echo",
			Description: "Echo a message back immediately",
			InputSchema: tools.InputSchema{
				Type:       "object",
				Properties: map[string]any{"message": map[string]string{"type": "string"}},
				Required:   []string{"message"},
			},
		},
		{
			Name:        "confirm",
			Description: "Ask the user to confirm an action; resolves once they respond",
			InputSchema: tools.InputSchema{
				Type:       "object",
				Properties: map[string]any{"prompt": map[string]string{"type": "string"}},
				Required:   []string{"prompt"},
			},
		},
	}
}

func (r *Registry) Invoke(ctx context.Context, client any, params tools.ToolCallParams) tools.Outcome {
	switch params.Name {
	case "echo":
		return r.invokeEcho(params.Arguments)
	case "confirm":
		return r.invokeConfirm(params.Arguments)
	default:
		return tools.Failed(&tools.Error{
			Code:    jsonrpc.MethodNotFound,
			Message: fmt.Sprintf("tool not found: %s", params.Name),
		})
	}
}

func (r *Registry) invokeEcho(args map[string]any) tools.Outcome {
	message, _ := args["message"].(string)
	return tools.OK(tools.ToolResponse{
		Content: []tools.ContentItem{{Type: "text", Text: message}},
	})
}

func (r *Registry) invokeConfirm(args map[string]any) tools.Outcome {
	prompt, _ := args["prompt"].(string)
	token := uuid.NewString()

	go func() {
		time.Sleep(ConfirmDelay)
		resp := tools.ToolResponse{
			Content: []tools.ContentItem{{Type: "text", Text: fmt.Sprintf("confirmed: %s", prompt)}},
		}
		if err := r.dispatcher.Deferred.Resolve(token, resp); err != nil {
			r.logger.Warn("confirm tool resolved after its caller was gone", "token", token, "error", err)
		}
	}()

	return tools.Deferred(token)
}
