package tools

import "testing"

func TestOutcomeConstructors(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		resp := ToolResponse{Content: []ContentItem{{Type: "text", Text: "hi"}}}
		out := OK(resp)
		if out.Kind != KindOK {
			t.Fatalf("Kind = %v, want KindOK", out.Kind)
		}
		if len(out.Response.Content) != 1 || out.Response.Content[0].Text != "hi" {
			t.Fatalf("Response not carried through: %+v", out.Response)
		}
	})

	t.Run("Failed", func(t *testing.T) {
		err := &Error{Code: -32602, Message: "bad arguments"}
		out := Failed(err)
		if out.Kind != KindErr {
			t.Fatalf("Kind = %v, want KindErr", out.Kind)
		}
		if out.Err != err {
			t.Fatalf("Err not carried through: %+v", out.Err)
		}
	})

	t.Run("Deferred", func(t *testing.T) {
		out := Deferred("token-123")
		if out.Kind != KindDeferred {
			t.Fatalf("Kind = %v, want KindDeferred", out.Kind)
		}
		if out.Token != "token-123" {
			t.Fatalf("Token = %q, want %q", out.Token, "token-123")
		}
	})
}

func TestErrorImplementsError(t *testing.T) {
	err := &Error{Code: -32603, Message: "internal error"}
	var e error = err
	if e.Error() != "internal error" {
		t.Fatalf("Error() = %q, want %q", e.Error(), "internal error")
	}
}
