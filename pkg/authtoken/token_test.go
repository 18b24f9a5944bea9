package authtoken

import "testing"

func TestValidateMatchingTokens(t *testing.T) {
	if !Validate("secret", "secret") {
		t.Fatal("Validate with matching tokens = false, want true")
	}
}

func TestValidateMismatchedTokens(t *testing.T) {
	if Validate("wrong", "secret") {
		t.Fatal("Validate with mismatched tokens = true, want false")
	}
}

func TestValidateBothEmptyMatches(t *testing.T) {
	if !Validate("", "") {
		t.Fatal("Validate(\"\", \"\") = false, want true")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"short token collapses to placeholder", "abc", "****"},
		{"exactly eight chars collapses too", "12345678", "****"},
		{"longer token keeps first/last four", "sk-ant-abcdef1234", "sk-a...1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mask(tt.token); got != tt.want {
				t.Fatalf("Mask(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestMaskNeverContainsTheMiddleOfALongToken(t *testing.T) {
	token := "this-is-a-very-long-secret-token-value"
	masked := Mask(token)
	middle := token[4 : len(token)-4]
	if containsSubstring(masked, middle) {
		t.Fatalf("Mask(%q) = %q leaked the unmasked middle", token, masked)
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
