// Package authtoken implements the single-shared-secret bearer check the
// handshake uses to authenticate a client, plus a helper for logging
// tokens without leaking them.
package authtoken

import "crypto/subtle"

// Validate reports whether got matches want using a constant-time
// comparison, so that a timing side-channel cannot be used to guess the
// token byte by byte. An empty want always means "no auth configured"
// at the call site (see wsproto.Validate); this function itself treats
// two empty strings as a match, same as any other equal pair.
func Validate(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Mask renders a token safe to put in a log line: everything but the
// first and last four characters is elided. Short tokens collapse to a
// fixed placeholder rather than risk revealing most of a short secret.
func Mask(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
