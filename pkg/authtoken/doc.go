// Package authtoken provides the constant-time comparison and log
// redaction used around the server's single pre-shared bearer token.
package authtoken
