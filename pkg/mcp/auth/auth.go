// Package auth provides optional request authentication for the MCP
// endpoint. Benchmark runs normally leave it disabled; it exists so the
// same binary can sit on a shared network without exposing the tools.
package auth

import (
	"net/http"
)

// Method represents an authentication method.
type Method interface {
	// Name returns the human-readable name of this auth method.
	Name() string

	// Authenticate attempts to authenticate the request.
	// Returns nil error if authentication succeeds, error otherwise.
	Authenticate(r *http.Request) (*Result, error)
}

// Result contains information about an authenticated request.
type Result struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Method        string `json:"method"`
}

// Config holds configuration for the supported authentication methods.
// Zero-value config means authentication is disabled.
type Config struct {
	StaticToken string            `json:"static_token,omitempty"`
	APIKeys     map[string]string `json:"api_keys,omitempty"` // key -> username mapping
	JWTSecret   string            `json:"jwt_secret,omitempty"`
}

// Enabled reports whether any method is configured.
func (c Config) Enabled() (enabled bool) {
	enabled = c.StaticToken != "" || len(c.APIKeys) > 0 || c.JWTSecret != ""
	return enabled
}
