package auth

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Chain tries multiple authentication methods in order.
type Chain struct {
	methods []Method
	logger  *slog.Logger
}

// NewChain creates a new authentication chain.
func NewChain(methods []Method, logger *slog.Logger) (chain *Chain) {
	chain = &Chain{
		methods: methods,
		logger:  logger,
	}
	return chain
}

// NewChainFromConfig builds a chain from configuration. Returns nil when no
// method is configured, which callers treat as auth disabled.
func NewChainFromConfig(config Config, logger *slog.Logger) (chain *Chain, err error) {
	if !config.Enabled() {
		return chain, err
	}

	var methods []Method

	if config.StaticToken != "" {
		methods = append(methods, NewStaticTokenAuth(config.StaticToken))
	}

	if len(config.APIKeys) > 0 {
		methods = append(methods, NewAPIKeyAuth(config.APIKeys))
	}

	if config.JWTSecret != "" {
		var jwtAuth *JWTAuth

		jwtAuth, err = NewJWTAuth([]byte(config.JWTSecret))
		if err != nil {
			err = fmt.Errorf("building auth chain: %w", err)
			return nil, err
		}

		methods = append(methods, jwtAuth)
	}

	chain = NewChain(methods, logger)
	return chain, err
}

// Authenticate tries each auth method in order until one succeeds.
func (c *Chain) Authenticate(r *http.Request) (result *Result, err error) {
	if len(c.methods) == 0 {
		// No auth configured - allow all
		result = &Result{
			Authenticated: true,
			Method:        "none",
			Username:      "anonymous",
		}
		return result, err
	}

	var lastErr error

	for _, method := range c.methods {
		result, err = method.Authenticate(r)
		if err == nil {
			c.logger.Debug("authentication succeeded",
				slog.String("method", method.Name()),
				slog.String("username", result.Username))
			//nolint:nilerr // err is nil here, which is correct for successful auth
			return result, err
		}

		lastErr = err
		c.logger.Debug("authentication failed",
			slog.String("method", method.Name()),
			slog.String("error", err.Error()))
	}

	err = fmt.Errorf("all authentication methods failed: %w", lastErr)
	return nil, err
}

// Name returns the chain name.
func (c *Chain) Name() (name string) {
	name = "auth-chain"
	return name
}
