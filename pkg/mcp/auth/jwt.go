package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
)

// JWTAuth implements JWT bearer token authentication with an HMAC secret.
type JWTAuth struct {
	secret []byte
}

// NewJWTAuth creates a new JWT authenticator.
func NewJWTAuth(secret []byte) (auth *JWTAuth, err error) {
	if len(secret) == 0 {
		err = errors.New("JWT secret is required")
		return auth, err
	}

	auth = &JWTAuth{
		secret: secret,
	}
	return auth, err
}

// Name returns the auth method name.
func (a *JWTAuth) Name() (name string) {
	name = "jwt"
	return name
}

// Authenticate validates the JWT token.
func (a *JWTAuth) Authenticate(r *http.Request) (result *Result, err error) {
	var tokenString string

	tokenString, err = extractBearerToken(r)
	if err != nil {
		return result, err
	}

	var token *jwt.Token
	token, err = jwt.Parse(tokenString, func(token *jwt.Token) (key interface{}, keyErr error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			keyErr = fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			return key, keyErr
		}

		key = a.secret
		return key, keyErr
	})
	if err != nil {
		err = fmt.Errorf("token validation failed: %w", err)
		return result, err
	}

	if !token.Valid {
		err = errors.New("token is not valid")
		return result, err
	}

	username := ""
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		username, _ = claims["sub"].(string)
	}

	result = &Result{
		Authenticated: true,
		Method:        a.Name(),
		Username:      username,
	}
	return result, err
}
