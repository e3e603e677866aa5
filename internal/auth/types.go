// Package auth owns the client-side session: the persisted credential, the
// bearer header derived from it, and the controller that logs in, logs out
// and refreshes tokens against the remote authentication endpoints.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Remote endpoints, relative to the API base URL.
const (
	LoginPath       = "user/jwt/create/"
	RefreshPath     = "user/jwt/refresh/"
	GoogleLoginPath = "user/google-login/"
	RegisterPath    = "users/register/"
)

var (
	// ErrInvalidCredential is returned when a token response lacks either token.
	ErrInvalidCredential = errors.New("credential must carry both access_token and refresh_token")

	// ErrNotAuthenticated is returned when an operation needs a stored credential and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRefreshFailed is returned when the refresh endpoint rejects the refresh token
	// or cannot be reached. The session is logged out when this happens.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Credential is the full record returned by the token endpoints. Besides the
// two tokens it keeps every other field the server sent (token_type, user
// metadata) verbatim.
//
// A Credential is immutable; WithTokens returns a new record.
type Credential struct {
	raw []byte
}

// NewCredential validates a token response body and wraps it.
func NewCredential(raw []byte) (*Credential, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("parse credential: %w", ErrInvalidCredential)
	}
	c := &Credential{raw: append([]byte(nil), raw...)}
	if c.AccessToken() == "" || c.RefreshToken() == "" {
		return nil, ErrInvalidCredential
	}
	return c, nil
}

// AccessToken returns the short-lived bearer token.
func (c *Credential) AccessToken() string {
	return gjson.GetBytes(c.raw, "access_token").String()
}

// RefreshToken returns the token used to mint new access tokens.
func (c *Credential) RefreshToken() string {
	return gjson.GetBytes(c.raw, "refresh_token").String()
}

// Get returns an arbitrary field of the stored record.
func (c *Credential) Get(path string) gjson.Result {
	return gjson.GetBytes(c.raw, path)
}

// WithTokens returns a copy of the record carrying the new token pair.
func (c *Credential) WithTokens(accessToken, refreshToken string) (*Credential, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrInvalidCredential
	}
	updated, err := sjson.SetBytes(append([]byte(nil), c.raw...), "access_token", accessToken)
	if err != nil {
		return nil, fmt.Errorf("set access token: %w", err)
	}
	updated, err = sjson.SetBytes(updated, "refresh_token", refreshToken)
	if err != nil {
		return nil, fmt.Errorf("set refresh token: %w", err)
	}
	return &Credential{raw: updated}, nil
}

// Bytes returns a copy of the serialized record.
func (c *Credential) Bytes() []byte {
	return append([]byte(nil), c.raw...)
}

// AccessExpiry reads the exp claim of the access token without verifying its
// signature. The second return is false when the token is not a JWT or has
// no expiry.
func (c *Credential) AccessExpiry() (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken(), claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// SessionState is the in-memory projection of the authentication status
// shown to the user.
type SessionState struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	ErrorLogIn      bool   `json:"error_log_in"`
	ErrorMessage    string `json:"error_message"`
	// ErrorRegister is empty when the last registration did not fail.
	ErrorRegister string `json:"error_register"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest is the body sent to the refresh endpoint.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// googleLoginRequest is the body sent to the Google verification endpoint.
type googleLoginRequest struct {
	AccessToken string `json:"access_token"`
}
