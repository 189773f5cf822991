// Package auth resolves bearer tokens to principals. Validation is either
// remote (the external user service owns tokens) or local (HS256 JWTs, for
// development and single-binary deployments).
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("invalid authentication credentials")
	ErrUnavailable  = errors.New("authentication service unavailable")
)

// Principal is the authenticated caller. ID scopes every row this service owns.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Validator resolves a bearer token to a principal.
type Validator interface {
	Validate(ctx context.Context, token string) (*Principal, error)
}

// RemoteValidator validates tokens against the external user service.
type RemoteValidator struct {
	baseURL string
	client  *http.Client
}

// NewRemoteValidator returns a validator calling the user service at baseURL.
func NewRemoteValidator(baseURL string) *RemoteValidator {
	return &RemoteValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Validate calls GET {base}/auth/validate-token with the bearer token. A
// transport failure maps to ErrUnavailable, any non-200 to ErrUnauthorized.
func (v *RemoteValidator) Validate(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/validate-token", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build validation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnauthorized
	}

	var p Principal
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode principal: %w", err)
	}
	if p.ID == "" {
		return nil, ErrUnauthorized
	}
	return &p, nil
}

// LocalValidator validates HS256 JWTs in-process.
type LocalValidator struct {
	secret string
}

// NewLocalValidator returns a validator for tokens signed with secret.
func NewLocalValidator(secret string) *LocalValidator {
	return &LocalValidator{secret: secret}
}

type localClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

func (v *LocalValidator) Validate(_ context.Context, token string) (*Principal, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	tok, err := jwt.ParseWithClaims(token, &localClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := tok.Claims.(*localClaims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	username := claims.Username
	if username == "" {
		username = "user" + claims.Subject
	}
	return &Principal{ID: claims.Subject, Username: username}, nil
}
