// Package auth validates player session tokens before a game may start.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/calvinwijaya/minigames-be/internal/remote"
)

// Guard decides whether a session token belongs to a signed-in player
type Guard interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// GuardFunc adapts a function to the Guard interface
type GuardFunc func(ctx context.Context, token string) (bool, error)

func (f GuardFunc) Validate(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// NonEmpty accepts any token that is present. Used when no validator
// service is configured.
func NonEmpty() Guard {
	return GuardFunc(func(_ context.Context, token string) (bool, error) {
		return token != "", nil
	})
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

// Client asks the external validator whether a token is still good
type Client struct {
	remote *remote.Client
}

func NewClient(cfg remote.Config) *Client {
	return &Client{remote: remote.NewClient(cfg)}
}

// Validate checks token with the validator. An empty token is invalid without
// a round trip, and a 401/403 answer is a plain rejection rather than an error.
func (c *Client) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var resp validateResponse
	err := c.remote.Do(ctx, http.MethodGet, "users/validate-token", token, nil, &resp)
	if err != nil {
		if rejected(err) {
			return false, nil
		}
		return false, fmt.Errorf("auth: validate token: %w", err)
	}
	return resp.Valid, nil
}

func rejected(err error) bool {
	var httpErr *remote.HTTPError
	return errors.As(err, &httpErr) && httpErr.IsUnauthorized()
}
