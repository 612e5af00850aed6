package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinwijaya/minigames-be/internal/remote"
)

func TestNonEmpty(t *testing.T) {
	g := NonEmpty()

	ok, err := g.Validate(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientValidate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/users/validate-token", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"valid":true}`))
		case "Bearer stale":
			w.Write([]byte(`{"valid":false}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c := NewClient(remote.Config{BaseURL: srv.URL, MaxRetries: -1})
	ctx := context.Background()

	ok, err := c.Validate(ctx, "good")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Validate(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Validate(ctx, "forged")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(3), calls.Load())
}

func TestClientEmptyTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ok, err := NewClient(remote.Config{BaseURL: srv.URL}).Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, calls.Load())
}

func TestClientValidatorDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ok, err := NewClient(remote.Config{BaseURL: srv.URL, MaxRetries: -1}).Validate(context.Background(), "good")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRejectedUnwrapsHTTPError(t *testing.T) {
	forbidden := &remote.HTTPError{StatusCode: http.StatusForbidden}

	assert.True(t, rejected(forbidden))
	assert.True(t, rejected(fmt.Errorf("remote: get: %w", forbidden)))
	assert.False(t, rejected(fmt.Errorf("remote: get: %w", &remote.HTTPError{StatusCode: http.StatusBadGateway})))
	assert.False(t, rejected(errors.New("connection refused")))
}
