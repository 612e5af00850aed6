package score

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinwijaya/minigames-be/internal/remote"
)

func newServer(t *testing.T) (*httptest.Server, *[]postRequest) {
	t.Helper()
	var posted []postRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/users/highScore/snakeGame", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(highScoreResponse{Result: true, HighScore: 42})
	})
	mux.HandleFunc("/users/highScore/memoryGame", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(highScoreResponse{Result: false, Message: "no record"})
	})
	mux.HandleFunc("/users/highScore", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req postRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		posted = append(posted, req)
		json.NewEncoder(w).Encode(postResponse{Result: true, Message: "saved"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &posted
}

func TestClientHighScore(t *testing.T) {
	srv, _ := newServer(t)
	c := NewClient(remote.Config{BaseURL: srv.URL})

	high, err := c.HighScore(context.Background(), "tok", "snakeGame")
	require.NoError(t, err)
	assert.Equal(t, 42, high)

	high, err = c.HighScore(context.Background(), "tok", "memoryGame")
	require.NoError(t, err)
	assert.Equal(t, 0, high)
}

func TestClientPostHighScore(t *testing.T) {
	srv, posted := newServer(t)
	c := NewClient(remote.Config{BaseURL: srv.URL})

	ok, err := c.PostHighScore(context.Background(), "tok", "snakeGame", 60)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []postRequest{{Game: "snakeGame", Score: 60}}, *posted)
}

func TestClientErrorsAreWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewClient(remote.Config{BaseURL: srv.URL, MaxRetries: 1, BaseRetryDelay: time.Millisecond})

	_, err := c.HighScore(context.Background(), "tok", "snakeGame")
	assert.ErrorContains(t, err, "fetch high score for snakeGame")
}
