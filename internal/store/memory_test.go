package store

import (
	"context"
	"testing"

	clk "github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinwijaya/minigames-be/internal/game"
	"github.com/calvinwijaya/minigames-be/internal/session"
)

func newSession(t *testing.T, gameID, token string) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), session.Config{Game: gameID, Token: token, Clock: clk.NewMock()})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	a := newSession(t, game.SnakeGame, "alice")
	b := newSession(t, game.MemoryGame, "alice")
	c := newSession(t, game.SnakeGame, "bob")

	for _, s := range []*session.Session{a, b, c} {
		require.NoError(t, st.SaveSession(s, s.Owner()))
	}
	require.NoError(t, st.SaveSession(a, "alice"), "saving twice is harmless")

	got, err := st.GetSession(b.ID())
	require.NoError(t, err)
	assert.Same(t, b, got)

	owned, err := st.GetPlayerSessions("alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []*session.Session{a, b}, owned)

	all, err := st.GetAllSessions()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	removed, err := st.DeleteSession(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, removed)

	_, err = st.GetSession(a.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.DeleteSession(a.ID())
	assert.ErrorIs(t, err, ErrNotFound)

	owned, _ = st.GetPlayerSessions("alice")
	assert.Equal(t, []*session.Session{b}, owned)

	st.DeleteSession(c.ID())
	owned, _ = st.GetPlayerSessions("bob")
	assert.Empty(t, owned)
}
