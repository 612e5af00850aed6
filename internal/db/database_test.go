package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/calvinwijaya/minigames-be/internal/game"
	"github.com/calvinwijaya/minigames-be/internal/session"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := NewDatabase(SQLite, ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := NewDatabase("mysql", "", nil)
	assert.Error(t, err)
}

func TestPlayerKeyHidesToken(t *testing.T) {
	key := PlayerKey("secret")
	assert.Len(t, key, 64)
	assert.NotContains(t, key, "secret")
	assert.Equal(t, key, PlayerKey("secret"))
	assert.NotEqual(t, key, PlayerKey("other"))
}

func TestHighScoreOnlyGoesUp(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	high, err := d.HighScore(ctx, "tok", game.SnakeGame)
	require.NoError(t, err)
	assert.Equal(t, 0, high)

	ok, err := d.PostHighScore(ctx, "tok", game.SnakeGame, 12)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.PostHighScore(ctx, "tok", game.SnakeGame, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.PostHighScore(ctx, "tok", game.SnakeGame, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	high, _ = d.HighScore(ctx, "tok", game.SnakeGame)
	assert.Equal(t, 20, high)

	// Scores are per player and per game
	high, _ = d.HighScore(ctx, "tok", game.MemoryGame)
	assert.Equal(t, 0, high)
	high, _ = d.HighScore(ctx, "someone-else", game.SnakeGame)
	assert.Equal(t, 0, high)
}

func TestHighScores(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	scores, err := d.HighScores(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, scores)

	d.PostHighScore(ctx, "tok", game.SnakeGame, 4)
	d.PostHighScore(ctx, "tok", game.MemoryGame, 59)

	scores, err = d.HighScores(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, game.MemoryGame, scores[0].Game)
	assert.Equal(t, 59, scores[0].Score)
	assert.Equal(t, game.SnakeGame, scores[1].Game)
}

func TestRecordResultAndStats(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, score := range []int{3, 9, 5} {
		err := d.RecordResult(ctx, session.Result{
			SessionID:  "s1",
			Token:      "tok",
			Game:       game.SnakeGame,
			Score:      score,
			Outcome:    game.WallCollision,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	d.PostHighScore(ctx, "tok", game.SnakeGame, 9)

	stats, err := d.GetPlayerStats(ctx, "tok", game.SnakeGame)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.GamesPlayed)
	assert.Equal(t, 9, stats.BestResult)
	assert.Equal(t, 9, stats.HighScore)
	assert.True(t, stats.LastPlayed.Equal(base.Add(2*time.Minute)))

	stats, err = d.GetPlayerStats(ctx, "tok", game.MemoryGame)
	require.NoError(t, err)
	assert.Zero(t, stats.GamesPlayed)
	assert.True(t, stats.LastPlayed.IsZero())
}
