package score

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type post struct {
	token string
	game  string
	score int
}

type fakeService struct {
	mu      sync.Mutex
	high    int
	highErr error
	postErr error
	posts   []post
}

func (f *fakeService) HighScore(_ context.Context, _, _ string) (int, error) {
	return f.high, f.highErr
}

func (f *fakeService) PostHighScore(_ context.Context, token, game string, score int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post{token, game, score})
	return f.postErr == nil, f.postErr
}

func (f *fakeService) Posts() []post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]post(nil), f.posts...)
}

func TestShouldCommit(t *testing.T) {
	assert.False(t, ShouldCommit(40, 50, false))
	assert.False(t, ShouldCommit(50, 50, false))
	assert.True(t, ShouldCommit(60, 50, false))
	assert.False(t, ShouldCommit(60, 50, true))
	assert.False(t, ShouldCommit(-3, 0, false))
}

func TestGateBelowHighNeverPosts(t *testing.T) {
	svc := &fakeService{high: 50}
	g := NewGate(svc, "tok", "snakeGame", zaptest.NewLogger(t))

	require.Equal(t, 50, g.Load(context.Background()))
	assert.False(t, g.Commit(40))
	g.Wait()

	assert.Empty(t, svc.Posts())
}

func TestGateNewHighPostsOnce(t *testing.T) {
	svc := &fakeService{high: 50}
	g := NewGate(svc, "tok", "memoryGame", zaptest.NewLogger(t))
	g.Load(context.Background())

	assert.True(t, g.Commit(60))
	assert.False(t, g.Commit(60))
	assert.False(t, g.Commit(70))
	g.Wait()

	assert.Equal(t, []post{{"tok", "memoryGame", 60}}, svc.Posts())
	assert.True(t, g.Committed())
}

func TestGateLoadFailureMeansZero(t *testing.T) {
	svc := &fakeService{highErr: errors.New("boom")}
	g := NewGate(svc, "tok", "snakeGame", zaptest.NewLogger(t))

	assert.Equal(t, 0, g.Load(context.Background()))
	assert.True(t, g.Commit(1))
	g.Wait()
	assert.Len(t, svc.Posts(), 1)
}

func TestGatePostFailureIsSwallowed(t *testing.T) {
	svc := &fakeService{postErr: errors.New("down")}
	g := NewGate(svc, "tok", "snakeGame", zaptest.NewLogger(t))

	assert.True(t, g.Commit(5))
	g.Wait()

	assert.True(t, g.Committed(), "a failed post still counts as the one attempt")
	assert.False(t, g.Commit(6))
}

func TestGateResetRaisesPrior(t *testing.T) {
	svc := &fakeService{high: 10}
	g := NewGate(svc, "tok", "snakeGame", zaptest.NewLogger(t))
	g.Load(context.Background())

	g.Commit(12)
	g.Reset()
	assert.Equal(t, 12, g.Prior())
	assert.False(t, g.Committed())

	assert.False(t, g.Commit(11))
	assert.True(t, g.Commit(13))
	g.Wait()
	assert.Len(t, svc.Posts(), 2)

	// A play-through without a new high leaves the prior alone
	g.Reset()
	g.Reset()
	assert.Equal(t, 13, g.Prior())
}

func TestGateWithoutService(t *testing.T) {
	g := NewGate(nil, "", "snakeGame", nil)
	assert.Equal(t, 0, g.Load(context.Background()))
	assert.True(t, g.Commit(3))
	g.Wait()
}
