package score

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PostTimeout bounds a single high score submission
const PostTimeout = 15 * time.Second

// Gate owns the high score of one session. It reads the prior high score once
// and submits a new one at most once per play-through. Submissions run in the
// background; their result is logged and never reported back to gameplay.
type Gate struct {
	service Service
	token   string
	game    string
	log     *zap.Logger

	mu        sync.Mutex
	prior     int
	committed bool
	best      int
	wg        sync.WaitGroup
}

// NewGate creates a gate for one player and game. A nil service makes every
// commit a local no-op.
func NewGate(service Service, token, game string, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		service: service,
		token:   token,
		game:    game,
		log:     log.With(zap.String("game", game)),
	}
}

// Load fetches the prior high score. Any failure leaves it at zero.
func (g *Gate) Load(ctx context.Context) int {
	if g.service == nil {
		return g.Prior()
	}

	high, err := g.service.HighScore(ctx, g.token, g.game)
	if err != nil {
		g.log.Warn("high score unavailable, using 0", zap.Error(err))
		high = 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.prior = high
	return high
}

// Prior returns the best score known before this play-through
func (g *Gate) Prior() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prior
}

// Committed reports whether a submission was made this play-through
func (g *Gate) Committed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.committed
}

// Commit submits score if it beats the prior high score and nothing was
// submitted yet. It returns true when a submission was started.
func (g *Gate) Commit(score int) bool {
	g.mu.Lock()
	if !ShouldCommit(score, g.prior, g.committed) {
		g.mu.Unlock()
		return false
	}
	g.committed = true
	g.best = score
	g.mu.Unlock()

	if g.service == nil {
		return true
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PostTimeout)
		defer cancel()

		accepted, err := g.service.PostHighScore(ctx, g.token, g.game, score)
		if err != nil {
			g.log.Error("post high score failed", zap.Int("score", score), zap.Error(err))
			return
		}
		g.log.Info("high score posted", zap.Int("score", score), zap.Bool("accepted", accepted))
	}()
	return true
}

// Reset starts a new play-through. A score committed in the previous one
// becomes the prior high.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.committed && g.best > g.prior {
		g.prior = g.best
	}
	g.committed = false
	g.best = 0
}

// Wait blocks until every submission started so far has finished
func (g *Gate) Wait() {
	g.wg.Wait()
}
