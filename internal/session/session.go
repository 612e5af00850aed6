// Package session runs one play-through of a minigame: it owns the engine,
// drives it from a SessionClock, resolves deferred card flips and hands the
// final score to the score gate.
//
// Every entry into the engine, whether a clock tick, a player input or a
// deferred callback, runs under the session mutex, so they never overlap.
// Snapshots are published after the mutex is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvinwijaya/minigames-be/internal/auth"
	"github.com/calvinwijaya/minigames-be/internal/clock"
	"github.com/calvinwijaya/minigames-be/internal/game"
	"github.com/calvinwijaya/minigames-be/internal/score"
)

var (
	ErrUnauthenticated = errors.New("session token is not valid")
	ErrWrongGame       = errors.New("input does not apply to this game")
	ErrClosed          = errors.New("session is closed")
)

// Result is what a finished play-through leaves behind
type Result struct {
	SessionID  string
	Token      string
	Game       string
	Score      int
	Outcome    game.Outcome
	FinishedAt time.Time
}

// Recorder keeps the results of finished play-throughs
type Recorder interface {
	RecordResult(ctx context.Context, r Result) error
}

type Config struct {
	Game  string
	Token string

	Clock    clk.Clock // defaults to the wall clock
	Guard    auth.Guard
	Scores   score.Service // nil disables high score submission
	Recorder Recorder      // optional
	Logger   *zap.Logger
	Seed     uint64 // zero seeds from the current time

	// OnUpdate receives a snapshot after every change. It is called without
	// the session lock held and must not block for long.
	OnUpdate func(Snapshot)

	// OnUnauthenticated is called when Open rejects the token
	OnUnauthenticated func()
}

type engine interface {
	Start() bool
	Tick() bool
	Reset() bool
	Status() game.Status
	Outcome() game.Outcome
	Score() int
}

// Session is one live game
type Session struct {
	id       string
	game     string
	token    string
	log      *zap.Logger
	now      func() time.Time
	onUpdate func(Snapshot)
	recorder Recorder

	clock     *clock.SessionClock
	scheduler *clock.Scheduler
	gate      *score.Gate

	mu         sync.Mutex
	engine     engine
	snake      *game.SnakeEngine
	memory     *game.MemoryEngine
	seq        uint64
	newRecord  bool
	closed     bool
	lastActive time.Time

	wg sync.WaitGroup
}

// Open validates the player's token and prepares a session. The board is
// dealt while the token check and the high score fetch are in flight; an
// invalid token aborts the session before it can run.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if !game.ValidGame(cfg.Game) {
		return nil, fmt.Errorf("open session for %q: %w", cfg.Game, game.ErrUnknownGame)
	}
	if cfg.Guard == nil {
		cfg.Guard = auth.NonEmpty()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	id := uuid.New().String()
	log := cfg.Logger.With(zap.String("session_id", id), zap.String("game", cfg.Game))
	gate := score.NewGate(cfg.Scores, cfg.Token, cfg.Game, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := cfg.Guard.Validate(gctx, cfg.Token)
		if err != nil {
			log.Warn("token validation failed", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		if !ok {
			return ErrUnauthenticated
		}
		return nil
	})
	g.Go(func() error {
		gate.Load(gctx)
		return nil
	})

	s := &Session{
		id:        id,
		game:      cfg.Game,
		token:     cfg.Token,
		log:       log,
		now:       cfg.Clock.Now,
		onUpdate:  cfg.OnUpdate,
		recorder:  cfg.Recorder,
		scheduler: clock.NewScheduler(cfg.Clock),
		gate:      gate,
	}
	s.lastActive = s.now()

	rng := game.NewRand(cfg.Seed)
	switch cfg.Game {
	case game.SnakeGame:
		s.snake = game.NewSnakeEngine(rng)
		s.engine = s.snake
		s.clock = clock.NewSessionClock(cfg.Clock, game.SnakeTick)
	case game.MemoryGame:
		s.memory = game.NewMemoryEngine(rng)
		s.engine = s.memory
		s.clock = clock.NewSessionClock(cfg.Clock, game.MemoryTick)
	}

	if err := g.Wait(); err != nil {
		log.Info("session rejected", zap.Error(err))
		if cfg.OnUnauthenticated != nil {
			cfg.OnUnauthenticated()
		}
		return nil, err
	}

	log.Debug("session opened", zap.Int("high_score", gate.Prior()))
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Game() string { return s.game }

// Owner returns the token the session was opened with
func (s *Session) Owner() string { return s.token }

// Owns reports whether token is the one the session was opened with
func (s *Session) Owns(token string) bool {
	return token != "" && token == s.token
}

// Start sets the clock running. It does nothing unless the engine is in its
// pre-start state.
func (s *Session) Start() (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if !s.engine.Start() {
		s.mu.Unlock()
		return false, nil
	}
	s.clock.Start(s.tick)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("session started")
	s.publish(snap)
	return true, nil
}

func (s *Session) tick(epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.clock.Epoch() {
		s.mu.Unlock()
		return
	}
	var res *Result
	if s.engine.Tick() {
		res = s.finishLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	s.record(res)
}

// ChangeDirection queues a turn for the snake. Reversals are ignored.
func (s *Session) ChangeDirection(d game.Direction) (bool, error) {
	s.mu.Lock()
	if s.snake == nil {
		s.mu.Unlock()
		return false, ErrWrongGame
	}
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	if !s.snake.ChangeDirection(d) {
		s.mu.Unlock()
		return false, nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true, nil
}

// Flip turns a memory card face-up. A mismatched pair is turned back after
// the reveal delay unless the game ends or resets first.
func (s *Session) Flip(cardID int) (bool, error) {
	s.mu.Lock()
	if s.memory == nil {
		s.mu.Unlock()
		return false, ErrWrongGame
	}
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}

	flip := s.memory.Flip(cardID)
	if !flip.Flipped {
		s.mu.Unlock()
		return false, nil
	}
	if mm := flip.Mismatch; mm != nil {
		s.scheduler.After(game.MemoryRevealTime, func(epoch uint64) {
			s.hide(*mm, epoch)
		})
	}
	var res *Result
	if flip.Over {
		res = s.finishLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	s.record(res)
	return true, nil
}

func (s *Session) hide(mm game.Mismatch, epoch uint64) {
	s.mu.Lock()
	if s.closed || epoch != s.scheduler.Epoch() || !s.memory.HideMismatch(mm) {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// Reset prepares a new play-through after the game is over. Resetting a
// session that has not started is harmless; a running one refuses.
func (s *Session) Reset() (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	wasOver := s.engine.Status() == game.Over
	if !s.engine.Reset() {
		s.mu.Unlock()
		return false, nil
	}
	if wasOver {
		s.clock.Stop()
		s.scheduler.Cancel()
		s.gate.Reset()
		s.newRecord = false
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if wasOver {
		s.log.Debug("session reset")
	}
	s.publish(snap)
	return true, nil
}

// finishLocked stops everything that could touch the board and submits the
// score. The returned result is recorded once the lock is released; it is
// counted in wg here so Wait cannot miss it.
func (s *Session) finishLocked() *Result {
	s.clock.Stop()
	s.scheduler.Cancel()

	final := s.engine.Score()
	s.newRecord = s.gate.Commit(final)

	s.log.Info("game over",
		zap.Int("score", final),
		zap.String("outcome", string(s.engine.Outcome())),
		zap.Bool("new_record", s.newRecord),
	)

	if s.recorder == nil {
		return nil
	}
	s.wg.Add(1)
	return &Result{
		SessionID:  s.id,
		Token:      s.token,
		Game:       s.game,
		Score:      final,
		Outcome:    s.engine.Outcome(),
		FinishedAt: s.now(),
	}
}

func (s *Session) record(res *Result) {
	if res == nil {
		return
	}
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), score.PostTimeout)
		defer cancel()
		if err := s.recorder.RecordResult(ctx, *res); err != nil {
			s.log.Error("record result failed", zap.Error(err))
		}
	}()
}

func (s *Session) publish(snap Snapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}

// Close stops the session for good. Pending ticks and callbacks become no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.clock.Stop()
	s.scheduler.Cancel()
	s.log.Debug("session closed")
}

// LastActive returns when the session last changed
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Wait blocks until background score submissions and result writes finish
func (s *Session) Wait() {
	s.gate.Wait()
	s.wg.Wait()
}
