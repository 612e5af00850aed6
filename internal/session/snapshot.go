package session

import "github.com/calvinwijaya/minigames-be/internal/game"

// Snapshot is a point-in-time copy of a session for clients. Seq increases
// with every change so that out-of-order deliveries can be dropped.
type Snapshot struct {
	ID        string           `json:"id"`
	Seq       uint64           `json:"seq"`
	Game      string           `json:"game"`
	Status    game.Status      `json:"status"`
	Outcome   game.Outcome     `json:"outcome,omitempty"`
	Score     int              `json:"score"`
	HighScore int              `json:"highScore"`
	NewRecord bool             `json:"newRecord"`
	Snake     *game.SnakeView  `json:"snake,omitempty"`
	Memory    *game.MemoryView `json:"memory,omitempty"`
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.build()
}

func (s *Session) snapshotLocked() Snapshot {
	s.seq++
	s.lastActive = s.now()
	return s.build()
}

func (s *Session) build() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Seq:       s.seq,
		Game:      s.game,
		Status:    s.engine.Status(),
		Outcome:   s.engine.Outcome(),
		Score:     s.engine.Score(),
		HighScore: s.gate.Prior(),
		NewRecord: s.newRecord,
	}
	if s.snake != nil {
		v := s.snake.View()
		snap.Snake = &v
	}
	if s.memory != nil {
		v := s.memory.View()
		snap.Memory = &v
	}
	return snap
}
