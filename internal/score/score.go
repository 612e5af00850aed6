// Package score decides when a finished play-through is a new high score and
// hands it to the score service.
package score

import "context"

// Service is the store of record for high scores, one per (player, game).
// The player is identified by their session token.
type Service interface {
	HighScore(ctx context.Context, token, game string) (int, error)
	PostHighScore(ctx context.Context, token, game string, score int) (accepted bool, err error)
}

// ShouldCommit reports whether current is a new high score that has not been
// submitted yet this play-through.
func ShouldCommit(current, priorHigh int, alreadyCommitted bool) bool {
	return current > priorHigh && !alreadyCommitted
}
