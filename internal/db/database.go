package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/calvinwijaya/minigames-be/internal/score"
	"github.com/calvinwijaya/minigames-be/internal/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	_ score.Service    = (*Database)(nil)
	_ session.Recorder = (*Database)(nil)
)

const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// Database keeps high scores and finished-session results. It serves as the
// score service when no external one is configured.
type Database struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

type HighScore struct {
	Game      string    `json:"game"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PlayerStats struct {
	Game        string    `json:"game"`
	HighScore   int       `json:"highScore"`
	GamesPlayed int       `json:"gamesPlayed"`
	BestResult  int       `json:"bestResult"`
	LastPlayed  time.Time `json:"lastPlayed"`
}

// NewDatabase opens a connection and brings the schema up to date
func NewDatabase(driver, dsn string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if driver != SQLite && driver != Postgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if driver == SQLite {
		// Every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := migrate(db, driver, log); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, log: log, now: time.Now}, nil
}

func migrate(db *sql.DB, driver string, log *zap.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log.Sugar()})
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("error selecting migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	return nil
}

type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Debugf(format, v...)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// PlayerKey derives the stored player identity from a session token, so raw
// tokens never reach the database
func PlayerKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HighScore returns the player's best score for game, zero when none is stored
func (d *Database) HighScore(ctx context.Context, token, game string) (int, error) {
	var score int
	err := d.db.QueryRowContext(ctx,
		"SELECT score FROM high_scores WHERE player_key = $1 AND game = $2",
		PlayerKey(token), game,
	).Scan(&score)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error getting high score: %w", err)
	}
	return score, nil
}

// PostHighScore stores score if it beats the stored one. It reports whether
// the stored value changed.
func (d *Database) PostHighScore(ctx context.Context, token, game string, score int) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO high_scores (player_key, game, score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_key, game) DO UPDATE
		SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.score > high_scores.score
	`, PlayerKey(token), game, score, d.now().UTC())
	if err != nil {
		return false, fmt.Errorf("error saving high score: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error saving high score: %w", err)
	}
	return n > 0, nil
}

// RecordResult saves the outcome of a finished play-through
func (d *Database) RecordResult(ctx context.Context, r session.Result) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO session_results (id, session_id, player_key, game, score, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New().String(), r.SessionID, PlayerKey(r.Token), r.Game, r.Score, string(r.Outcome), r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("error saving session result: %w", err)
	}
	return nil
}

// HighScores returns every high score the player holds
func (d *Database) HighScores(ctx context.Context, token string) ([]HighScore, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT game, score, updated_at FROM high_scores WHERE player_key = $1 ORDER BY game",
		PlayerKey(token),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing high scores: %w", err)
	}
	defer rows.Close()

	scores := []HighScore{}
	for rows.Next() {
		var hs HighScore
		if err := rows.Scan(&hs.Game, &hs.Score, &hs.UpdatedAt); err != nil {
			return nil, err
		}
		scores = append(scores, hs)
	}
	return scores, rows.Err()
}

// GetPlayerStats summarizes the player's history for one game
func (d *Database) GetPlayerStats(ctx context.Context, token, game string) (*PlayerStats, error) {
	key := PlayerKey(token)
	stats := PlayerStats{Game: game}

	high, err := d.HighScore(ctx, token, game)
	if err != nil {
		return nil, err
	}
	stats.HighScore = high

	var best sql.NullInt64
	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MAX(score) FROM session_results WHERE player_key = $1 AND game = $2",
		key, game,
	).Scan(&stats.GamesPlayed, &best)
	if err != nil {
		return nil, fmt.Errorf("error counting results: %w", err)
	}
	stats.BestResult = int(best.Int64)

	if stats.GamesPlayed > 0 {
		err = d.db.QueryRowContext(ctx,
			"SELECT created_at FROM session_results WHERE player_key = $1 AND game = $2 ORDER BY created_at DESC LIMIT 1",
			key, game,
		).Scan(&stats.LastPlayed)
		if err != nil {
			d.log.Warn("error getting last played", zap.String("game", game), zap.Error(err))
		}
	}

	return &stats, nil
}
