package game

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/exp/rand"
)

type Status string

const (
	Idle    Status = "idle"    // Snake board placed, clock stopped
	Loading Status = "loading" // Memory deck dealt but not yet visible
	Running Status = "running" // Clock active
	Over    Status = "over"    // Terminal until reset
)

type Outcome string

const (
	NoOutcome     Outcome = ""
	WallCollision Outcome = "wall"
	SelfCollision Outcome = "self"
	AllPairsFound Outcome = "win"
	TimeUp        Outcome = "timeUp"
)

// Game identifiers, also used as the high score record keys
const (
	SnakeGame  = "snakeGame"
	MemoryGame = "memoryGame"
)

var ErrUnknownGame = errors.New("unknown game")

// ValidGame reports whether id names one of the playable games
func ValidGame(id string) bool {
	return id == SnakeGame || id == MemoryGame
}

// GridSize is the width and height of the snake board
const GridSize = 20

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add moves the position one cell along d
func (p Position) Add(d Direction) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// InBounds reports whether the position lies on an n by n grid
func (p Position) InBounds(n int) bool {
	return p.X >= 0 && p.X < n && p.Y >= 0 && p.Y < n
}

type Direction struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var (
	Up    = Direction{X: 0, Y: -1}
	Down  = Direction{X: 0, Y: 1}
	Left  = Direction{X: -1, Y: 0}
	Right = Direction{X: 1, Y: 0}
)

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	return Direction{X: -d.X, Y: -d.Y}
}

// Unit reports whether d is one of the four grid directions
func (d Direction) Unit() bool {
	return d == Up || d == Down || d == Left || d == Right
}

// ParseDirection accepts "up", "down", "left" or "right"
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, true
	case "down":
		return Down, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	default:
		return Direction{}, false
	}
}

// NewRand returns a random source; a zero seed is replaced by the current time
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed))
}
