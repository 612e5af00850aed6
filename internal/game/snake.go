package game

import (
	"time"

	"golang.org/x/exp/rand"
)

const (
	SnakeTick      = 140 * time.Millisecond
	SnakeFoodValue = 1
)

var (
	SnakeStart        = Position{X: 10, Y: 10}
	SnakeStartHeading = Right
)

// StepResult describes what a single movement tick did
type StepResult struct {
	Moved   bool
	Ate     bool
	Over    bool
	Outcome Outcome
}

// SnakeEngine holds the rules and state of one snake play-through.
// It is not safe for concurrent use; the owning session serializes calls.
type SnakeEngine struct {
	status    Status
	outcome   Outcome
	body      []Position // head first
	direction Direction  // applied at the last step
	pending   Direction  // applied at the next step
	food      Position
	hasFood   bool
	score     int
	rng       *rand.Rand
}

// NewSnakeEngine creates an idle engine with the initial board in place
func NewSnakeEngine(r *rand.Rand) *SnakeEngine {
	e := &SnakeEngine{rng: r}
	e.init()
	return e
}

func (e *SnakeEngine) init() {
	e.status = Idle
	e.outcome = NoOutcome
	e.body = []Position{SnakeStart}
	e.direction = SnakeStartHeading
	e.pending = SnakeStartHeading
	e.score = 0
	e.placeFood()
}

// Start moves the engine from Idle to Running
func (e *SnakeEngine) Start() bool {
	if e.status != Idle {
		return false
	}
	e.status = Running
	return true
}

// ChangeDirection queues a heading for the next step. A request that is the
// exact reverse of the current heading is ignored, as is anything once Over.
func (e *SnakeEngine) ChangeDirection(d Direction) bool {
	if e.status == Over || !d.Unit() {
		return false
	}
	if d == e.direction.Opposite() {
		return false
	}
	e.pending = d
	return true
}

// Step advances the snake by one cell. It only acts while Running.
func (e *SnakeEngine) Step() StepResult {
	if e.status != Running {
		return StepResult{}
	}

	e.direction = e.pending
	head := e.body[0].Add(e.direction)

	if !head.InBounds(GridSize) {
		e.finish(WallCollision)
		return StepResult{Over: true, Outcome: WallCollision}
	}
	if e.occupied(head) {
		e.finish(SelfCollision)
		return StepResult{Over: true, Outcome: SelfCollision}
	}

	// Prepend the new head, then drop the tail unless fed
	e.body = append([]Position{head}, e.body...)
	if e.hasFood && head == e.food {
		e.score += SnakeFoodValue
		e.placeFood()
		return StepResult{Moved: true, Ate: true}
	}
	e.body = e.body[:len(e.body)-1]

	return StepResult{Moved: true}
}

// Tick is the clock entry point and performs one movement step
func (e *SnakeEngine) Tick() (over bool) {
	return e.Step().Over
}

// Reset returns an Over engine to a fresh Idle board. Resetting an Idle
// engine leaves it untouched; a Running engine refuses.
func (e *SnakeEngine) Reset() bool {
	switch e.status {
	case Idle:
		return true
	case Over:
		e.init()
		return true
	default:
		return false
	}
}

func (e *SnakeEngine) finish(o Outcome) {
	e.status = Over
	e.outcome = o
}

func (e *SnakeEngine) occupied(p Position) bool {
	for _, segment := range e.body {
		if segment == p {
			return true
		}
	}
	return false
}

// placeFood draws uniformly among the cells the snake does not cover
func (e *SnakeEngine) placeFood() {
	free := make([]Position, 0, GridSize*GridSize)
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			p := Position{X: x, Y: y}
			if !e.occupied(p) {
				free = append(free, p)
			}
		}
	}

	if len(free) == 0 {
		e.hasFood = false
		return
	}
	e.food = free[e.rng.Intn(len(free))]
	e.hasFood = true
}

func (e *SnakeEngine) Status() Status { return e.status }

func (e *SnakeEngine) Outcome() Outcome { return e.outcome }

func (e *SnakeEngine) Score() int { return e.score }

func (e *SnakeEngine) Direction() Direction { return e.direction }

// Food returns the food cell and whether there is one on the board
func (e *SnakeEngine) Food() (Position, bool) {
	return e.food, e.hasFood
}

// Body returns a copy of the snake, head first
func (e *SnakeEngine) Body() []Position {
	body := make([]Position, len(e.body))
	copy(body, e.body)
	return body
}

// SnakeView is the render-facing state of a snake board
type SnakeView struct {
	Grid      int        `json:"grid"`
	Body      []Position `json:"body"`
	Food      *Position  `json:"food,omitempty"`
	Direction Direction  `json:"direction"`
}

// View returns a copy of the board for rendering
func (e *SnakeEngine) View() SnakeView {
	v := SnakeView{
		Grid:      GridSize,
		Body:      e.Body(),
		Direction: e.direction,
	}
	if e.hasFood {
		food := e.food
		v.Food = &food
	}
	return v
}
