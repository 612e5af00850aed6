package game

import (
	"time"

	"golang.org/x/exp/rand"
)

const (
	MemoryTick       = time.Second
	MemoryDuration   = 60 // seconds on the countdown
	MemoryRevealTime = time.Second
	MatchReward      = 10
	MismatchPenalty  = 3
)

// Mismatch identifies a revealed pair waiting to be turned back face-down.
// Epoch ties it to the play-through that produced it.
type Mismatch struct {
	First  int
	Second int
	Epoch  uint64
}

// FlipResult describes what a single card flip did
type FlipResult struct {
	Flipped  bool      // The card was turned face-up
	Resolved bool      // A pair was compared
	Matched  bool      // The compared pair matched
	Mismatch *Mismatch // Set when the pair must be turned back after the reveal delay
	Over     bool
}

// MemoryEngine holds the rules and state of one memory play-through.
// It is not safe for concurrent use; the owning session serializes calls.
type MemoryEngine struct {
	status    Status
	outcome   Outcome
	deck      *Deck
	selection []int
	score     int
	remaining int
	epoch     uint64
	rng       *rand.Rand
}

// NewMemoryEngine creates a Loading engine with a freshly shuffled deck
func NewMemoryEngine(r *rand.Rand) *MemoryEngine {
	e := &MemoryEngine{rng: r}
	e.init()
	return e
}

func (e *MemoryEngine) init() {
	deck := NewDeck(Faces)
	deck.Shuffle(e.rng)

	e.status = Loading
	e.outcome = NoOutcome
	e.deck = deck
	e.selection = e.selection[:0]
	e.score = 0
	e.remaining = MemoryDuration
	e.epoch++
}

// Start reveals the deck and moves the engine from Loading to Running
func (e *MemoryEngine) Start() bool {
	if e.status != Loading {
		return false
	}
	e.status = Running
	return true
}

// Flip turns a card face-up. Flips of unknown, flipped or matched cards are
// ignored, as is everything outside Running. When the selection reaches two
// cards the pair is resolved immediately.
func (e *MemoryEngine) Flip(id int) FlipResult {
	if e.status != Running {
		return FlipResult{}
	}
	card, ok := e.deck.Card(id)
	if !ok || card.Flipped || card.Matched {
		return FlipResult{}
	}

	card.Flipped = true
	e.selection = append(e.selection, id)
	if len(e.selection) < 2 {
		return FlipResult{Flipped: true}
	}

	return e.resolve()
}

func (e *MemoryEngine) resolve() FlipResult {
	first, _ := e.deck.Card(e.selection[0])
	second, _ := e.deck.Card(e.selection[1])
	e.selection = e.selection[:0]

	if first.Face == second.Face {
		first.Matched = true
		second.Matched = true
		e.score += MatchReward

		res := FlipResult{Flipped: true, Resolved: true, Matched: true}
		if e.deck.AllMatched() {
			e.finish(AllPairsFound)
			res.Over = true
		}
		return res
	}

	// The pair stays visible until the reveal delay ends
	return FlipResult{
		Flipped:  true,
		Resolved: true,
		Mismatch: &Mismatch{First: first.ID, Second: second.ID, Epoch: e.epoch},
	}
}

// HideMismatch turns a revealed pair back face-down and charges the mismatch
// penalty. Tokens from an earlier play-through, or issued before the game
// ended, are ignored.
func (e *MemoryEngine) HideMismatch(m Mismatch) bool {
	if m.Epoch != e.epoch || e.status != Running {
		return false
	}

	hidden := false
	for _, id := range []int{m.First, m.Second} {
		if card, ok := e.deck.Card(id); ok && card.Flipped && !card.Matched {
			card.Flipped = false
			hidden = true
		}
	}
	if hidden {
		e.score -= MismatchPenalty
	}
	return hidden
}

// Tick decrements the countdown by one second. Reaching zero ends the game
// whatever the state of the board.
func (e *MemoryEngine) Tick() (over bool) {
	if e.status != Running {
		return false
	}

	if e.remaining > 0 {
		e.remaining--
	}
	if e.remaining == 0 {
		e.finish(TimeUp)
		return true
	}
	return false
}

// Reset deals a new deck and restores the countdown. Resetting a Loading
// engine leaves it untouched; a Running engine refuses.
func (e *MemoryEngine) Reset() bool {
	switch e.status {
	case Loading:
		return true
	case Over:
		e.init()
		return true
	default:
		return false
	}
}

func (e *MemoryEngine) finish(o Outcome) {
	e.status = Over
	e.outcome = o
	e.epoch++
}

func (e *MemoryEngine) Status() Status { return e.status }

func (e *MemoryEngine) Outcome() Outcome { return e.outcome }

func (e *MemoryEngine) Score() int { return e.score }

func (e *MemoryEngine) Remaining() int { return e.remaining }

// Selection returns the ids of the face-up cards awaiting comparison
func (e *MemoryEngine) Selection() []int {
	sel := make([]int, len(e.selection))
	copy(sel, e.selection)
	return sel
}

// Cards returns a copy of the deck in position order
func (e *MemoryEngine) Cards() []Card {
	cards := make([]Card, len(e.deck.Cards))
	copy(cards, e.deck.Cards)
	return cards
}

// CardView is a card as the player sees it; Face is nil while face-down
type CardView struct {
	ID      int   `json:"id"`
	Face    *Face `json:"face,omitempty"`
	Flipped bool  `json:"flipped"`
	Matched bool  `json:"matched"`
}

// MemoryView is the render-facing state of a memory board
type MemoryView struct {
	Cards     []CardView `json:"cards,omitempty"`
	Remaining int        `json:"remaining"`
}

// View returns the board for rendering. The deck stays hidden while Loading.
func (e *MemoryEngine) View() MemoryView {
	v := MemoryView{Remaining: e.remaining}
	if e.status == Loading {
		return v
	}

	v.Cards = make([]CardView, len(e.deck.Cards))
	for i, c := range e.deck.Cards {
		cv := CardView{ID: c.ID, Flipped: c.Flipped, Matched: c.Matched}
		if c.Visible() {
			face := c.Face
			cv.Face = &face
		}
		v.Cards[i] = cv
	}
	return v
}
