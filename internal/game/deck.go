package game

import (
	"golang.org/x/exp/rand"
)

type Deck struct {
	Cards []Card
}

// NewDeck creates an ordered deck holding exactly two cards of each face
func NewDeck(faces int) *Deck {
	deck := &Deck{Cards: make([]Card, 0, faces*2)}

	for pass := 0; pass < 2; pass++ {
		for f := 0; f < faces; f++ {
			deck.Cards = append(deck.Cards, Card{Face: Face(f)})
		}
	}
	deck.renumber()

	return deck
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle(r *rand.Rand) {
	// Fisher-Yates shuffle algorithm
	for i := len(d.Cards) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	}
	d.renumber()
}

// Card returns the card at the given position id
func (d *Deck) Card(id int) (*Card, bool) {
	if id < 0 || id >= len(d.Cards) {
		return nil, false
	}
	return &d.Cards[id], true
}

// AllMatched reports whether every card has been resolved
func (d *Deck) AllMatched() bool {
	for _, c := range d.Cards {
		if !c.Matched {
			return false
		}
	}
	return len(d.Cards) > 0
}

// FaceCounts returns how many cards carry each face
func (d *Deck) FaceCounts() map[Face]int {
	counts := make(map[Face]int)
	for _, c := range d.Cards {
		counts[c.Face]++
	}
	return counts
}

// ids are stable position indexes
func (d *Deck) renumber() {
	for i := range d.Cards {
		d.Cards[i].ID = i
	}
}
