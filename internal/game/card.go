package game

// Faces is the number of distinct card faces in a memory deck.
const Faces = 8

type Face int

type Card struct {
	ID      int  `json:"id"`
	Face    Face `json:"face"`
	Flipped bool `json:"flipped"` // Face-up this turn
	Matched bool `json:"matched"` // Permanently resolved, implies Flipped
}

// Visible reports whether the card face can be shown to the player
func (c Card) Visible() bool {
	return c.Flipped || c.Matched
}
