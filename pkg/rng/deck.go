package rng

import (
	"errors"

	"agentpoker/pkg/poker"
)

// ErrDeckExhausted is returned by Deal when asked for more cards than
// remain. It indicates a programming error upstream: well-formed game
// flows never request more cards than the deck can supply.
var ErrDeckExhausted = errors.New("rng: deck exhausted")

// NewDeck returns the 52 cards of a standard deck in canonical order
// (ToID 0..51).
func NewDeck() []poker.Card {
	deck := make([]poker.Card, 52)
	for id := 0; id < 52; id++ {
		deck[id] = poker.FromID(id)
	}
	return deck
}

// Shuffle performs an in-place Fisher-Yates shuffle, drawing each swap
// index uniformly from [0,i] using s.
func Shuffle(deck []poker.Card, s *System) {
	for i := len(deck) - 1; i > 0; i-- {
		j := s.RandomInt(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// Deal returns the first n cards of deck and the remaining tail. Dealing
// never reorders the remaining cards.
func Deal(deck []poker.Card, n int) (dealt, remaining []poker.Card, err error) {
	if n > len(deck) {
		return nil, nil, ErrDeckExhausted
	}
	dealt = make([]poker.Card, n)
	copy(dealt, deck[:n])
	remaining = deck[n:]
	return dealt, remaining, nil
}
