package rng

import (
	"testing"

	"agentpoker/pkg/poker"
)

func TestRandomIntRange(t *testing.T) {
	s, err := NewSystemWithSeed([]byte("test-seed"))
	if err != nil {
		t.Fatalf("NewSystemWithSeed: %v", err)
	}
	for i := 0; i < 1000; i++ {
		v := s.RandomInt(7)
		if v < 0 || v >= 7 {
			t.Fatalf("RandomInt(7) out of range: %d", v)
		}
	}
}

func TestRandomIntZeroMax(t *testing.T) {
	s, _ := NewSystemWithSeed([]byte("seed"))
	if v := s.RandomInt(0); v != 0 {
		t.Fatalf("RandomInt(0) = %d, want 0", v)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	s, err := NewSystemWithSeed([]byte("shuffle-seed"))
	if err != nil {
		t.Fatalf("NewSystemWithSeed: %v", err)
	}
	deck := NewDeck()
	before := make(map[int]bool, 52)
	for _, c := range deck {
		before[c.ToID()] = true
	}

	Shuffle(deck, s)

	if len(deck) != 52 {
		t.Fatalf("shuffled deck has %d cards, want 52", len(deck))
	}
	after := make(map[int]bool, 52)
	for _, c := range deck {
		after[c.ToID()] = true
	}
	for id := range before {
		if !after[id] {
			t.Fatalf("card id %d missing after shuffle", id)
		}
	}
}

func TestDealPrefixAndRemainder(t *testing.T) {
	deck := NewDeck()
	dealt, remaining, err := Deal(deck, 5)
	if err != nil {
		t.Fatalf("Deal: %v", err)
	}
	if len(dealt) != 5 || len(remaining) != 47 {
		t.Fatalf("Deal returned %d dealt, %d remaining", len(dealt), len(remaining))
	}
	for i := 0; i < 5; i++ {
		if dealt[i] != deck[i] {
			t.Errorf("dealt[%d] = %v, want %v (deal must not reorder)", i, dealt[i], deck[i])
		}
	}
	for i := 0; i < 47; i++ {
		if remaining[i] != deck[i+5] {
			t.Errorf("remaining[%d] = %v, want %v", i, remaining[i], deck[i+5])
		}
	}
}

func TestDealExhausted(t *testing.T) {
	deck := NewDeck()
	_, _, err := Deal(deck, 53)
	if err != ErrDeckExhausted {
		t.Fatalf("expected ErrDeckExhausted, got %v", err)
	}
}

func TestNewDeckHasNoDuplicates(t *testing.T) {
	deck := NewDeck()
	seen := make(map[poker.Card]bool, 52)
	for _, c := range deck {
		if seen[c] {
			t.Fatalf("duplicate card %v in fresh deck", c)
		}
		seen[c] = true
	}
	if len(seen) != 52 {
		t.Fatalf("fresh deck has %d distinct cards, want 52", len(seen))
	}
}
