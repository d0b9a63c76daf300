package poker

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDeck(t *testing.T) {
	deck := NewDeck()
	if deck.Size() != 52 {
		t.Fatalf("new deck has %d cards, want 52", deck.Size())
	}

	seen := make(map[string]bool)
	for deck.Size() > 0 {
		card, err := deck.Draw()
		if err != nil {
			t.Fatalf("draw failed: %v", err)
		}
		if seen[card.String()] {
			t.Fatalf("duplicate card %s", card)
		}
		seen[card.String()] = true
	}
	if len(seen) != 52 {
		t.Fatalf("drew %d distinct cards, want 52", len(seen))
	}

	_, err := deck.Draw()
	require.ErrorIs(t, err, ErrEmptyDeck)
}

func TestDeckDeterministicWithSeed(t *testing.T) {
	d1 := NewDeckWithRand(rand.New(rand.NewSource(42)))
	d2 := NewDeckWithRand(rand.New(rand.NewSource(42)))

	for d1.Size() > 0 {
		c1, err := d1.Draw()
		require.NoError(t, err)
		c2, err := d2.Draw()
		require.NoError(t, err)
		if c1 != c2 {
			t.Fatalf("same seed produced different decks: %s vs %s", c1, c2)
		}
	}
}

func TestCardJSONRoundTrip(t *testing.T) {
	card := NewCard(Hearts, Ace)

	data, err := json.Marshal(card)
	require.NoError(t, err)

	var got Card
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, card, got)
}

func TestCardJSONAcceptsLetterSuits(t *testing.T) {
	var got Card
	require.NoError(t, json.Unmarshal([]byte(`{"suit":"h","value":"T"}`), &got))
	require.Equal(t, NewCard(Hearts, Ten), got)

	require.Error(t, json.Unmarshal([]byte(`{"suit":"x","value":"A"}`), &got))
	require.Error(t, json.Unmarshal([]byte(`{"suit":"h","value":"1"}`), &got))
}
