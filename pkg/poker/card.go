package poker

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
)

// Suit represents a card suit
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Value represents a card value
type Value string

const (
	Ace   Value = "A"
	Two   Value = "2"
	Three Value = "3"
	Four  Value = "4"
	Five  Value = "5"
	Six   Value = "6"
	Seven Value = "7"
	Eight Value = "8"
	Nine  Value = "9"
	Ten   Value = "10"
	Jack  Value = "J"
	Queen Value = "Q"
	King  Value = "K"
)

// Card represents a playing card
type Card struct {
	suit  Suit
	value Value
}

// NewCard creates a card with the given suit and value. Needed because the
// fields are unexported.
func NewCard(suit Suit, value Value) Card {
	return Card{suit: suit, value: value}
}

// String returns a string representation of the card
func (c Card) String() string {
	return string(c.value) + string(c.suit)
}

// GetSuit returns the card's suit
func (c Card) GetSuit() string {
	return string(c.suit)
}

// GetValue returns the card's value
func (c Card) GetValue() string {
	return string(c.value)
}

// cardJSON is the serialized form of a Card.
type cardJSON struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON implements json.Marshaler for Card
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{
		Suit:  string(c.suit),
		Value: string(c.value),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Card
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}

	switch cj.Suit {
	case "♠", "s", "S":
		c.suit = Spades
	case "♥", "h", "H":
		c.suit = Hearts
	case "♦", "d", "D":
		c.suit = Diamonds
	case "♣", "c", "C":
		c.suit = Clubs
	default:
		return fmt.Errorf("invalid suit: %s", cj.Suit)
	}

	switch cj.Value {
	case "A", "K", "Q", "J", "10", "9", "8", "7", "6", "5", "4", "3", "2":
		c.value = Value(cj.Value)
	case "T":
		c.value = Ten
	default:
		return fmt.Errorf("invalid value: %s", cj.Value)
	}

	return nil
}

// ErrEmptyDeck is returned when a card is drawn from an exhausted deck. A
// hand validates deck size up front, so seeing this mid-hand indicates a
// programming defect.
var ErrEmptyDeck = errors.New("poker: deck is empty")

// Deck represents a depleting deck of cards
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// cryptoSource adapts crypto/rand to rand.Source64 so deck permutations are
// cryptographically strong. Money rides on the shuffle; a seedable PRNG is
// only acceptable for tests.
type cryptoSource struct{}

func (cryptoSource) Seed(int64) {}

func (s cryptoSource) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

func (cryptoSource) Uint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("poker: crypto source failed: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// NewDeck creates a full shuffled 52-card deck using a crypto-strong
// permutation.
func NewDeck() *Deck {
	return NewDeckWithRand(rand.New(cryptoSource{}))
}

// NewDeckWithRand creates a full shuffled deck using the supplied source.
// Tests pass a seeded source for deterministic deals.
func NewDeckWithRand(rng *rand.Rand) *Deck {
	deck := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}

	suits := []Suit{Spades, Hearts, Diamonds, Clubs}
	values := []Value{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

	for _, suit := range suits {
		for _, value := range values {
			deck.cards = append(deck.cards, Card{suit: suit, value: value})
		}
	}

	deck.Shuffle()

	return deck
}

// Shuffle randomizes the order of the remaining cards
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the top card from the deck
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrEmptyDeck
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, nil
}

// Size returns the number of cards remaining in the deck
func (d *Deck) Size() int {
	return len(d.cards)
}
