package poker

import (
	"github.com/chehsunliu/poker"
)

// HandRank represents the class of a poker hand
type HandRank int

const (
	HighCard HandRank = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the human-readable name of the hand class
func (r HandRank) String() string {
	switch r {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandValue is the complete evaluation of a hand. Score carries the full
// ordering including kickers; Rank is the coarse class for display.
type HandValue struct {
	Rank        HandRank
	Score       int32 // chehsunliu rank value; lower is better
	Description string
}

// toEvalCard converts our Card type to the chehsunliu/poker card type
func toEvalCard(card Card) poker.Card {
	var rankChar byte
	switch Value(card.GetValue()) {
	case Ten:
		rankChar = 'T'
	default:
		rankChar = card.GetValue()[0]
	}

	var suitChar byte
	switch Suit(card.GetSuit()) {
	case Spades:
		suitChar = 's'
	case Hearts:
		suitChar = 'h'
	case Diamonds:
		suitChar = 'd'
	case Clubs:
		suitChar = 'c'
	}

	return poker.NewCard(string([]byte{rankChar, suitChar}))
}

// rankClassToHandRank maps chehsunliu rank classes onto HandRank
func rankClassToHandRank(rankClass int32) HandRank {
	switch rankClass {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return Pair
	default:
		return HighCard
	}
}

// EvaluateHand ranks the best 5-card hand from 2 hole cards plus up to 5
// community cards. The result is deterministic for identical inputs: the
// library rank value is a total order with all kicker resolution baked in.
func EvaluateHand(holeCards []Card, communityCards []Card) HandValue {
	allCards := append([]Card{}, holeCards...)
	allCards = append(allCards, communityCards...)

	evalCards := make([]poker.Card, len(allCards))
	for i, card := range allCards {
		evalCards[i] = toEvalCard(card)
	}

	rank := poker.Evaluate(evalCards)
	rankClass := poker.RankClass(rank)

	hr := rankClassToHandRank(rankClass)
	// The library reports A-high straight flushes as straight flushes.
	if hr == StraightFlush && rank == 1 {
		hr = RoyalFlush
	}

	return HandValue{
		Rank:        hr,
		Score:       rank,
		Description: poker.RankString(rank),
	}
}

// CompareHands compares two evaluations and returns -1 if a is worse than b,
// 0 on an exact tie, and 1 if a is better. Lower scores are better in the
// underlying library, so the comparison is inverted.
func CompareHands(a, b HandValue) int {
	if a.Score > b.Score {
		return -1
	}
	if a.Score < b.Score {
		return 1
	}
	return 0
}
