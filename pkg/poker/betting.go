package poker

import (
	"errors"
	"fmt"
)

// LimitType selects the betting structure for a table
type LimitType int

const (
	NoLimit LimitType = iota
	PotLimit
	FixedLimit
)

// String returns the conventional name of the limit type
func (l LimitType) String() string {
	switch l {
	case NoLimit:
		return "no-limit"
	case PotLimit:
		return "pot-limit"
	case FixedLimit:
		return "fixed-limit"
	default:
		return "unknown"
	}
}

// ActionType enumerates every action a player can take in a hand. Blinds are
// actions too: an all-in blind is recorded as the player's action for the
// street.
type ActionType int

const (
	ActionFold ActionType = iota
	ActionCheck
	ActionCall
	ActionBet
	ActionRaise
	ActionSmallBlind
	ActionBigBlind
)

// String returns the action label used in hand history
func (a ActionType) String() string {
	switch a {
	case ActionFold:
		return "fold"
	case ActionCheck:
		return "check"
	case ActionCall:
		return "call"
	case ActionBet:
		return "bet"
	case ActionRaise:
		return "raise"
	case ActionSmallBlind:
		return "small blind"
	case ActionBigBlind:
		return "big blind"
	default:
		return "unknown"
	}
}

// Action is a closed union of the things a player can do. Amount is the
// total street investment the actor moves to for bet/raise and is ignored
// for fold/check/call (the call amount is derived from the bet to match).
type Action struct {
	Type   ActionType
	Amount int64
}

// Validation errors. The coordinator surfaces these verbatim so a caller can
// tell "can't afford" apart from "bad amount" and "not your turn".
var (
	ErrNotYourTurn       = errors.New("poker: not your turn to act")
	ErrHandNotActive     = errors.New("poker: hand is not active")
	ErrPlayerNotInHand   = errors.New("poker: player not in this hand")
	ErrInvalidAmount     = errors.New("poker: invalid action amount")
	ErrInsufficientStack = errors.New("poker: insufficient stack")
)

// BetContext carries everything the validator needs to judge an action. It
// is a value type; validation never mutates game state.
type BetContext struct {
	Limit LimitType

	Stack          int64 // chips behind, excluding StreetInvested
	StreetInvested int64 // actor's chips already in for this street
	CurrentBet     int64 // bet to match for this street
	MinRaise       int64 // minimum raise increment
	BigBlind       int64
	FixedBet       int64 // fixed-limit bet size for this street; 0 otherwise
	PotBeforeCall  int64 // total pot before the actor's call portion
}

// ValidateAction decides whether the proposed action is legal under the
// context. It is a pure function: an error means the action must be rejected
// with no state change.
func ValidateAction(ctx BetContext, a Action) error {
	switch a.Type {
	case ActionFold:
		return nil

	case ActionCheck:
		if ctx.CurrentBet != ctx.StreetInvested {
			return fmt.Errorf("cannot check facing a bet of %d: %w", ctx.CurrentBet, ErrInvalidAmount)
		}
		return nil

	case ActionCall:
		owed := ctx.CurrentBet - ctx.StreetInvested
		if owed <= 0 {
			return fmt.Errorf("nothing to call: %w", ErrInvalidAmount)
		}
		// All-in for less than the call amount is always legal.
		return nil

	case ActionBet:
		if ctx.CurrentBet != 0 {
			return fmt.Errorf("cannot open bet facing a bet of %d: %w", ctx.CurrentBet, ErrInvalidAmount)
		}
		return validateOpenBet(ctx, a.Amount)

	case ActionRaise:
		if ctx.CurrentBet == 0 {
			return fmt.Errorf("nothing to raise: %w", ErrInvalidAmount)
		}
		return validateRaise(ctx, a.Amount)

	default:
		return fmt.Errorf("unknown action type %d: %w", a.Type, ErrInvalidAmount)
	}
}

// validateOpenBet checks an opening bet (current bet to match is zero).
// total is the street investment the actor moves to.
func validateOpenBet(ctx BetContext, total int64) error {
	additional := total - ctx.StreetInvested
	if additional <= 0 {
		return fmt.Errorf("bet of %d puts no chips in: %w", total, ErrInvalidAmount)
	}
	if additional > ctx.Stack {
		return fmt.Errorf("bet needs %d but stack is %d: %w", additional, ctx.Stack, ErrInsufficientStack)
	}

	allIn := additional == ctx.Stack

	switch ctx.Limit {
	case FixedLimit:
		if additional != ctx.FixedBet && !allIn {
			return fmt.Errorf("fixed-limit bet must be %d: %w", ctx.FixedBet, ErrInvalidAmount)
		}
	default:
		if additional < ctx.BigBlind && !allIn {
			return fmt.Errorf("minimum bet is %d: %w", ctx.BigBlind, ErrInvalidAmount)
		}
		if ctx.Limit == PotLimit {
			_, maxTotal := PotLimitBounds(ctx)
			if total > maxTotal {
				return fmt.Errorf("pot-limit bet capped at %d: %w", maxTotal, ErrInvalidAmount)
			}
		}
	}

	return nil
}

// validateRaise checks a raise. total is the street investment the actor
// moves to, which must exceed the current bet to match.
func validateRaise(ctx BetContext, total int64) error {
	needed := total - ctx.StreetInvested
	if needed <= 0 || total <= ctx.CurrentBet {
		return fmt.Errorf("raise to %d does not exceed current bet %d: %w", total, ctx.CurrentBet, ErrInvalidAmount)
	}
	if needed > ctx.Stack {
		return fmt.Errorf("raise needs %d but stack is %d: %w", needed, ctx.Stack, ErrInsufficientStack)
	}

	allIn := needed == ctx.Stack

	switch ctx.Limit {
	case FixedLimit:
		if total != ctx.CurrentBet+ctx.FixedBet && !allIn {
			return fmt.Errorf("fixed-limit raise must be to %d: %w", ctx.CurrentBet+ctx.FixedBet, ErrInvalidAmount)
		}
	case PotLimit:
		minTotal, maxTotal := PotLimitBounds(ctx)
		if total > maxTotal {
			return fmt.Errorf("pot-limit raise capped at %d: %w", maxTotal, ErrInvalidAmount)
		}
		if total < minTotal && !allIn {
			return fmt.Errorf("minimum raise is to %d: %w", minTotal, ErrInvalidAmount)
		}
	default:
		if total < ctx.CurrentBet+ctx.MinRaise && !allIn {
			return fmt.Errorf("minimum raise is to %d: %w", ctx.CurrentBet+ctx.MinRaise, ErrInvalidAmount)
		}
	}

	return nil
}

// PotLimitBounds computes the legal (minTotal, maxTotal) raise-to range for
// pot-limit play. The maximum is a raise by the pot after the actor's call:
// maxTotal = currentBet + potBeforeCall + callAmount. When the stack cannot
// reach the standard minimum the bounds degrade to all-in as the only legal
// raise (min == max == all-in total).
func PotLimitBounds(ctx BetContext) (minTotal, maxTotal int64) {
	callAmt := ctx.CurrentBet - ctx.StreetInvested
	if callAmt < 0 {
		callAmt = 0
	}
	potAfterCall := ctx.PotBeforeCall + callAmt

	maxTotal = ctx.CurrentBet + potAfterCall
	if ctx.CurrentBet == 0 {
		minTotal = ctx.BigBlind
	} else {
		minTotal = ctx.CurrentBet + ctx.MinRaise
	}

	allInTotal := ctx.StreetInvested + ctx.Stack
	if allInTotal < minTotal {
		return allInTotal, allInTotal
	}
	if maxTotal > allInTotal {
		maxTotal = allInTotal
	}
	if minTotal > maxTotal {
		minTotal = maxTotal
	}
	return minTotal, maxTotal
}
