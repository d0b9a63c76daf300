package poker

import (
	"fmt"
	"time"

	"github.com/vctt94/pokertable/pkg/statemachine"
)

// PlayerStateFn represents a player state function following Rob Pike's pattern
type PlayerStateFn = statemachine.StateFn[Player]

// Player is the per-seat state for one seated user. It is created on
// sit-down, reset at the start of each hand and removed on stand-up. The
// table session coordinator owns it; a Hand only holds references.
type Player struct {
	ID        string
	Name      string
	TableSeat int

	// Stack is the player's chips available to wager. Mutated only by
	// blind posting, betting actions and pot distribution.
	Stack int64

	// StartingStack is the stack at the start of the current hand, kept
	// for chip-conservation checks.
	StartingStack int64

	// HoleCards are private until showdown.
	HoleCards []Card

	StreetInvested int64 // chips in for the current street
	TotalInvested  int64 // chips in for the whole hand

	SittingOut bool
	LastAction ActionType
	HasActed   bool // acted since the last bet/raise this street

	// Deadline is the absolute time by which the player must act when it
	// is their turn; zero when they are not the actor.
	Deadline time.Time

	stateMachine *statemachine.Machine[Player]

	HasFolded bool
	IsAllIn   bool

	// HandValue is populated at showdown for eligible players.
	HandValue *HandValue
}

// NewPlayer creates a player with the given buy-in stack.
func NewPlayer(id, name string, stack int64) *Player {
	p := &Player{
		ID:        id,
		Name:      name,
		TableSeat: -1,
		Stack:     stack,
		HoleCards: make([]Card, 0, 2),
	}

	p.stateMachine = statemachine.New(p, playerStateAtTable)

	return p
}

// State functions following Rob Pike's pattern. Each performs its check and
// returns the next state function (or nil to terminate).

// playerStateAtTable: seated but not dealt into a hand.
func playerStateAtTable(p *Player) PlayerStateFn {
	if p.HasFolded {
		return playerStateFolded
	}
	return playerStateAtTable
}

// playerStateInHand: dealt in and still able to act.
func playerStateInHand(p *Player) PlayerStateFn {
	if p.HasFolded {
		return playerStateFolded
	}
	if p.Stack == 0 && p.TotalInvested > 0 {
		return playerStateAllIn
	}

	p.HasFolded = false
	p.IsAllIn = false
	return playerStateInHand
}

// playerStateFolded: out of the current hand.
func playerStateFolded(p *Player) PlayerStateFn {
	if !p.HasFolded {
		return playerStateInHand
	}

	p.HasFolded = true
	p.IsAllIn = false
	return playerStateFolded
}

// playerStateAllIn: all chips committed, no further actions this hand.
func playerStateAllIn(p *Player) PlayerStateFn {
	if p.HasFolded {
		return playerStateFolded
	}
	if p.Stack > 0 {
		return playerStateInHand
	}

	p.HasFolded = false
	p.IsAllIn = true
	return playerStateAllIn
}

// playerStateLeft: stood up. Terminal.
func playerStateLeft(p *Player) PlayerStateFn {
	p.HasFolded = false
	p.IsAllIn = false
	return nil
}

// ResetForNewHand clears per-hand state while preserving table-level state.
func (p *Player) ResetForNewHand() {
	p.HoleCards = make([]Card, 0, 2)
	p.StartingStack = p.Stack
	p.StreetInvested = 0
	p.TotalInvested = 0
	p.HasActed = false
	p.Deadline = time.Time{}
	p.HandValue = nil

	p.stateMachine.SetState(playerStateInHand)
	p.HasFolded = false
	p.IsAllIn = false
}

// Fold transitions the player to the folded state.
func (p *Player) Fold() {
	p.HasFolded = true
	p.stateMachine.Dispatch(playerStateFolded)
}

// MarkAllIn transitions the player to the all-in state.
func (p *Player) MarkAllIn() {
	p.stateMachine.Dispatch(playerStateAllIn)
}

// Leave transitions the player to the terminal left state.
func (p *Player) Leave() {
	p.stateMachine.Dispatch(playerStateLeft)
}

// StateString returns the name of the current player state.
func (p *Player) StateString() string {
	if p.stateMachine == nil {
		return "UNINITIALIZED"
	}
	current := p.stateMachine.Current()
	if current == nil {
		return "LEFT"
	}

	// Function pointer comparison identifies the state.
	switch fmt.Sprintf("%p", current) {
	case fmt.Sprintf("%p", playerStateAtTable):
		return "AT_TABLE"
	case fmt.Sprintf("%p", playerStateInHand):
		return "IN_HAND"
	case fmt.Sprintf("%p", playerStateFolded):
		return "FOLDED"
	case fmt.Sprintf("%p", playerStateAllIn):
		return "ALL_IN"
	default:
		return "UNKNOWN"
	}
}

// ActiveInHand reports whether the player can still win chips this hand
// (dealt in and not folded; all-in players remain active).
func (p *Player) ActiveInHand() bool {
	if p.stateMachine == nil {
		return false
	}
	current := p.stateMachine.Current()
	return fmt.Sprintf("%p", current) == fmt.Sprintf("%p", playerStateInHand) ||
		fmt.Sprintf("%p", current) == fmt.Sprintf("%p", playerStateAllIn)
}

// CanAct reports whether the player still has a decision to make this hand.
func (p *Player) CanAct() bool {
	return p.ActiveInHand() && !p.IsAllIn
}

// HoleString returns a string representation of the player's hole cards.
func (p *Player) HoleString() string {
	if len(p.HoleCards) == 0 {
		return "no cards"
	}
	str := ""
	for i, card := range p.HoleCards {
		if i > 0 {
			str += " "
		}
		str += card.String()
	}
	return str
}
