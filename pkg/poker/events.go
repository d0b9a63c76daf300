package poker

import (
	"time"
)

// ActionEvent is one entry in a hand's append-only history. Amount is the
// number of chips the action moved into the pot (zero for check/fold). The
// ordered log is sufficient to replay the hand deterministically given the
// same deck.
type ActionEvent struct {
	Actor     string
	Type      ActionType
	Amount    int64
	Timestamp time.Time

	// Forced marks actions the engine issued on the player's behalf
	// (timeout fold, stand-up fold). They follow the same apply path as
	// voluntary actions but are logged distinctly.
	Forced bool
}

// PotWinner records one pot-layer credit at settlement.
type PotWinner struct {
	PlayerID  string
	PotLabel  string
	Amount    int64
	HandClass string
}
