package poker

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestHand(t *testing.T, cfg HandConfig, stacks ...int64) (*Hand, []*Player) {
	t.Helper()

	names := []string{"alice", "bob", "carol", "dave"}
	players := make([]*Player, len(stacks))
	for i, s := range stacks {
		p := NewPlayer(names[i], names[i], s)
		p.TableSeat = i
		players[i] = p
	}

	if cfg.ID == "" {
		cfg.ID = "test-hand"
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}

	h, err := NewHand(cfg, players)
	require.NoError(t, err)
	return h, players
}

func totalStacks(players []*Player) int64 {
	var sum int64
	for _, p := range players {
		sum += p.Stack
	}
	return sum
}

func TestNewHandValidation(t *testing.T) {
	p1 := NewPlayer("a", "a", 100)
	p2 := NewPlayer("b", "b", 100)

	_, err := NewHand(HandConfig{SmallBlind: 10, BigBlind: 20}, []*Player{p1})
	require.Error(t, err, "one player is not a hand")

	broke := NewPlayer("c", "c", 0)
	_, err = NewHand(HandConfig{SmallBlind: 10, BigBlind: 20}, []*Player{p1, broke})
	require.Error(t, err, "zero stack cannot be dealt in")

	_, err = NewHand(HandConfig{SmallBlind: 10, BigBlind: 20, Dealer: 5}, []*Player{p1, p2})
	require.Error(t, err, "dealer index out of range")
}

func TestHeadsUpBlindsAndFirstActor(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	// Heads-up the button posts the small blind and acts first.
	require.Equal(t, PhasePreFlop, h.Phase())
	require.Equal(t, "alice", h.CurrentActorID())
	require.Equal(t, int64(990), players[0].Stack)
	require.Equal(t, int64(980), players[1].Stack)
	require.Equal(t, int64(30), h.PotSize())
	require.Equal(t, int64(20), h.CurrentBet())

	for _, p := range players {
		require.Len(t, p.HoleCards, 2)
	}

	hist := h.History()
	require.Len(t, hist, 2)
	require.Equal(t, ActionSmallBlind, hist[0].Type)
	require.Equal(t, ActionBigBlind, hist[1].Type)
}

func TestHeadsUpCallCheckToFlop(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	res, err := h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, "bob", res.NextActor)
	require.Equal(t, PhasePreFlop, res.Phase)

	res, err = h.ApplyAction("bob", Action{Type: ActionCheck})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, PhaseFlop, res.Phase)
	require.Equal(t, int64(40), res.PotSize)
	require.Len(t, h.Board(), 3)

	// Big blind acts first on every post-flop street heads-up.
	require.Equal(t, "bob", h.CurrentActorID())
}

func TestHeadsUpCheckdownToShowdown(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	_, err := h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)
	_, err = h.ApplyAction("bob", Action{Type: ActionCheck})
	require.NoError(t, err)

	for _, street := range []HandPhase{PhaseFlop, PhaseTurn, PhaseRiver} {
		require.Equal(t, street, h.Phase())
		_, err = h.ApplyAction("bob", Action{Type: ActionCheck})
		require.NoError(t, err)
		_, err = h.ApplyAction("alice", Action{Type: ActionCheck})
		require.NoError(t, err)
	}

	require.Equal(t, PhaseCompleted, h.Phase())
	require.Len(t, h.Board(), 5)

	winners := h.Winners()
	require.NotEmpty(t, winners)
	var paid int64
	for _, w := range winners {
		paid += w.Amount
	}
	require.Equal(t, int64(40), paid)
	require.Equal(t, int64(2000), totalStacks(players), "chips conserved")
}

func TestBigBlindOptionRaise(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	_, err := h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)

	// The limped big blind can raise; action reopens to the limper.
	res, err := h.ApplyAction("bob", Action{Type: ActionRaise, Amount: 40})
	require.NoError(t, err)
	require.Equal(t, "alice", res.NextActor)
	require.Equal(t, PhasePreFlop, res.Phase)

	res, err = h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)
	require.Equal(t, PhaseFlop, res.Phase)
	require.Equal(t, int64(80), res.PotSize)
}

func TestRejectedActionLeavesStateUntouched(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	// Min raise-to is 40; 30 is short of the increment.
	res, err := h.ApplyAction("alice", Action{Type: ActionRaise, Amount: 30})
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.False(t, res.Accepted)
	require.NotEmpty(t, res.Reason)

	require.Equal(t, "alice", h.CurrentActorID())
	require.Equal(t, int64(30), h.PotSize())
	require.Equal(t, int64(990), players[0].Stack)
	require.Len(t, h.History(), 2, "rejected actions never reach the history")

	// The same player can act again.
	_, err = h.ApplyAction("alice", Action{Type: ActionRaise, Amount: 40})
	require.NoError(t, err)
}

func TestActionOutOfTurn(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	_, err := h.ApplyAction("bob", Action{Type: ActionCall})
	require.ErrorIs(t, err, ErrNotYourTurn)

	_, err = h.ApplyAction("mallory", Action{Type: ActionFold})
	require.ErrorIs(t, err, ErrPlayerNotInHand)
}

func TestFoldOutEndsHandWithoutShowdown(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000, 1000)

	// Three-handed: alice is the button, bob sb, carol bb; alice opens.
	require.Equal(t, "alice", h.CurrentActorID())

	_, err := h.ApplyAction("alice", Action{Type: ActionFold})
	require.NoError(t, err)
	res, err := h.ApplyAction("bob", Action{Type: ActionFold})
	require.NoError(t, err)

	require.Equal(t, PhaseCompleted, res.Phase)
	require.Empty(t, h.Board(), "no cards dealt on a fold-out")

	// Carol's own big blind comes back plus the small blind.
	winners := h.Winners()
	require.Len(t, winners, 1)
	require.Equal(t, "carol", winners[0].PlayerID)
	require.Equal(t, int64(20), winners[0].Amount)
	require.Empty(t, winners[0].HandClass, "no showdown, no hand revealed")

	require.Equal(t, int64(1000), players[0].Stack)
	require.Equal(t, int64(990), players[1].Stack)
	require.Equal(t, int64(1010), players[2].Stack)
	require.Equal(t, int64(0), h.RakeTaken(), "no flop, no drop")
}

func TestThreeWayAllInSidePots(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 50, 200, 200)

	_, err := h.ApplyAction("alice", Action{Type: ActionRaise, Amount: 50})
	require.NoError(t, err)
	_, err = h.ApplyAction("bob", Action{Type: ActionRaise, Amount: 200})
	require.NoError(t, err)
	res, err := h.ApplyAction("carol", Action{Type: ActionCall})
	require.NoError(t, err)

	// Nobody can act: the board runs out and the hand settles in one step.
	require.Equal(t, PhaseCompleted, res.Phase)
	require.Len(t, h.Board(), 5)

	winners := h.Winners()
	var paid int64
	sidePaid := map[string]int64{}
	for _, w := range winners {
		paid += w.Amount
		if w.PotLabel != "main pot" {
			sidePaid[w.PlayerID] += w.Amount
		}
	}
	require.Equal(t, int64(450), paid)
	require.Equal(t, int64(450), totalStacks(players), "chips conserved")

	// The 50-chip stack can win at most the 150 main pot.
	require.NotContains(t, sidePaid, "alice")
	var sideTotal int64
	for _, amt := range sidePaid {
		sideTotal += amt
	}
	require.Equal(t, int64(300), sideTotal)
}

func TestAllInForLessOnCall(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 15, 1000)

	// Alice has 5 behind after the small blind; her call is all-in for
	// less and the uncalled 5 goes back to bob.
	_, err := h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)
	res, err := h.ApplyAction("bob", Action{Type: ActionCheck})
	require.NoError(t, err)

	require.Equal(t, PhaseCompleted, res.Phase)
	require.Equal(t, int64(1015), totalStacks(players), "chips conserved")

	var paid int64
	for _, w := range h.Winners() {
		paid += w.Amount
	}
	require.Equal(t, int64(30), paid, "15 a side after the refund")
}

func TestShowdownRake(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20, RakeBps: 500}, 1000, 1000)

	_, err := h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)
	_, err = h.ApplyAction("bob", Action{Type: ActionCheck})
	require.NoError(t, err)
	for h.Phase().Betting() {
		_, err = h.ApplyAction(h.CurrentActorID(), Action{Type: ActionCheck})
		require.NoError(t, err)
	}

	require.Equal(t, PhaseCompleted, h.Phase())
	require.Equal(t, int64(2), h.RakeTaken(), "5% of the 40 pot")

	var paid int64
	for _, w := range h.Winners() {
		paid += w.Amount
	}
	require.Equal(t, int64(38), paid)
	require.Equal(t, int64(1998), totalStacks(players))
}

func TestTimeoutForcesFold(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20, TimeBank: time.Second}, 1000, 1000)

	// Deadline not reached: nothing happens.
	_, folded := h.ForceTimeoutFold(time.Now())
	require.False(t, folded)
	require.Equal(t, "alice", h.CurrentActorID())

	res, folded := h.ForceTimeoutFold(time.Now().Add(2 * time.Second))
	require.True(t, folded)
	require.Equal(t, PhaseCompleted, res.Phase)

	hist := h.History()
	last := hist[len(hist)-1]
	require.Equal(t, ActionFold, last.Type)
	require.True(t, last.Forced, "timeout folds are marked forced")

	winners := h.Winners()
	require.Len(t, winners, 1)
	require.Equal(t, "bob", winners[0].PlayerID)
}

func TestNoTimeBankNoDeadline(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	_, folded := h.ForceTimeoutFold(time.Now().Add(time.Hour))
	require.False(t, folded, "without a time bank no deadline is armed")
}

func TestRetireOutOfTurnKeepsActor(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000, 1000)

	require.Equal(t, "alice", h.CurrentActorID())

	// Bob leaves mid-hand out of turn; alice still owes an action.
	require.NoError(t, h.Retire("bob"))
	require.Equal(t, "alice", h.CurrentActorID())
	require.Equal(t, PhasePreFlop, h.Phase())

	_, err := h.ApplyAction("alice", Action{Type: ActionFold})
	require.NoError(t, err)

	require.Equal(t, PhaseCompleted, h.Phase())
	winners := h.Winners()
	require.Len(t, winners, 1)
	require.Equal(t, "carol", winners[0].PlayerID)
}

func TestCashOutDetachesStackMidHand(t *testing.T) {
	h, players := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000, 1000)

	// Bob (small blind) leaves before acting: his posted 10 is forfeited
	// and his remaining 990 leaves the table with him.
	amount, err := h.CashOut("bob")
	require.NoError(t, err)
	require.Equal(t, int64(990), amount)
	require.Equal(t, int64(0), players[1].Stack)
	require.Equal(t, "alice", h.CurrentActorID())

	_, err = h.CashOut("mallory")
	require.ErrorIs(t, err, ErrPlayerNotInHand)

	// The hand keeps running on the remaining stacks.
	_, err = h.ApplyAction("alice", Action{Type: ActionCall})
	require.NoError(t, err)
	_, err = h.ApplyAction("carol", Action{Type: ActionCheck})
	require.NoError(t, err)
	require.Equal(t, PhaseFlop, h.Phase())
	require.Equal(t, int64(50), h.PotSize())

	for h.Phase().Betting() {
		_, err = h.ApplyAction(h.CurrentActorID(), Action{Type: ActionCheck})
		require.NoError(t, err)
	}
	require.Equal(t, PhaseCompleted, h.Phase())

	var paid int64
	for _, w := range h.Winners() {
		paid += w.Amount
	}
	require.Equal(t, int64(50), paid, "the leaver's blind stays in the pot")
	require.Equal(t, int64(2010), totalStacks(players), "chips conserved after the cash-out")
}

func TestPlayersReturnsCopy(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	ps := h.Players()
	require.Len(t, ps, 2)
	require.Equal(t, "alice", ps[0].ID)

	ps[0] = nil
	require.NotNil(t, h.Players()[0], "callers must not be able to disturb the seat order")
}

func TestRetireCurrentActor(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000, 1000)

	require.NoError(t, h.Retire("alice"))
	require.Equal(t, "bob", h.CurrentActorID())

	hist := h.History()
	last := hist[len(hist)-1]
	require.Equal(t, ActionFold, last.Type)
	require.True(t, last.Forced)
}

func TestActionsRejectedAfterCompletion(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	_, err := h.ApplyAction("alice", Action{Type: ActionFold})
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, h.Phase())

	_, err = h.ApplyAction("bob", Action{Type: ActionCheck})
	require.ErrorIs(t, err, ErrHandNotActive)
}

func TestSnapshotReflectsState(t *testing.T) {
	h, _ := newTestHand(t, HandConfig{ID: "snap-1", SmallBlind: 10, BigBlind: 20}, 1000, 1000)

	snap := h.GetSnapshot()
	require.Equal(t, "snap-1", snap.ID)
	require.Equal(t, PhasePreFlop, snap.Phase)
	require.Equal(t, int64(30), snap.PotSize)
	require.Equal(t, int64(20), snap.CurrentBet)
	require.Equal(t, "alice", snap.NextActor)
	require.Empty(t, snap.Winners)

	_, err := h.ApplyAction("alice", Action{Type: ActionFold})
	require.NoError(t, err)

	snap = h.GetSnapshot()
	require.Equal(t, PhaseCompleted, snap.Phase)
	require.Empty(t, snap.NextActor)
	require.Len(t, snap.Winners, 1)
	require.False(t, snap.EndedAt.IsZero())
}
