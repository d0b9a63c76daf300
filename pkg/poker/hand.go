package poker

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"
)

// HandPhase is the lifecycle phase of a single hand.
type HandPhase int

const (
	PhasePending HandPhase = iota
	PhasePreFlop
	PhaseFlop
	PhaseTurn
	PhaseRiver
	PhaseShowdown
	PhaseCompleted
	PhaseErrored
)

// String returns the phase name used in logs and state snapshots
func (p HandPhase) String() string {
	switch p {
	case PhasePending:
		return "PENDING"
	case PhasePreFlop:
		return "PRE_FLOP"
	case PhaseFlop:
		return "FLOP"
	case PhaseTurn:
		return "TURN"
	case PhaseRiver:
		return "RIVER"
	case PhaseShowdown:
		return "SHOWDOWN"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// Betting reports whether players act during this phase.
func (p HandPhase) Betting() bool {
	return p >= PhasePreFlop && p <= PhaseRiver
}

// HandConfig holds the static configuration for one hand.
type HandConfig struct {
	ID         string
	Log        slog.Logger
	SmallBlind int64
	BigBlind   int64
	Limit      LimitType
	RakeBps    int64 // rake in basis points of the pot
	RakeCap    int64 // maximum rake per hand; 0 = uncapped
	Dealer     int   // index of the dealer button in the players slice
	TimeBank   time.Duration

	// Rand overrides the deck's crypto-strong source. Tests only.
	Rand *rand.Rand
}

// ActionResult reports the outcome of an applied (or rejected) action.
type ActionResult struct {
	Accepted  bool
	Reason    string
	NextActor string // empty when no one is to act
	PotSize   int64
	Phase     HandPhase
}

// Hand owns the lifecycle of a single deal: blinds, hole cards, turn order,
// street advancement, showdown and settlement. It references (but does not
// own) the participating players; their stacks are mutated only by blind
// posting, betting actions and pot distribution. All mutation is serialized
// behind the hand's mutex: exactly one action commits at a time.
type Hand struct {
	cfg HandConfig
	log slog.Logger

	mu      sync.Mutex
	players []*Player // seat order, fixed for the hand
	deck    *Deck
	board   []Card
	pot     *PotManager

	currentBet int64
	minRaise   int64
	lastRaiser int // index of last full raiser; -1 when none
	current    int // index of the actor; -1 when no one acts
	phase      HandPhase

	history []ActionEvent
	winners []PotWinner
	rake    int64

	// chipsInPlay is the conservation constant: stacks + pot + rake must
	// equal it at every commit point.
	chipsInPlay int64

	startedAt time.Time
	endedAt   time.Time
}

// NewHand starts a new hand: posts blinds, shuffles a fresh deck, deals two
// hole cards to every player and sets the first actor. The players slice
// must be in seat order; every entry needs a positive stack and must not be
// sitting out.
func NewHand(cfg HandConfig, players []*Player) (*Hand, error) {
	if len(players) < 2 {
		return nil, fmt.Errorf("need at least 2 players, have %d", len(players))
	}
	for _, p := range players {
		if p.Stack <= 0 {
			return nil, fmt.Errorf("player %s has no chips", p.ID)
		}
		if p.SittingOut {
			return nil, fmt.Errorf("player %s is sitting out", p.ID)
		}
	}
	if cfg.Dealer < 0 || cfg.Dealer >= len(players) {
		return nil, fmt.Errorf("dealer index %d out of range", cfg.Dealer)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}

	var deck *Deck
	if cfg.Rand != nil {
		deck = NewDeckWithRand(cfg.Rand)
	} else {
		deck = NewDeck()
	}
	if deck.Size() < 2*len(players)+5 {
		return nil, fmt.Errorf("deck too small for %d players", len(players))
	}

	h := &Hand{
		cfg:        cfg,
		log:        log,
		players:    players,
		deck:       deck,
		pot:        NewPotManager(len(players), log),
		minRaise:   cfg.BigBlind,
		lastRaiser: -1,
		current:    -1,
		phase:      PhasePending,
		startedAt:  time.Now(),
	}

	for _, p := range players {
		p.ResetForNewHand()
		h.chipsInPlay += p.Stack
	}

	// Heads-up: the button posts the small blind and acts first preflop.
	n := len(players)
	sb := (cfg.Dealer + 1) % n
	bb := (cfg.Dealer + 2) % n
	if n == 2 {
		sb = cfg.Dealer
		bb = (cfg.Dealer + 1) % n
	}

	h.postBlind(sb, cfg.SmallBlind, ActionSmallBlind)
	h.postBlind(bb, cfg.BigBlind, ActionBigBlind)

	// The bet to match is the full big blind even when the big blind is
	// all-in for less.
	h.currentBet = cfg.BigBlind

	// Two passes, one card per player per pass.
	for i := 0; i < 2; i++ {
		for _, p := range players {
			card, err := h.deck.Draw()
			if err != nil {
				return nil, fmt.Errorf("dealing hole cards: %w", err)
			}
			p.HoleCards = append(p.HoleCards, card)
		}
	}

	h.phase = PhasePreFlop

	first := bb + 1
	if n == 2 {
		first = sb
	}
	h.current = h.nextActorFrom(first)
	h.armDeadline()

	log.Debugf("hand %s started: %d players, dealer=%d, sb=%d, bb=%d, first=%d",
		cfg.ID, n, cfg.Dealer, sb, bb, h.current)

	return h, nil
}

// postBlind moves a blind into the pot, capped by the player's stack. An
// all-in blind is legal and recorded as that player's action.
func (h *Hand) postBlind(idx int, amount int64, typ ActionType) {
	p := h.players[idx]
	if amount > p.Stack {
		amount = p.Stack
	}
	h.moveChips(idx, amount)
	p.LastAction = typ
	if p.Stack == 0 {
		p.MarkAllIn()
	}
	h.history = append(h.history, ActionEvent{
		Actor:     p.ID,
		Type:      typ,
		Amount:    amount,
		Timestamp: time.Now(),
	})
}

// moveChips transfers amount from the player's stack into the pot.
func (h *Hand) moveChips(idx int, amount int64) {
	p := h.players[idx]
	p.Stack -= amount
	p.StreetInvested += amount
	p.TotalInvested += amount
	h.pot.AddBet(idx, amount)
}

// ID returns the hand identifier
func (h *Hand) ID() string { return h.cfg.ID }

// Phase returns the current lifecycle phase
func (h *Hand) Phase() HandPhase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// Board returns a copy of the community cards
func (h *Hand) Board() []Card {
	h.mu.Lock()
	defer h.mu.Unlock()
	board := make([]Card, len(h.board))
	copy(board, h.board)
	return board
}

// PotSize returns the total chips in the pot
func (h *Hand) PotSize() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pot.Total()
}

// CurrentBet returns the bet to match for the current street
func (h *Hand) CurrentBet() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentBet
}

// CurrentActorID returns the ID of the player whose turn it is, or "".
func (h *Hand) CurrentActorID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current < 0 {
		return ""
	}
	return h.players[h.current].ID
}

// History returns a copy of the append-only action log.
func (h *Hand) History() []ActionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	hist := make([]ActionEvent, len(h.history))
	copy(hist, h.history)
	return hist
}

// Winners returns the settlement summary; empty until the hand completes.
func (h *Hand) Winners() []PotWinner {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := make([]PotWinner, len(h.winners))
	copy(w, h.winners)
	return w
}

// RakeTaken returns the rake removed at settlement
func (h *Hand) RakeTaken() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rake
}

// Players returns the hand's player references in seat order. The set is
// fixed at hand start; a copy is returned so callers cannot disturb it.
func (h *Hand) Players() []*Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	players := make([]*Player, len(h.players))
	copy(players, h.players)
	return players
}

// fixedBetSize returns the fixed-limit bet tier for the current street:
// small bets preflop and on the flop, big bets on the turn and river.
func (h *Hand) fixedBetSize() int64 {
	if h.cfg.Limit != FixedLimit {
		return 0
	}
	if h.phase == PhaseTurn || h.phase == PhaseRiver {
		return 2 * h.cfg.BigBlind
	}
	return h.cfg.BigBlind
}

// ApplyAction validates and applies one player action. A rejected action
// leaves all hand state untouched. The round-completion check runs within
// the same critical section, so observers never see an applied action with
// a stale round state.
func (h *Hand) ApplyAction(playerID string, a Action) (ActionResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.phase.Betting() {
		return h.rejected(ErrHandNotActive)
	}

	idx := h.indexOf(playerID)
	if idx < 0 {
		return h.rejected(ErrPlayerNotInHand)
	}
	if idx != h.current {
		return h.rejected(fmt.Errorf("%w: current actor is %s", ErrNotYourTurn, h.actorID()))
	}

	p := h.players[idx]
	ctx := BetContext{
		Limit:          h.cfg.Limit,
		Stack:          p.Stack,
		StreetInvested: p.StreetInvested,
		CurrentBet:     h.currentBet,
		MinRaise:       h.minRaise,
		BigBlind:       h.cfg.BigBlind,
		FixedBet:       h.fixedBetSize(),
		PotBeforeCall:  h.pot.Total(),
	}

	if err := ValidateAction(ctx, a); err != nil {
		return h.rejected(err)
	}

	return h.applyValidated(idx, a, false)
}

// rejected builds the rejection result without mutating state.
func (h *Hand) rejected(err error) (ActionResult, error) {
	return ActionResult{
		Accepted: false,
		Reason:   err.Error(),
		PotSize:  h.pot.Total(),
		Phase:    h.phase,
	}, err
}

// actorID returns the current actor's ID without locking
func (h *Hand) actorID() string {
	if h.current < 0 {
		return ""
	}
	return h.players[h.current].ID
}

// indexOf returns the seat index for a player ID, or -1.
func (h *Hand) indexOf(playerID string) int {
	for i, p := range h.players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// applyValidated mutates state for an already validated action and runs the
// round-completion check. Callers hold the mutex.
func (h *Hand) applyValidated(idx int, a Action, forced bool) (ActionResult, error) {
	p := h.players[idx]
	var moved int64

	switch a.Type {
	case ActionFold:
		p.Fold()

	case ActionCheck:
		// No chips move.

	case ActionCall:
		moved = h.currentBet - p.StreetInvested
		if moved > p.Stack {
			moved = p.Stack // all-in for less
		}
		h.moveChips(idx, moved)

	case ActionBet, ActionRaise:
		moved = a.Amount - p.StreetInvested
		h.moveChips(idx, moved)

		// A full raise reopens the action for everyone else; an all-in
		// for less than the minimum increment does not.
		if a.Amount-h.currentBet >= h.minRaise {
			h.minRaise = a.Amount - h.currentBet
			h.lastRaiser = idx
			for i, other := range h.players {
				if i != idx {
					other.HasActed = false
				}
			}
		}
		if a.Amount > h.currentBet {
			h.currentBet = a.Amount
		}
	}

	if p.Stack == 0 && p.TotalInvested > 0 && !p.HasFolded {
		p.MarkAllIn()
	}

	p.HasActed = true
	p.LastAction = a.Type
	p.Deadline = time.Time{}

	h.history = append(h.history, ActionEvent{
		Actor:     p.ID,
		Type:      a.Type,
		Amount:    moved,
		Timestamp: time.Now(),
		Forced:    forced,
	})

	h.log.Debugf("hand %s: %s %s %d (pot=%d bet=%d)",
		h.cfg.ID, p.ID, a.Type, moved, h.pot.Total(), h.currentBet)

	if err := h.completeRound(); err != nil {
		return ActionResult{}, err
	}
	if err := h.checkConservation(); err != nil {
		return ActionResult{}, err
	}

	return ActionResult{
		Accepted:  true,
		NextActor: h.actorID(),
		PotSize:   h.pot.Total(),
		Phase:     h.phase,
	}, nil
}

// completeRound runs after every action: it ends the hand on forfeiture,
// advances to the next actor, deals the next street, or settles. Callers
// hold the mutex.
func (h *Hand) completeRound() error {
	var active []int
	for i, p := range h.players {
		if p.ActiveInHand() {
			active = append(active, i)
		}
	}

	if len(active) == 0 {
		return h.markErrored(fmt.Errorf("no active players remain"))
	}
	if len(active) == 1 {
		return h.finishByForfeit(active[0])
	}

	// The round is open while any player who can still act has not
	// matched the bet or has not acted since the last raise. All-in
	// players are excluded: they have no decision left.
	roundDone := true
	for _, p := range h.players {
		if p.CanAct() && (!p.HasActed || p.StreetInvested != h.currentBet) {
			roundDone = false
			break
		}
	}

	if !roundDone {
		h.current = h.nextActorFrom(h.current + 1)
		if h.current < 0 {
			return h.markErrored(fmt.Errorf("round open but no actor available"))
		}
		h.armDeadline()
		return nil
	}

	canAct := 0
	for _, i := range active {
		if h.players[i].CanAct() {
			canAct++
		}
	}

	// With at most one player able to act there is no further betting:
	// refund any uncalled portion, run out the board and settle.
	if canAct <= 1 {
		h.pot.ReturnUncalledBet(h.players)
		if err := h.dealRemainingStreets(); err != nil {
			return err
		}
		return h.settle()
	}

	if h.phase == PhaseRiver {
		return h.settle()
	}

	return h.advanceStreet()
}

// advanceStreet deals the next street and resets the betting round.
func (h *Hand) advanceStreet() error {
	toDeal := 0
	switch h.phase {
	case PhasePreFlop:
		toDeal = 3
		h.phase = PhaseFlop
	case PhaseFlop:
		toDeal = 1
		h.phase = PhaseTurn
	case PhaseTurn:
		toDeal = 1
		h.phase = PhaseRiver
	default:
		return h.markErrored(fmt.Errorf("cannot advance street from %s", h.phase))
	}

	for i := 0; i < toDeal; i++ {
		card, err := h.deck.Draw()
		if err != nil {
			return h.markErrored(err)
		}
		h.board = append(h.board, card)
	}

	h.currentBet = 0
	h.minRaise = h.cfg.BigBlind
	h.lastRaiser = -1
	h.pot.ResetCurrentBets()
	for _, p := range h.players {
		p.StreetInvested = 0
		p.HasActed = false
	}

	// First active, funded player clockwise from the button acts first
	// on every post-flop street.
	h.current = h.nextActorFrom(h.cfg.Dealer + 1)
	if h.current < 0 {
		return h.markErrored(fmt.Errorf("no actor after dealing %s", h.phase))
	}
	h.armDeadline()

	h.log.Debugf("hand %s: dealt %s, board=%v, first=%d", h.cfg.ID, h.phase, h.board, h.current)
	return nil
}

// dealRemainingStreets runs the board out to five cards when no further
// betting is possible. The loop is bounded: at most flop, turn and river.
func (h *Hand) dealRemainingStreets() error {
	deals := []int{}
	switch len(h.board) {
	case 0:
		deals = []int{3, 1, 1}
	case 3:
		deals = []int{1, 1}
	case 4:
		deals = []int{1}
	}
	for _, n := range deals {
		for i := 0; i < n; i++ {
			card, err := h.deck.Draw()
			if err != nil {
				return h.markErrored(err)
			}
			h.board = append(h.board, card)
		}
	}
	if len(h.board) != 5 {
		return h.markErrored(fmt.Errorf("board has %d cards after runout", len(h.board)))
	}
	return nil
}

// settle evaluates every remaining hand, distributes the pots and completes
// the hand.
func (h *Hand) settle() error {
	h.phase = PhaseShowdown
	h.current = -1
	for _, p := range h.players {
		p.Deadline = time.Time{}
		if p.ActiveInHand() {
			hv := EvaluateHand(p.HoleCards, h.board)
			p.HandValue = &hv
		}
	}

	rake := ComputeRake(h.pot.Total(), h.cfg.RakeBps, h.cfg.RakeCap)
	winners, err := h.pot.Settle(h.players, rake)
	if err != nil {
		return h.markErrored(err)
	}
	h.rake = rake
	h.winners = winners

	h.phase = PhaseCompleted
	h.endedAt = time.Now()

	if err := h.checkConservation(); err != nil {
		return err
	}

	h.log.Infof("hand %s settled: pot distributed to %d winner entries, rake=%d",
		h.cfg.ID, len(winners), rake)
	return nil
}

// finishByForfeit awards the pot to the sole remaining player. No cards are
// revealed and no showdown runs. Rake is taken only if a flop was dealt.
func (h *Hand) finishByForfeit(idx int) error {
	h.pot.ReturnUncalledBet(h.players)

	total := h.pot.Total()
	var rake int64
	if len(h.board) > 0 {
		rake = ComputeRake(total, h.cfg.RakeBps, h.cfg.RakeCap)
	}
	won := total - rake

	p := h.players[idx]
	p.Stack += won
	h.rake = rake
	h.winners = []PotWinner{{
		PlayerID: p.ID,
		PotLabel: "main pot",
		Amount:   won,
	}}

	h.current = -1
	for _, pl := range h.players {
		pl.Deadline = time.Time{}
	}
	h.phase = PhaseCompleted
	h.endedAt = time.Now()

	if err := h.checkConservation(); err != nil {
		return err
	}

	h.log.Infof("hand %s: %s wins %d by forfeiture", h.cfg.ID, p.ID, won)
	return nil
}

// nextActorFrom scans clockwise from start for a player who can still act.
func (h *Hand) nextActorFrom(start int) int {
	n := len(h.players)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if idx < 0 {
			idx += n
		}
		if h.players[idx].CanAct() {
			return idx
		}
	}
	return -1
}

// armDeadline records the absolute action deadline for the current actor.
func (h *Hand) armDeadline() {
	if h.cfg.TimeBank <= 0 || h.current < 0 {
		return
	}
	h.players[h.current].Deadline = time.Now().Add(h.cfg.TimeBank)
}

// ForceTimeoutFold folds the current actor if their deadline has passed. It
// goes through the same apply path as a voluntary fold so every invariant
// and the round-completion check are reused. Returns true if a fold was
// applied.
func (h *Hand) ForceTimeoutFold(now time.Time) (ActionResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.phase.Betting() || h.current < 0 {
		return ActionResult{}, false
	}
	p := h.players[h.current]
	if p.Deadline.IsZero() || now.Before(p.Deadline) {
		return ActionResult{}, false
	}

	h.log.Infof("hand %s: %s timed out, forcing fold", h.cfg.ID, p.ID)
	res, err := h.applyValidated(h.current, Action{Type: ActionFold}, true)
	if err != nil {
		return ActionResult{}, false
	}
	return res, true
}

// Retire folds a player who is leaving the table mid-hand. Chips already
// committed to the pot are forfeited. Safe to call for any seat, in or out
// of turn.
func (h *Hand) Retire(playerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := h.indexOf(playerID)
	if idx < 0 {
		return ErrPlayerNotInHand
	}
	return h.retireLocked(idx)
}

// CashOut folds and detaches a player leaving the table mid-hand. Chips
// already committed to the pot are forfeited; the remaining stack leaves
// the table and the conservation constant shrinks with it, so the hand
// keeps running for everyone else. Returns the amount cashed out.
func (h *Hand) CashOut(playerID string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := h.indexOf(playerID)
	if idx < 0 {
		return 0, ErrPlayerNotInHand
	}

	// Fold first: an uncalled bet refund or a settlement triggered by the
	// fold must land in the stack before it is detached.
	err := h.retireLocked(idx)

	p := h.players[idx]
	amount := p.Stack
	p.Stack = 0
	h.chipsInPlay -= amount
	return amount, err
}

// retireLocked folds the seat at idx on the engine's behalf. Callers hold
// the mutex.
func (h *Hand) retireLocked(idx int) error {
	if !h.phase.Betting() {
		return nil
	}
	p := h.players[idx]
	if !p.ActiveInHand() {
		return nil
	}

	if idx == h.current {
		_, err := h.applyValidated(idx, Action{Type: ActionFold}, true)
		return err
	}

	p.Fold()
	p.LastAction = ActionFold
	p.Deadline = time.Time{}
	h.history = append(h.history, ActionEvent{
		Actor:     p.ID,
		Type:      ActionFold,
		Timestamp: time.Now(),
		Forced:    true,
	})

	// An out-of-turn fold cannot move the turn marker unless it ends the
	// round or leaves a single player standing; otherwise the current
	// actor still owes an action.
	active := 0
	for _, pl := range h.players {
		if pl.ActiveInHand() {
			active++
		}
	}
	roundDone := true
	for _, pl := range h.players {
		if pl.CanAct() && (!pl.HasActed || pl.StreetInvested != h.currentBet) {
			roundDone = false
			break
		}
	}
	if roundDone || active <= 1 {
		return h.completeRound()
	}
	return nil
}

// checkConservation verifies that no chips were created or destroyed:
// stacks + pot + rake must equal the chips in play at hand start. A
// violation is a programming defect; the hand is marked errored and
// excluded from further actions.
func (h *Hand) checkConservation() error {
	var sum int64
	for _, p := range h.players {
		sum += p.Stack
	}
	if h.phase == PhaseCompleted {
		sum += h.rake
	} else {
		sum += h.pot.Total()
	}

	if sum != h.chipsInPlay {
		return h.markErrored(fmt.Errorf("chip conservation violated: have %d, want %d", sum, h.chipsInPlay))
	}
	return nil
}

// markErrored marks the hand as fatally inconsistent. It never recovers;
// the dump gives enough context to reconstruct what happened.
func (h *Hand) markErrored(err error) error {
	h.phase = PhaseErrored
	h.current = -1
	h.endedAt = time.Now()
	h.log.Errorf("hand %s errored: %v\n%s", h.cfg.ID, err,
		spew.Sdump(struct {
			Board      []Card
			CurrentBet int64
			TotalBets  map[int]int64
			History    []ActionEvent
		}{h.board, h.currentBet, h.pot.TotalBets, h.history}))
	return fmt.Errorf("hand %s marked errored: %w", h.cfg.ID, err)
}

// Snapshot is a consistent point-in-time view of a hand for display.
// Readers never see a partially applied action.
type Snapshot struct {
	ID         string
	Phase      HandPhase
	Board      []Card
	PotSize    int64
	CurrentBet int64
	MinRaise   int64
	NextActor  string
	Winners    []PotWinner
	Rake       int64
	StartedAt  time.Time
	EndedAt    time.Time
}

// GetSnapshot returns an atomic snapshot of the hand state.
func (h *Hand) GetSnapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	board := make([]Card, len(h.board))
	copy(board, h.board)
	winners := make([]PotWinner, len(h.winners))
	copy(winners, h.winners)

	return Snapshot{
		ID:         h.cfg.ID,
		Phase:      h.phase,
		Board:      board,
		PotSize:    h.pot.Total(),
		CurrentBet: h.currentBet,
		MinRaise:   h.minRaise,
		NextActor:  h.actorID(),
		Winners:    winners,
		Rake:       h.rake,
		StartedAt:  h.startedAt,
		EndedAt:    h.endedAt,
	}
}
