package server

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/pokertable/pkg/poker"
)

// Seat and table errors surfaced through the coordinator.
var (
	ErrTableNotFound    = errors.New("server: table not found")
	ErrSeatTaken        = errors.New("server: seat is taken")
	ErrInvalidSeat      = errors.New("server: invalid seat")
	ErrInvalidBuyIn     = errors.New("server: buy-in outside table limits")
	ErrTableFull        = errors.New("server: table is full")
	ErrAlreadySeated    = errors.New("server: player already seated")
	ErrNotSeated        = errors.New("server: player not seated at table")
	ErrNotEnoughPlayers = errors.New("server: not enough players to start a hand")
	ErrHandInProgress   = errors.New("server: a hand is already in progress")
)

// TableConfig holds configuration for a poker table.
type TableConfig struct {
	ID         string
	Log        slog.Logger
	HandLog    slog.Logger
	MaxPlayers int
	SmallBlind int64
	BigBlind   int64
	Limit      poker.LimitType
	RakeBps    int64
	RakeCap    int64
	MinBuyIn   int64
	MaxBuyIn   int64
	TimeBank   time.Duration

	// Rand overrides the deck randomness for deterministic tests.
	Rand *rand.Rand
}

// Table owns seat bookkeeping for one table and runs at most one hand at a
// time. Config is mutated only between hands (dealer rotation). The table
// is the unit of serialization: hand actions go through the hand's own
// mutex, seat changes through the table's.
type Table struct {
	log slog.Logger
	cfg TableConfig

	mu      sync.RWMutex
	players map[string]*poker.Player // seated players by ID

	hand          *poker.Hand
	dealerSeat    int // seat of the current dealer button
	handSeq       int
	settledHandID string

	events     *EventManager
	createdAt  time.Time
	lastAction time.Time
}

// NewTable creates a table from config.
func NewTable(cfg TableConfig) *Table {
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 9
	}
	return &Table{
		log:        log,
		cfg:        cfg,
		players:    make(map[string]*poker.Player),
		dealerSeat: -1,
		events:     &EventManager{},
		createdAt:  time.Now(),
		lastAction: time.Now(),
	}
}

// SetEventChannel attaches an event channel to the table.
func (t *Table) SetEventChannel(ch chan<- TableEvent) {
	t.events.SetEventChannel(ch)
}

// Config returns the table configuration.
func (t *Table) Config() TableConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// SitDown seats a player with a buy-in stack. The caller is responsible for
// debiting the buy-in from the account ledger.
func (t *Table) SitDown(playerID, name string, seat int, buyIn int64) (*poker.Player, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.players[playerID]; exists {
		return nil, ErrAlreadySeated
	}
	if len(t.players) >= t.cfg.MaxPlayers {
		return nil, ErrTableFull
	}
	if seat < 0 || seat >= t.cfg.MaxPlayers {
		return nil, ErrInvalidSeat
	}
	for _, p := range t.players {
		if p.TableSeat == seat {
			return nil, ErrSeatTaken
		}
	}
	if buyIn < t.cfg.MinBuyIn || (t.cfg.MaxBuyIn > 0 && buyIn > t.cfg.MaxBuyIn) {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidBuyIn, buyIn, t.cfg.MinBuyIn, t.cfg.MaxBuyIn)
	}

	p := poker.NewPlayer(playerID, name, buyIn)
	p.TableSeat = seat
	t.players[playerID] = p
	t.lastAction = time.Now()

	t.events.Publish(NotifyPlayerJoined, t.cfg.ID, playerID)
	t.log.Infof("table %s: %s sat down at seat %d with %d chips", t.cfg.ID, playerID, seat, buyIn)
	return p, nil
}

// StandUp removes a player and returns their remaining stack for cash-out.
// A player leaving mid-hand is folded; chips already committed to the pot
// are forfeited.
func (t *Table) StandUp(playerID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.players[playerID]
	if !ok {
		return 0, ErrNotSeated
	}

	// A player dealt into the current hand is folded and detached by the
	// hand itself, so the chips leaving the table stay accounted for and
	// the hand keeps running for the remaining seats.
	var cashOut int64
	detached := false
	if t.hand != nil {
		amount, err := t.hand.CashOut(playerID)
		if !errors.Is(err, poker.ErrPlayerNotInHand) {
			if err != nil {
				t.log.Errorf("table %s: retiring %s failed: %v", t.cfg.ID, playerID, err)
			}
			cashOut = amount
			detached = true
		}
	}
	if !detached {
		cashOut = p.Stack
		p.Stack = 0
	}
	delete(t.players, playerID)
	p.Leave()
	t.lastAction = time.Now()

	t.events.Publish(NotifyPlayerLeft, t.cfg.ID, playerID)
	t.log.Infof("table %s: %s stood up, cashing out %d chips", t.cfg.ID, playerID, cashOut)
	return cashOut, nil
}

// eligiblePlayers returns seated players able to play a hand, in seat
// order. Callers hold the lock.
func (t *Table) eligiblePlayers() []*poker.Player {
	eligible := make([]*poker.Player, 0, len(t.players))
	for _, p := range t.players {
		if p.Stack > 0 && !p.SittingOut {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].TableSeat < eligible[j].TableSeat
	})
	return eligible
}

// StartNewHand rotates the dealer button and starts a hand for every funded,
// active player.
func (t *Table) StartNewHand() (*poker.Hand, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hand != nil {
		phase := t.hand.Phase()
		if phase != poker.PhaseCompleted && phase != poker.PhaseErrored {
			return nil, ErrHandInProgress
		}
	}

	eligible := t.eligiblePlayers()
	if len(eligible) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrNotEnoughPlayers, len(eligible))
	}

	// Button moves to the next eligible seat clockwise.
	dealerIdx := 0
	for i, p := range eligible {
		if p.TableSeat > t.dealerSeat {
			dealerIdx = i
			break
		}
	}
	t.dealerSeat = eligible[dealerIdx].TableSeat

	t.handSeq++
	handID := fmt.Sprintf("%s-%d", t.cfg.ID, t.handSeq)

	handLog := t.cfg.HandLog
	if handLog == nil {
		handLog = t.log
	}

	h, err := poker.NewHand(poker.HandConfig{
		ID:         handID,
		Log:        handLog,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		Limit:      t.cfg.Limit,
		RakeBps:    t.cfg.RakeBps,
		RakeCap:    t.cfg.RakeCap,
		Dealer:     dealerIdx,
		TimeBank:   t.cfg.TimeBank,
		Rand:       t.cfg.Rand,
	}, eligible)
	if err != nil {
		return nil, fmt.Errorf("failed to start hand: %w", err)
	}

	t.hand = h
	t.lastAction = time.Now()

	t.events.Publish(NotifyHandStarted, t.cfg.ID, handID)
	return h, nil
}

// Hand returns the current hand (possibly completed), or nil.
func (t *Table) Hand() *poker.Hand {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hand
}

// ApplyAction routes an action to the current hand.
func (t *Table) ApplyAction(playerID string, a poker.Action) (poker.ActionResult, error) {
	t.mu.RLock()
	h := t.hand
	t.mu.RUnlock()

	if h == nil {
		return poker.ActionResult{}, poker.ErrHandNotActive
	}

	prev := h.Phase()
	res, err := h.ApplyAction(playerID, a)
	if err == nil {
		t.events.Publish(NotifyActionApplied, t.cfg.ID, playerID)
		if res.Phase != prev && res.Phase.Betting() {
			t.events.Publish(NotifyStreetDealt, t.cfg.ID, res.Phase.String())
		}
	}
	return res, err
}

// HandleTimeouts force-folds the current actor if their deadline passed.
// Returns true when a fold was applied.
func (t *Table) HandleTimeouts(now time.Time) bool {
	t.mu.RLock()
	h := t.hand
	t.mu.RUnlock()

	if h == nil {
		return false
	}
	prev := h.Phase()
	actor := h.CurrentActorID()
	res, folded := h.ForceTimeoutFold(now)
	if folded {
		t.events.Publish(NotifyActionApplied, t.cfg.ID, actor)
		if res.Phase != prev && res.Phase.Betting() {
			t.events.Publish(NotifyStreetDealt, t.cfg.ID, res.Phase.String())
		}
	}
	return folded
}

// FinalizeResult carries the bookkeeping output of a completed hand.
type FinalizeResult struct {
	HandID  string
	Winners []poker.PotWinner
	Rake    int64
	History []poker.ActionEvent
	Busted  []string // players removed with zero chips
}

// MaybeFinalizeHand performs once-per-hand bookkeeping after a hand
// completes: it collects the settlement summary and stands up busted
// players. Returns false until the current hand is complete, and on every
// call after the first successful one.
func (t *Table) MaybeFinalizeHand() (FinalizeResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hand == nil {
		return FinalizeResult{}, false
	}
	phase := t.hand.Phase()
	if phase != poker.PhaseCompleted && phase != poker.PhaseErrored {
		return FinalizeResult{}, false
	}
	if t.settledHandID == t.hand.ID() {
		return FinalizeResult{}, false
	}
	t.settledHandID = t.hand.ID()

	res := FinalizeResult{
		HandID:  t.hand.ID(),
		Winners: t.hand.Winners(),
		Rake:    t.hand.RakeTaken(),
		History: t.hand.History(),
	}

	for id, p := range t.players {
		if p.Stack == 0 {
			delete(t.players, id)
			p.Leave()
			res.Busted = append(res.Busted, id)
			t.events.Publish(NotifyPlayerLeft, t.cfg.ID, id)
			t.log.Infof("table %s: removed busted player %s", t.cfg.ID, id)
		}
	}

	if len(res.Winners) > 0 {
		t.events.Publish(NotifyShowdownResult, t.cfg.ID, res.Winners)
	}
	t.events.Publish(NotifyHandEnded, t.cfg.ID, res.HandID)
	return res, true
}

// PlayerView is the externally visible state of one seat. Hole cards are
// masked unless the viewer owns them or the hand reached showdown.
type PlayerView struct {
	ID             string
	Name           string
	Seat           int
	Stack          int64
	StreetInvested int64
	TotalInvested  int64
	Folded         bool
	AllIn          bool
	SittingOut     bool
	LastAction     string
	HoleCards      []string
}

// hiddenCard is the placeholder rendered for unrevealed hole cards.
const hiddenCard = "??"

// TableState is a consistent display snapshot of the table.
type TableState struct {
	ID         string
	SmallBlind int64
	BigBlind   int64
	Limit      string
	DealerSeat int
	Players    []PlayerView
	Hand       *poker.Snapshot
}

// GetState returns a snapshot of the table as visible to requestingUserID:
// all hole cards except the requester's own are masked until showdown, then
// every hand still in contention becomes visible.
func (t *Table) GetState(requestingUserID string) TableState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var handSnap *poker.Snapshot
	revealed := false
	if t.hand != nil {
		snap := t.hand.GetSnapshot()
		handSnap = &snap
		revealed = snap.Phase == poker.PhaseShowdown || snap.Phase == poker.PhaseCompleted
	}

	views := make([]PlayerView, 0, len(t.players))
	for _, p := range t.players {
		view := PlayerView{
			ID:             p.ID,
			Name:           p.Name,
			Seat:           p.TableSeat,
			Stack:          p.Stack,
			StreetInvested: p.StreetInvested,
			TotalInvested:  p.TotalInvested,
			Folded:         p.HasFolded,
			AllIn:          p.IsAllIn,
			SittingOut:     p.SittingOut,
			LastAction:     p.LastAction.String(),
		}

		show := p.ID == requestingUserID || (revealed && !p.HasFolded)
		for _, c := range p.HoleCards {
			if show {
				view.HoleCards = append(view.HoleCards, c.String())
			} else {
				view.HoleCards = append(view.HoleCards, hiddenCard)
			}
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Seat < views[j].Seat })

	return TableState{
		ID:         t.cfg.ID,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		Limit:      t.cfg.Limit.String(),
		DealerSeat: t.dealerSeat,
		Players:    views,
		Hand:       handSnap,
	}
}

// GetPlayer returns a seated player by ID, or nil.
func (t *Table) GetPlayer(playerID string) *poker.Player {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.players[playerID]
}

// NumPlayers returns the number of seated players.
func (t *Table) NumPlayers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.players)
}
