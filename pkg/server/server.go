package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/pokertable/pkg/poker"
)

// ErrTableExists is returned when creating a table with a taken id.
var ErrTableExists = errors.New("server: table already exists")

// houseAccount is the ledger account credited with rake.
const houseAccount = "house"

// Server coordinates tables and the account ledger. It owns the table
// registry; each table serializes its own hand.
type Server struct {
	log slog.Logger
	db  Database

	mu     sync.RWMutex
	tables map[string]*Table

	events chan TableEvent
}

// NewServer creates a server backed by the given ledger.
func NewServer(log slog.Logger, database Database) *Server {
	if log == nil {
		log = slog.Disabled
	}
	return &Server{
		log:    log,
		db:     database,
		tables: make(map[string]*Table),
		events: make(chan TableEvent, 128),
	}
}

// Events returns the stream of table events. Delivery is best-effort; slow
// consumers lose events rather than stalling hands.
func (s *Server) Events() <-chan TableEvent {
	return s.events
}

// CreateTable registers a new table.
func (s *Server) CreateTable(cfg TableConfig) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("table-%d", len(s.tables)+1)
	}
	if _, exists := s.tables[cfg.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, cfg.ID)
	}
	if cfg.Log == nil {
		cfg.Log = s.log
	}

	t := NewTable(cfg)
	t.SetEventChannel(s.events)
	s.tables[cfg.ID] = t

	s.log.Infof("created table %s (%s, blinds %d/%d)", cfg.ID, cfg.Limit, cfg.SmallBlind, cfg.BigBlind)
	return t, nil
}

// GetTable returns a table by id.
func (s *Server) GetTable(tableID string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return t, nil
}

// SitDown seats a player at a table, moving the buy-in from their account
// balance to their table stack. The seat is released if the debit fails.
func (s *Server) SitDown(tableID, playerID, name string, seat int, buyIn int64) error {
	t, err := s.GetTable(tableID)
	if err != nil {
		return err
	}

	balance, err := s.db.GetPlayerBalance(playerID)
	if err != nil {
		return fmt.Errorf("failed to check balance: %w", err)
	}
	if balance < buyIn {
		return fmt.Errorf("%w: balance %s, buy-in %s", ErrInsufficientFunds,
			formatAtoms(balance), formatAtoms(buyIn))
	}

	if _, err := t.SitDown(playerID, name, seat, buyIn); err != nil {
		return err
	}

	desc := fmt.Sprintf("buy-in at table %s (%s)", tableID, formatAtoms(buyIn))
	if _, err := s.db.DebitAccount(playerID, buyIn, "buy_in", desc); err != nil {
		// Undo the seat so chips never exist without backing funds.
		if _, suErr := t.StandUp(playerID); suErr != nil {
			s.log.Errorf("failed to unseat %s after debit failure: %v", playerID, suErr)
		}
		return fmt.Errorf("failed to debit buy-in: %w", err)
	}
	return nil
}

// StandUp removes a player from a table and credits their remaining stack
// back to their account. Leaving mid-hand folds the player first.
func (s *Server) StandUp(tableID, playerID string) (int64, error) {
	t, err := s.GetTable(tableID)
	if err != nil {
		return 0, err
	}

	cashOut, err := t.StandUp(playerID)
	if err != nil {
		return 0, err
	}

	if cashOut > 0 {
		desc := fmt.Sprintf("cash-out from table %s (%s)", tableID, formatAtoms(cashOut))
		if _, err := s.db.CreditAccount(playerID, cashOut, "cash_out", desc); err != nil {
			return cashOut, fmt.Errorf("failed to credit cash-out: %w", err)
		}
	}

	s.finalizeHand(t)
	return cashOut, nil
}

// StartNewHand starts the next hand at a table.
func (s *Server) StartNewHand(tableID string) (*poker.Hand, error) {
	t, err := s.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	return t.StartNewHand()
}

// ApplyAction applies a player action to a table's current hand. A non-empty
// handID pins the action to that hand; actions carrying a stale id fail with
// ErrHandNotActive instead of landing on a later hand.
func (s *Server) ApplyAction(tableID, handID, playerID string, a poker.Action) (poker.ActionResult, error) {
	t, err := s.GetTable(tableID)
	if err != nil {
		return poker.ActionResult{}, err
	}

	if handID != "" {
		h := t.Hand()
		if h == nil || h.ID() != handID {
			return poker.ActionResult{}, fmt.Errorf("%w: hand %s", poker.ErrHandNotActive, handID)
		}
	}

	res, err := t.ApplyAction(playerID, a)
	if err != nil {
		return res, err
	}

	s.finalizeHand(t)
	return res, nil
}

// GetTableState returns the table state as visible to requestingUserID.
func (s *Server) GetTableState(tableID, requestingUserID string) (TableState, error) {
	t, err := s.GetTable(tableID)
	if err != nil {
		return TableState{}, err
	}
	return t.GetState(requestingUserID), nil
}

// HandleTimeouts sweeps every table once, force-folding actors whose
// deadline passed. Returns the number of folds applied.
func (s *Server) HandleTimeouts(now time.Time) int {
	s.mu.RLock()
	tables := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, t)
	}
	s.mu.RUnlock()

	folds := 0
	for _, t := range tables {
		if t.HandleTimeouts(now) {
			folds++
		}
		s.finalizeHand(t)
	}
	return folds
}

// StartSweeper runs the timeout sweep until ctx is canceled.
func (s *Server) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.HandleTimeouts(now); n > 0 {
					s.log.Debugf("timeout sweep folded %d players", n)
				}
			}
		}
	}()
}

// finalizeHand records the settlement of a completed hand in the ledger.
// Pot wins and rake move chips between table stacks, not account balances,
// so they are written as audit entries only. Safe to call repeatedly; the
// table guarantees each hand settles once.
func (s *Server) finalizeHand(t *Table) {
	res, ok := t.MaybeFinalizeHand()
	if !ok {
		return
	}

	for _, ev := range res.History {
		if ev.Amount <= 0 {
			continue
		}
		desc := fmt.Sprintf("hand %s: %s %s", res.HandID, ev.Type, formatAtoms(ev.Amount))
		if _, err := s.db.RecordEntry(ev.Actor, -ev.Amount, "wager", desc); err != nil {
			s.log.Errorf("failed to record wager for %s: %v", ev.Actor, err)
		}
	}
	for _, w := range res.Winners {
		desc := fmt.Sprintf("hand %s: won %s from %s (%s)",
			res.HandID, formatAtoms(w.Amount), w.PotLabel, w.HandClass)
		if _, err := s.db.RecordEntry(w.PlayerID, w.Amount, "pot_win", desc); err != nil {
			s.log.Errorf("failed to record pot win for %s: %v", w.PlayerID, err)
		}
	}
	if res.Rake > 0 {
		desc := fmt.Sprintf("hand %s: rake %s", res.HandID, formatAtoms(res.Rake))
		if _, err := s.db.RecordEntry(houseAccount, res.Rake, "rake", desc); err != nil {
			s.log.Errorf("failed to record rake: %v", err)
		}
	}

	s.log.Infof("hand %s settled: %d pots paid, rake %d", res.HandID, len(res.Winners), res.Rake)
}

// Close shuts the server down and closes the ledger.
func (s *Server) Close() error {
	return s.db.Close()
}
