package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrutil/v4"

	"github.com/vctt94/pokertable/pkg/server/internal/db"
)

// Database is the account ledger consumed by the coordinator. Amounts are
// in atoms. Every balance mutation produces a transaction row; the returned
// id identifies it for audit.
type Database interface {
	// GetPlayerBalance returns the player's off-table account balance.
	GetPlayerBalance(playerID string) (int64, error)
	// DebitAccount removes funds (buy-in), failing with
	// ErrInsufficientFunds before any mutation.
	DebitAccount(playerID string, amount int64, txType, description string) (int64, error)
	// CreditAccount adds funds (cash-out, refunds).
	CreditAccount(playerID string, amount int64, txType, description string) (int64, error)
	// RecordEntry appends an audit-only entry for in-hand chip movement
	// (blinds, pot wins, rake) that does not touch account funds.
	RecordEntry(playerID string, amount int64, txType, description string) (int64, error)
	// Transactions lists a player's ledger entries, newest first.
	Transactions(playerID string, limit int) ([]db.Transaction, error)
	// Close closes the database connection.
	Close() error
}

// ErrInsufficientFunds is re-exported so callers don't import internal/db.
var ErrInsufficientFunds = db.ErrInsufficientFunds

// NewDatabase opens the sqlite ledger at dbPath, creating directories and
// schema as needed.
func NewDatabase(dbPath string) (Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	return db.NewDB(dbPath)
}

// formatAtoms renders an atom amount as a DCR string for ledger
// descriptions.
func formatAtoms(atoms int64) string {
	return dcrutil.Amount(atoms).String()
}
