package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned by Debit when the account balance cannot
// cover the requested amount.
var ErrInsufficientFunds = errors.New("db: insufficient funds")

// DB wraps the sqlite connection backing the account ledger.
type DB struct {
	*sql.DB
}

// NewDB opens (and if needed initializes) the ledger database.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the ledger schema if missing.
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			balance INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			type TEXT NOT NULL,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (player_id) REFERENCES players(id)
		)
	`)
	return err
}

// GetPlayerBalance returns the current account balance of a player.
func (db *DB) GetPlayerBalance(playerID string) (int64, error) {
	var balance int64
	err := db.QueryRow("SELECT balance FROM players WHERE id = ?", playerID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get player balance: %v", err)
	}
	return balance, nil
}

// CreditAccount adds amount to the player's balance and records the
// transaction. The balance update and the ledger entry commit atomically.
func (db *DB) CreditAccount(playerID string, amount int64, txType, description string) (int64, error) {
	return db.applyDelta(playerID, amount, txType, description)
}

// DebitAccount removes amount from the player's balance, failing with
// ErrInsufficientFunds before any mutation if the balance cannot cover it.
func (db *DB) DebitAccount(playerID string, amount int64, txType, description string) (int64, error) {
	return db.applyDelta(playerID, -amount, txType, description)
}

// applyDelta applies a signed balance change plus its ledger entry in one
// transaction; both commit or neither does.
func (db *DB) applyDelta(playerID string, delta int64, txType, description string) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if delta < 0 {
		var balance int64
		err := tx.QueryRow("SELECT balance FROM players WHERE id = ?", playerID).Scan(&balance)
		if err == sql.ErrNoRows {
			return 0, ErrInsufficientFunds
		}
		if err != nil {
			return 0, err
		}
		if balance+delta < 0 {
			return 0, ErrInsufficientFunds
		}
	}

	_, err = tx.Exec(`
		INSERT INTO players (id, name, balance)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET balance = balance + ?
	`, playerID, playerID, delta, delta)
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
		INSERT INTO transactions (player_id, amount, type, description)
		VALUES (?, ?, ?, ?)
	`, playerID, delta, txType, description)
	if err != nil {
		return 0, err
	}
	txID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return txID, nil
}

// RecordEntry appends an audit-only ledger entry without touching the
// account balance. Used for in-hand chip movements (blinds, pot wins,
// rake) that settle against table stacks rather than account funds.
func (db *DB) RecordEntry(playerID string, amount int64, txType, description string) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO transactions (player_id, amount, type, description)
		VALUES (?, ?, ?, ?)
	`, playerID, amount, txType, description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Transactions returns the ledger entries for a player, newest first.
func (db *DB) Transactions(playerID string, limit int) ([]Transaction, error) {
	rows, err := db.Query(`
		SELECT id, player_id, amount, type, COALESCE(description, ''), created_at
		FROM transactions WHERE player_id = ?
		ORDER BY id DESC LIMIT ?
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.PlayerID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Transaction is one ledger row.
type Transaction struct {
	ID          int64
	PlayerID    string
	Amount      int64
	Type        string
	Description string
	CreatedAt   string
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
