package database

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aaron777collins/smartbudget-sub003/internal/models"
)

// Amounts are persisted as decimal text, never floats, so nothing is
// lost round-tripping through the database.

// CreateTransaction inserts one imported transaction and returns its ID.
func (db *DB) CreateTransaction(txn *models.Transaction) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO transactions (user_id, account_id, posting_date, description, raw_merchant, merchant, merchant_source, amount, txn_type, import_job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.UserID, nullableID(txn.AccountID), txn.PostingDate, txn.Description, txn.RawMerchant,
		txn.Merchant, txn.MerchantSource, txn.Amount.String(), txn.Type, nullableStr(txn.ImportJobID))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// CreateTransactions inserts a batch inside one transaction so a
// partially-written import never survives a crash.
func (db *DB) CreateTransactions(txns []models.Transaction) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO transactions (user_id, account_id, posting_date, description, raw_merchant, merchant, merchant_source, amount, txn_type, import_job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, txn := range txns {
		_, err := stmt.Exec(txn.UserID, nullableID(txn.AccountID), txn.PostingDate, txn.Description,
			txn.RawMerchant, txn.Merchant, txn.MerchantSource, txn.Amount.String(), txn.Type, nullableStr(txn.ImportJobID))
		if err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListTransactions returns the caller's transactions, newest posting
// date first, with offset pagination. The second return is the total
// count before pagination.
func (db *DB) ListTransactions(userID int64, limit, offset int) ([]models.Transaction, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.Query(`
		SELECT id, user_id, COALESCE(account_id, 0), posting_date, description, raw_merchant, merchant, merchant_source, amount, txn_type, COALESCE(import_job_id, ''), created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY posting_date DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		var amount string
		err := rows.Scan(&txn.ID, &txn.UserID, &txn.AccountID, &txn.PostingDate, &txn.Description,
			&txn.RawMerchant, &txn.Merchant, &txn.MerchantSource, &amount, &txn.Type, &txn.ImportJobID, &txn.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, 0, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		txns = append(txns, txn)
	}
	return txns, total, rows.Err()
}

// CreateAccount inserts a bank account for a user.
func (db *DB) CreateAccount(acct *models.Account) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO accounts (user_id, name, account_type, last_four)
		VALUES (?, ?, ?, ?)
	`, acct.UserID, acct.Name, acct.Type, acct.LastFour)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
