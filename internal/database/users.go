package database

import (
	"database/sql"
	"fmt"

	"github.com/aaron777collins/smartbudget-sub003/internal/models"
)

// CreateUser inserts a user and returns its ID.
func (db *DB) CreateUser(email, passwordHash string) (int64, error) {
	res, err := db.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// GetUserByEmail returns ErrNotFound when no such user exists.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	err := db.QueryRow(`
		SELECT id, email, password_hash, created_at FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
