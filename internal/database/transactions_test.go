package database

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaron777collins/smartbudget-sub003/internal/models"
)

func TestCreateTransactionRoundTrip(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	id, err := db.CreateTransaction(&models.Transaction{
		UserID:         userID,
		PostingDate:    "2024-01-15",
		Description:    "STARBUCKS #1234",
		RawMerchant:    "STARBUCKS #1234",
		Merchant:       "Starbucks",
		MerchantSource: "canonical_map",
		Amount:         decimal.RequireFromString("-5.50"),
		Type:           "DEBIT",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	txns, total, err := db.ListTransactions(userID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, txns, 1)
	assert.Equal(t, "Starbucks", txns[0].Merchant)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("-5.50")))
}

func TestCreateTransactionsBatch(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	job, err := db.CreateJob(userID, models.JobTypeImportStatement, nil, 0)
	require.NoError(t, err)

	var batch []models.Transaction
	for i := 0; i < 10; i++ {
		batch = append(batch, models.Transaction{
			UserID:      userID,
			PostingDate: fmt.Sprintf("2024-01-%02d", i+1),
			Description: fmt.Sprintf("MERCHANT %d", i),
			Amount:      decimal.NewFromInt(int64(-i - 1)),
			Type:        "DEBIT",
			ImportJobID: job.ID,
		})
	}
	require.NoError(t, db.CreateTransactions(batch))

	txns, total, err := db.ListTransactions(userID, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	require.Len(t, txns, 5)
	// Newest posting date first.
	assert.Equal(t, "2024-01-10", txns[0].PostingDate)
	assert.Equal(t, job.ID, txns[0].ImportJobID)
}

func TestListTransactionsScopedToUser(t *testing.T) {
	db := testDB(t)
	a := testUser(t, db, "a@example.com")
	b := testUser(t, db, "b@example.com")

	_, err := db.CreateTransaction(&models.Transaction{
		UserID: a, PostingDate: "2024-01-01", Description: "X",
		Amount: decimal.NewFromInt(-1), Type: "DEBIT",
	})
	require.NoError(t, err)

	txns, total, err := db.ListTransactions(b, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txns)
}

func TestCreateAccount(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	id, err := db.CreateAccount(&models.Account{
		UserID: userID, Name: "Everyday Chequing", Type: "checking", LastFour: "4417",
	})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestGetUserByEmail(t *testing.T) {
	db := testDB(t)
	id := testUser(t, db, "who@example.com")

	user, err := db.GetUserByEmail("who@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "hash", user.PasswordHash)

	_, err = db.GetUserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
