package jobs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/logger"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	return db
}

func testUser(t *testing.T, db *database.DB) int64 {
	t.Helper()
	id, err := db.CreateUser("worker@example.com", "hash")
	require.NoError(t, err)
	return id
}

func startWorker(t *testing.T, db *database.DB) *Worker {
	t.Helper()
	w := NewWorker(db, logger.Default(), 10*time.Millisecond, time.Minute)
	t.Cleanup(w.Stop)
	return w
}

func waitTerminal(t *testing.T, db *database.DB, userID int64, jobID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = db.GetJob(jobID, userID)
		require.NoError(t, err)
		return job != nil && job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestWorkerRunsNormalizeJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db)
	norm := normalizer.New(normalizer.NewCanonicalMap(), nil)

	w := startWorker(t, db)
	w.Register(models.JobTypeNormalizeMerchants, NormalizeMerchantsHandler(norm))
	w.Start()

	job, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, NormalizeMerchantsPayload{
		Merchants: []string{"DEBIT CARD PURCHASE STARBUCKS #1234", "ZZZYX WIDGETS"},
	}, 2)
	require.NoError(t, err)

	done := waitTerminal(t, db, userID, job.ID)
	assert.Equal(t, models.JobCompleted, done.Status)

	var result struct {
		Results []normalizer.Result   `json:"results"`
		Stats   normalizer.BatchStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(done.Result), &result))
	require.Len(t, result.Results, 2)
	assert.Equal(t, "Starbucks", result.Results[0].CanonicalName)
	assert.Equal(t, 2, result.Stats.Total)
}

func TestWorkerRunsImportJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db)
	norm := normalizer.New(normalizer.NewCanonicalMap(), db)

	uploadDir := t.TempDir()
	csv := "Date,Description,Amount\n2024-01-15,STARBUCKS #1234,-5.50\n2024-01-16,bad-date,1.00\n"
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "stmt.csv"), []byte(csv), 0o644))

	w := startWorker(t, db)
	w.Register(models.JobTypeImportStatement, ImportStatementHandler(uploadDir, norm, true))
	w.Start()

	job, err := db.CreateJob(userID, models.JobTypeImportStatement, ImportStatementPayload{FileName: "stmt.csv"}, 0)
	require.NoError(t, err)

	done := waitTerminal(t, db, userID, job.ID)
	require.Equal(t, models.JobCompleted, done.Status)

	txns, total, err := db.ListTransactions(userID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, txns, 1)
	assert.Equal(t, "Starbucks", txns[0].Merchant)
	assert.Equal(t, job.ID, txns[0].ImportJobID)

	var result struct {
		TotalRows int `json:"total_rows"`
		ValidRows int `json:"valid_rows"`
		ErrorRows int `json:"error_rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(done.Result), &result))
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.ValidRows)
	assert.Equal(t, 1, result.ErrorRows)
}

func TestWorkerRunsTrainJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db)

	w := startWorker(t, db)
	w.Register(models.JobTypeTrainMerchants, TrainMerchantsHandler())
	w.Start()

	job, err := db.CreateJob(userID, models.JobTypeTrainMerchants, TrainMerchantsPayload{
		Corrections: []MerchantCorrection{
			{Raw: "SQ *JOE'S COFFEE #221 TORONTO ON", Canonical: "Joe's Coffee"},
			{Raw: "SQ *JOE'S COFFEE #440 OTTAWA ON", Canonical: "Joe's Coffee"},
		},
	}, 2)
	require.NoError(t, err)

	done := waitTerminal(t, db, userID, job.ID)
	require.Equal(t, models.JobCompleted, done.Status)

	name, agreement, err := db.LookupMerchant("JOE'S COFFEE")
	require.NoError(t, err)
	assert.Equal(t, "Joe's Coffee", name)
	assert.Equal(t, 1.0, agreement)
}

func TestWorkerFailsUnknownType(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db)

	w := startWorker(t, db)
	// No handlers registered.
	w.Start()

	job, err := db.CreateJob(userID, models.JobTypeTrainMerchants, nil, 0)
	require.NoError(t, err)

	done := waitTerminal(t, db, userID, job.ID)
	assert.Equal(t, models.JobFailed, done.Status)
	assert.Contains(t, done.Error, "no handler registered")
}

func TestWorkerFailsBrokenHandler(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db)
	norm := normalizer.New(normalizer.NewCanonicalMap(), nil)

	w := startWorker(t, db)
	w.Register(models.JobTypeImportStatement, ImportStatementHandler(t.TempDir(), norm, false))
	w.Start()

	job, err := db.CreateJob(userID, models.JobTypeImportStatement, ImportStatementPayload{FileName: "missing.csv"}, 0)
	require.NoError(t, err)

	done := waitTerminal(t, db, userID, job.ID)
	assert.Equal(t, models.JobFailed, done.Status)
	assert.Contains(t, done.Error, "read statement file")
}

func TestParseStatementRouting(t *testing.T) {
	csv := "Date,Description,Amount\n2024-01-15,COFFEE,-4.25\n"
	result, err := ParseStatement("stmt.csv", []byte(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ValidRows)

	_, err = ParseStatement("stmt.pdf", []byte("%PDF"))
	require.Error(t, err)

	_, err = ParseStatement("stmt.ofx", []byte("not ofx at all"))
	require.Error(t, err)
}
