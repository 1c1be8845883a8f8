package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaron777collins/smartbudget-sub003/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	return db
}

func testUser(t *testing.T, db *DB, email string) int64 {
	t.Helper()
	id, err := db.CreateUser(email, "hash")
	require.NoError(t, err)
	return id
}

func TestCreateAndGetJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	job, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, map[string]any{"merchants": []string{"X"}}, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobPending, job.Status)

	got, err := db.GetJob(job.ID, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobTypeNormalizeMerchants, got.Type)
	assert.Contains(t, got.Payload, "merchants")
}

func TestCreateJobRejectsUnknownType(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	_, err := db.CreateJob(userID, "make_coffee", nil, 0)
	require.Error(t, err)
}

func TestGetJobOwnership(t *testing.T) {
	db := testDB(t)
	owner := testUser(t, db, "owner@example.com")
	other := testUser(t, db, "other@example.com")

	job, err := db.CreateJob(owner, models.JobTypeTrainMerchants, nil, 0)
	require.NoError(t, err)

	// Another user's lookup and a bogus ID look identical.
	got, err := db.GetJob(job.ID, other)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = db.GetJob("no-such-job", owner)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListJobsFiltersAndPagination(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")
	other := testUser(t, db, "b@example.com")

	for i := 0; i < 3; i++ {
		_, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, nil, 0)
		require.NoError(t, err)
	}
	trainJob, err := db.CreateJob(userID, models.JobTypeTrainMerchants, nil, 0)
	require.NoError(t, err)
	_, err = db.CreateJob(other, models.JobTypeTrainMerchants, nil, 0)
	require.NoError(t, err)

	jobs, total, err := db.ListJobs(userID, models.JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, jobs, 4)

	jobs, total, err = db.ListJobs(userID, models.JobFilter{Type: models.JobTypeTrainMerchants})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, trainJob.ID, jobs[0].ID)

	// Cancel one, then filter by status.
	ok, err := db.CancelJob(trainJob.ID, userID)
	require.NoError(t, err)
	require.True(t, ok)

	jobs, total, err = db.ListJobs(userID, models.JobFilter{Status: models.JobPending})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 3)

	// Pagination: total reflects all matches, the page the window.
	jobs, total, err = db.ListJobs(userID, models.JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, jobs, 2)

	jobs, _, err = db.ListJobs(userID, models.JobFilter{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestCancelJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")
	other := testUser(t, db, "b@example.com")

	job, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, nil, 0)
	require.NoError(t, err)

	// Not the owner: no effect.
	ok, err := db.CancelJob(job.ID, other)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.CancelJob(job.ID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := db.GetJob(job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// Already terminal: cancel reports false.
	ok, err = db.CancelJob(job.ID, userID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelRunningJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	job, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, nil, 0)
	require.NoError(t, err)

	claimed, err := db.ClaimNextJob()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, models.JobRunning, claimed.Status)

	ok, err := db.CancelJob(job.ID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The worker's completion write loses the race.
	err = db.CompleteJob(job.ID, `{"done":true}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := db.GetJob(job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, got.Status)
}

func TestClaimNextJobOrderAndEmpty(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	claimed, err := db.ClaimNextJob()
	require.NoError(t, err)
	assert.Nil(t, claimed)

	first, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, nil, 0)
	require.NoError(t, err)
	_, err = db.CreateJob(userID, models.JobTypeTrainMerchants, nil, 0)
	require.NoError(t, err)

	claimed, err = db.ClaimNextJob()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.NotNil(t, claimed.StartedAt)
}

func TestCompleteAndFailJob(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	job, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, nil, 0)
	require.NoError(t, err)

	// Completing a pending job is an invalid transition.
	err = db.CompleteJob(job.ID, "{}")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	claimed, err := db.ClaimNextJob()
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, db.UpdateJobProgress(job.ID, 5, 10))
	require.NoError(t, db.CompleteJob(job.ID, `{"count":10}`))

	got, err := db.GetJob(job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, 5, got.Progress)
	assert.Equal(t, 10, got.Total)
	assert.Equal(t, `{"count":10}`, got.Result)
	assert.NotNil(t, got.CompletedAt)

	// Fail path on a fresh job.
	job2, err := db.CreateJob(userID, models.JobTypeTrainMerchants, nil, 0)
	require.NoError(t, err)
	_, err = db.ClaimNextJob()
	require.NoError(t, err)
	require.NoError(t, db.FailJob(job2.ID, "boom"))

	got, err = db.GetJob(job2.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestJobStatus(t *testing.T) {
	db := testDB(t)
	userID := testUser(t, db, "a@example.com")

	job, err := db.CreateJob(userID, models.JobTypeNormalizeMerchants, nil, 0)
	require.NoError(t, err)

	status, err := db.JobStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, status)

	_, err = db.JobStatus("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
