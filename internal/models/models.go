package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobType identifies a kind of background work. Only registered types
// may be submitted.
type JobType string

const (
	JobTypeImportStatement    JobType = "import_statement"
	JobTypeNormalizeMerchants JobType = "normalize_merchants"
	JobTypeTrainMerchants     JobType = "train_merchants"
)

// ValidJobType reports whether t is a recognized job type.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeImportStatement, JobTypeNormalizeMerchants, JobTypeTrainMerchants:
		return true
	}
	return false
}

// JobStatus is the state of a job in the queue.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// CanTransition validates a status transition. It is the single source
// of truth for the job state machine:
//
//	pending -> running | cancelled
//	running -> completed | failed | cancelled
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobPending:
		return to == JobRunning || to == JobCancelled
	case JobRunning:
		return to == JobCompleted || to == JobFailed || to == JobCancelled
	}
	return false
}

// Job is a tracked unit of background work owned by a user.
type Job struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"` // 0 when the job length is unknown
	Payload     string     `json:"-"`     // JSON payload, not exposed over the API
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobFilter narrows ListJobs results. Zero values mean "no filter".
type JobFilter struct {
	Status JobStatus
	Type   JobType
	Limit  int
	Offset int
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Account is a bank account that imported statements attach to.
type Account struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // "checking", "savings", "credit"
	LastFour  string    `json:"last_four"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is a persisted, imported bank transaction.
type Transaction struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	AccountID      int64           `json:"account_id,omitempty"`
	PostingDate    string          `json:"posting_date"` // YYYY-MM-DD
	Description    string          `json:"description"`
	RawMerchant    string          `json:"raw_merchant"`
	Merchant       string          `json:"merchant"` // canonical name after normalization
	MerchantSource string          `json:"merchant_source"`
	Amount         decimal.Decimal `json:"amount"` // negative for debits
	Type           string          `json:"type"`   // DEBIT or CREDIT
	ImportJobID    string          `json:"import_job_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
