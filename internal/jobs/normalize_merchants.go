package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
)

// NormalizeMerchantsPayload is the JSON payload for normalize_merchants
// jobs.
type NormalizeMerchantsPayload struct {
	Merchants   []string `json:"merchants"`
	UseDatabase bool     `json:"use_database"`
}

// NormalizeMerchantsHandler creates a job handler that runs a batch of
// raw merchant strings through the normalization pipeline and stores
// the results on the job.
func NormalizeMerchantsHandler(norm *normalizer.Normalizer) JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		var payload NormalizeMerchantsPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}

		results, stats, err := norm.NormalizeMerchants(payload.Merchants, payload.UseDatabase)
		if err != nil {
			return fmt.Errorf("normalize batch: %w", err)
		}

		db.UpdateJobProgress(job.ID, stats.Total, stats.Total)

		resultJSON, _ := json.Marshal(map[string]any{
			"results": results,
			"stats":   stats,
		})
		if err := db.CompleteJob(job.ID, string(resultJSON)); err != nil {
			if errors.Is(err, database.ErrInvalidTransition) {
				return ErrJobCancelled
			}
			return fmt.Errorf("complete job: %w", err)
		}
		return nil
	}
}
