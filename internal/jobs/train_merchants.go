package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
)

// TrainMerchantsPayload is the JSON payload for train_merchants jobs.
// Each correction associates a raw merchant string with the canonical
// name the user chose for it.
type TrainMerchantsPayload struct {
	Corrections []MerchantCorrection `json:"corrections"`
}

// MerchantCorrection is one user-confirmed raw -> canonical pair.
type MerchantCorrection struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
}

// TrainMerchantsHandler creates a job handler that feeds user
// corrections into the merchant knowledge base. Raw strings are
// preprocessed to the same key form the normalizer looks up, so a
// correction made once applies to every future statement.
func TrainMerchantsHandler() JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		var payload TrainMerchantsPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if len(payload.Corrections) == 0 {
			return fmt.Errorf("no corrections in payload")
		}

		total := len(payload.Corrections)
		recorded := 0
		for i, c := range payload.Corrections {
			pattern := strings.ToUpper(normalizer.Preprocess(c.Raw))
			if pattern == "" || c.Canonical == "" {
				continue
			}
			if err := db.RecordCorrection(pattern, c.Canonical); err != nil {
				return fmt.Errorf("record correction %d: %w", i, err)
			}
			recorded++

			if i%50 == 0 || i == total-1 {
				db.UpdateJobProgress(job.ID, i+1, total)
				if err := checkCancelled(ctx, db, job.ID); err != nil {
					return err
				}
			}
		}

		resultJSON, _ := json.Marshal(map[string]any{
			"corrections_recorded": recorded,
			"corrections_skipped":  total - recorded,
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
