package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/importer"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
)

// ImportStatementPayload is the JSON payload for import_statement jobs
type ImportStatementPayload struct {
	FileName  string `json:"file_name"`
	AccountID int64  `json:"account_id,omitempty"`
}

// ImportStatementHandler creates a job handler that parses an uploaded
// statement file, normalizes each merchant and persists the resulting
// transactions.
func ImportStatementHandler(uploadDir string, norm *normalizer.Normalizer, useDatabase bool) JobHandler {
	return func(ctx context.Context, job *models.Job, db *database.DB) error {
		var payload ImportStatementPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}

		fullPath := filepath.Join(uploadDir, payload.FileName)
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("read statement file: %w", err)
		}

		result, err := ParseStatement(payload.FileName, data)
		if err != nil {
			return fmt.Errorf("parse statement: %w", err)
		}

		total := len(result.Transactions)
		db.UpdateJobProgress(job.ID, 0, total)

		txns := make([]models.Transaction, 0, total)
		for i, pt := range result.Transactions {
			nr := norm.NormalizeMerchantName(pt.RawMerchant, useDatabase)
			txns = append(txns, models.Transaction{
				UserID:         job.UserID,
				AccountID:      payload.AccountID,
				PostingDate:    pt.Date.Format("2006-01-02"),
				Description:    pt.Description,
				RawMerchant:    pt.RawMerchant,
				Merchant:       nr.CanonicalName,
				MerchantSource: string(nr.Source),
				Amount:         pt.Amount,
				Type:           string(pt.Type),
				ImportJobID:    job.ID,
			})

			if i%25 == 0 || i == total-1 {
				db.UpdateJobProgress(job.ID, i+1, total)
				if err := checkCancelled(ctx, db, job.ID); err != nil {
					return err
				}
			}
		}

		if err := db.CreateTransactions(txns); err != nil {
			return fmt.Errorf("persist transactions: %w", err)
		}

		resultJSON, _ := json.Marshal(map[string]any{
			"format":               result.Format,
			"total_rows":           result.TotalRows,
			"valid_rows":           result.ValidRows,
			"error_rows":           len(result.Errors),
			"row_errors":           result.Errors,
			"transactions_created": len(txns),
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

// ParseStatement routes a file to the right parser by its extension.
func ParseStatement(filename string, data []byte) (*importer.ImportResult, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ofx", ".qfx":
		if err := importer.ValidateOFXFile(filename, data); err != nil {
			return nil, err
		}
		return importer.ParseOFX(string(data))
	case ".csv", ".txt":
		return importer.ParseCSV(string(data))
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}
