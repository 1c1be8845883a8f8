package database

import (
	"fmt"
)

// The merchant knowledge base stores raw-pattern -> canonical-name
// associations learned from user corrections. Repeated corrections for
// the same pair raise its observation count; agreement is the share of
// observations for a pattern that back the winning name.

// LookupMerchant implements normalizer.KnowledgeStore. A pattern with
// no history returns ("", 0, nil) — a miss, not an error.
func (db *DB) LookupMerchant(pattern string) (string, float64, error) {
	rows, err := db.Query(`
		SELECT canonical_name, observations FROM merchant_knowledge
		WHERE raw_pattern = ?
		ORDER BY observations DESC
	`, pattern)
	if err != nil {
		return "", 0, fmt.Errorf("query merchant knowledge: %w", err)
	}
	defer rows.Close()

	var best string
	var bestObs, totalObs int
	for rows.Next() {
		var name string
		var obs int
		if err := rows.Scan(&name, &obs); err != nil {
			return "", 0, fmt.Errorf("scan merchant knowledge: %w", err)
		}
		if best == "" {
			best, bestObs = name, obs
		}
		totalObs += obs
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}
	if best == "" {
		return "", 0, nil
	}
	return best, float64(bestObs) / float64(totalObs), nil
}

// RecordCorrection upserts a raw -> canonical association, the training
// write path for the knowledge base.
func (db *DB) RecordCorrection(rawPattern, canonicalName string) error {
	if rawPattern == "" || canonicalName == "" {
		return fmt.Errorf("empty correction")
	}
	_, err := db.Exec(`
		INSERT INTO merchant_knowledge (raw_pattern, canonical_name)
		VALUES (?, ?)
		ON CONFLICT(raw_pattern, canonical_name)
		DO UPDATE SET observations = observations + 1, updated_at = CURRENT_TIMESTAMP
	`, rawPattern, canonicalName)
	if err != nil {
		return fmt.Errorf("record correction: %w", err)
	}
	return nil
}

// UpsertCanonicalMerchant adds or replaces an entry in the persisted
// canonical map.
func (db *DB) UpsertCanonicalMerchant(pattern, canonicalName string) error {
	_, err := db.Exec(`
		INSERT INTO canonical_merchants (pattern, canonical_name)
		VALUES (?, ?)
		ON CONFLICT(pattern) DO UPDATE SET canonical_name = excluded.canonical_name
	`, pattern, canonicalName)
	if err != nil {
		return fmt.Errorf("upsert canonical merchant: %w", err)
	}
	return nil
}

// CanonicalMerchants returns the persisted canonical map entries, used
// at startup to extend the built-in map.
func (db *DB) CanonicalMerchants() (map[string]string, error) {
	rows, err := db.Query(`SELECT pattern, canonical_name FROM canonical_merchants`)
	if err != nil {
		return nil, fmt.Errorf("query canonical merchants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var pattern, name string
		if err := rows.Scan(&pattern, &name); err != nil {
			return nil, fmt.Errorf("scan canonical merchant: %w", err)
		}
		out[pattern] = name
	}
	return out, rows.Err()
}
