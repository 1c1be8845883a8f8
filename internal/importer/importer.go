// Package importer parses uploaded bank statements (CSV and OFX) into a
// normalized transaction list. Row-level failures are isolated into a
// per-row error report; only structural failures (empty file, missing
// OFX envelope) fail a whole call.
package importer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxFileSize bounds statement uploads. Callers enforce it before
// parsing; ParseCSV and ParseOFX re-check as a guard.
const MaxFileSize = 10 * 1024 * 1024

// Format is the detected statement layout.
type Format string

const (
	FormatCSV3Col Format = "CSV_3COL"
	FormatCSV4Col Format = "CSV_4COL"
	FormatCSV5Col Format = "CSV_5COL"
	FormatOFX     Format = "OFX"
)

// TransactionType classifies money direction.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// ParsedTransaction is a single statement line after parsing. Immutable
// once produced.
type ParsedTransaction struct {
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"` // negative for debits
	Description string          `json:"description"`
	RawMerchant string          `json:"raw_merchant"`
	Type        TransactionType `json:"type"`
	SourceRow   int             `json:"source_row"` // 1-based data row index
}

// RowError reports a row that could not be parsed.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// AccountInfo is the OFX account identifier block.
type AccountInfo struct {
	BankID      string `json:"bank_id,omitempty"`
	AccountID   string `json:"account_id"`
	AccountType string `json:"account_type,omitempty"`
}

// ImportResult is the outcome of one import call.
// Invariant: len(Errors) + ValidRows == TotalRows.
type ImportResult struct {
	Success      bool                `json:"success"`
	Format       Format              `json:"format"`
	TotalRows    int                 `json:"total_rows"`
	ValidRows    int                 `json:"valid_rows"`
	Transactions []ParsedTransaction `json:"transactions"`
	Errors       []RowError          `json:"errors"`

	// OFX only
	AccountInfo *AccountInfo     `json:"account_info,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
}

// dateFormats is the fallback chain tried in order for CSV dates. Bank
// exports disagree on date layout, so the first format that parses wins.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// parseDate tries the accepted date formats in order.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var thousandsRe = regexp.MustCompile(`,(\d{3})`)

// parseAmount converts strings like "1,234.56", "$-12.00" or "(45.00)"
// to a decimal. Parentheses mean negative.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "") // "$12.34", "-$12.34"
	s = thousandsRe.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ValidateOFXFile is a cheap extension and signature pre-check used to
// short-circuit bad uploads before the expensive parse.
func ValidateOFXFile(filename string, data []byte) error {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".ofx", ".qfx":
	default:
		return fmt.Errorf("unsupported extension %q", filepath.Ext(filename))
	}
	if len(data) == 0 {
		return fmt.Errorf("empty file")
	}
	if len(data) > MaxFileSize {
		return fmt.Errorf("file exceeds %d byte limit", MaxFileSize)
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !strings.Contains(string(head), "OFXHEADER") && !strings.Contains(string(head), "<OFX>") {
		return fmt.Errorf("missing OFX signature")
	}
	return nil
}
