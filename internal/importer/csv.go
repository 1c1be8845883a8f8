package importer

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// csvLayout maps statement columns to their meaning. typeCol and
// extraCol are -1 when the layout does not carry them.
type csvLayout struct {
	format    Format
	dateCol   int
	descCol   int
	amountCol int
	typeCol   int
}

// header keyword sets for column detection
var (
	dateHeaders = []string{"date", "posting date", "transaction date", "posted"}
	descHeaders = []string{"description", "memo", "payee", "merchant", "details", "name", "narrative"}
	amtHeaders  = []string{"amount", "value", "transaction amount", "amt"}
	typeHeaders = []string{"type", "transaction type", "dr/cr", "debit/credit", "direction"}
)

// ParseCSV parses a delimiter-separated bank statement. The column
// layout is detected from the header row; the best-fitting known
// layout wins rather than failing outright. Malformed rows are
// reported per-row and never abort the batch.
func ParseCSV(text string) (*ImportResult, error) {
	if len(text) > MaxFileSize {
		return nil, fmt.Errorf("input exceeds %d byte limit", MaxFileSize)
	}
	text = strings.TrimPrefix(text, "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty file")
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	records = dropEmptyRows(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	layout, hasHeader, err := detectLayout(records[0])
	if err != nil {
		return nil, err
	}

	data := records
	if hasHeader {
		data = records[1:]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no data rows")
	}

	result := &ImportResult{Format: layout.format}
	for i, rec := range data {
		result.TotalRows++
		txn, err := parseCSVRow(rec, layout, i+1)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		result.Transactions = append(result.Transactions, txn)
		result.ValidRows++
	}
	result.Success = result.ValidRows > 0
	return result, nil
}

// detectDelimiter picks the candidate delimiter that appears most often
// in the first line. Comma wins ties.
func detectDelimiter(text string) rune {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx != -1 {
		line = line[:idx]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, c := range []rune{';', '\t', '|'} {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// detectLayout inspects the header row and picks the best-fitting known
// column layout. When the first row carries no header keywords but
// parses as a data row, the statement is treated as headerless with
// positional columns (date, description, amount, ...).
func detectLayout(header []string) (csvLayout, bool, error) {
	if len(header) < 3 {
		return csvLayout{}, false, fmt.Errorf("expected at least 3 columns, got %d", len(header))
	}

	layout := csvLayout{dateCol: -1, descCol: -1, amountCol: -1, typeCol: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case layout.dateCol == -1 && matchesAny(h, dateHeaders):
			layout.dateCol = i
		case layout.typeCol == -1 && matchesAny(h, typeHeaders):
			layout.typeCol = i
		case layout.descCol == -1 && matchesAny(h, descHeaders):
			layout.descCol = i
		case layout.amountCol == -1 && matchesAny(h, amtHeaders):
			layout.amountCol = i
		}
	}

	hasHeader := layout.dateCol != -1 || layout.descCol != -1 || layout.amountCol != -1
	if !hasHeader {
		// No header keywords. Accept the file only if the first row
		// looks like a transaction, then fall back to positional columns.
		if _, err := parseDate(header[0]); err != nil {
			return csvLayout{}, false, fmt.Errorf("unrecognized column layout")
		}
	}

	// Fill gaps positionally: date, description, amount.
	if layout.dateCol == -1 {
		layout.dateCol = 0
	}
	if layout.descCol == -1 {
		layout.descCol = pickFree(layout, 1, len(header))
	}
	if layout.amountCol == -1 {
		layout.amountCol = pickFree(layout, 2, len(header))
	}

	switch {
	case len(header) <= 3:
		layout.format = FormatCSV3Col
	case len(header) == 4:
		layout.format = FormatCSV4Col
	default:
		layout.format = FormatCSV5Col
	}
	return layout, hasHeader, nil
}

// pickFree returns want if unclaimed, otherwise the first unclaimed
// column index.
func pickFree(layout csvLayout, want, cols int) int {
	taken := func(i int) bool {
		return i == layout.dateCol || i == layout.descCol || i == layout.amountCol || i == layout.typeCol
	}
	if want < cols && !taken(want) {
		return want
	}
	for i := 0; i < cols; i++ {
		if !taken(i) {
			return i
		}
	}
	return want
}

func matchesAny(h string, keywords []string) bool {
	for _, k := range keywords {
		if h == k || strings.Contains(h, k) {
			return true
		}
	}
	return false
}

func parseCSVRow(rec []string, layout csvLayout, row int) (ParsedTransaction, error) {
	need := layout.amountCol
	if layout.descCol > need {
		need = layout.descCol
	}
	if layout.dateCol > need {
		need = layout.dateCol
	}
	if len(rec) <= need {
		return ParsedTransaction{}, fmt.Errorf("expected at least %d columns, got %d", need+1, len(rec))
	}

	date, err := parseDate(rec[layout.dateCol])
	if err != nil {
		return ParsedTransaction{}, err
	}
	amount, err := parseAmount(rec[layout.amountCol])
	if err != nil {
		return ParsedTransaction{}, err
	}
	desc := strings.TrimSpace(rec[layout.descCol])

	txnType := classifyBySign(amount)
	if layout.typeCol != -1 && layout.typeCol < len(rec) {
		if explicit, ok := classifyExplicit(rec[layout.typeCol]); ok {
			txnType = explicit
			// An explicit direction column overrides the sign: debit
			// amounts are stored negative regardless of export style.
			if explicit == Debit && amount.IsPositive() {
				amount = amount.Neg()
			}
			if explicit == Credit && amount.IsNegative() {
				amount = amount.Neg()
			}
		}
	}

	return ParsedTransaction{
		Date:        date,
		Amount:      amount,
		Description: desc,
		RawMerchant: desc,
		Type:        txnType,
		SourceRow:   row,
	}, nil
}

func classifyBySign(amount decimal.Decimal) TransactionType {
	if amount.IsNegative() {
		return Debit
	}
	return Credit
}

// classifyExplicit maps a type-column value to a direction.
func classifyExplicit(s string) (TransactionType, bool) {
	switch v := strings.ToUpper(strings.TrimSpace(s)); {
	case v == "DEBIT" || v == "DR" || v == "D" || strings.Contains(v, "WITHDRAW") || strings.Contains(v, "DEBIT"):
		return Debit, true
	case v == "CREDIT" || v == "CR" || v == "C" || strings.Contains(v, "DEPOSIT") || strings.Contains(v, "CREDIT"):
		return Credit, true
	}
	return "", false
}

func dropEmptyRows(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		empty := true
		for _, f := range rec {
			if strings.TrimSpace(f) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}
