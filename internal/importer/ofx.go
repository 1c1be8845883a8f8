package importer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// OFX 1.x is SGML-ish: leaf elements carry no closing tags, so fields
// are scanned with regexes rather than an XML decoder. Aggregates like
// STMTTRN do close, which is what the block regex relies on.
var (
	stmtTrnRe  = regexp.MustCompile(`(?s)<STMTTRN>(.*?)</STMTTRN>`)
	bankAcctRe = regexp.MustCompile(`(?s)<BANKACCTFROM>(.*?)(?:</BANKACCTFROM>|<STMTTRN|<LEDGERBAL|\z)`)
	ccAcctRe   = regexp.MustCompile(`(?s)<CCACCTFROM>(.*?)(?:</CCACCTFROM>|<STMTTRN|<LEDGERBAL|\z)`)
	ledgerRe   = regexp.MustCompile(`(?s)<LEDGERBAL>(.*?)(?:</LEDGERBAL>|\z)`)
)

// ofxField extracts the value of a leaf element from a block.
func ofxField(block, tag string) string {
	re := regexp.MustCompile(`<` + tag + `>([^<\r\n]*)`)
	if m := re.FindStringSubmatch(block); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ParseOFX parses an OFX/QFX statement. Bank (STMTTRNRS) and
// credit-card (CCSTMTTRNRS) variants are both accepted. Per-record
// failures are isolated the same way as CSV rows; only a missing
// statement envelope fails the call.
func ParseOFX(text string) (*ImportResult, error) {
	if len(text) > MaxFileSize {
		return nil, fmt.Errorf("input exceeds %d byte limit", MaxFileSize)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty file")
	}
	if !strings.Contains(text, "OFXHEADER") && !strings.Contains(text, "<OFX>") {
		return nil, fmt.Errorf("missing OFX signature")
	}

	// Locate the statement block. Some producers omit the response
	// wrapper, so fall back to the raw transaction list aggregate.
	var stmt string
	for _, tag := range []string{"<STMTTRNRS>", "<CCSTMTTRNRS>", "<BANKTRANLIST>"} {
		if idx := strings.Index(text, tag); idx != -1 {
			stmt = text[idx:]
			break
		}
	}
	if stmt == "" {
		return nil, fmt.Errorf("missing statement block")
	}

	result := &ImportResult{Format: FormatOFX}

	// A single <STMTTRN> and a list of them go through the same scan,
	// so one-transaction statements produce the same shape as many.
	matches := stmtTrnRe.FindAllStringSubmatch(stmt, -1)
	for i, m := range matches {
		result.TotalRows++
		txn, err := parseOFXRecord(m[1], i+1)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Reason: err.Error()})
			continue
		}
		result.Transactions = append(result.Transactions, txn)
		result.ValidRows++
	}

	if m := ledgerRe.FindStringSubmatch(stmt); len(m) > 1 {
		if bal, err := parseAmount(ofxField(m[1], "BALAMT")); err == nil {
			result.Balance = &bal
		}
	}
	result.AccountInfo = parseOFXAccount(stmt)
	result.Success = true
	return result, nil
}

func parseOFXAccount(stmt string) *AccountInfo {
	if m := bankAcctRe.FindStringSubmatch(stmt); len(m) > 1 {
		return &AccountInfo{
			BankID:      ofxField(m[1], "BANKID"),
			AccountID:   ofxField(m[1], "ACCTID"),
			AccountType: ofxField(m[1], "ACCTTYPE"),
		}
	}
	if m := ccAcctRe.FindStringSubmatch(stmt); len(m) > 1 {
		return &AccountInfo{
			AccountID:   ofxField(m[1], "ACCTID"),
			AccountType: "CREDITCARD",
		}
	}
	return nil
}

func parseOFXRecord(block string, row int) (ParsedTransaction, error) {
	date, err := parseOFXDate(ofxField(block, "DTPOSTED"))
	if err != nil {
		return ParsedTransaction{}, err
	}
	amount, err := parseAmount(ofxField(block, "TRNAMT"))
	if err != nil {
		return ParsedTransaction{}, err
	}

	name := ofxField(block, "NAME")
	memo := ofxField(block, "MEMO")
	desc := name
	if desc == "" {
		desc = memo
	} else if memo != "" && memo != name {
		desc = name + " " + memo
	}

	txnType := classifyBySign(amount)
	switch strings.ToUpper(ofxField(block, "TRNTYPE")) {
	case "DEBIT", "PAYMENT", "FEE", "ATM", "CHECK", "POS":
		txnType = Debit
	case "CREDIT", "DEP", "DIRECTDEP", "INT":
		txnType = Credit
	}

	raw := name
	if raw == "" {
		raw = memo
	}

	return ParsedTransaction{
		Date:        date,
		Amount:      amount,
		Description: desc,
		RawMerchant: raw,
		Type:        txnType,
		SourceRow:   row,
	}, nil
}

// parseOFXDate handles YYYYMMDD with optional HHMMSS, fractional
// seconds, and a [-5:EST]-style timezone suffix, all of which are
// ignored beyond the date itself.
func parseOFXDate(s string) (time.Time, error) {
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("unrecognized OFX date %q", s)
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized OFX date %q", s)
	}
	return t, nil
}
