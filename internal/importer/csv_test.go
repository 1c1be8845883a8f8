package importer

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVThreeColumn(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-15,STARBUCKS #1234,-5.50",
		"2024-01-16,PAYROLL DEPOSIT,2500.00",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, FormatCSV3Col, result.Format)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	require.Len(t, result.Transactions, 2)

	first := result.Transactions[0]
	assert.Equal(t, "2024-01-15", first.Date.Format("2006-01-02"))
	assert.Equal(t, "STARBUCKS #1234", first.Description)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("-5.50")))
	assert.Equal(t, Debit, first.Type)
	assert.Equal(t, 1, first.SourceRow)

	second := result.Transactions[1]
	assert.Equal(t, Credit, second.Type)
	assert.Equal(t, 2, second.SourceRow)
}

func TestParseCSVFourColumnTypeOverridesSign(t *testing.T) {
	// Some banks export debits as positive amounts with a direction
	// column. The direction wins and the amount is stored negative.
	input := strings.Join([]string{
		"Date,Description,Amount,Type",
		"01/15/2024,GROCERY STORE,42.10,DEBIT",
		"01/16/2024,REFUND,15.00,CREDIT",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV4Col, result.Format)
	require.Len(t, result.Transactions, 2)
	assert.True(t, result.Transactions[0].Amount.Equal(decimal.RequireFromString("-42.10")))
	assert.Equal(t, Debit, result.Transactions[0].Type)
	assert.True(t, result.Transactions[1].Amount.Equal(decimal.RequireFromString("15.00")))
	assert.Equal(t, Credit, result.Transactions[1].Type)
}

func TestParseCSVFiveColumn(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount,Type,Balance",
		"2024-02-01,RENT,-1800.00,DEBIT,3200.00",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV5Col, result.Format)
	assert.Equal(t, 1, result.ValidRows)
}

func TestParseCSVRowErrorsIsolated(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-15,COFFEE,-4.25",
		"not-a-date,BROKEN ROW,10.00",
		"2024-01-17,LUNCH,not-a-number",
		"2024-01-18,DINNER,-22.00",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, result.TotalRows, result.ValidRows+len(result.Errors))

	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Reason, "not-a-date")
	assert.Equal(t, 3, result.Errors[1].Row)
}

func TestParseCSVSemicolonDelimiter(t *testing.T) {
	input := strings.Join([]string{
		"Date;Description;Amount",
		"2024-03-01;BAKERY;-3.75",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "BAKERY", result.Transactions[0].Description)
}

func TestParseCSVHeaderless(t *testing.T) {
	input := strings.Join([]string{
		"2024-01-15,COFFEE SHOP,-4.25",
		"2024-01-16,BOOKSTORE,-19.99",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
}

func TestParseCSVParenthesesNegative(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-15,UTILITY BILL,(45.00)",
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Amount.Equal(decimal.RequireFromString("-45")))
	assert.Equal(t, Debit, result.Transactions[0].Type)
}

func TestParseCSVThousandsAndCurrency(t *testing.T) {
	input := strings.Join([]string{
		"Date,Description,Amount",
		`2024-01-15,CAR PAYMENT,"-$1,234.56"`,
	}, "\n")

	result, err := ParseCSV(input)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Amount.Equal(decimal.RequireFromString("-1234.56")))
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV("")
	require.Error(t, err)

	_, err = ParseCSV("   \n  \n")
	require.Error(t, err)
}

func TestParseCSVUnrecognizedLayout(t *testing.T) {
	_, err := ParseCSV("alpha,beta,gamma\nfoo,bar,baz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized column layout")
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', detectDelimiter("a,b,c"))
	assert.Equal(t, ';', detectDelimiter("a;b;c"))
	assert.Equal(t, '\t', detectDelimiter("a\tb\tc"))
	assert.Equal(t, '|', detectDelimiter("a|b|c"))
	// Comma wins ties.
	assert.Equal(t, ',', detectDelimiter("a,b;c"))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.34", "12.34"},
		{"-12.34", "-12.34"},
		{"$12.34", "12.34"},
		{"-$12.34", "-12.34"},
		{"(45.00)", "-45"},
		{"1,234.56", "1234.56"},
		{"-1,234,567.89", "-1234567.89"},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s -> %s", tc.in, got)
	}

	_, err := parseAmount("")
	require.Error(t, err)
	_, err = parseAmount("abc")
	require.Error(t, err)
}
