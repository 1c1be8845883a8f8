package normalizer

import (
	"regexp"
	"strings"
)

// Payment-processor and card-network boilerplate stripped from the
// front of raw merchant strings. Applied repeatedly until none match.
var processorPrefixRe = regexp.MustCompile(`(?i)^(SQ\s*\*|TST\*?\s*|PAYPAL\s*\*|PYPL\s*\*|AMZN\s+MKTP\s+|SP\s+|POS\s+|DEBIT\s+CARD\s+PURCHASE\s+|DEBIT\s+|VISA\s+|CHECKCARD\s+|ACH\s+|RECURRING\s+PAYMENT\s+)`)

// Trailing store numbers ("#4491") and bare reference digit runs.
var (
	storeNumberRe  = regexp.MustCompile(`\s*#\s*\d+\s*$`)
	trailingNumRe  = regexp.MustCompile(`\s+\d{3,}\s*$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	trailingJunkRe = regexp.MustCompile(`[\s*\-/]+$|^[\s*\-/]+`)
)

// regionCodes are the two-letter province/state codes recognized as a
// trailing location suffix.
var regionCodes = map[string]bool{
	// Canadian provinces
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true, "NS": true,
	"NT": true, "NU": true, "ON": true, "PE": true, "QC": true, "SK": true, "YT": true,
	// US states
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true,
}

// Preprocess strips point-of-sale noise from a raw merchant string:
// processor prefixes, trailing store numbers, city/region suffixes, and
// uneven case and whitespace. It always runs first in the pipeline and
// its output feeds every later stage.
func Preprocess(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = whitespaceRe.ReplaceAllString(s, " ")

	for {
		stripped := processorPrefixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}

	s = stripLocationSuffix(s)
	s = storeNumberRe.ReplaceAllString(s, "")
	s = trailingNumRe.ReplaceAllString(s, "")
	s = trailingJunkRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	return titleCase(s)
}

// stripLocationSuffix removes a trailing two-letter region code and the
// city token before it ("TORONTO ON", "AUSTIN TX"). The city token is
// only removed when enough of the name remains, so short merchant
// names are never eaten.
func stripLocationSuffix(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	last := strings.TrimRight(tokens[len(tokens)-1], ".,")
	if !regionCodes[last] {
		return s
	}
	tokens = tokens[:len(tokens)-1]
	// Drop the city token unless it would leave the name empty.
	if len(tokens) >= 2 && !strings.HasPrefix(tokens[len(tokens)-1], "#") {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// titleCase lowercases then capitalizes word starts, including after an
// apostrophe's following letter is left lower ("JOE'S" -> "Joe's").
func titleCase(s string) string {
	if s == "" {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	runes := []rune(w)
	upperNext := true
	for i, r := range runes {
		if upperNext && r >= 'a' && r <= 'z' {
			runes[i] = r - 'a' + 'A'
		}
		// Capitalize after separators but not after apostrophes, so
		// "joe's" stays "Joe's" while "7-eleven" becomes "7-Eleven".
		upperNext = r == '-' || r == '.' || r == '/' || r == '&'
	}
	return string(runes)
}
