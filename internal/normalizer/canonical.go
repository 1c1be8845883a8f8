package normalizer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CanonicalMap maps preprocessed merchant patterns (uppercase) to their
// canonical display names. Lookups are exact; the fuzzy stage reuses
// the same keys for approximate matching.
type CanonicalMap struct {
	entries map[string]string
	keys    []string
}

// NewCanonicalMap builds a map seeded with the built-in entries.
func NewCanonicalMap() *CanonicalMap {
	m := &CanonicalMap{entries: make(map[string]string)}
	for pattern, name := range builtinMerchants {
		m.Add(pattern, name)
	}
	return m
}

// Add registers a pattern -> canonical pair. Patterns are normalized to
// uppercase so lookups are case-insensitive.
func (m *CanonicalMap) Add(pattern, canonical string) {
	key := strings.ToUpper(strings.TrimSpace(pattern))
	if key == "" || canonical == "" {
		return
	}
	if _, exists := m.entries[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = canonical
}

// Lookup returns the canonical name for an exact (case-insensitive)
// pattern match.
func (m *CanonicalMap) Lookup(pattern string) (string, bool) {
	name, ok := m.entries[strings.ToUpper(strings.TrimSpace(pattern))]
	return name, ok
}

// Keys returns the registered patterns, for fuzzy matching.
func (m *CanonicalMap) Keys() []string {
	return m.keys
}

// Len returns the number of registered patterns.
func (m *CanonicalMap) Len() int {
	return len(m.entries)
}

// LoadSeedFile merges pattern -> canonical pairs from a YAML file into
// the map. The file is a flat mapping:
//
//	"JOE'S COFFEE": Joe's Coffee
//	STARBUCKS: Starbucks
func (m *CanonicalMap) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read canonical seed: %w", err)
	}
	var seed map[string]string
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse canonical seed: %w", err)
	}
	for pattern, name := range seed {
		m.Add(pattern, name)
	}
	return nil
}

// builtinMerchants covers chains that show up in nearly every
// statement. Deployments extend this via the seed file and the
// canonical_merchants table.
var builtinMerchants = map[string]string{
	"STARBUCKS":          "Starbucks",
	"STARBUCKS COFFEE":   "Starbucks",
	"TIM HORTONS":        "Tim Hortons",
	"MCDONALD'S":         "McDonald's",
	"MCDONALDS":          "McDonald's",
	"AMAZON":             "Amazon",
	"AMAZON.CA":          "Amazon",
	"AMAZON.COM":         "Amazon",
	"WALMART":            "Walmart",
	"WAL-MART":           "Walmart",
	"COSTCO":             "Costco",
	"COSTCO WHOLESALE":   "Costco",
	"UBER":               "Uber",
	"UBER EATS":          "Uber Eats",
	"UBER TRIP":          "Uber",
	"LYFT":               "Lyft",
	"NETFLIX":            "Netflix",
	"NETFLIX.COM":        "Netflix",
	"SPOTIFY":            "Spotify",
	"APPLE.COM/BILL":     "Apple",
	"GOOGLE":             "Google",
	"SHELL":              "Shell",
	"ESSO":               "Esso",
	"PETRO-CANADA":       "Petro-Canada",
	"7-ELEVEN":           "7-Eleven",
	"SHOPPERS DRUG MART": "Shoppers Drug Mart",
	"LOBLAWS":            "Loblaws",
	"SOBEYS":             "Sobeys",
	"METRO":              "Metro",
	"SAFEWAY":            "Safeway",
	"TRADER JOE'S":       "Trader Joe's",
	"WHOLE FOODS":        "Whole Foods Market",
	"WHOLE FOODS MARKET": "Whole Foods Market",
	"HOME DEPOT":         "Home Depot",
	"THE HOME DEPOT":     "Home Depot",
	"CANADIAN TIRE":      "Canadian Tire",
	"IKEA":               "IKEA",
	"DOORDASH":           "DoorDash",
	"GRUBHUB":            "Grubhub",
	"SKIP THE DISHES":    "SkipTheDishes",
	"SKIPTHEDISHES":      "SkipTheDishes",
}
