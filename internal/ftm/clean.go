package ftm

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Property groups with dedicated normalization rules. Everything else
// only gets whitespace collapsing and case-insensitive deduplication.
var (
	dateFields = map[string]bool{
		"birthDate":         true,
		"deathDate":         true,
		"date":              true,
		"startDate":         true,
		"endDate":           true,
		"incorporationDate": true,
		"dissolutionDate":   true,
		"retrievedAt":       true,
		"modifiedAt":        true,
	}

	numericFields = map[string]bool{
		"amount":     true,
		"amountUsd":  true,
		"amountEur":  true,
		"confidence": true,
		"percentage": true,
		"charStart":  true,
		"charEnd":    true,
	}

	lowercaseFields = map[string]bool{
		"email":     true,
		"sourceUrl": true,
		"website":   true,
	}

	countryFields = map[string]bool{
		"country":      true,
		"countries":    true,
		"nationality":  true,
		"jurisdiction": true,
	}
)

// Layouts tried in order when a date value is neither YYYY nor YYYY-MM.
// Single-digit day and month components are accepted. Timestamp layouts
// come last and are reduced to their date part.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2.1.2006",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"1-2-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

const countryCodeLength = 2

// Clean normalizes and deduplicates every property list. Values are
// whitespace-collapsed; empty values and empty lists are dropped. Date
// fields are rewritten to YYYY, YYYY-MM, or YYYY-MM-DD and left as-is
// when unparseable. Numeric fields are rewritten to canonical decimal
// strings and dropped when unparseable. Two-letter country codes and
// lowercase-only fields are folded. Deduplication is case-insensitive
// and keeps the first-seen casing.
func Clean(properties Properties) Properties {
	cleaned := make(Properties, len(properties))
	for key, values := range properties {
		normalized := make([]string, 0, len(values))
		for _, value := range values {
			if out, ok := normalizeValue(key, value); ok {
				normalized = append(normalized, out)
			}
		}
		deduped := dedupeFold(normalized)
		if len(deduped) > 0 {
			cleaned[key] = deduped
		}
	}
	return cleaned
}

func normalizeValue(key, value string) (string, bool) {
	text := strings.Join(strings.Fields(value), " ")
	if text == "" {
		return "", false
	}

	switch {
	case dateFields[key]:
		if parsed, ok := normalizeDate(text); ok {
			return parsed, true
		}
		return text, true
	case numericFields[key]:
		if parsed, ok := normalizeNumber(text); ok {
			return parsed, true
		}
		return "", false
	case countryFields[key]:
		if len(text) == countryCodeLength {
			return strings.ToLower(text), true
		}
		return text, true
	case lowercaseFields[key]:
		return strings.ToLower(text), true
	default:
		return text, true
	}
}

func normalizeDate(value string) (string, bool) {
	if len(value) == 4 && allDigits(value) {
		return value, true
	}

	if len(value) == 7 && (value[4] == '-' || value[4] == '/') {
		year, month := value[:4], value[5:]
		if allDigits(year) && allDigits(month) {
			if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
				return year + "-" + pad2(m), true
			}
		}
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), true
		}
	}
	return "", false
}

func normalizeNumber(value string) (string, bool) {
	compact := strings.ReplaceAll(value, ",", "")
	compact = strings.ReplaceAll(compact, " ", "")
	compact = strings.TrimSuffix(compact, "%")

	number, err := strconv.ParseFloat(compact, 64)
	if err != nil || math.IsInf(number, 0) || math.IsNaN(number) {
		return "", false
	}
	if number == math.Trunc(number) {
		return strconv.FormatFloat(number, 'f', 0, 64), true
	}
	return strconv.FormatFloat(number, 'f', -1, 64), true
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	deduped := make([]string, 0, len(values))
	for _, value := range values {
		key := strings.ToLower(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, value)
	}
	return deduped
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
