package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePrice parses a price string in Finnish number format, e.g.
// "1 234,56 €" or "1234,56€". The euro sign, non-breaking spaces and
// thousands separators (space or dot) are stripped and the decimal comma is
// normalized to a dot.
func ParsePrice(text string) (float64, error) {
	cleaned := strings.ReplaceAll(text, "€", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	if cleaned == "" {
		return 0, fmt.Errorf("parse price %q: empty after normalization", text)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return v, nil
}
