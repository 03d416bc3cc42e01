package market

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPair is returned for symbols not shaped like BASE/QUOTE.
var ErrInvalidPair = errors.New("invalid pair")

// ParsePair splits a BASE/QUOTE symbol.
func ParsePair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%q: %w", pair, ErrInvalidPair)
	}
	return parts[0], parts[1], nil
}

// PairFileName returns the CSV file name used to store a pair's candles.
func PairFileName(pair string) string {
	return strings.ReplaceAll(pair, "/", "_") + ".csv"
}
