package models

import (
	"regexp"
	"strings"
)

// symbolPattern accepts exchange tickers (BRK.A, BF-B), index (^GSPC) and FX (EURUSD=X) symbols.
// Anything else is rejected before it reaches a query string.
var symbolPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-=]{0,14}$`)

// NormalizeSymbol upper-cases and validates a ticker symbol.
func NormalizeSymbol(s string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(n) {
		return "", &InputShapeError{Field: "symbol", Reason: "invalid ticker " + strings.TrimSpace(s)}
	}
	return n, nil
}

// NormalizeSymbolOrEmpty is NormalizeSymbol that passes a blank symbol through as "".
func NormalizeSymbolOrEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return NormalizeSymbol(s)
}
