// Package ticker validates instrument codes and normalizes them to the
// market data provider's symbol space. B3 equity codes ("PETR4", "VALE3",
// "TAEE11") map to their ".SA"-suffixed provider symbols; index symbols
// ("^BVSP") and already-qualified codes pass through unchanged.
package ticker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidTicker is returned for codes that cannot name any instrument.
var ErrInvalidTicker = errors.New("ticker: invalid instrument code")

// b3Regex matches bare B3 codes: four letters, a one/two digit class
// suffix, optionally a fractional-market F ("PETR4", "TAEE11", "VALE3F").
var b3Regex = regexp.MustCompile(`^[A-Z]{4}\d{1,2}F?$`)

// symbolRegex bounds what is forwarded verbatim to the provider.
var symbolRegex = regexp.MustCompile(`^[\^]?[A-Z0-9.\-=]{1,20}$`)

// Normalize uppercases, trims, and qualifies an instrument code.
func Normalize(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", ErrInvalidTicker
	}
	if b3Regex.MatchString(code) {
		return code + ".SA", nil
	}
	if symbolRegex.MatchString(code) {
		return code, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidTicker, raw)
}
