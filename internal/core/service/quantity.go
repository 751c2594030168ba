package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantities are stored as DECIMAL(20, 6).
const (
	maxIntegerDigits  = 14
	maxFractionDigits = 6
)

// Plain decimal notation only. Exponent forms such as "1e9" are rejected before they reach
// big-number arithmetic.
var quantityPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ParseQuantity turns user-entered text into a quantity. Empty input means zero.
func ParseQuantity(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, nil
	}
	if !quantityPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, text)
	}

	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, text)
	}
	if err := checkQuantityBounds(q); err != nil {
		return decimal.Zero, err
	}
	if q.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeQuantity, q)
	}

	return q, nil
}

// checkQuantityBounds rejects values the journal cannot hold. It reads only the coefficient
// length and exponent, so it is safe on decoded JSON decimals carrying huge exponents.
func checkQuantityBounds(q decimal.Decimal) error {
	if q.IsZero() {
		return nil
	}
	exp := q.Exponent()
	if exp < -maxFractionDigits {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidQuantity, maxFractionDigits)
	}
	if q.NumDigits()+int(exp) > maxIntegerDigits {
		return fmt.Errorf("%w: at most %d integer digits", ErrInvalidQuantity, maxIntegerDigits)
	}
	return nil
}

// parseBatch parses per-item input. The second map holds the reason for every unparsable entry.
func parseBatch(input map[string]string) (map[string]decimal.Decimal, map[string]string) {
	parsed := make(map[string]decimal.Decimal, len(input))
	reasons := make(map[string]string)
	for name, text := range input {
		q, err := ParseQuantity(text)
		if err != nil {
			reasons[name] = err.Error()
			continue
		}
		parsed[name] = q
	}
	return parsed, reasons
}
