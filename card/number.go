// Package card provides validated card values for billing key registration.
package card

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidNumber is returned for card numbers that fail validation.
	ErrInvalidNumber = errors.New("invalid card number")
	// ErrInvalidExpiry is returned for expiries that fail validation.
	ErrInvalidExpiry = errors.New("invalid card expiry")
)

// Number is a validated primary account number.
type Number struct {
	pan string
}

// ParseNumber validates a card number. Spaces and dashes are ignored.
// The number must have 13 to 19 digits and a valid Luhn check digit.
func ParseNumber(s string) (Number, error) {
	pan := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	if pan == "" {
		return Number{}, fmt.Errorf("%w: number is required", ErrInvalidNumber)
	}
	if !isDigits(pan) {
		return Number{}, fmt.Errorf("%w: must contain digits only", ErrInvalidNumber)
	}
	if l := len(pan); l < 13 || l > 19 {
		return Number{}, fmt.Errorf("%w: length must be 13..19 digits (got %d)", ErrInvalidNumber, l)
	}
	if pan[len(pan)-1] != luhnCheckDigit(pan[:len(pan)-1]) {
		return Number{}, fmt.Errorf("%w: invalid luhn check digit", ErrInvalidNumber)
	}

	return Number{pan: pan}, nil
}

// MustParseNumber is like ParseNumber but panics on error.
func MustParseNumber(s string) Number {
	n, err := ParseNumber(s)
	if err != nil {
		panic(err)
	}

	return n
}

// IsZero reports whether n was not produced by ParseNumber.
func (n Number) IsZero() bool {
	return n.pan == ""
}

// CardNumber returns the digits of the number, or "" for the zero Number.
func (n Number) CardNumber() string {
	return n.pan
}

// Masked keeps the first six and last four digits.
func (n Number) Masked() string {
	if len(n.pan) < 10 {
		return n.pan
	}

	return n.pan[:6] + strings.Repeat("*", len(n.pan)-10) + n.pan[len(n.pan)-4:]
}

// String returns the masked number so that logging a Number never leaks it.
func (n Number) String() string {
	return n.Masked()
}

func luhnCheckDigit(body string) byte {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}

	return '0' + byte((10-(sum%10))%10)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return s != ""
}
