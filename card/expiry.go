package card

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minYear = 2000
	maxYear = 2099
)

// Expiry is a validated card expiry month.
type Expiry struct {
	year  int
	month time.Month
}

// ParseExpiry accepts "YYYY-MM", "YYYYMM", "MM/YY" or "MMYY".
func ParseExpiry(s string) (Expiry, error) {
	s = strings.TrimSpace(s)

	var yearStr, monthStr string
	switch {
	case len(s) == 7 && s[4] == '-':
		yearStr, monthStr = s[:4], s[5:]
	case len(s) == 6 && isDigits(s):
		yearStr, monthStr = s[:4], s[4:]
	case len(s) == 5 && s[2] == '/':
		monthStr, yearStr = s[:2], "20"+s[3:]
	case len(s) == 4 && isDigits(s):
		monthStr, yearStr = s[:2], "20"+s[2:]
	default:
		return Expiry{}, fmt.Errorf("%w: must be YYYY-MM or MM/YY", ErrInvalidExpiry)
	}

	if !isDigits(yearStr) || !isDigits(monthStr) {
		return Expiry{}, fmt.Errorf("%w: must be digits", ErrInvalidExpiry)
	}

	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	if month < 1 || month > 12 {
		return Expiry{}, fmt.Errorf("%w: month must be 01..12", ErrInvalidExpiry)
	}
	if year < minYear || year > maxYear {
		return Expiry{}, fmt.Errorf("%w: year must be %d..%d", ErrInvalidExpiry, minYear, maxYear)
	}

	return Expiry{year: year, month: time.Month(month)}, nil
}

// MustParseExpiry is like ParseExpiry but panics on error.
func MustParseExpiry(s string) Expiry {
	e, err := ParseExpiry(s)
	if err != nil {
		panic(err)
	}

	return e
}

// CardExpiry returns the expiry as YYYY-MM, or "" for the zero Expiry.
func (e Expiry) CardExpiry() string {
	if e.IsZero() {
		return ""
	}

	return fmt.Sprintf("%04d-%02d", e.year, int(e.month))
}

// IsZero reports whether e was not produced by ParseExpiry.
func (e Expiry) IsZero() bool {
	return e.month == 0
}

// Year returns the four digit expiry year.
func (e Expiry) Year() int {
	return e.year
}

// Month returns the expiry month.
func (e Expiry) Month() time.Month {
	return e.month
}

// EndOfMonth returns the last instant of the expiry month in loc.
func (e Expiry) EndOfMonth(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	return time.Date(e.year, e.month, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// IsExpired reports whether at is after the end of the expiry month.
func (e Expiry) IsExpired(at time.Time) bool {
	return at.After(e.EndOfMonth(at.Location()))
}

// String implements [fmt.Stringer].
func (e Expiry) String() string {
	return e.CardExpiry()
}
