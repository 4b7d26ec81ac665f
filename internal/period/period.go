// Package period handles reward-date parsing and validation. A reward
// period is one calendar day, identified by a YYYY-MM-DD string; that
// string is the canonical form used in the payout ledger's idempotency
// key, so parsing normalizes rather than converting to time.Time.
package period

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// dateRegex matches the canonical reward date form: YYYY-MM-DD.
// Postgres accepts looser date literals, so the boundary validates here.
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var (
	ErrInvalidDate = errors.New("period: invalid reward date format")
	ErrMissingDate = errors.New("period: reward date is required")
)

// RewardDate is a validated reward period identifier.
type RewardDate string

// Parse validates and normalizes a reward date string.
// Format: YYYY-MM-DD, and the date must exist on the calendar.
func Parse(s string) (RewardDate, error) {
	if s == "" {
		return "", ErrMissingDate
	}
	if !dateRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected YYYY-MM-DD)", ErrInvalidDate, s)
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, s)
	}
	return RewardDate(s), nil
}

// String returns the canonical YYYY-MM-DD form.
func (d RewardDate) String() string {
	return string(d)
}

// Time returns the start of the reward period in UTC.
func (d RewardDate) Time() time.Time {
	t, _ := time.Parse("2006-01-02", string(d))
	return t
}
