// Package types contains small shared types used across the application.
package types

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DayFormat is the wire format for calendar days.
const DayFormat = "2006-01-02"

const hoursPerDay = 24

// Day is a calendar day in the reference timezone (UTC). It replaces
// raw date-string arithmetic: all day math goes through AddDays and
// DaysSince so DST and timezone edge cases cannot creep in.
type Day struct {
	t time.Time
}

// DayOf buckets a timestamp into its UTC calendar day.
func DayOf(ts time.Time) Day {
	u := ts.UTC()
	return Day{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD day key.
func ParseDay(s string) (Day, error) {
	t, err := time.ParseInLocation(DayFormat, s, time.UTC)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day{t: t}, nil
}

// MustDay parses a day key and panics on failure. Test helper.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the YYYY-MM-DD key for the day.
func (d Day) String() string {
	return d.t.Format(DayFormat)
}

// Time returns the UTC midnight instant of the day.
func (d Day) Time() time.Time {
	return d.t
}

// IsZero reports whether the day is the zero value.
func (d Day) IsZero() bool {
	return d.t.IsZero()
}

// AddDays returns the day shifted by n calendar days (n may be negative).
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// Next returns the following calendar day.
func (d Day) Next() Day {
	return d.AddDays(1)
}

// DaysSince returns the number of whole days from other to d.
// Positive when d is later than other.
func (d Day) DaysSince(other Day) int {
	return int(d.t.Sub(other.t).Hours() / hoursPerDay)
}

// Before reports whether d is earlier than other.
func (d Day) Before(other Day) bool {
	return d.t.Before(other.t)
}

// After reports whether d is later than other.
func (d Day) After(other Day) bool {
	return d.t.After(other.t)
}

// Equal reports whether both values denote the same calendar day.
func (d Day) Equal(other Day) bool {
	return d.t.Equal(other.t)
}

// LastN returns the n days ending at d, most recent first:
// index 0 is d itself, index 1 is yesterday, and so on.
func (d Day) LastN(n int) []Day {
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, d.AddDays(-i))
	}
	return days
}

// Value implements driver.Valuer so a Day persists as its day key.
func (d Day) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for reading day keys back from a store.
func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Day{}
		return nil
	case string:
		parsed, err := ParseDay(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDay(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case time.Time:
		*d = DayOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Day", src)
	}
}

// MarshalText implements encoding.TextMarshaler for JSON responses.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
