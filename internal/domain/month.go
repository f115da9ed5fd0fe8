package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Month is a calendar month, rendered as YYYY-MM.
type Month struct {
	Year  int
	Month time.Month
}

// DataFloor is the earliest month the crime source publishes data for.
var DataFloor = Month{Year: 2022, Month: time.October}

var (
	ErrInvalidMonthFormat = errors.New("month must be in YYYY-MM format")
	ErrBeforeDataFloor    = errors.New("month is before the earliest available data")
	ErrAfterMostRecent    = errors.New("month is after the most recent available data")
)

// NewMonth returns the month for the given year and calendar month.
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a strict YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return Month{}, errors.Wrapf(ErrInvalidMonthFormat, "got %q", s)
	}

	for i, c := range s {
		if i == 4 {
			continue
		}
		if c < '0' || c > '9' {
			return Month{}, errors.Wrapf(ErrInvalidMonthFormat, "got %q", s)
		}
	}

	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[5:])
	if month < 1 || month > 12 {
		return Month{}, errors.Wrapf(ErrInvalidMonthFormat, "month %02d out of range in %q", month, s)
	}

	return Month{Year: year, Month: time.Month(month)}, nil
}

// MustParseMonth is like ParseMonth but panics on error.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

func monthFromIndex(i int) Month {
	return Month{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// Next returns the following month, rolling the year over after December.
func (m Month) Next() Month {
	return monthFromIndex(m.index() + 1)
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return monthFromIndex(m.index() - 1)
}

func (m Month) Before(o Month) bool {
	return m.index() < o.index()
}

func (m Month) After(o Month) bool {
	return m.index() > o.index()
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores a month as its YYYY-MM text.
func (m Month) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan reads a month stored as YYYY-MM text.
func (m *Month) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return m.UnmarshalText([]byte(v))
	case []byte:
		return m.UnmarshalText(v)
	case nil:
		*m = Month{}
		return nil
	default:
		return errors.Errorf("cannot scan %T into Month", src)
	}
}

// MonthRange returns every month from start to end inclusive, in ascending
// order. It is empty when start is after end.
func MonthRange(start, end Month) []Month {
	if start.After(end) {
		return []Month{}
	}

	months := make([]Month, 0, end.index()-start.index()+1)
	for m := start; !m.After(end); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// ValidateMonth parses s and checks it against the data floor and, when
// mostRecent is known, the latest published month. A month after mostRecent
// is still returned alongside ErrAfterMostRecent so callers may treat it as
// a warning.
func ValidateMonth(s string, mostRecent Month) (Month, error) {
	m, err := ParseMonth(s)
	if err != nil {
		return Month{}, err
	}

	if m.Before(DataFloor) {
		return Month{}, errors.Wrapf(ErrBeforeDataFloor, "%s is before %s", m, DataFloor)
	}

	if !mostRecent.IsZero() && m.After(mostRecent) {
		return m, errors.Wrapf(ErrAfterMostRecent, "%s is after %s", m, mostRecent)
	}

	return m, nil
}

// IsWarning reports whether a ValidateMonth error is advisory only.
func IsWarning(err error) bool {
	return errors.Is(err, ErrAfterMostRecent)
}
