package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const Layout = "2006-01-02"

var (
	ErrInvalidDate = errors.New("daterange: invalid calendar date")
)

// Day is a calendar date without time-of-day, normalized to midnight UTC.
type Day struct {
	t time.Time
}

func ParseDay(raw string) (Day, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Day{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	t, err := time.Parse(Layout, value)
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Day{t: t}, nil
}

func MustDay(raw string) Day {
	d, err := ParseDay(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// DayOf truncates t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	return Day{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Time() time.Time       { return d.t }
func (d Day) String() string        { return d.t.Format(Layout) }
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }
func (d Day) After(other Day) bool  { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool  { return d.t.Equal(other.t) }
func (d Day) AddDays(n int) Day     { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) Compare(other Day) int { return d.t.Compare(other.t) }

// DaysUntil counts the calendar days from d to other; negative when other is earlier.
func (d Day) DaysUntil(other Day) int {
	return int(other.dayNumber() - d.dayNumber())
}

func (d Day) dayNumber() int64 {
	return floorDiv(d.t.Unix(), secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Span is an inclusive range of calendar days [From, To].
type Span struct {
	From Day
	To   Day
}

// Between builds the inclusive span covering a and b in either order.
func Between(a, b Day) Span {
	if b.Before(a) {
		a, b = b, a
	}
	return Span{From: a, To: b}
}

// Len counts calendar days from the Unix day numbers of both ends.
func (s Span) Len() int {
	if s.To.Before(s.From) {
		return 0
	}
	return int(s.To.dayNumber()-s.From.dayNumber()) + 1
}

func (s Span) Contains(d Day) bool {
	return !d.Before(s.From) && !d.After(s.To)
}

// Days expands the span into one entry per calendar day.
func (s Span) Days() []Day {
	n := s.Len()
	out := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.From.AddDays(i))
	}
	return out
}
