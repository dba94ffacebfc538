package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidClock = errors.New("availability: invalid clock time")

// ClockTime is a 24-hour wall clock time with minute granularity.
type ClockTime struct {
	minutes int
}

func Clock(hour, minute int) ClockTime {
	return ClockTime{minutes: hour*60 + minute}
}

// ParseClock accepts "HH:MM" in 24-hour notation.
func ParseClock(raw string) (ClockTime, error) {
	value := strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !digits(hh+mm) {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return Clock(hour, minute), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func MustClock(raw string) ClockTime {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Minutes() int { return c.minutes }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.minutes/60, c.minutes%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeWindow is a recurring daily period. End is not required to follow Start here;
// the listing draft validates ordering before submission.
type TimeWindow struct {
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
}

func (w TimeWindow) Ordered() bool {
	return w.End.minutes > w.Start.minutes
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

var (
	DefaultWindow = TimeWindow{Start: Clock(9, 0), End: Clock(18, 0)}
	AllDayWindow  = TimeWindow{Start: Clock(0, 0), End: Clock(23, 59)}
)
