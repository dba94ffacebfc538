package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/events"
)

var (
	ErrLastWindow    = errors.New("availability: at least one time window is required")
	ErrWindowIndex   = errors.New("availability: time window index out of range")
	ErrAllDayActive  = errors.New("availability: time windows are fixed while all-day is enabled")
	ErrBeyondHorizon = errors.New("availability: date is beyond the booking horizon")
)

// HorizonDays bounds how far ahead of today a date may be selected.
const HorizonDays = 365

// TapState is either Idle or AnchorSet.
type TapState interface {
	tapState()
}

type Idle struct{}

// AnchorSet holds the first tap of a range gesture until the second tap arrives.
type AnchorSet struct {
	Anchor daterange.Day
}

func (Idle) tapState()      {}
func (AnchorSet) tapState() {}

// Slot is one bookable (date, window) pair. Field names follow the listings backend contract.
type Slot struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

// Selection is the availability part of a listing draft.
type Selection struct {
	DraftID string

	dates   map[string]daterange.Day
	state   TapState
	windows []TimeWindow
	allDay  bool

	events.Recorder
}

func NewSelection(draftID string) *Selection {
	return &Selection{
		DraftID: draftID,
		dates:   make(map[string]daterange.Day),
		state:   Idle{},
		windows: []TimeWindow{DefaultWindow},
	}
}

func (s *Selection) State() TapState { return s.state }
func (s *Selection) AllDay() bool    { return s.allDay }

// Dates returns the selected dates in ascending order.
func (s *Selection) Dates() []daterange.Day {
	out := make([]daterange.Day, 0, len(s.dates))
	for _, d := range s.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s *Selection) IsSelected(d daterange.Day) bool {
	_, ok := s.dates[d.String()]
	return ok
}

// Windows returns the configured windows, empty while all-day is enabled.
func (s *Selection) Windows() []TimeWindow {
	return append([]TimeWindow(nil), s.windows...)
}

// ActiveWindows returns the windows used for slot derivation.
func (s *Selection) ActiveWindows() []TimeWindow {
	if s.allDay {
		return []TimeWindow{AllDayWindow}
	}
	return s.Windows()
}

// Tap applies one calendar tap and returns the dates it newly selected.
// Taps on days before today leave the selection untouched. Days more than
// HorizonDays after today fail with ErrBeyondHorizon.
func (s *Selection) Tap(day, today daterange.Day, now time.Time) ([]daterange.Day, error) {
	if day.IsZero() || day.Before(today) {
		return nil, nil
	}
	if today.DaysUntil(day) > HorizonDays {
		return nil, fmt.Errorf("%w: %s is more than %d days after %s", ErrBeyondHorizon, day, HorizonDays, today)
	}
	var added []daterange.Day
	switch st := s.state.(type) {
	case AnchorSet:
		span := daterange.Between(st.Anchor, day)
		// An anchor left over from an earlier day only extends the range back to today.
		if span.From.Before(today) {
			span.From = today
		}
		for _, d := range span.Days() {
			if s.add(d) {
				added = append(added, d)
			}
		}
		s.state = Idle{}
	default:
		if s.add(day) {
			added = append(added, day)
		}
		s.state = AnchorSet{Anchor: day}
	}
	if len(added) > 0 {
		s.Record(DatesSelected{DraftID: s.DraftID, Dates: daysToStrings(added), At: now.UTC()})
	}
	return added, nil
}

// TapString parses raw before tapping; an unparseable value fails with daterange.ErrInvalidDate.
func (s *Selection) TapString(raw string, today daterange.Day, now time.Time) ([]daterange.Day, error) {
	day, err := daterange.ParseDay(raw)
	if err != nil {
		return nil, err
	}
	return s.Tap(day, today, now)
}

// Reset clears every selected date and any pending anchor.
func (s *Selection) Reset(now time.Time) {
	s.dates = make(map[string]daterange.Day)
	s.state = Idle{}
	s.Record(SelectionReset{DraftID: s.DraftID, At: now.UTC()})
}

func (s *Selection) AddWindow() error {
	if s.allDay {
		return ErrAllDayActive
	}
	s.windows = append(s.windows, DefaultWindow)
	return nil
}

// RemoveWindow refuses to remove the only remaining window.
func (s *Selection) RemoveWindow(index int) error {
	if s.allDay {
		return ErrAllDayActive
	}
	if index < 0 || index >= len(s.windows) {
		return fmt.Errorf("%w: %d", ErrWindowIndex, index)
	}
	if len(s.windows) == 1 {
		return ErrLastWindow
	}
	s.windows = append(s.windows[:index:index], s.windows[index+1:]...)
	return nil
}

func (s *Selection) UpdateWindow(index int, w TimeWindow) error {
	if s.allDay {
		return ErrAllDayActive
	}
	if index < 0 || index >= len(s.windows) {
		return fmt.Errorf("%w: %d", ErrWindowIndex, index)
	}
	s.windows[index] = w
	return nil
}

// SetAllDay toggles the all-day mode. Leaving all-day mode always starts over from
// a single default window. Setting the current value again is a no-op.
func (s *Selection) SetAllDay(on bool) {
	if s.allDay == on {
		return
	}
	s.allDay = on
	if on {
		s.windows = nil
		return
	}
	s.windows = []TimeWindow{DefaultWindow}
}

// Slots is the cross product of selected dates and active windows, ordered by date then window.
func (s *Selection) Slots() []Slot {
	dates := s.Dates()
	windows := s.ActiveWindows()
	out := make([]Slot, 0, len(dates)*len(windows))
	for _, d := range dates {
		day := d.String()
		for _, w := range windows {
			out = append(out, Slot{
				StartDate:   day,
				EndDate:     day,
				StartTime:   w.Start.String(),
				EndTime:     w.End.String(),
				IsAvailable: true,
			})
		}
	}
	return out
}

func (s *Selection) add(d daterange.Day) bool {
	key := d.String()
	if _, ok := s.dates[key]; ok {
		return false
	}
	s.dates[key] = d
	return true
}

func daysToStrings(days []daterange.Day) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}
