package availability

import (
	"motorent/internal/domain/shared/daterange"
)

// Snapshot is the storage form of a Selection. Anchor is empty while Idle.
type Snapshot struct {
	Dates   []string     `json:"dates"`
	Anchor  string       `json:"anchor,omitempty"`
	Windows []TimeWindow `json:"windows"`
	AllDay  bool         `json:"all_day"`
}

func (s *Selection) Snapshot() Snapshot {
	snap := Snapshot{
		Dates:   daysToStrings(s.Dates()),
		Windows: s.Windows(),
		AllDay:  s.allDay,
	}
	if anchor, ok := s.state.(AnchorSet); ok {
		snap.Anchor = anchor.Anchor.String()
	}
	return snap
}

func Restore(draftID string, snap Snapshot) (*Selection, error) {
	sel := NewSelection(draftID)
	for _, raw := range snap.Dates {
		d, err := daterange.ParseDay(raw)
		if err != nil {
			return nil, err
		}
		sel.add(d)
	}
	if snap.Anchor != "" {
		anchor, err := daterange.ParseDay(snap.Anchor)
		if err != nil {
			return nil, err
		}
		sel.state = AnchorSet{Anchor: anchor}
	}
	sel.allDay = snap.AllDay
	switch {
	case snap.AllDay:
		sel.windows = nil
	case len(snap.Windows) > 0:
		sel.windows = append([]TimeWindow(nil), snap.Windows...)
	}
	return sel, nil
}

// Clone returns a deep copy without pending events.
func (s *Selection) Clone() *Selection {
	out := &Selection{
		DraftID: s.DraftID,
		dates:   make(map[string]daterange.Day, len(s.dates)),
		state:   s.state,
		windows: append([]TimeWindow(nil), s.windows...),
		allDay:  s.allDay,
	}
	for k, v := range s.dates {
		out.dates[k] = v
	}
	return out
}
