package availability

import "time"

type DatesSelected struct {
	DraftID string    `json:"draft_id"`
	Dates   []string  `json:"dates"`
	At      time.Time `json:"at"`
}

func (e DatesSelected) EventName() string     { return "availability.dates_selected" }
func (e DatesSelected) AggregateID() string   { return e.DraftID }
func (e DatesSelected) OccurredAt() time.Time { return e.At }

type SelectionReset struct {
	DraftID string    `json:"draft_id"`
	At      time.Time `json:"at"`
}

func (e SelectionReset) EventName() string     { return "availability.reset" }
func (e SelectionReset) AggregateID() string   { return e.DraftID }
func (e SelectionReset) OccurredAt() time.Time { return e.At }
