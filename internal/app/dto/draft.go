package dto

import (
	"time"

	"motorent/internal/domain/availability"
	"motorent/internal/domain/listings"
)

type TimeWindow struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Availability struct {
	State         string              `json:"state"`
	PendingAnchor string              `json:"pending_anchor,omitempty"`
	SelectedDates []string            `json:"selected_dates"`
	AllDay        bool                `json:"all_day"`
	TimeWindows   []TimeWindow        `json:"time_windows"`
	Slots         []availability.Slot `json:"slots"`
}

type Draft struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	Kind            string           `json:"kind"`
	Status          string           `json:"status"`
	Details         listings.Details `json:"details"`
	Availability    Availability     `json:"availability"`
	CompletedSteps  []string         `json:"completed_steps"`
	RemoteListingID string           `json:"remote_listing_id,omitempty"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty"`
}

func MapDraft(d *listings.Draft, now time.Time) Draft {
	if d == nil {
		return Draft{}
	}
	out := Draft{
		ID:              string(d.ID),
		OwnerID:         d.OwnerID,
		Kind:            string(d.Kind),
		Status:          string(d.Status),
		Details:         d.Details,
		Availability:    MapAvailability(d.Availability),
		CompletedSteps:  []string{},
		RemoteListingID: d.RemoteListingID,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if !d.SubmittedAt.IsZero() {
		at := d.SubmittedAt
		out.SubmittedAt = &at
	}
	for _, step := range listings.Steps {
		if step == listings.StepReview {
			continue
		}
		if len(d.ValidateStep(step, now)) == 0 {
			out.CompletedSteps = append(out.CompletedSteps, string(step))
		}
	}
	return out
}

func MapAvailability(sel *availability.Selection) Availability {
	out := Availability{
		State:         "idle",
		SelectedDates: []string{},
		TimeWindows:   []TimeWindow{},
		Slots:         []availability.Slot{},
	}
	if sel == nil {
		return out
	}
	switch st := sel.State().(type) {
	case availability.AnchorSet:
		out.State = "anchor_set"
		out.PendingAnchor = st.Anchor.String()
	case availability.Idle:
		out.State = "idle"
	}
	for _, d := range sel.Dates() {
		out.SelectedDates = append(out.SelectedDates, d.String())
	}
	out.AllDay = sel.AllDay()
	for _, w := range sel.ActiveWindows() {
		out.TimeWindows = append(out.TimeWindows, TimeWindow{StartTime: w.Start.String(), EndTime: w.End.String()})
	}
	out.Slots = append(out.Slots, sel.Slots()...)
	return out
}
