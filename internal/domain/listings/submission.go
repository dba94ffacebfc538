package listings

import (
	"motorent/internal/domain/availability"
)

// Submission is the listing payload accepted by the remote listings API.
type Submission struct {
	DraftID      string              `json:"draft_id"`
	OwnerID      string              `json:"owner_id"`
	VehicleType  VehicleKind         `json:"vehicle_type"`
	Details      Details             `json:"details"`
	AllDay       bool                `json:"all_day"`
	Availability []availability.Slot `json:"availability"`
}

func newSubmission(d *Draft) Submission {
	return Submission{
		DraftID:      string(d.ID),
		OwnerID:      d.OwnerID,
		VehicleType:  d.Kind,
		Details:      d.Details,
		AllDay:       d.Availability.AllDay(),
		Availability: d.Availability.Slots(),
	}
}
