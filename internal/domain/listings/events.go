package listings

import (
	"time"
)

type DraftStartedEvent struct {
	DraftID DraftID     `json:"draft_id"`
	OwnerID string      `json:"owner_id"`
	Kind    VehicleKind `json:"kind"`
	At      time.Time   `json:"at"`
}

func (e DraftStartedEvent) EventName() string     { return "listing.draft_started" }
func (e DraftStartedEvent) AggregateID() string   { return string(e.DraftID) }
func (e DraftStartedEvent) OccurredAt() time.Time { return e.At }

type DraftSubmittedEvent struct {
	DraftID         DraftID     `json:"draft_id"`
	OwnerID         string      `json:"owner_id"`
	Kind            VehicleKind `json:"kind"`
	RemoteListingID string      `json:"remote_listing_id"`
	Slots           int         `json:"slots"`
	At              time.Time   `json:"at"`
}

func (e DraftSubmittedEvent) EventName() string     { return "listing.draft_submitted" }
func (e DraftSubmittedEvent) AggregateID() string   { return string(e.DraftID) }
func (e DraftSubmittedEvent) OccurredAt() time.Time { return e.At }

type DraftAbandonedEvent struct {
	DraftID DraftID   `json:"draft_id"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
}

func (e DraftAbandonedEvent) EventName() string     { return "listing.draft_abandoned" }
func (e DraftAbandonedEvent) AggregateID() string   { return string(e.DraftID) }
func (e DraftAbandonedEvent) OccurredAt() time.Time { return e.At }
