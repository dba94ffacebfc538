package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"motorent/internal/domain/availability"
	"motorent/internal/domain/shared/events"
)

var (
	ErrDraftNotFound       = errors.New("listings: draft not found")
	ErrDraftExists         = errors.New("listings: draft already exists")
	ErrDraftClosed         = errors.New("listings: draft is no longer editable")
	ErrUnknownVehicleKind  = errors.New("listings: unknown vehicle kind")
	ErrOwnerRequired       = errors.New("listings: owner is required")
	ErrConcurrentUpdate    = errors.New("listings: draft was modified concurrently")
	ErrRemoteListingNeeded = errors.New("listings: remote listing id is required")
)

type DraftID string

type VehicleKind string

const (
	KindCar     VehicleKind = "car"
	KindBike    VehicleKind = "bike"
	KindBicycle VehicleKind = "bicycle"
)

func ParseVehicleKind(raw string) (VehicleKind, error) {
	switch kind := VehicleKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case KindCar, KindBike, KindBicycle:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVehicleKind, raw)
	}
}

type DraftStatus string

const (
	StatusDraft     DraftStatus = "DRAFT"
	StatusSubmitted DraftStatus = "SUBMITTED"
	StatusAbandoned DraftStatus = "ABANDONED"
)

type Location struct {
	City    string  `json:"city"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Details are the free-form fields collected by the wizard's details and pricing steps.
type Details struct {
	Title          string   `json:"title"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Year           int      `json:"year"`
	Description    string   `json:"description"`
	DailyRateCents int64    `json:"daily_rate_cents"`
	DepositCents   int64    `json:"deposit_cents"`
	Currency       string   `json:"currency"`
	Location       Location `json:"location"`
	Seats          int      `json:"seats,omitempty"`
	Transmission   string   `json:"transmission,omitempty"`
	FuelType       string   `json:"fuel_type,omitempty"`
	EngineCC       int      `json:"engine_cc,omitempty"`
	FrameSize      string   `json:"frame_size,omitempty"`
	ElectricAssist bool     `json:"electric_assist,omitempty"`
}

type Draft struct {
	ID              DraftID
	OwnerID         string
	Kind            VehicleKind
	Details         Details
	Availability    *availability.Selection
	Status          DraftStatus
	RemoteListingID string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SubmittedAt     time.Time
	events.Recorder
}

// DraftRepository persists drafts. Update applies fn atomically per draft.
type DraftRepository interface {
	Create(ctx context.Context, draft *Draft) error
	ByID(ctx context.Context, id DraftID) (*Draft, error)
	Update(ctx context.Context, id DraftID, fn func(*Draft) error) (*Draft, error)
}

type NewDraftParams struct {
	ID      DraftID
	OwnerID string
	Kind    VehicleKind
	Now     time.Time
}

func NewDraft(params NewDraftParams) (*Draft, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: draft id is required")
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}
	kind, err := ParseVehicleKind(string(params.Kind))
	if err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	d := &Draft{
		ID:           params.ID,
		OwnerID:      params.OwnerID,
		Kind:         kind,
		Details:      Details{Currency: "USD"},
		Availability: availability.NewSelection(string(params.ID)),
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.Record(DraftStartedEvent{DraftID: d.ID, OwnerID: d.OwnerID, Kind: d.Kind, At: now})
	return d, nil
}

// Editable reports ErrDraftClosed once the draft was submitted or abandoned.
func (d *Draft) Editable() error {
	if d.Status != StatusDraft {
		return ErrDraftClosed
	}
	return nil
}

func (d *Draft) Touch(now time.Time) {
	d.UpdatedAt = now.UTC()
}

func (d *Draft) UpdateDetails(details Details, now time.Time) error {
	if err := d.Editable(); err != nil {
		return err
	}
	details.Title = strings.TrimSpace(details.Title)
	details.Brand = strings.TrimSpace(details.Brand)
	details.Model = strings.TrimSpace(details.Model)
	details.Currency = strings.ToUpper(strings.TrimSpace(details.Currency))
	if details.Currency == "" {
		details.Currency = d.Details.Currency
	}
	d.Details = details
	d.Touch(now)
	return nil
}

// Prepare validates every wizard step and builds the payload sent to the listings backend.
// The draft itself is left unchanged.
func (d *Draft) Prepare(now time.Time) (Submission, error) {
	if err := d.Editable(); err != nil {
		return Submission{}, err
	}
	if errs := d.ValidateStep(StepReview, now); len(errs) > 0 {
		return Submission{}, errs
	}
	return newSubmission(d), nil
}

func (d *Draft) MarkSubmitted(remoteListingID string, now time.Time) error {
	if err := d.Editable(); err != nil {
		return err
	}
	if strings.TrimSpace(remoteListingID) == "" {
		return ErrRemoteListingNeeded
	}
	now = now.UTC()
	d.Status = StatusSubmitted
	d.RemoteListingID = remoteListingID
	d.SubmittedAt = now
	d.Touch(now)
	d.Record(DraftSubmittedEvent{
		DraftID:         d.ID,
		OwnerID:         d.OwnerID,
		Kind:            d.Kind,
		RemoteListingID: remoteListingID,
		Slots:           len(d.Availability.Slots()),
		At:              now,
	})
	return nil
}

func (d *Draft) Abandon(now time.Time) error {
	if err := d.Editable(); err != nil {
		return err
	}
	d.Status = StatusAbandoned
	d.Touch(now)
	d.Record(DraftAbandonedEvent{DraftID: d.ID, OwnerID: d.OwnerID, At: now.UTC()})
	return nil
}

// PullEvents drains events raised by the draft and its availability selection.
func (d *Draft) PullEvents() []events.DomainEvent {
	out := d.Drain()
	if d.Availability != nil {
		out = append(out, d.Availability.Drain()...)
	}
	return out
}

// Clone returns a deep copy without pending events.
func (d *Draft) Clone() *Draft {
	out := &Draft{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		Kind:            d.Kind,
		Details:         d.Details,
		Status:          d.Status,
		RemoteListingID: d.RemoteListingID,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		SubmittedAt:     d.SubmittedAt,
	}
	if d.Availability != nil {
		out.Availability = d.Availability.Clone()
	}
	return out
}
