package drafts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"motorent/internal/app/dto"
	"motorent/internal/app/outbox"
	"motorent/internal/app/policies"
	"motorent/internal/domain/availability"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/domain/shared/daterange"
)

// errUnchanged lets a mutation report that nothing needs to be written.
var errUnchanged = errors.New("drafts: unchanged")

// Handlers implements every draft command and query on top of the draft repository.
type Handlers struct {
	Drafts   domainlistings.DraftRepository
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Gateway  policies.ListingsGateway
	Location *time.Location
	Clock    func() time.Time
	NewID    func() string
	Logger   *slog.Logger
}

func (h *Handlers) StartDraft(ctx context.Context, cmd StartDraftCommand) (*dto.Draft, error) {
	kind, err := domainlistings.ParseVehicleKind(cmd.Kind)
	if err != nil {
		return nil, err
	}
	now := h.now()
	draft, err := domainlistings.NewDraft(domainlistings.NewDraftParams{
		ID:      domainlistings.DraftID(h.newID()),
		OwnerID: cmd.OwnerID,
		Kind:    kind,
		Now:     now,
	})
	if err != nil {
		return nil, err
	}
	if err := h.Drafts.Create(ctx, draft); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, draft.PullEvents()); err != nil {
		return nil, err
	}
	h.log().InfoContext(ctx, "draft started", "draft_id", draft.ID, "owner_id", draft.OwnerID, "kind", draft.Kind)
	out := dto.MapDraft(draft, now)
	return &out, nil
}

func (h *Handlers) UpdateDetails(ctx context.Context, cmd UpdateDetailsCommand) (*dto.Draft, error) {
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, now time.Time) error {
		return d.UpdateDetails(cmd.Details, now)
	})
}

// TapDate feeds one calendar tap into the range selector. Taps on past days
// return the draft as it was.
func (h *Handlers) TapDate(ctx context.Context, cmd TapDateCommand) (*dto.Draft, error) {
	day, err := daterange.ParseDay(cmd.Date)
	if err != nil {
		return nil, err
	}
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, now time.Time) error {
		today := h.today(now)
		if day.Before(today) {
			return errUnchanged
		}
		_, err := d.Availability.Tap(day, today, now)
		return err
	})
}

func (h *Handlers) AddWindow(ctx context.Context, cmd AddWindowCommand) (*dto.Draft, error) {
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, _ time.Time) error {
		return d.Availability.AddWindow()
	})
}

func (h *Handlers) RemoveWindow(ctx context.Context, cmd RemoveWindowCommand) (*dto.Draft, error) {
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, _ time.Time) error {
		return d.Availability.RemoveWindow(cmd.Index)
	})
}

func (h *Handlers) UpdateWindow(ctx context.Context, cmd UpdateWindowCommand) (*dto.Draft, error) {
	start, err := availability.ParseClock(cmd.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := availability.ParseClock(cmd.EndTime)
	if err != nil {
		return nil, err
	}
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, _ time.Time) error {
		return d.Availability.UpdateWindow(cmd.Index, availability.TimeWindow{Start: start, End: end})
	})
}

func (h *Handlers) SetAllDay(ctx context.Context, cmd SetAllDayCommand) (*dto.Draft, error) {
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, _ time.Time) error {
		if d.Availability.AllDay() == cmd.AllDay {
			return errUnchanged
		}
		d.Availability.SetAllDay(cmd.AllDay)
		return nil
	})
}

func (h *Handlers) ResetDates(ctx context.Context, cmd ResetDatesCommand) (*dto.Draft, error) {
	return h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, now time.Time) error {
		d.Availability.Reset(now)
		return nil
	})
}

// SubmitDraft validates the draft, posts it to the listings backend and closes it.
// When the backend is unreachable the draft stays open and the call can be repeated.
func (h *Handlers) SubmitDraft(ctx context.Context, cmd SubmitDraftCommand) (*SubmitDraftResult, error) {
	if h.Gateway == nil {
		return nil, policies.ErrBackendUnavailable
	}
	current, err := h.Drafts.ByID(ctx, cmd.DraftID)
	if err != nil {
		return nil, err
	}
	submission, err := current.Prepare(h.now())
	if err != nil {
		return nil, err
	}
	receipt, err := h.Gateway.SubmitListing(ctx, submission)
	if err != nil {
		h.log().WarnContext(ctx, "draft submission failed", "draft_id", cmd.DraftID, "error", err)
		return nil, err
	}

	draft, err := h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, now time.Time) error {
		return d.MarkSubmitted(receipt.ListingID, now)
	})
	if errors.Is(err, domainlistings.ErrDraftClosed) {
		// A concurrent submit already closed the draft; the backend dedupes on draft id,
		// so the same listing id means both calls describe one submission.
		latest, loadErr := h.Drafts.ByID(ctx, cmd.DraftID)
		if loadErr != nil || latest.RemoteListingID != receipt.ListingID {
			return nil, err
		}
		mapped := dto.MapDraft(latest, h.now())
		draft, err = &mapped, nil
	}
	if err != nil {
		return nil, err
	}
	h.log().InfoContext(ctx, "draft submitted", "draft_id", cmd.DraftID, "listing_id", receipt.ListingID, "slots", len(submission.Availability))
	return &SubmitDraftResult{Draft: *draft, ListingID: receipt.ListingID, Status: receipt.Status}, nil
}

func (h *Handlers) AbandonDraft(ctx context.Context, cmd AbandonDraftCommand) (*dto.Draft, error) {
	out, err := h.mutate(ctx, cmd.DraftID, func(d *domainlistings.Draft, now time.Time) error {
		return d.Abandon(now)
	})
	if err == nil {
		h.log().InfoContext(ctx, "draft abandoned", "draft_id", cmd.DraftID)
	}
	return out, err
}

func (h *Handlers) GetDraft(ctx context.Context, q GetDraftQuery) (*dto.Draft, error) {
	d, err := h.Drafts.ByID(ctx, q.DraftID)
	if err != nil {
		return nil, err
	}
	out := dto.MapDraft(d, h.now())
	return &out, nil
}

// mutate runs fn as one read-modify-write on the draft and forwards the events it raised.
func (h *Handlers) mutate(ctx context.Context, id domainlistings.DraftID, fn func(d *domainlistings.Draft, now time.Time) error) (*dto.Draft, error) {
	now := h.now()
	d, err := h.Drafts.Update(ctx, id, func(d *domainlistings.Draft) error {
		if err := d.Editable(); err != nil {
			return err
		}
		if err := fn(d, now); err != nil {
			return err
		}
		d.Touch(now)
		return nil
	})
	if errors.Is(err, errUnchanged) {
		d, err = h.Drafts.ByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, d.PullEvents()); err != nil {
		return nil, err
	}
	out := dto.MapDraft(d, now)
	return &out, nil
}

func (h *Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// today is the calendar date at the service's configured location.
func (h *Handlers) today(now time.Time) daterange.Day {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	return daterange.DayOf(now.In(loc))
}

func (h *Handlers) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *Handlers) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
