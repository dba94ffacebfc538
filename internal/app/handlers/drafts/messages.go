package drafts

import (
	"motorent/internal/app/dto"
	domainlistings "motorent/internal/domain/listings"
)

const (
	startDraftKey    = "drafts.start"
	updateDetailsKey = "drafts.details.update"
	tapDateKey       = "drafts.availability.tap"
	addWindowKey     = "drafts.availability.window.add"
	removeWindowKey  = "drafts.availability.window.remove"
	updateWindowKey  = "drafts.availability.window.update"
	setAllDayKey     = "drafts.availability.all_day"
	resetDatesKey    = "drafts.availability.reset"
	submitDraftKey   = "drafts.submit"
	abandonDraftKey  = "drafts.abandon"
	getDraftKey      = "drafts.get"
)

// DraftScoped is implemented by messages addressed to an existing draft.
type DraftScoped interface {
	TargetDraft() domainlistings.DraftID
}

type StartDraftCommand struct {
	OwnerID string
	Kind    string
}

func (StartDraftCommand) Key() string { return startDraftKey }

type UpdateDetailsCommand struct {
	DraftID domainlistings.DraftID
	Details domainlistings.Details
}

func (UpdateDetailsCommand) Key() string                           { return updateDetailsKey }
func (c UpdateDetailsCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

// TapDateCommand carries the raw date string so parsing errors surface as invalid input.
type TapDateCommand struct {
	DraftID domainlistings.DraftID
	Date    string
}

func (TapDateCommand) Key() string                           { return tapDateKey }
func (c TapDateCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

type AddWindowCommand struct {
	DraftID domainlistings.DraftID
}

func (AddWindowCommand) Key() string                           { return addWindowKey }
func (c AddWindowCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

type RemoveWindowCommand struct {
	DraftID domainlistings.DraftID
	Index   int
}

func (RemoveWindowCommand) Key() string                           { return removeWindowKey }
func (c RemoveWindowCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

type UpdateWindowCommand struct {
	DraftID   domainlistings.DraftID
	Index     int
	StartTime string
	EndTime   string
}

func (UpdateWindowCommand) Key() string                           { return updateWindowKey }
func (c UpdateWindowCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

type SetAllDayCommand struct {
	DraftID domainlistings.DraftID
	AllDay  bool
}

func (SetAllDayCommand) Key() string                           { return setAllDayKey }
func (c SetAllDayCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

type ResetDatesCommand struct {
	DraftID domainlistings.DraftID
}

func (ResetDatesCommand) Key() string                           { return resetDatesKey }
func (c ResetDatesCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

// SubmitDraftCommand is replay-safe when ClientKey carries the caller's Idempotency-Key.
type SubmitDraftCommand struct {
	DraftID   domainlistings.DraftID
	ClientKey string
}

func (SubmitDraftCommand) Key() string                           { return submitDraftKey }
func (c SubmitDraftCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }
func (c SubmitDraftCommand) IdempotencyKey() string              { return c.ClientKey }
func (SubmitDraftCommand) ResultPrototype() any                  { return &SubmitDraftResult{} }

type SubmitDraftResult struct {
	Draft     dto.Draft `json:"draft"`
	ListingID string    `json:"listing_id"`
	Status    string    `json:"status"`
}

type AbandonDraftCommand struct {
	DraftID domainlistings.DraftID
}

func (AbandonDraftCommand) Key() string                           { return abandonDraftKey }
func (c AbandonDraftCommand) TargetDraft() domainlistings.DraftID { return c.DraftID }

type GetDraftQuery struct {
	DraftID domainlistings.DraftID
}

func (GetDraftQuery) Key() string                           { return getDraftKey }
func (q GetDraftQuery) TargetDraft() domainlistings.DraftID { return q.DraftID }
