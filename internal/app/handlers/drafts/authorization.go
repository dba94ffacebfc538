package drafts

import (
	"context"
	"errors"

	"motorent/internal/app/middleware"
	domainlistings "motorent/internal/domain/listings"
)

var ErrForbidden = errors.New("drafts: draft belongs to another owner")

// OwnerAuthorizer admits a message only when the caller owns the draft it targets.
type OwnerAuthorizer struct {
	Drafts domainlistings.DraftRepository
}

func (a OwnerAuthorizer) Authorize(ctx context.Context, message any) error {
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		return middleware.ErrUnauthenticated
	}
	if start, ok := message.(StartDraftCommand); ok {
		if start.OwnerID != caller {
			return ErrForbidden
		}
		return nil
	}
	scoped, ok := message.(DraftScoped)
	if !ok {
		return nil
	}
	d, err := a.Drafts.ByID(ctx, scoped.TargetDraft())
	if err != nil {
		return err
	}
	if d.OwnerID != caller {
		return ErrForbidden
	}
	return nil
}

var _ middleware.Authorizer = OwnerAuthorizer{}
