package backendapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"motorent/internal/app/policies"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/infra/netclient"
)

const DefaultListingsPath = "/listings"

// ListingsGateway posts finished drafts to the remote listings API through the retrying client.
type ListingsGateway struct {
	Client *netclient.Client
	Path   string
	Logger *slog.Logger
}

func (g *ListingsGateway) SubmitListing(ctx context.Context, submission domainlistings.Submission) (policies.SubmissionReceipt, error) {
	var zero policies.SubmissionReceipt
	if g == nil || g.Client == nil {
		return zero, errors.New("backendapi: client not configured")
	}
	path := g.Path
	if path == "" {
		path = DefaultListingsPath
	}
	req, err := netclient.JSONRequest(http.MethodPost, path, submission)
	if err != nil {
		return zero, err
	}
	// The backend dedupes on this header, so a replayed submit never creates a second listing.
	req.Header.Set("Idempotency-Key", submission.DraftID)

	out := netclient.Fetch[policies.SubmissionReceipt](ctx, g.Client, req, nil)
	if out.Offline {
		g.logError("listing submission failed", submission.DraftID, out.Attempts, out.Err)
		if rejected(out.Err) {
			return zero, fmt.Errorf("%w: %v", policies.ErrSubmissionRejected, out.Err)
		}
		return zero, fmt.Errorf("%w: %v", policies.ErrBackendUnavailable, out.Err)
	}
	if out.Data.ListingID == "" {
		return zero, fmt.Errorf("%w: response carried no listing id", policies.ErrBackendUnavailable)
	}
	if g.Logger != nil {
		g.Logger.InfoContext(ctx, "listing submitted",
			"draft_id", submission.DraftID,
			"listing_id", out.Data.ListingID,
			"attempts", out.Attempts,
			"slots", len(submission.Availability),
		)
	}
	return *out.Data, nil
}

func (g *ListingsGateway) IsConnected(ctx context.Context) bool {
	if g == nil || g.Client == nil {
		return false
	}
	return g.Client.IsConnected(ctx)
}

func rejected(err error) bool {
	var httpErr *netclient.HTTPError
	return errors.As(err, &httpErr) && httpErr.ClientError()
}

func (g *ListingsGateway) logError(msg, draftID string, attempts int, err error) {
	if g.Logger == nil {
		return
	}
	g.Logger.Error(msg, "draft_id", draftID, "attempts", attempts, "error", err)
}

var (
	_ policies.ListingsGateway = (*ListingsGateway)(nil)
	_ policies.Connectivity    = (*ListingsGateway)(nil)
)
