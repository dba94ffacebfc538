package policies

import (
	"context"
	"errors"

	domainlistings "motorent/internal/domain/listings"
)

var (
	// ErrBackendUnavailable means every attempt to reach the listings backend failed.
	ErrBackendUnavailable = errors.New("policies: listings backend unavailable")
	// ErrSubmissionRejected means the backend answered with a client error.
	ErrSubmissionRejected = errors.New("policies: listings backend rejected submission")
)

type SubmissionReceipt struct {
	ListingID string `json:"listing_id"`
	Status    string `json:"status"`
}

// ListingsGateway publishes completed drafts to the remote listings API.
type ListingsGateway interface {
	SubmitListing(ctx context.Context, submission domainlistings.Submission) (SubmissionReceipt, error)
}

// Connectivity reports whether the remote backend is reachable right now.
type Connectivity interface {
	IsConnected(ctx context.Context) bool
}
