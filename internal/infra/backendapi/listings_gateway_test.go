package backendapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorent/internal/app/policies"
	"motorent/internal/domain/availability"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/infra/netclient"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newGateway(t *testing.T, h http.HandlerFunc) (*ListingsGateway, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := netclient.New(netclient.Config{BaseURL: srv.URL + "/api"}, netclient.WithSleeper(noSleep))
	require.NoError(t, err)
	return &ListingsGateway{Client: client}, &hits
}

func sampleSubmission() domainlistings.Submission {
	return domainlistings.Submission{
		DraftID:     "draft-9",
		OwnerID:     "user-1",
		VehicleType: domainlistings.KindBike,
		Details:     domainlistings.Details{Title: "Scrambler", Brand: "Ducati", Model: "Icon", Year: 2022, EngineCC: 803},
		Availability: []availability.Slot{
			{StartDate: "2025-07-01", EndDate: "2025-07-01", StartTime: "09:00", EndTime: "18:00", IsAvailable: true},
		},
	}
}

func TestSubmitListingPostsPayload(t *testing.T) {
	gw, hits := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/listings", r.URL.Path)
		assert.Equal(t, "draft-9", r.Header.Get("Idempotency-Key"))
		var got domainlistings.Submission
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, domainlistings.KindBike, got.VehicleType)
		require.Len(t, got.Availability, 1)
		assert.Equal(t, "09:00", got.Availability[0].StartTime)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"listing_id":"lst-42","status":"pending_review"}`))
	})

	receipt, err := gw.SubmitListing(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, policies.SubmissionReceipt{ListingID: "lst-42", Status: "pending_review"}, receipt)
	assert.EqualValues(t, 1, hits.Load())
}

func TestSubmitListingRejectedIsNotRetried(t *testing.T) {
	gw, hits := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"engine_cc required"}`))
	})

	_, err := gw.SubmitListing(context.Background(), sampleSubmission())
	assert.ErrorIs(t, err, policies.ErrSubmissionRejected)
	assert.NotErrorIs(t, err, policies.ErrBackendUnavailable)
	assert.EqualValues(t, 1, hits.Load())
}

func TestSubmitListingUnavailableAfterRetries(t *testing.T) {
	gw, hits := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := gw.SubmitListing(context.Background(), sampleSubmission())
	assert.ErrorIs(t, err, policies.ErrBackendUnavailable)
	assert.EqualValues(t, netclient.DefaultMaxAttempts, hits.Load())
}

func TestSubmitListingWithoutListingID(t *testing.T) {
	gw, _ := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	})

	_, err := gw.SubmitListing(context.Background(), sampleSubmission())
	assert.ErrorIs(t, err, policies.ErrBackendUnavailable)
}

func TestGatewayConnectivity(t *testing.T) {
	gw, _ := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.True(t, gw.IsConnected(context.Background()))

	var missing *ListingsGateway
	assert.False(t, missing.IsConnected(context.Background()))
}
