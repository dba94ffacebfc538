package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"motorent/internal/app/uow"
	"motorent/internal/domain/availability"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/domain/shared/daterange"
)

func TestDraftDocumentKeepsSelectionState(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	d, err := domainlistings.NewDraft(domainlistings.NewDraftParams{ID: "d1", OwnerID: "u1", Kind: domainlistings.KindBike, Now: now})
	require.NoError(t, err)
	today := daterange.DayOf(now)
	d.Availability.Tap(daterange.MustDay("2025-06-03"), today, now)
	d.Availability.Tap(daterange.MustDay("2025-06-05"), today, now)
	d.Availability.Tap(daterange.MustDay("2025-06-20"), today, now)
	require.NoError(t, d.Availability.AddWindow())
	require.NoError(t, d.Availability.UpdateWindow(1, availability.TimeWindow{Start: availability.MustClock("19:00"), End: availability.MustClock("21:30")}))
	d.Details.EngineCC = 650
	d.Version = 4

	raw, err := bson.Marshal(newDraftDocument(d))
	require.NoError(t, err)
	var doc draftDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got, err := doc.toAggregate()
	require.NoError(t, err)

	assert.Equal(t, d.Availability.Dates(), got.Availability.Dates())
	assert.Equal(t, availability.AnchorSet{Anchor: daterange.MustDay("2025-06-20")}, got.Availability.State())
	assert.Equal(t, d.Availability.Windows(), got.Availability.Windows())
	assert.Equal(t, d.Availability.Slots(), got.Availability.Slots())
	assert.Equal(t, 650, got.Details.EngineCC)
	assert.EqualValues(t, 4, got.Version)
	assert.Equal(t, now, got.CreatedAt)
	assert.True(t, got.SubmittedAt.IsZero())
}

func TestDraftDocumentAllDay(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	d, err := domainlistings.NewDraft(domainlistings.NewDraftParams{ID: "d2", OwnerID: "u1", Kind: domainlistings.KindCar, Now: now})
	require.NoError(t, err)
	d.Availability.SetAllDay(true)

	got, err := newDraftDocument(d).toAggregate()
	require.NoError(t, err)
	assert.True(t, got.Availability.AllDay())
	assert.Equal(t, []availability.TimeWindow{availability.AllDayWindow}, got.Availability.ActiveWindows())
}

func TestDraftDocumentRejectsCorruptWindow(t *testing.T) {
	doc := draftDocument{ID: "d3", Availability: availabilityDocument{Windows: []windowDocument{{Start: "25:00", End: "26:00"}}}}
	_, err := doc.toAggregate()
	assert.ErrorIs(t, err, availability.ErrInvalidClock)
}

func storedDraft(t *testing.T, version int64) bson.D {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	d, err := domainlistings.NewDraft(domainlistings.NewDraftParams{ID: "d1", OwnerID: "u1", Kind: domainlistings.KindCar, Now: now})
	require.NoError(t, err)
	d.Version = version
	raw, err := bson.Marshal(newDraftDocument(d))
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func findReply(mt *mtest.T, doc bson.D) bson.D {
	ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, doc)
}

func replaceReply(matched int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: matched}, bson.E{Key: "nModified", Value: matched})
}

// versionFilters lists the version each replace was conditioned on.
func versionFilters(mt *mtest.T) []int64 {
	var out []int64
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName != "update" {
			continue
		}
		q := evt.Command.Lookup("updates").Array().Index(0).Value().Document().Lookup("q")
		out = append(out, q.Document().Lookup("version").AsInt64())
	}
	return out
}

func TestDraftRepositoryUpdateReappliesAfterLostRace(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("second attempt wins", func(mt *mtest.T) {
		repo := &DraftRepository{col: mt.Coll, Retries: defaultUpdateRetries}
		mt.AddMockResponses(
			findReply(mt, storedDraft(t, 4)),
			replaceReply(0),
			findReply(mt, storedDraft(t, 5)),
			replaceReply(1),
		)

		applied := 0
		d, err := repo.Update(context.Background(), "d1", func(d *domainlistings.Draft) error {
			applied++
			d.Details.Title = "Compact"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, applied)
		assert.EqualValues(t, 6, d.Version)
		assert.Equal(t, "Compact", d.Details.Title)
		assert.Equal(t, []int64{4, 5}, versionFilters(mt))
	})

	mt.Run("three lost races", func(mt *mtest.T) {
		repo := &DraftRepository{col: mt.Coll, Retries: defaultUpdateRetries}
		for v := int64(1); v <= 3; v++ {
			mt.AddMockResponses(findReply(mt, storedDraft(t, v)), replaceReply(0))
		}

		applied := 0
		_, err := repo.Update(context.Background(), "d1", func(*domainlistings.Draft) error {
			applied++
			return nil
		})
		assert.ErrorIs(t, err, domainlistings.ErrConcurrentUpdate)
		assert.Equal(t, 3, applied)
		assert.Equal(t, []int64{1, 2, 3}, versionFilters(mt))
	})

	mt.Run("inside a unit of work", func(mt *mtest.T) {
		repo := &DraftRepository{col: mt.Coll, Retries: defaultUpdateRetries}
		mt.AddMockResponses(findReply(mt, storedDraft(t, 2)), replaceReply(0))

		ctx := uow.ContextWithUnitOfWork(context.Background(), &Unit{})
		applied := 0
		_, err := repo.Update(ctx, "d1", func(*domainlistings.Draft) error {
			applied++
			return nil
		})
		assert.ErrorIs(t, err, domainlistings.ErrConcurrentUpdate)
		assert.Equal(t, 1, applied, "the unit reruns the whole command instead")
		assert.True(t, Factory{}.Retryable(err))
	})

	mt.Run("missing draft", func(mt *mtest.T) {
		repo := &DraftRepository{col: mt.Coll, Retries: defaultUpdateRetries}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.Update(context.Background(), "gone", func(*domainlistings.Draft) error { return nil })
		assert.ErrorIs(t, err, domainlistings.ErrDraftNotFound)
	})
}
