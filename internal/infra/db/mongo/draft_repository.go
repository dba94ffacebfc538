package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"motorent/internal/app/uow"
	"motorent/internal/domain/availability"
	domainlistings "motorent/internal/domain/listings"
)

const defaultUpdateRetries = 3

// DraftRepository stores drafts in "agg_listing_draft" guarded by an optimistic version.
type DraftRepository struct {
	col     *mongo.Collection
	Retries int
}

func NewDraftRepository(ctx context.Context, db *mongo.Database) (*DraftRepository, error) {
	col := db.Collection("agg_listing_draft")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &DraftRepository{col: col, Retries: defaultUpdateRetries}, nil
}

func (r *DraftRepository) Create(ctx context.Context, d *domainlistings.Draft) error {
	doc := newDraftDocument(d)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainlistings.ErrDraftExists
		}
		return err
	}
	d.Version = 1
	return nil
}

func (r *DraftRepository) ByID(ctx context.Context, id domainlistings.DraftID) (*domainlistings.Draft, error) {
	var doc draftDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrDraftNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

// Update reloads and reapplies fn when another writer bumped the version in between.
// Inside a unit of work the snapshot cannot move, so a lost race is returned at once
// and the unit itself is rerun.
func (r *DraftRepository) Update(ctx context.Context, id domainlistings.DraftID, fn func(*domainlistings.Draft) error) (*domainlistings.Draft, error) {
	retries := r.Retries
	if _, inUnit := uow.FromContext(ctx); inUnit || retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		d, err := r.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(d); err != nil {
			return nil, err
		}
		err = r.save(ctx, d)
		if errors.Is(err, domainlistings.ErrConcurrentUpdate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, domainlistings.ErrConcurrentUpdate
}

func (r *DraftRepository) save(ctx context.Context, d *domainlistings.Draft) error {
	doc := newDraftDocument(d)
	filter := bson.M{"_id": doc.ID, "version": d.Version}
	doc.Version = d.Version + 1
	res, err := r.col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainlistings.ErrConcurrentUpdate
	}
	d.Version = doc.Version
	return nil
}

type draftDocument struct {
	ID              string                 `bson:"_id"`
	OwnerID         string                 `bson:"owner_id"`
	Kind            string                 `bson:"kind"`
	Details         domainlistings.Details `bson:"details"`
	Availability    availabilityDocument   `bson:"availability"`
	Status          string                 `bson:"status"`
	RemoteListingID string                 `bson:"remote_listing_id,omitempty"`
	CreatedAt       int64                  `bson:"created_at"`
	UpdatedAt       int64                  `bson:"updated_at"`
	SubmittedAt     int64                  `bson:"submitted_at,omitempty"`
	Version         int64                  `bson:"version"`
}

type availabilityDocument struct {
	Dates   []string         `bson:"dates"`
	Anchor  string           `bson:"anchor,omitempty"`
	Windows []windowDocument `bson:"windows"`
	AllDay  bool             `bson:"all_day"`
}

type windowDocument struct {
	Start string `bson:"start"`
	End   string `bson:"end"`
}

func newDraftDocument(d *domainlistings.Draft) draftDocument {
	doc := draftDocument{
		ID:              string(d.ID),
		OwnerID:         d.OwnerID,
		Kind:            string(d.Kind),
		Details:         d.Details,
		Status:          string(d.Status),
		RemoteListingID: d.RemoteListingID,
		CreatedAt:       d.CreatedAt.UnixMilli(),
		UpdatedAt:       d.UpdatedAt.UnixMilli(),
		Version:         d.Version,
	}
	if !d.SubmittedAt.IsZero() {
		doc.SubmittedAt = d.SubmittedAt.UnixMilli()
	}
	if d.Availability != nil {
		snap := d.Availability.Snapshot()
		doc.Availability = availabilityDocument{Dates: snap.Dates, Anchor: snap.Anchor, AllDay: snap.AllDay}
		for _, w := range snap.Windows {
			doc.Availability.Windows = append(doc.Availability.Windows, windowDocument{Start: w.Start.String(), End: w.End.String()})
		}
	}
	return doc
}

func (d draftDocument) toAggregate() (*domainlistings.Draft, error) {
	snap := availability.Snapshot{Dates: d.Availability.Dates, Anchor: d.Availability.Anchor, AllDay: d.Availability.AllDay}
	for i, w := range d.Availability.Windows {
		start, err := availability.ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("mongo: draft %s window %d: %w", d.ID, i, err)
		}
		end, err := availability.ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("mongo: draft %s window %d: %w", d.ID, i, err)
		}
		snap.Windows = append(snap.Windows, availability.TimeWindow{Start: start, End: end})
	}
	sel, err := availability.Restore(d.ID, snap)
	if err != nil {
		return nil, fmt.Errorf("mongo: draft %s: %w", d.ID, err)
	}
	agg := &domainlistings.Draft{
		ID:              domainlistings.DraftID(d.ID),
		OwnerID:         d.OwnerID,
		Kind:            domainlistings.VehicleKind(d.Kind),
		Details:         d.Details,
		Availability:    sel,
		Status:          domainlistings.DraftStatus(d.Status),
		RemoteListingID: d.RemoteListingID,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		Version:         d.Version,
	}
	if d.SubmittedAt != 0 {
		agg.SubmittedAt = timestampToTime(d.SubmittedAt)
	}
	return agg, nil
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainlistings.DraftRepository = (*DraftRepository)(nil)
