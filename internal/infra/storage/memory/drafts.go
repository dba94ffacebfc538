package memory

import (
	"context"
	"sync"

	domainlistings "motorent/internal/domain/listings"
)

// DraftRepository keeps drafts in memory. Callers always receive copies, so a
// failed Update leaves the stored draft untouched.
type DraftRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.DraftID]*domainlistings.Draft
	locks map[domainlistings.DraftID]*sync.Mutex
}

func NewDraftRepository() *DraftRepository {
	return &DraftRepository{
		items: make(map[domainlistings.DraftID]*domainlistings.Draft),
		locks: make(map[domainlistings.DraftID]*sync.Mutex),
	}
}

func (r *DraftRepository) Create(ctx context.Context, draft *domainlistings.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[draft.ID]; ok {
		return domainlistings.ErrDraftExists
	}
	stored := draft.Clone()
	stored.Version = 1
	draft.Version = 1
	r.items[draft.ID] = stored
	r.locks[draft.ID] = &sync.Mutex{}
	return nil
}

func (r *DraftRepository) ByID(ctx context.Context, id domainlistings.DraftID) (*domainlistings.Draft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	draft, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrDraftNotFound
	}
	return draft.Clone(), nil
}

// Update serializes writers per draft. fn works on a copy that is stored only
// when fn succeeds; the returned draft still carries the events fn raised.
func (r *DraftRepository) Update(ctx context.Context, id domainlistings.DraftID, fn func(*domainlistings.Draft) error) (*domainlistings.Draft, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domainlistings.ErrDraftNotFound
	}
	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	current := r.items[id]
	r.mu.RUnlock()

	work := current.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.Version = current.Version + 1

	r.mu.Lock()
	r.items[id] = work.Clone()
	r.mu.Unlock()
	return work, nil
}

// Len reports how many drafts are stored.
func (r *DraftRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

var _ domainlistings.DraftRepository = (*DraftRepository)(nil)
