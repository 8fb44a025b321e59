package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbapi/internal/model"
	repomocks "kbapi/internal/repository/mocks"
)

func TestRatingService_Submit(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()
	rater := model.Principal{ID: "rater", Group: "eng"}

	t.Run("rejects out of range value", func(t *testing.T) {
		svc := NewRatingService(new(repomocks.MockRatingRepository), new(repomocks.MockDocumentRepository))

		_, err := svc.Submit(ctx, rater, id, 6)

		ve, ok := model.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "value", ve.Field)
	})

	t.Run("missing document", func(t *testing.T) {
		ratings := new(repomocks.MockRatingRepository)
		docs := new(repomocks.MockDocumentRepository)
		svc := NewRatingService(ratings, docs)
		docs.On("FindByID", ctx, id).Return(nil, sql.ErrNoRows)

		_, err := svc.Submit(ctx, rater, id, 4)

		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("invisible document is forbidden", func(t *testing.T) {
		ratings := new(repomocks.MockRatingRepository)
		docs := new(repomocks.MockDocumentRepository)
		svc := NewRatingService(ratings, docs)
		docs.On("FindByID", ctx, id).Return(&model.DocumentView{
			Document: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPrivate},
		}, nil)

		_, err := svc.Submit(ctx, rater, id, 4)

		assert.ErrorIs(t, err, model.ErrForbidden)
		ratings.AssertNotCalled(t, "Submit", ctx, id, "rater", 4)
	})

	t.Run("returns the refreshed aggregate", func(t *testing.T) {
		ratings := new(repomocks.MockRatingRepository)
		docs := new(repomocks.MockDocumentRepository)
		svc := NewRatingService(ratings, docs)

		docs.On("FindByID", ctx, id).Return(&model.DocumentView{
			Document: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPublic, RatingCount: 1, AverageRating: 4},
		}, nil).Once()
		ratings.On("Submit", ctx, id, "rater", 2).Return(true, nil)
		docs.On("FindByID", ctx, id).Return(&model.DocumentView{
			Document: model.Document{ID: id, RatingCount: 2, AverageRating: 3},
		}, nil).Once()

		res, err := svc.Submit(ctx, rater, id, 2)

		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, 2, res.RatingCount)
		assert.Equal(t, 3.0, res.AverageRating)
	})

	t.Run("store failure maps to unavailable", func(t *testing.T) {
		ratings := new(repomocks.MockRatingRepository)
		docs := new(repomocks.MockDocumentRepository)
		svc := NewRatingService(ratings, docs)

		docs.On("FindByID", ctx, id).Return(&model.DocumentView{
			Document: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPublic},
		}, nil)
		ratings.On("Submit", ctx, id, "rater", 4).Return(false, errors.New("tx aborted"))

		_, err := svc.Submit(ctx, rater, id, 4)

		assert.ErrorIs(t, err, model.ErrUnavailable)
	})
}

func TestRatingService_MyRating(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	t.Run("nil when never rated", func(t *testing.T) {
		ratings := new(repomocks.MockRatingRepository)
		docs := new(repomocks.MockDocumentRepository)
		svc := NewRatingService(ratings, docs)

		docs.On("FindByID", ctx, id).Return(&model.DocumentView{
			Document: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPublic},
		}, nil)
		ratings.On("FindByDocumentAndUser", ctx, id, "rater").Return(nil, sql.ErrNoRows)

		rating, err := svc.MyRating(ctx, model.Principal{ID: "rater"}, id)

		require.NoError(t, err)
		assert.Nil(t, rating)
	})

	t.Run("own history survives a visibility change", func(t *testing.T) {
		ratings := new(repomocks.MockRatingRepository)
		docs := new(repomocks.MockDocumentRepository)
		svc := NewRatingService(ratings, docs)

		// Document since turned private; the stored rating stays readable.
		docs.On("FindByID", ctx, id).Return(&model.DocumentView{
			Document: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPrivate},
		}, nil)
		ratings.On("FindByDocumentAndUser", ctx, id, "rater").
			Return(&model.Rating{DocumentID: id, UserID: "rater", Value: 5}, nil)

		rating, err := svc.MyRating(ctx, model.Principal{ID: "rater"}, id)

		require.NoError(t, err)
		assert.Equal(t, 5, rating.Value)
	})
}

func TestRatingService_Remove(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	ratings := new(repomocks.MockRatingRepository)
	docs := new(repomocks.MockDocumentRepository)
	svc := NewRatingService(ratings, docs)

	docs.On("FindByID", ctx, id).Return(&model.DocumentView{
		Document: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPublic},
	}, nil)
	ratings.On("Remove", ctx, id, "rater").Return(sql.ErrNoRows)

	err := svc.Remove(ctx, model.Principal{ID: "rater"}, id)

	assert.ErrorIs(t, err, model.ErrNotFound)
}

// ratingWorld is an in-memory rating store for one document. It mirrors the
// transactional store contract: every submit/remove moves the aggregate by a
// relative delta under one lock.
type ratingWorld struct {
	mu     sync.Mutex
	values map[string]int
	sum    int
	count  int
}

func newRatingWorld() *ratingWorld {
	return &ratingWorld{values: make(map[string]int)}
}

func (w *ratingWorld) FindByDocumentAndUser(_ context.Context, documentID, userID string) (*model.Rating, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.values[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &model.Rating{DocumentID: documentID, UserID: userID, Value: v}, nil
}

func (w *ratingWorld) Submit(_ context.Context, _, userID string, value int) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	old, exists := w.values[userID]
	w.values[userID] = value
	if exists {
		w.sum += value - old
		return false, nil
	}
	w.sum += value
	w.count++
	return true, nil
}

func (w *ratingWorld) Remove(_ context.Context, _, userID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	old, exists := w.values[userID]
	if !exists {
		return sql.ErrNoRows
	}
	delete(w.values, userID)
	w.sum -= old
	w.count--
	return nil
}

// worldDocs serves a single document whose aggregate reflects the rating
// world.
type worldDocs struct {
	repomocks.MockDocumentRepository
	world      *ratingWorld
	doc        model.Document
	ownerGroup string
}

func (d *worldDocs) FindByID(_ context.Context, _ string) (*model.DocumentView, error) {
	d.world.mu.Lock()
	defer d.world.mu.Unlock()
	doc := d.doc
	doc.RatingSum = d.world.sum
	doc.RatingCount = d.world.count
	if d.world.count > 0 {
		doc.AverageRating = float64(d.world.sum) / float64(d.world.count)
	}
	return &model.DocumentView{Document: doc, OwnerGroup: d.ownerGroup}, nil
}

func TestRatingService_ConcurrentSubmits(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	world := newRatingWorld()
	docs := &worldDocs{world: world, doc: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPublic}}
	svc := NewRatingService(world, docs)

	const raters = 50
	var wg sync.WaitGroup
	errs := make([]error, raters)
	for i := 0; i < raters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := model.Principal{ID: string(rune('A'+i%26)) + uuid.NewString()}
			_, errs[i] = svc.Submit(ctx, p, id, i%5+1)
		}(i)
	}
	wg.Wait()

	wantSum := 0
	for i := 0; i < raters; i++ {
		require.NoError(t, errs[i])
		wantSum += i%5 + 1
	}

	view, err := docs.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, raters, view.RatingCount)
	assert.Equal(t, wantSum, view.RatingSum)
	assert.InDelta(t, float64(wantSum)/float64(raters), view.AverageRating, 1e-9)
}

func TestRatingService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	world := newRatingWorld()
	docs := &worldDocs{world: world, doc: model.Document{ID: id, OwnerID: "owner", Visibility: model.VisibilityPublic}}
	svc := NewRatingService(world, docs)
	rater := model.Principal{ID: "rater"}

	res, err := svc.Submit(ctx, rater, id, 4)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.RatingCount)
	assert.Equal(t, 4.0, res.AverageRating)

	// Re-rating moves the average without growing the count.
	res, err = svc.Submit(ctx, rater, id, 2)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 1, res.RatingCount)
	assert.Equal(t, 2.0, res.AverageRating)

	// Idempotent resubmission changes nothing.
	res, err = svc.Submit(ctx, rater, id, 2)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 1, res.RatingCount)
	assert.Equal(t, 2.0, res.AverageRating)

	mine, err := svc.MyRating(ctx, rater, id)
	require.NoError(t, err)
	assert.Equal(t, 2, mine.Value)

	require.NoError(t, svc.Remove(ctx, rater, id))

	view, err := docs.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, view.RatingCount)
	assert.Zero(t, view.AverageRating)

	assert.ErrorIs(t, svc.Remove(ctx, rater, id), model.ErrNotFound)
}

// Group-visible document shared between two groups: a colleague can read
// and rate it, an outsider can do neither; the aggregate follows the
// colleague's submissions exactly.
func TestGroupDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	world := newRatingWorld()
	docs := &worldDocs{
		world:      world,
		doc:        model.Document{ID: id, OwnerID: "user-a", Visibility: model.VisibilityGroup},
		ownerGroup: "eng",
	}
	docSvc := NewDocumentService(nil, docs, nil)
	ratingSvc := NewRatingService(world, docs)

	userB := model.Principal{ID: "user-b", Group: "eng"}
	userC := model.Principal{ID: "user-c", Group: "sales"}

	_, err := docSvc.Get(ctx, userB, id)
	require.NoError(t, err)

	_, err = docSvc.Get(ctx, userC, id)
	assert.ErrorIs(t, err, model.ErrForbidden)

	res, err := ratingSvc.Submit(ctx, userB, id, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RatingCount)
	assert.Equal(t, 4.0, res.AverageRating)

	res, err = ratingSvc.Submit(ctx, userB, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RatingCount)
	assert.Equal(t, 2.0, res.AverageRating)

	_, err = ratingSvc.Submit(ctx, userC, id, 5)
	assert.ErrorIs(t, err, model.ErrForbidden)

	require.NoError(t, ratingSvc.Remove(ctx, userB, id))
	view, err := docs.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, view.RatingSum)
	assert.Zero(t, view.RatingCount)
	assert.Zero(t, view.AverageRating)
}
