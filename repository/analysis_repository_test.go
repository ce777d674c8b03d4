package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/museslab/euterpe/domain"
	"github.com/museslab/euterpe/mongo"
)

type fakeSingleResult struct {
	err    error
	record *domain.AnalysisRecord
}

func (r *fakeSingleResult) Decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(v.(*domain.AnalysisRecord)) = *r.record
	return nil
}

type fakeCursor struct {
	records []*domain.AnalysisRecord
	pos     int
	iterErr error // reported by Err after the records run out
}

func (c *fakeCursor) Close(context.Context) error { return nil }

func (c *fakeCursor) Next(context.Context) bool {
	return c.pos < len(c.records)
}

func (c *fakeCursor) Decode(v interface{}) error {
	*(v.(*domain.AnalysisRecord)) = *c.records[c.pos]
	c.pos++
	return nil
}

func (c *fakeCursor) Err() error { return c.iterErr }

func (c *fakeCursor) All(context.Context, interface{}) error { return nil }

type fakeIndexView struct{ created int }

func (iv *fakeIndexView) CreateOne(context.Context, driver.IndexModel) (string, error) {
	iv.created++
	return "idx", nil
}

type fakeCollection struct {
	insertErr    error
	inserted     []interface{}
	findOne      *fakeSingleResult
	cursor       *fakeCursor
	findErr      error
	count        int64
	deletedCount int64
	deleteErr    error
	indexView    *fakeIndexView
}

func (c *fakeCollection) FindOne(context.Context, interface{}) mongo.SingleResult {
	return c.findOne
}

func (c *fakeCollection) InsertOne(_ context.Context, document interface{}) (interface{}, error) {
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	c.inserted = append(c.inserted, document)
	return nil, nil
}

func (c *fakeCollection) DeleteOne(context.Context, interface{}) (int64, error) {
	return c.deletedCount, c.deleteErr
}

func (c *fakeCollection) Find(context.Context, interface{}, ...*options.FindOptions) (mongo.Cursor, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	return c.cursor, nil
}

func (c *fakeCollection) CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error) {
	return c.count, nil
}

func (c *fakeCollection) Indexes() mongo.IndexView { return c.indexView }

type fakeDatabase struct{ coll *fakeCollection }

func (d *fakeDatabase) Collection(string) mongo.Collection { return d.coll }
func (d *fakeDatabase) Client() mongo.Client               { return nil }

func TestCreateAssignsIdentityAndTimestamp(t *testing.T) {
	coll := &fakeCollection{}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	record := &domain.AnalysisRecord{Filename: "song.mp3"}
	id, err := repo.Create(context.Background(), record)
	require.NoError(t, err)

	assert.False(t, id.IsZero())
	assert.Equal(t, id, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Len(t, coll.inserted, 1)
}

func TestCreateNilRecordFails(t *testing.T) {
	repo := NewAnalysisRepository(&fakeDatabase{coll: &fakeCollection{}}, domain.CollectionAnalysis)
	_, err := repo.Create(context.Background(), nil)
	assert.Error(t, err)
}

func TestCreateWrapsStorageFault(t *testing.T) {
	coll := &fakeCollection{insertErr: errors.New("socket closed")}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	_, err := repo.Create(context.Background(), &domain.AnalysisRecord{Filename: "song.mp3"})
	require.Error(t, err)

	var pe *domain.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestGetByIDMapsMissToNotFound(t *testing.T) {
	coll := &fakeCollection{findOne: &fakeSingleResult{err: driver.ErrNoDocuments}}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByIDReturnsRecord(t *testing.T) {
	want := &domain.AnalysisRecord{ID: primitive.NewObjectID(), Filename: "song.mp3"}
	coll := &fakeCollection{findOne: &fakeSingleResult{record: want}}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "song.mp3", got.Filename)
}

func TestListValidatesPagination(t *testing.T) {
	repo := NewAnalysisRepository(&fakeDatabase{coll: &fakeCollection{}}, domain.CollectionAnalysis)

	_, _, err := repo.List(context.Background(), domain.ListQuery{Skip: -1, Limit: 10})
	assert.Error(t, err)

	_, _, err = repo.List(context.Background(), domain.ListQuery{Skip: 0, Limit: 0})
	assert.Error(t, err)
}

func TestListReturnsRecordsAndTotal(t *testing.T) {
	records := []*domain.AnalysisRecord{
		{ID: primitive.NewObjectID(), Filename: "a.mp3"},
		{ID: primitive.NewObjectID(), Filename: "b.mp3"},
	}
	coll := &fakeCollection{cursor: &fakeCursor{records: records}, count: 42}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	got, total, err := repo.List(context.Background(), domain.ListQuery{Skip: 0, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(42), total)
}

func TestListSurfacesCursorFault(t *testing.T) {
	records := []*domain.AnalysisRecord{
		{ID: primitive.NewObjectID(), Filename: "a.mp3"},
	}
	cursor := &fakeCursor{records: records, iterErr: errors.New("connection reset")}
	coll := &fakeCollection{cursor: cursor, count: 42}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	got, _, err := repo.List(context.Background(), domain.ListQuery{Skip: 0, Limit: 10})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
	assert.Nil(t, got)
}

func TestDeleteMissingRecordReportsNotFound(t *testing.T) {
	coll := &fakeCollection{deletedCount: 0}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	err := repo.Delete(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRemovesRecord(t *testing.T) {
	coll := &fakeCollection{deletedCount: 1}
	repo := NewAnalysisRepository(&fakeDatabase{coll: coll}, domain.CollectionAnalysis)

	assert.NoError(t, repo.Delete(context.Background(), primitive.NewObjectID()))
}

func TestEnsureIndexesCreatesBoth(t *testing.T) {
	iv := &fakeIndexView{}
	coll := &fakeCollection{indexView: iv}

	require.NoError(t, EnsureIndexes(context.Background(), &fakeDatabase{coll: coll}, domain.CollectionAnalysis))
	assert.Equal(t, 2, iv.created)
}
