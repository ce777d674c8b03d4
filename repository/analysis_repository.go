package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/museslab/euterpe/domain"
	"github.com/museslab/euterpe/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type analysisRepository struct {
	database   mongo.Database
	collection string
}

func NewAnalysisRepository(db mongo.Database, collection string) domain.AnalysisRepository {
	return &analysisRepository{
		database:   db,
		collection: collection,
	}
}

// Create writes the record exactly once. Identity and creation timestamp are
// assigned here when the caller has not set them; both are immutable after.
func (r *analysisRepository) Create(ctx context.Context, record *domain.AnalysisRecord) (primitive.ObjectID, error) {
	if record == nil {
		return primitive.NilObjectID, errors.New("record cannot be nil")
	}

	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	coll := r.database.Collection(r.collection)
	if _, err := coll.InsertOne(ctx, record); err != nil {
		return primitive.NilObjectID, &domain.PersistenceError{Err: err}
	}

	return record.ID, nil
}

func (r *analysisRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AnalysisRecord, error) {
	coll := r.database.Collection(r.collection)

	var record domain.AnalysisRecord
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return &record, nil
}

// List pages through records. Total is the unfiltered collection count,
// independent of the pagination window.
func (r *analysisRepository) List(ctx context.Context, query domain.ListQuery) ([]*domain.AnalysisRecord, int64, error) {
	if query.Skip < 0 {
		return nil, 0, errors.New("skip must be >= 0")
	}
	if query.Limit <= 0 {
		return nil, 0, errors.New("limit must be > 0")
	}

	sort := bson.D{{Key: "created_at", Value: -1}}
	if query.SortBy == "filename" {
		sort = bson.D{{Key: "filename", Value: 1}}
	}

	coll := r.database.Collection(r.collection)
	opts := options.Find().SetSort(sort).SetSkip(query.Skip).SetLimit(query.Limit)

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*domain.AnalysisRecord, 0, query.Limit)
	for cursor.Next(ctx) {
		var record domain.AnalysisRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, 0, fmt.Errorf("failed to decode analysis: %w", err)
		}
		records = append(records, &record)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	return records, total, nil
}

// Delete removes the record. Deleting an already-absent id reports
// ErrNotFound rather than succeeding silently.
func (r *analysisRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	coll := r.database.Collection(r.collection)

	deleted, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// EnsureIndexes creates the recency and filename indexes the list queries
// sort on. Called once at startup.
func EnsureIndexes(ctx context.Context, db mongo.Database, collection string) error {
	indexes := db.Collection(collection).Indexes()

	models := []driver.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "filename", Value: 1}}},
	}

	for _, model := range models {
		if _, err := indexes.CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
