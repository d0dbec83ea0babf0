package categories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmarjanovic/gopress/internal/telemetry/tracing"
)

var _ categoriesRepo = (*Repo)(nil)

type Repo struct {
	categories *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{
		categories: db.Collection("categories"),
	}
}

func (r *Repo) All(ctx context.Context) ([]Category, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "categoriesRepo.All")
	defer span.End()

	cursor, err := r.categories.Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}

	var all []Category
	if err := cursor.All(ctx, &all); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if all == nil {
		all = []Category{}
	}
	return all, nil
}

// Add inserts a category with a unique name; names are matched exactly
func (r *Repo) Add(ctx context.Context, name string) (*Category, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "categoriesRepo.Add")
	defer span.End()

	err := r.categories.FindOne(ctx, bson.M{"name": name}).Err()
	if err == nil {
		return nil, ErrCategoryExists
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	category := &Category{
		ID:   primitive.NewObjectID(),
		Name: name,
	}
	if _, err := r.categories.InsertOne(ctx, category); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return category, nil
}
