package posts

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dmarjanovic/gopress/internal/telemetry/tracing"
)

var _ postsRepo = (*Repo)(nil)

type Repo struct {
	posts      *mongo.Collection
	users      *mongo.Collection
	categories *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{
		posts:      db.Collection("posts"),
		users:      db.Collection("users"),
		categories: db.Collection("categories"),
	}
}

func (r *Repo) Add(ctx context.Context, post *Post) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Add")
	defer span.End()

	if _, err := r.posts.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Get")
	span.SetAttributes(attribute.String("id", id.Hex()))
	defer span.End()

	var post Post
	err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// List returns one page of the filtered set, newest first, and the total
// count of matches before pagination
func (r *Repo) List(ctx context.Context, params ListParams) ([]*Post, int64, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.List")
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))
	defer span.End()

	filter := bson.M{}
	if params.Search != "" {
		// substring match, not a caller-supplied regex
		pattern := regexp.QuoteMeta(params.Search)
		filter["$or"] = bson.A{
			bson.M{"title": primitive.Regex{Pattern: pattern, Options: "i"}},
			bson.M{"content": primitive.Regex{Pattern: pattern, Options: "i"}},
		}
	}
	if params.CategoryID != nil {
		filter["category"] = *params.CategoryID
	}

	total, err := r.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	skip := int64(params.Page-1) * int64(params.Size)
	findOptions := options.Find().
		// secondary _id sort keeps the order stable for equal timestamps
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(params.Size))

	cursor, err := r.posts.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("find posts: %w", err)
	}

	var page []*Post
	if err := cursor.All(ctx, &page); err != nil {
		return nil, 0, fmt.Errorf("decode posts: %w", err)
	}

	return page, total, nil
}

// Update applies only the set fields and returns the updated document
func (r *Repo) Update(ctx context.Context, id primitive.ObjectID, update Update) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Update")
	span.SetAttributes(attribute.String("id", id.Hex()))
	defer span.End()

	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Content != nil {
		set["content"] = *update.Content
	}
	if update.Slug != nil {
		set["slug"] = *update.Slug
	}
	if update.FeaturedImage != nil {
		set["featuredImage"] = *update.FeaturedImage
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}

	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	var post Post
	err := r.posts.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.Delete")
	span.SetAttributes(attribute.String("id", id.Hex()))
	defer span.End()

	err := r.posts.FindOneAndDelete(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrPostNotFound
	}
	return err
}

// AddComment appends to the end of the comments array and returns the
// updated post
func (r *Repo) AddComment(ctx context.Context, id primitive.ObjectID, comment Comment) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.AddComment")
	span.SetAttributes(attribute.String("id", id.Hex()))
	defer span.End()

	var post Post
	err := r.posts.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"comments": comment}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// AuthorSummaries resolves user references to their summary fields;
// missing users are simply absent from the result
func (r *Repo) AuthorSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]AuthorSummary, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.AuthorSummaries")
	defer span.End()

	summaries := make(map[primitive.ObjectID]AuthorSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	cursor, err := r.users.Find(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1, "email": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	var found []AuthorSummary
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	for _, summary := range found {
		summaries[summary.ID] = summary
	}
	return summaries, nil
}

func (r *Repo) CategorySummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]CategorySummary, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.CategorySummaries")
	defer span.End()

	summaries := make(map[primitive.ObjectID]CategorySummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	cursor, err := r.categories.Find(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}

	var found []CategorySummary
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	for _, summary := range found {
		summaries[summary.ID] = summary
	}
	return summaries, nil
}
