package posts

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmarjanovic/gopress/internal/telemetry/tracing"
)

type postsRepo interface {
	Add(ctx context.Context, post *Post) error
	Get(ctx context.Context, id primitive.ObjectID) (*Post, error)
	List(ctx context.Context, params ListParams) ([]*Post, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update Update) (*Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddComment(ctx context.Context, id primitive.ObjectID, comment Comment) (*Post, error)
	AuthorSummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]AuthorSummary, error)
	CategorySummaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]CategorySummary, error)
}

type Service struct {
	repo postsRepo
	// ability to inject time func (for unit and dev testing)
	NowFunc func() time.Time
}

func NewService(repo postsRepo) *Service {
	return &Service{
		repo:    repo,
		NowFunc: time.Now,
	}
}

type CreateParams struct {
	Title         string
	Content       string
	Category      primitive.ObjectID
	ImageFilename string
	Author        primitive.ObjectID
}

type UpdateParams struct {
	Title         *string
	Content       *string
	Category      *primitive.ObjectID
	ImageFilename *string
}

// List runs the filtered, sorted, paginated query and expands the results.
// imageBaseURL is the absolute prefix for stored image filenames,
// e.g. "https://example.com/uploads".
func (s *Service) List(ctx context.Context, params ListParams, imageBaseURL string) (*ListResult, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsService.List")
	defer span.End()

	if params.Page < 1 {
		params.Page = DefaultPage
	}
	if params.Size < 1 {
		params.Size = DefaultSize
	}

	page, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	views, err := s.toViews(ctx, page, imageBaseURL)
	if err != nil {
		return nil, err
	}

	pages := (total + int64(params.Size) - 1) / int64(params.Size)
	if pages < 1 {
		pages = 1
	}

	return &ListResult{
		Posts: views,
		Total: total,
		Page:  params.Page,
		Pages: pages,
	}, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID, imageBaseURL string) (*View, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsService.Get")
	defer span.End()

	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, post, imageBaseURL)
}

func (s *Service) Create(ctx context.Context, params CreateParams, imageBaseURL string) (*View, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsService.Create")
	defer span.End()

	// the id is generated here so the slug suffix is known before insert
	id := primitive.NewObjectID()
	post := &Post{
		ID:            id,
		Title:         params.Title,
		Content:       params.Content,
		Slug:          SlugFor(params.Title, id),
		FeaturedImage: params.ImageFilename,
		Category:      params.Category,
		Author:        params.Author,
		Comments:      []Comment{},
		CreatedAt:     s.NowFunc(),
	}

	if err := s.repo.Add(ctx, post); err != nil {
		return nil, err
	}
	return s.toView(ctx, post, imageBaseURL)
}

func (s *Service) Update(ctx context.Context, id primitive.ObjectID, params UpdateParams, imageBaseURL string) (*View, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsService.Update")
	defer span.End()

	update := Update{
		Title:         params.Title,
		Content:       params.Content,
		Category:      params.Category,
		FeaturedImage: params.ImageFilename,
	}
	if params.Title != nil {
		slug := SlugFor(*params.Title, id)
		update.Slug = &slug
	}

	post, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, post, imageBaseURL)
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsService.Delete")
	defer span.End()

	return s.repo.Delete(ctx, id)
}

func (s *Service) AddComment(ctx context.Context, postID, userID primitive.ObjectID, content string, imageBaseURL string) (*View, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsService.AddComment")
	defer span.End()

	comment := Comment{
		User:      userID,
		Content:   content,
		CreatedAt: s.NowFunc(),
	}

	post, err := s.repo.AddComment(ctx, postID, comment)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, post, imageBaseURL)
}

func (s *Service) toView(ctx context.Context, post *Post, imageBaseURL string) (*View, error) {
	views, err := s.toViews(ctx, []*Post{post}, imageBaseURL)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// toViews batch-resolves author and category references and rewrites image
// filenames to absolute URLs; dangling references become nil summaries
func (s *Service) toViews(ctx context.Context, page []*Post, imageBaseURL string) ([]*View, error) {
	authorIDs := make([]primitive.ObjectID, 0, len(page))
	categoryIDs := make([]primitive.ObjectID, 0, len(page))
	for _, post := range page {
		authorIDs = append(authorIDs, post.Author)
		categoryIDs = append(categoryIDs, post.Category)
	}

	authors, err := s.repo.AuthorSummaries(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.CategorySummaries(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*View, 0, len(page))
	for _, post := range page {
		view := &View{
			ID:        post.ID,
			Title:     post.Title,
			Content:   post.Content,
			Slug:      post.Slug,
			Comments:  post.Comments,
			CreatedAt: post.CreatedAt,
		}
		if view.Comments == nil {
			view.Comments = []Comment{}
		}
		if post.FeaturedImage != "" {
			view.FeaturedImage = imageBaseURL + "/" + post.FeaturedImage
		}
		if author, ok := authors[post.Author]; ok {
			view.Author = &author
		}
		if category, ok := categories[post.Category]; ok {
			view.Category = &category
		}
		views = append(views, view)
	}

	return views, nil
}
