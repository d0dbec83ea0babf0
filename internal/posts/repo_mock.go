package posts

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ postsRepo = (*repoMock)(nil)

type repoMock struct {
	mutex      sync.Mutex
	posts      map[primitive.ObjectID]*Post
	authors    map[primitive.ObjectID]AuthorSummary
	categories map[primitive.ObjectID]CategorySummary
}

func newRepoMock() *repoMock {
	return &repoMock{
		posts:      make(map[primitive.ObjectID]*Post),
		authors:    make(map[primitive.ObjectID]AuthorSummary),
		categories: make(map[primitive.ObjectID]CategorySummary),
	}
}

func (r *repoMock) PostsCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.posts)
}

func (r *repoMock) Add(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	copied := *post
	r.posts[post.ID] = &copied
	return nil
}

func (r *repoMock) Get(_ context.Context, id primitive.ObjectID) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, found := r.posts[id]
	if !found {
		return nil, ErrPostNotFound
	}
	copied := *post
	return &copied, nil
}

func matchesSearch(post *Post, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(post.Title), needle) ||
		strings.Contains(strings.ToLower(post.Content), needle)
}

func (r *repoMock) List(_ context.Context, params ListParams) ([]*Post, int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var matched []*Post
	for _, post := range r.posts {
		if !matchesSearch(post, params.Search) {
			continue
		}
		if params.CategoryID != nil && post.Category != *params.CategoryID {
			continue
		}
		matched = append(matched, post)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.Hex() > matched[j].ID.Hex()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))

	skip := (params.Page - 1) * params.Size
	if skip >= len(matched) {
		return nil, total, nil
	}
	matched = matched[skip:]
	if len(matched) > params.Size {
		matched = matched[:params.Size]
	}

	page := make([]*Post, 0, len(matched))
	for _, post := range matched {
		copied := *post
		page = append(page, &copied)
	}
	return page, total, nil
}

func (r *repoMock) Update(_ context.Context, id primitive.ObjectID, update Update) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, found := r.posts[id]
	if !found {
		return nil, ErrPostNotFound
	}

	if update.Title != nil {
		post.Title = *update.Title
	}
	if update.Content != nil {
		post.Content = *update.Content
	}
	if update.Slug != nil {
		post.Slug = *update.Slug
	}
	if update.FeaturedImage != nil {
		post.FeaturedImage = *update.FeaturedImage
	}
	if update.Category != nil {
		post.Category = *update.Category
	}

	copied := *post
	return &copied, nil
}

func (r *repoMock) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, found := r.posts[id]; !found {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *repoMock) AddComment(_ context.Context, id primitive.ObjectID, comment Comment) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, found := r.posts[id]
	if !found {
		return nil, ErrPostNotFound
	}
	post.Comments = append(post.Comments, comment)

	copied := *post
	return &copied, nil
}

func (r *repoMock) AuthorSummaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]AuthorSummary, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	summaries := make(map[primitive.ObjectID]AuthorSummary)
	for _, id := range ids {
		if summary, found := r.authors[id]; found {
			summaries[id] = summary
		}
	}
	return summaries, nil
}

func (r *repoMock) CategorySummaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]CategorySummary, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	summaries := make(map[primitive.ObjectID]CategorySummary)
	for _, id := range ids {
		if summary, found := r.categories[id]; found {
			summaries[id] = summary
		}
	}
	return summaries, nil
}
