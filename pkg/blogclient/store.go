package blogclient

import (
	"context"
	"sync"
)

// State of a mirrored collection
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

type api interface {
	ListPosts(ctx context.Context, params ListPostsParams) (*PostsPage, error)
	CreatePost(ctx context.Context, input PostInput) (*Post, error)
	UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error)
	DeletePost(ctx context.Context, id string) error
	AddComment(ctx context.Context, postID, userID, content string) (*Post, error)
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
}

var _ api = (*Client)(nil)

// Store mirrors the posts and categories collections for one session.
// Each collection has its own loading/error state; mutations reconcile the
// mirror in place by entity id instead of re-fetching.
//
// Every refresh carries a sequence number; a response that comes back
// after a newer refresh was issued is discarded, so a slow stale response
// can not overwrite a fresher one.
type Store struct {
	api api

	mu sync.Mutex

	posts      []Post
	postsTotal int64
	postsPage  int
	postsPages int64
	postsState State
	postsErr   error
	postsSeq   uint64

	categories      []Category
	categoriesState State
	categoriesErr   error
	categoriesSeq   uint64

	mutationState State
	mutationErr   error
}

func NewStore(api api) *Store {
	return &Store{
		api: api,
	}
}

// RefreshPosts replaces the visible page with a fresh query result.
// Call it on every page/search/category parameter change.
func (s *Store) RefreshPosts(ctx context.Context, params ListPostsParams) error {
	s.mu.Lock()
	s.postsSeq++
	seq := s.postsSeq
	s.postsState = StateLoading
	s.postsErr = nil
	s.mu.Unlock()

	page, err := s.api.ListPosts(ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.postsSeq {
		// a newer refresh was issued while this one was in flight
		return nil
	}
	if err != nil {
		s.postsState = StateError
		s.postsErr = err
		return err
	}

	s.posts = page.Posts
	s.postsTotal = page.Total
	s.postsPage = page.Page
	s.postsPages = page.Pages
	s.postsState = StateReady
	return nil
}

// Posts returns a snapshot of the mirrored page and its state
func (s *Store) Posts() ([]Post, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Post, len(s.posts))
	copy(snapshot, s.posts)
	return snapshot, s.postsState, s.postsErr
}

// PostsPageInfo returns total/page/pages of the last successful refresh
func (s *Store) PostsPageInfo() (total int64, page int, pages int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postsTotal, s.postsPage, s.postsPages
}

func (s *Store) RefreshCategories(ctx context.Context) error {
	s.mu.Lock()
	s.categoriesSeq++
	seq := s.categoriesSeq
	s.categoriesState = StateLoading
	s.categoriesErr = nil
	s.mu.Unlock()

	all, err := s.api.Categories(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.categoriesSeq {
		return nil
	}
	if err != nil {
		s.categoriesState = StateError
		s.categoriesErr = err
		return err
	}

	s.categories = all
	s.categoriesState = StateReady
	return nil
}

func (s *Store) CategoriesList() ([]Category, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Category, len(s.categories))
	copy(snapshot, s.categories)
	return snapshot, s.categoriesState, s.categoriesErr
}

// MutationState reports the state of the last mutating operation
func (s *Store) MutationState() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutationState, s.mutationErr
}

func (s *Store) beginMutation() {
	s.mu.Lock()
	s.mutationState = StateLoading
	s.mutationErr = nil
	s.mu.Unlock()
}

func (s *Store) endMutation(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.mutationState = StateError
		s.mutationErr = err
		return
	}
	s.mutationState = StateReady
}

// CreatePost creates the post and prepends it to the mirror. The mirror
// can drift from the server-side filter/sort/pagination until the next
// refresh; that is the accepted trade-off for skipping a round trip.
func (s *Store) CreatePost(ctx context.Context, input PostInput) (*Post, error) {
	s.beginMutation()

	post, err := s.api.CreatePost(ctx, input)
	s.endMutation(err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.posts = append([]Post{*post}, s.posts...)
	s.mu.Unlock()
	return post, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error) {
	s.beginMutation()

	post, err := s.api.UpdatePost(ctx, id, input)
	s.endMutation(err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts[i] = *post
			break
		}
	}
	s.mu.Unlock()
	return post, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.beginMutation()

	err := s.api.DeletePost(ctx, id)
	s.endMutation(err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	remaining := s.posts[:0]
	for _, post := range s.posts {
		if post.ID != id {
			remaining = append(remaining, post)
		}
	}
	s.posts = remaining
	s.mu.Unlock()
	return nil
}

// AddComment appends a comment and replaces the mirrored post with the
// updated one from the response
func (s *Store) AddComment(ctx context.Context, postID, userID, content string) (*Post, error) {
	s.beginMutation()

	post, err := s.api.AddComment(ctx, postID, userID, content)
	s.endMutation(err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i] = *post
			break
		}
	}
	s.mu.Unlock()
	return post, nil
}

func (s *Store) CreateCategory(ctx context.Context, name string) (*Category, error) {
	s.beginMutation()

	category, err := s.api.CreateCategory(ctx, name)
	s.endMutation(err)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.categories = append([]Category{*category}, s.categories...)
	s.mu.Unlock()
	return category, nil
}
