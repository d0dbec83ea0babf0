package posts

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrInvalidPostID     = errors.New("invalid post ID format")
	ErrInvalidUserID     = errors.New("invalid user ID format")
	ErrInvalidCategoryID = errors.New("invalid category ID format")
)

const (
	DefaultPage = 1
	DefaultSize = 10

	maxTitleLength = 100
)

// Comment is embedded in its post, append-only, insertion order preserved
type Comment struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Post as stored: author and category are references, image is a bare filename
type Post struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Content       string             `bson:"content" json:"content"`
	Slug          string             `bson:"slug" json:"slug"`
	FeaturedImage string             `bson:"featuredImage,omitempty" json:"featuredImage,omitempty"`
	Category      primitive.ObjectID `bson:"category" json:"category"`
	Author        primitive.ObjectID `bson:"author" json:"author"`
	Comments      []Comment          `bson:"comments" json:"comments"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

type AuthorSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Username string             `bson:"username" json:"username"`
	Email    string             `bson:"email" json:"email"`
}

type CategorySummary struct {
	ID   primitive.ObjectID `bson:"_id" json:"id"`
	Name string             `bson:"name" json:"name"`
}

// View is a post as returned to clients: references expanded to summaries
// (nil when the referenced entity is gone), image resolved to an absolute URL.
// A post with no stored image has no featuredImage field at all.
type View struct {
	ID            primitive.ObjectID `json:"id"`
	Title         string             `json:"title"`
	Content       string             `json:"content"`
	Slug          string             `json:"slug"`
	FeaturedImage string             `json:"featuredImage,omitempty"`
	Category      *CategorySummary   `json:"category"`
	Author        *AuthorSummary     `json:"author"`
	Comments      []Comment          `json:"comments"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// ListParams - page and size are normalized by the service, search is
// case-insensitive substring, category an optional exact match
type ListParams struct {
	Page       int
	Size       int
	Search     string
	CategoryID *primitive.ObjectID
}

// ListResult carries one page plus the pre-pagination total
type ListResult struct {
	Posts []*View `json:"posts"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Pages int64   `json:"pages"`
}

// Update holds only the fields to change; nil fields are left untouched
type Update struct {
	Title         *string
	Content       *string
	Slug          *string
	FeaturedImage *string
	Category      *primitive.ObjectID
}
