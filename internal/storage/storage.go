// Package storage contains a storage interface.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/freetnet/freetd/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

// ErrNotFound returned when entity is absent.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists returned when unique constraint is violated.
var ErrAlreadyExists = errors.New("already exists")

// Storage provides methods for interacting with database.
type Storage interface {
	InTx(ctx context.Context, f func(s Storage) error) error

	CreatePost(ctx context.Context, p *entities.Post) error
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	ListPosts(ctx context.Context, params *ListPostsParams) ([]*entities.Post, error)
	SetPostContent(ctx context.Context, id, content string, modifiedAt time.Time) error
	DeletePost(ctx context.Context, id string) (bool, error)
	DeletePostsByAuthor(ctx context.Context, authorID string) error
	DeleteExpiredPosts(ctx context.Context, now time.Time) (int64, error)

	Like(ctx context.Context, userID, postID string, timestamp time.Time) error
	Unlike(ctx context.Context, userID, postID string) error

	CreateUser(ctx context.Context, p *CreateUserParams) error
	GetUserByID(ctx context.Context, id string) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)
	SetUserVerified(ctx context.Context, id string, verified bool) error
	DeleteUser(ctx context.Context, id string) (bool, error)

	CreateComment(ctx context.Context, c *entities.Comment) error
	GetComment(ctx context.Context, id string) (*entities.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
	DeleteComment(ctx context.Context, id string) (bool, error)
}

// SortType ...
type SortType string

const (
	// CreatedAtSortType ...
	CreatedAtSortType SortType = "created_at"
	// ModifiedAtSortType ...
	ModifiedAtSortType SortType = "modified_at"
)

// OrderType ...
type OrderType string

const (
	// AscendingOrder ...
	AscendingOrder OrderType = "asc"
	// DescendingOrder ...
	DescendingOrder OrderType = "desc"
)

// ListPostsParams ...
// Empty SortBy means no particular order.
type ListPostsParams struct {
	SortBy   SortType
	OrderBy  OrderType
	AuthorID *string
	LikedBy  *string
}

// CreateUserParams ...
type CreateUserParams struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
