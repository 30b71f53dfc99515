// Package service contains interface for service business-logic.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/freetnet/freetd/internal/entities"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

// ErrForbidden returned when requester is not allowed to mutate an entity.
var ErrForbidden = errors.New("forbidden")

// ErrEditWindowExpired returned when an unverified author tries to edit
// a post after the edit window has closed.
var ErrEditWindowExpired = errors.New("edit window expired")

// Service ...
type Service interface {
	CreatePost(ctx context.Context, authorID, content string, expiresAt *time.Time) (*entities.Post, error)
	EditPost(ctx context.Context, postID, requestedBy, content string) (*entities.Post, error)
	GetPost(ctx context.Context, postID string) (*entities.Post, error)
	ListPosts(ctx context.Context) ([]*entities.Post, error)
	ListPostsByUsername(ctx context.Context, username string) ([]*entities.Post, error)
	DeletePost(ctx context.Context, postID string) (bool, error)
	DeletePostsByAuthor(ctx context.Context, authorID string) error
	SweepExpiredPosts(ctx context.Context) error

	LikePost(ctx context.Context, userID, postID string) error
	UnlikePost(ctx context.Context, userID, postID string) error

	CreateUser(ctx context.Context, username, password string) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)
	SetUserVerified(ctx context.Context, userID string, verified bool) error
	DeleteUser(ctx context.Context, userID string) error

	CreateComment(ctx context.Context, commenterID, postID, content string) (*entities.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
	DeleteComment(ctx context.Context, commentID, requestedBy string) (bool, error)
}
