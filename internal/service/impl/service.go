// Package impl is implementation of service interface.
package impl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/freetnet/freetd/internal/entities"
	"github.com/freetnet/freetd/internal/service"
	"github.com/freetnet/freetd/internal/storage"
)

// editWindow limits how long an unverified author may edit a post after
// its creation. Verified authors are exempt.
const editWindow = 30 * time.Minute

var log = logrus.WithField("layer", "service")

type srv struct {
	s   storage.Storage
	now func() time.Time
}

// New creates new instance of service.
func New(s storage.Storage) service.Service {
	return &srv{
		s:   s,
		now: time.Now,
	}
}

func (s *srv) CreatePost(ctx context.Context, authorID, content string, expiresAt *time.Time) (*entities.Post, error) {
	now := s.now()

	// an empty timestamp means no expiration, do not store it as a literal date
	if expiresAt != nil && expiresAt.IsZero() {
		expiresAt = nil
	}

	p := entities.Post{
		ID:         uuid.New().String(),
		AuthorID:   authorID,
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
		ExpiresAt:  expiresAt,
	}

	if err := s.s.CreatePost(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	out, err := s.s.GetPost(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get created post: %w", err)
	}

	return out, nil
}

func (s *srv) EditPost(ctx context.Context, postID, requestedBy, content string) (*entities.Post, error) {
	var out *entities.Post

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		p, err := tx.GetPost(ctx, postID)
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}

		if p.AuthorID != requestedBy {
			return service.ErrForbidden
		}

		u, err := tx.GetUserByID(ctx, p.AuthorID)
		if err != nil {
			return fmt.Errorf("failed to get author: %w", err)
		}

		now := s.now()

		if !u.IsVerified && now.Sub(p.CreatedAt) > editWindow {
			return service.ErrEditWindowExpired
		}

		if err := tx.SetPostContent(ctx, postID, content, now); err != nil {
			return fmt.Errorf("failed to set content: %w", err)
		}

		out, err = tx.GetPost(ctx, postID)
		if err != nil {
			return fmt.Errorf("failed to get edited post: %w", err)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *srv) GetPost(ctx context.Context, postID string) (*entities.Post, error) {
	p, err := s.s.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return p, nil
}

func (s *srv) ListPosts(ctx context.Context) ([]*entities.Post, error) {
	pp, err := s.s.ListPosts(ctx, &storage.ListPostsParams{
		SortBy:  storage.ModifiedAtSortType,
		OrderBy: storage.DescendingOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return pp, nil
}

func (s *srv) ListPostsByUsername(ctx context.Context, username string) ([]*entities.Post, error) {
	u, err := s.s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}

	pp, err := s.s.ListPosts(ctx, &storage.ListPostsParams{
		AuthorID: &u.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return pp, nil
}

func (s *srv) DeletePost(ctx context.Context, postID string) (bool, error) {
	ok, err := s.s.DeletePost(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}

	return ok, nil
}

func (s *srv) DeletePostsByAuthor(ctx context.Context, authorID string) error {
	if err := s.s.DeletePostsByAuthor(ctx, authorID); err != nil {
		return fmt.Errorf("failed to delete posts: %w", err)
	}

	return nil
}

func (s *srv) SweepExpiredPosts(ctx context.Context) error {
	c, err := s.s.DeleteExpiredPosts(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to delete expired posts: %w", err)
	}

	if c > 0 {
		log.WithField("count", c).Info("expired posts swept")
	}

	return nil
}

func (s *srv) LikePost(ctx context.Context, userID, postID string) error {
	// a like is a single row, storage keeps both sides of the relationship
	// consistent without a tx
	if err := s.s.Like(ctx, userID, postID, s.now()); err != nil {
		return fmt.Errorf("failed to like post: %w", err)
	}

	return nil
}

func (s *srv) UnlikePost(ctx context.Context, userID, postID string) error {
	if err := s.s.Unlike(ctx, userID, postID); err != nil {
		return fmt.Errorf("failed to unlike post: %w", err)
	}

	return nil
}

func (s *srv) CreateUser(ctx context.Context, username, password string) (*entities.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p := storage.CreateUserParams{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := s.s.CreateUser(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	u, err := s.s.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get created user: %w", err)
	}

	return u, nil
}

func (s *srv) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	u, err := s.s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s *srv) SetUserVerified(ctx context.Context, userID string, verified bool) error {
	if err := s.s.SetUserVerified(ctx, userID, verified); err != nil {
		return fmt.Errorf("failed to set verified flag: %w", err)
	}

	return nil
}

func (s *srv) DeleteUser(ctx context.Context, userID string) error {
	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		if err := tx.DeletePostsByAuthor(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete posts: %w", err)
		}

		ok, err := tx.DeleteUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		if !ok {
			return storage.ErrNotFound
		}

		return nil
	}); err != nil {
		return err
	}

	return nil
}

func (s *srv) CreateComment(ctx context.Context, commenterID, postID, content string) (*entities.Comment, error) {
	c := entities.Comment{
		ID:          uuid.New().String(),
		PostID:      postID,
		CommenterID: commenterID,
		Content:     content,
		CreatedAt:   s.now(),
	}

	if err := s.s.CreateComment(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	out, err := s.s.GetComment(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get created comment: %w", err)
	}

	return out, nil
}

func (s *srv) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	cc, err := s.s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return cc, nil
}

func (s *srv) DeleteComment(ctx context.Context, commentID, requestedBy string) (bool, error) {
	var out bool

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		c, err := tx.GetComment(ctx, commentID)
		if err != nil {
			return fmt.Errorf("failed to get comment: %w", err)
		}

		if c.CommenterID != requestedBy {
			return service.ErrForbidden
		}

		out, err = tx.DeleteComment(ctx, commentID)
		if err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}

		return nil
	}); err != nil {
		return false, err
	}

	return out, nil
}
