// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/freetnet/freetd/internal/entities"
	"github.com/freetnet/freetd/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")
var errBeginCalledWithinTx = errors.New("can not run InTx in tx")

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

type pg struct {
	ext sqlx.ExtContext
}

type postDTO struct {
	ID         string         `db:"id"`
	AuthorID   string         `db:"author_id"`
	Author     string         `db:"author"`
	Content    string         `db:"content"`
	CreatedAt  time.Time      `db:"created_at"`
	ModifiedAt time.Time      `db:"modified_at"`
	ExpiresAt  *time.Time     `db:"expires_at"`
	LikedBy    pq.StringArray `db:"liked_by"`
}

type userDTO struct {
	ID         string         `db:"id"`
	Username   string         `db:"username"`
	IsVerified bool           `db:"is_verified"`
	CreatedAt  time.Time      `db:"created_at"`
	LikedPosts pq.StringArray `db:"liked_posts"`
}

type commentDTO struct {
	ID          string    `db:"id"`
	PostID      string    `db:"freet_id"`
	CommenterID string    `db:"commenter_id"`
	Commenter   string    `db:"commenter"`
	Content     string    `db:"content"`
	CreatedAt   time.Time `db:"created_at"`
}

const postSelect = `
		SELECT f.id, f.author_id, u.username AS author, f.content, f.created_at, f.modified_at, f.expires_at,
			COALESCE(array_agg(l.user_id::TEXT) FILTER (WHERE l.user_id IS NOT NULL), '{}') AS liked_by
		FROM freet f
		JOIN "user" u ON u.id = f.author_id
		LEFT JOIN "like" l ON l.freet_id = f.id
		%s
		GROUP BY f.id, u.username
		%s
	`

const userSelect = `
		SELECT u.id, u.username, u.is_verified, u.created_at,
			COALESCE(array_agg(l.freet_id::TEXT) FILTER (WHERE l.freet_id IS NOT NULL), '{}') AS liked_posts
		FROM "user" u
		LEFT JOIN "like" l ON l.user_id = u.id
		WHERE %s
		GROUP BY u.id
	`

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

func (s pg) InTx(ctx context.Context, f func(s storage.Storage) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return errBeginCalledWithinTx
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) CreatePost(ctx context.Context, p *entities.Post) error {
	post := postDTO{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt.UTC(),
		ModifiedAt: p.ModifiedAt.UTC(),
	}

	if p.ExpiresAt != nil {
		t := p.ExpiresAt.UTC()
		post.ExpiresAt = &t
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO freet(id, author_id, content, created_at, modified_at, expires_at)
			VALUES(:id, :author_id, :content, :created_at, :modified_at, :expires_at)
		`, post,
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	var p postDTO

	if err := sqlx.GetContext(ctx, s.ext, &p,
		fmt.Sprintf(postSelect, `WHERE f.id = $1`, ``), id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPost(&p), nil
}

func (s pg) ListPosts(ctx context.Context, params *storage.ListPostsParams) ([]*entities.Post, error) {
	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if params.AuthorID != nil {
		args = append(args, *params.AuthorID)
		where = append(where, fmt.Sprintf("f.author_id = $%d", len(args)))
	}

	if params.LikedBy != nil {
		args = append(args, *params.LikedBy)
		where = append(where, fmt.Sprintf(`EXISTS (SELECT 1 FROM "like" x WHERE x.freet_id = f.id AND x.user_id = $%d)`, len(args)))
	}

	var filter string
	for i, v := range where {
		if i == 0 {
			filter = "WHERE " + v
		} else {
			filter += " AND " + v
		}
	}

	var order string
	if params.SortBy != "" {
		orderBy := params.OrderBy
		if orderBy == "" {
			orderBy = storage.DescendingOrder
		}
		order = fmt.Sprintf("ORDER BY f.%s %s", params.SortBy, orderBy)
	}

	var pp []*postDTO
	if err := sqlx.SelectContext(ctx, s.ext, &pp, fmt.Sprintf(postSelect, filter, order), args...); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(pp))
	for i, v := range pp {
		out[i] = toPost(v)
	}

	return out, nil
}

func (s pg) SetPostContent(ctx context.Context, id, content string, modifiedAt time.Time) error {
	res, err := s.ext.ExecContext(ctx,
		`UPDATE freet SET content=$2, modified_at=$3 WHERE id=$1`,
		id, content, modifiedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) DeletePost(ctx context.Context, id string) (bool, error) {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM freet WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to exec: %w", err)
	}

	c, _ := res.RowsAffected()

	return c > 0, nil
}

func (s pg) DeletePostsByAuthor(ctx context.Context, authorID string) error {
	if _, err := s.ext.ExecContext(ctx, `DELETE FROM freet WHERE author_id=$1`, authorID); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) DeleteExpiredPosts(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.ext.ExecContext(ctx,
		`DELETE FROM freet WHERE expires_at IS NOT NULL AND expires_at < $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to exec: %w", err)
	}

	c, _ := res.RowsAffected()

	return c, nil
}

func (s pg) Like(ctx context.Context, userID, postID string, timestamp time.Time) error {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO "like"(freet_id, user_id, liked_at)
				VALUES($1, $2, $3)
			ON CONFLICT DO NOTHING`,
		postID, userID, timestamp.UTC(),
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) Unlike(ctx context.Context, userID, postID string) error {
	if _, err := s.ext.ExecContext(ctx,
		`DELETE FROM "like" WHERE freet_id=$1 AND user_id=$2`,
		postID, userID,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) CreateUser(ctx context.Context, p *storage.CreateUserParams) error {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO "user"(id, username, password_hash, created_at)
			VALUES($1, $2, $3, $4)`,
		p.ID, p.Username, p.PasswordHash, p.CreatedAt.UTC(),
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == uniqueViolation {
			return storage.ErrAlreadyExists
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetUserByID(ctx context.Context, id string) (*entities.User, error) {
	return s.getUser(ctx, `u.id = $1`, id)
}

func (s pg) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return s.getUser(ctx, `u.username = $1`, username)
}

func (s pg) getUser(ctx context.Context, filter string, arg interface{}) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.ext, &u, fmt.Sprintf(userSelect, filter), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.User{
		ID:         u.ID,
		Username:   u.Username,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		LikedPosts: u.LikedPosts,
	}, nil
}

func (s pg) SetUserVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.ext.ExecContext(ctx, `UPDATE "user" SET is_verified=$2 WHERE id=$1`, id, verified)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM "user" WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to exec: %w", err)
	}

	c, _ := res.RowsAffected()

	return c > 0, nil
}

func (s pg) CreateComment(ctx context.Context, c *entities.Comment) error {
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO comment(id, freet_id, commenter_id, content, created_at)
			VALUES($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.CommenterID, c.Content, c.CreatedAt.UTC(),
	); err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == foreignKeyViolation {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	var c commentDTO

	if err := sqlx.GetContext(ctx, s.ext, &c, `
			SELECT c.id, c.freet_id, c.commenter_id, u.username AS commenter, c.content, c.created_at
			FROM comment c
			JOIN "user" u ON u.id = c.commenter_id
			WHERE c.id = $1`,
		id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toComment(&c), nil
}

func (s pg) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	var cc []*commentDTO

	if err := sqlx.SelectContext(ctx, s.ext, &cc, `
			SELECT c.id, c.freet_id, c.commenter_id, u.username AS commenter, c.content, c.created_at
			FROM comment c
			JOIN "user" u ON u.id = c.commenter_id
			WHERE c.freet_id = $1
			ORDER BY c.created_at`,
		postID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Comment, len(cc))
	for i, v := range cc {
		out[i] = toComment(v)
	}

	return out, nil
}

func (s pg) DeleteComment(ctx context.Context, id string) (bool, error) {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM comment WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to exec: %w", err)
	}

	c, _ := res.RowsAffected()

	return c > 0, nil
}

func toPost(p *postDTO) *entities.Post {
	return &entities.Post{
		ID:         p.ID,
		AuthorID:   p.AuthorID,
		Author:     p.Author,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
		ModifiedAt: p.ModifiedAt,
		ExpiresAt:  p.ExpiresAt,
		LikedBy:    p.LikedBy,
	}
}

func toComment(c *commentDTO) *entities.Comment {
	return &entities.Comment{
		ID:          c.ID,
		PostID:      c.PostID,
		CommenterID: c.CommenterID,
		Commenter:   c.Commenter,
		Content:     c.Content,
		CreatedAt:   c.CreatedAt,
	}
}
