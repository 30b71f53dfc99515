//+build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	m "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/freetnet/freetd/internal/entities"
	"github.com/freetnet/freetd/internal/storage"
)

var (
	db  *sql.DB
	ctx = context.Background()
	s   storage.Storage
)

func TestMain(m *testing.M) {
	shutdown := setup()

	s = New(db)

	code := m.Run()
	shutdown()
	os.Exit(code)
}

func setup() func() {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:12",
		Env:          map[string]string{"POSTGRES_PASSWORD": "root"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
	})
	if err != nil {
		logrus.WithError(err).Fatalf("failed to create container")
	}

	if err := c.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to start container")
	}

	host, err := c.Host(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to get host")
	}

	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		logrus.WithError(err).Fatal("failed to map port")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=postgres password=root sslmode=disable", host, port.Int())

	db, err = sql.Open("postgres", dsn)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open connection")
	}

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	shutdownFn := func() {
		if c != nil {
			c.Terminate(ctx)
		}
	}

	migrate("postgres", "root", host, "postgres", port.Int())

	return shutdownFn
}

func migrate(username, password, hostname, dbname string, port int) {
	_, currFile, _, ok := runtime.Caller(0)
	if !ok {
		logrus.Fatal("failed to get current file location")
	}

	migrations := filepath.Join(currFile, "../../../../scripts/migrations/postgres/")

	migrator, err := m.New(
		fmt.Sprintf("file://%s", migrations),
		fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			username, password, hostname, port, dbname),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		logrus.WithError(err).Fatal("failed to migrate")
	}
}

func cleanup(t *testing.T) {
	_, err := db.ExecContext(ctx, `DELETE FROM comment`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM "like"`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM freet`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM "user"`)
	require.NoError(t, err)
}

func createTestUser(t *testing.T, username string) string {
	t.Helper()

	id := uuid.New().String()
	require.NoError(t, s.CreateUser(ctx, &storage.CreateUserParams{
		ID:           id,
		Username:     username,
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	}))

	return id
}

func createTestPost(t *testing.T, authorID, content string, expiresAt *time.Time) string {
	t.Helper()

	id := uuid.New().String()
	now := time.Now().UTC()
	require.NoError(t, s.CreatePost(ctx, &entities.Post{
		ID:         id,
		AuthorID:   authorID,
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
		ExpiresAt:  expiresAt,
	}))

	return id
}

func TestPg_CreatePost(t *testing.T) {
	defer cleanup(t)

	author := createTestUser(t, "ann")

	now := time.Now().UTC()
	expiry := now.Add(time.Hour)

	expected := entities.Post{
		ID:         uuid.New().String(),
		AuthorID:   author,
		Content:    "hello",
		CreatedAt:  now,
		ModifiedAt: now,
		ExpiresAt:  &expiry,
	}

	require.NoError(t, s.CreatePost(ctx, &expected))

	p, err := s.GetPost(ctx, expected.ID)
	require.NoError(t, err)
	require.Equal(t, expected.ID, p.ID)
	require.Equal(t, author, p.AuthorID)
	require.Equal(t, "ann", p.Author)
	require.Equal(t, "hello", p.Content)
	require.Equal(t, now.Unix(), p.CreatedAt.Unix())
	require.Equal(t, now.Unix(), p.ModifiedAt.Unix())
	require.NotNil(t, p.ExpiresAt)
	require.Equal(t, expiry.Unix(), p.ExpiresAt.Unix())
	require.Empty(t, p.LikedBy)
}

func TestPg_CreatePost_unknownAuthor(t *testing.T) {
	defer cleanup(t)

	err := s.CreatePost(ctx, &entities.Post{
		ID:         uuid.New().String(),
		AuthorID:   uuid.New().String(),
		Content:    "orphan",
		CreatedAt:  time.Now(),
		ModifiedAt: time.Now(),
	})
	require.Equal(t, storage.ErrNotFound, err)
}

func TestPg_GetPost_notFound(t *testing.T) {
	defer cleanup(t)

	_, err := s.GetPost(ctx, uuid.New().String())
	require.Equal(t, storage.ErrNotFound, err)
}

func TestPg_ListPosts(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	bob := createTestUser(t, "bob")

	p1 := createTestPost(t, ann, "first", nil)
	time.Sleep(10 * time.Millisecond)
	p2 := createTestPost(t, bob, "second", nil)
	time.Sleep(10 * time.Millisecond)
	p3 := createTestPost(t, ann, "third", nil)

	require.NoError(t, s.Like(ctx, bob, p1, time.Now()))

	tt := []struct {
		name string
		p    storage.ListPostsParams
		ids  []string
	}{
		{
			name: "modified_at_desc",
			p: storage.ListPostsParams{
				SortBy:  storage.ModifiedAtSortType,
				OrderBy: storage.DescendingOrder,
			},
			ids: []string{p3, p2, p1},
		},
		{
			name: "created_at_asc",
			p: storage.ListPostsParams{
				SortBy:  storage.CreatedAtSortType,
				OrderBy: storage.AscendingOrder,
			},
			ids: []string{p1, p2, p3},
		},
		{
			name: "author",
			p: storage.ListPostsParams{
				SortBy:   storage.CreatedAtSortType,
				OrderBy:  storage.AscendingOrder,
				AuthorID: &ann,
			},
			ids: []string{p1, p3},
		},
		{
			name: "liked_by",
			p: storage.ListPostsParams{
				SortBy:  storage.CreatedAtSortType,
				OrderBy: storage.AscendingOrder,
				LikedBy: &bob,
			},
			ids: []string{p1},
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			pp, err := s.ListPosts(ctx, &tc.p)
			require.NoError(t, err)
			require.Len(t, pp, len(tc.ids))
			for i, v := range tc.ids {
				require.Equal(t, v, pp[i].ID)
			}
		})
	}
}

func TestPg_SetPostContent(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	id := createTestPost(t, ann, "old", nil)

	modifiedAt := time.Now().Add(time.Minute).UTC()

	require.NoError(t, s.SetPostContent(ctx, id, "new", modifiedAt))

	p, err := s.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new", p.Content)
	require.Equal(t, modifiedAt.Unix(), p.ModifiedAt.Unix())
	require.True(t, !p.ModifiedAt.Before(p.CreatedAt))
}

func TestPg_SetPostContent_notFound(t *testing.T) {
	defer cleanup(t)

	require.Equal(t, storage.ErrNotFound, s.SetPostContent(ctx, uuid.New().String(), "new", time.Now()))
}

func TestPg_DeletePost(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	bob := createTestUser(t, "bob")
	id := createTestPost(t, ann, "hello", nil)

	require.NoError(t, s.Like(ctx, bob, id, time.Now()))

	ok, err := s.DeletePost(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.GetPost(ctx, id)
	require.Equal(t, storage.ErrNotFound, err)

	// like rows are removed with the post, no dangling references
	u, err := s.GetUserByID(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, u.LikedPosts)

	ok, err = s.DeletePost(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPg_DeletePostsByAuthor(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	bob := createTestUser(t, "bob")

	createTestPost(t, ann, "1", nil)
	createTestPost(t, ann, "2", nil)
	kept := createTestPost(t, bob, "3", nil)

	require.NoError(t, s.DeletePostsByAuthor(ctx, ann))

	pp, err := s.ListPosts(ctx, &storage.ListPostsParams{})
	require.NoError(t, err)
	require.Len(t, pp, 1)
	require.Equal(t, kept, pp[0].ID)
}

func TestPg_DeleteExpiredPosts(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")

	past := time.Now().Add(-time.Hour).UTC()
	future := time.Now().Add(time.Hour).UTC()

	expired := createTestPost(t, ann, "expired", &past)
	eternal := createTestPost(t, ann, "eternal", nil)
	pending := createTestPost(t, ann, "pending", &future)

	c, err := s.DeleteExpiredPosts(ctx, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, c)

	_, err = s.GetPost(ctx, expired)
	require.Equal(t, storage.ErrNotFound, err)

	_, err = s.GetPost(ctx, eternal)
	require.NoError(t, err)

	_, err = s.GetPost(ctx, pending)
	require.NoError(t, err)

	// repeated sweep produces the same final state
	c, err = s.DeleteExpiredPosts(ctx, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 0, c)
}

func TestPg_Like(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	bob := createTestUser(t, "bob")
	id := createTestPost(t, ann, "hello", nil)

	require.NoError(t, s.Like(ctx, bob, id, time.Now()))
	// liking twice keeps the relationship exactly once on both sides
	require.NoError(t, s.Like(ctx, bob, id, time.Now()))

	p, err := s.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{bob}, p.LikedBy)

	u, err := s.GetUserByID(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, u.LikedPosts)
}

func TestPg_Like_notFound(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	id := createTestPost(t, ann, "hello", nil)

	require.Equal(t, storage.ErrNotFound, s.Like(ctx, ann, uuid.New().String(), time.Now()))
	require.Equal(t, storage.ErrNotFound, s.Like(ctx, uuid.New().String(), id, time.Now()))
}

func TestPg_Unlike(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	bob := createTestUser(t, "bob")
	id := createTestPost(t, ann, "hello", nil)

	require.NoError(t, s.Like(ctx, bob, id, time.Now()))
	require.NoError(t, s.Unlike(ctx, bob, id))

	p, err := s.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, p.LikedBy)

	u, err := s.GetUserByID(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, u.LikedPosts)

	// unliking a non-existent relationship is a no-op
	require.NoError(t, s.Unlike(ctx, bob, id))
}

func TestPg_CreateUser(t *testing.T) {
	defer cleanup(t)

	id := createTestUser(t, "ann")

	u, err := s.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ann", u.Username)
	require.False(t, u.IsVerified)

	err = s.CreateUser(ctx, &storage.CreateUserParams{
		ID:           uuid.New().String(),
		Username:     "ann",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	require.Equal(t, storage.ErrAlreadyExists, err)
}

func TestPg_GetUserByUsername(t *testing.T) {
	defer cleanup(t)

	id := createTestUser(t, "ann")

	u, err := s.GetUserByUsername(ctx, "ann")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	_, err = s.GetUserByUsername(ctx, "nobody")
	require.Equal(t, storage.ErrNotFound, err)
}

func TestPg_SetUserVerified(t *testing.T) {
	defer cleanup(t)

	id := createTestUser(t, "ann")

	require.NoError(t, s.SetUserVerified(ctx, id, true))

	u, err := s.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.True(t, u.IsVerified)

	require.Equal(t, storage.ErrNotFound, s.SetUserVerified(ctx, uuid.New().String(), true))
}

func TestPg_DeleteUser(t *testing.T) {
	defer cleanup(t)

	id := createTestUser(t, "ann")

	ok, err := s.DeleteUser(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.DeleteUser(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPg_Comments(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")
	bob := createTestUser(t, "bob")
	post := createTestPost(t, ann, "hello", nil)

	c := entities.Comment{
		ID:          uuid.New().String(),
		PostID:      post,
		CommenterID: bob,
		Content:     "nice",
		CreatedAt:   time.Now().UTC(),
	}

	require.NoError(t, s.CreateComment(ctx, &c))

	got, err := s.GetComment(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", got.Commenter)
	require.Equal(t, "nice", got.Content)

	cc, err := s.ListComments(ctx, post)
	require.NoError(t, err)
	require.Len(t, cc, 1)

	ok, err := s.DeleteComment(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.GetComment(ctx, c.ID)
	require.Equal(t, storage.ErrNotFound, err)
}

func TestPg_InTx(t *testing.T) {
	defer cleanup(t)

	ann := createTestUser(t, "ann")

	errBoom := errors.New("boom")

	err := s.InTx(ctx, func(tx storage.Storage) error {
		if err := tx.DeletePostsByAuthor(ctx, ann); err != nil {
			return err
		}

		ok, err := tx.DeleteUser(ctx, ann)
		require.NoError(t, err)
		require.True(t, ok)

		return errBoom
	})
	require.True(t, errors.Is(err, errBoom))

	// tx is rolled back, the user is still there
	_, err = s.GetUserByID(ctx, ann)
	require.NoError(t, err)

	require.NoError(t, s.InTx(ctx, func(tx storage.Storage) error {
		_, err := tx.DeleteUser(ctx, ann)
		return err
	}))

	_, err = s.GetUserByID(ctx, ann)
	require.Equal(t, storage.ErrNotFound, err)
}
