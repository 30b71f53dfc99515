package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"

	"github.com/freetnet/freetd/internal/entities"
)

const maxBodySize = 1024

// Error ...
type Error struct {
	Error string `json:"error"`
}

// Freet ...
type Freet struct {
	ID         string   `json:"id"`
	Author     string   `json:"author"`
	AuthorID   string   `json:"author_id"`
	Content    string   `json:"content"`
	CreatedAt  int64    `json:"created_at"`
	ModifiedAt int64    `json:"modified_at"`
	ExpiresAt  *int64   `json:"expires_at,omitempty"`
	LikedBy    []string `json:"liked_by"`
	Likes      int      `json:"likes"`
}

// User ...
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	IsVerified bool     `json:"is_verified"`
	CreatedAt  int64    `json:"created_at"`
	LikedPosts []string `json:"liked_posts"`
}

// Comment ...
type Comment struct {
	ID          string `json:"id"`
	FreetID     string `json:"freet_id"`
	Commenter   string `json:"commenter"`
	CommenterID string `json:"commenter_id"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"created_at"`
}

// CreateFreetRequest ...
type CreateFreetRequest struct {
	Content   string `json:"content"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

// EditFreetRequest ...
type EditFreetRequest struct {
	Content string `json:"content"`
}

// CreateUserRequest ...
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SetVerifiedRequest ...
type SetVerifiedRequest struct {
	Verified bool `json:"verified"`
}

// CreateCommentRequest ...
type CreateCommentRequest struct {
	Content string `json:"content"`
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	data, _ := json.Marshal(v)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) // nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeOK(w, status, Error{Error: message})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter, message string) {
	logrus.WithField("request_id", middleware.GetReqID(ctx)).Error(message)

	// do not expose internal details to the caller
	writeError(w, http.StatusInternalServerError, "internal error")
}

func toAPIFreet(p *entities.Post) *Freet {
	if p == nil {
		return nil
	}

	likedBy := p.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}

	out := Freet{
		ID:         p.ID,
		Author:     p.Author,
		AuthorID:   p.AuthorID,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt.Unix(),
		ModifiedAt: p.ModifiedAt.Unix(),
		LikedBy:    likedBy,
		Likes:      len(likedBy),
	}

	if p.ExpiresAt != nil {
		v := p.ExpiresAt.Unix()
		out.ExpiresAt = &v
	}

	return &out
}

func toAPIFreets(pp []*entities.Post) []*Freet {
	out := make([]*Freet, len(pp))
	for i, v := range pp {
		out[i] = toAPIFreet(v)
	}

	return out
}

func toAPIUser(u *entities.User) *User {
	if u == nil {
		return nil
	}

	likedPosts := u.LikedPosts
	if likedPosts == nil {
		likedPosts = []string{}
	}

	return &User{
		ID:         u.ID,
		Username:   u.Username,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt.Unix(),
		LikedPosts: likedPosts,
	}
}

func toAPIComment(c *entities.Comment) *Comment {
	if c == nil {
		return nil
	}

	return &Comment{
		ID:          c.ID,
		FreetID:     c.PostID,
		Commenter:   c.Commenter,
		CommenterID: c.CommenterID,
		Content:     c.Content,
		CreatedAt:   c.CreatedAt.Unix(),
	}
}

func toAPIComments(cc []*entities.Comment) []*Comment {
	out := make([]*Comment, len(cc))
	for i, v := range cc {
		out[i] = toAPIComment(v)
	}

	return out
}
