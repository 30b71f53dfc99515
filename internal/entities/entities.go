// Package entities contains main entities of service.
package entities

import (
	"time"
)

// Post is a freet: a short user-authored text item, optionally time-limited.
// LikedBy holds ids of users who liked the post; the storage layer guarantees
// there are no duplicates.
type Post struct {
	ID         string
	AuthorID   string
	Author     string // username of the author
	Content    string
	CreatedAt  time.Time
	ModifiedAt time.Time
	ExpiresAt  *time.Time // nil means the post never expires
	LikedBy    []string
}

// User ...
type User struct {
	ID         string
	Username   string
	IsVerified bool
	CreatedAt  time.Time
	LikedPosts []string
}

// Comment ...
type Comment struct {
	ID          string
	PostID      string
	CommenterID string
	Commenter   string // username of the commenter
	Content     string
	CreatedAt   time.Time
}
