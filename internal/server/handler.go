package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/freetnet/freetd/internal/entities"
	"github.com/freetnet/freetd/internal/service"
	"github.com/freetnet/freetd/internal/storage"
)

// authenticatedUser returns the id of the user authenticated by the upstream
// gateway. The gateway strips the header from external requests and sets it
// after session validation.
func authenticatedUser(r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	return id, id != ""
}

func (s server) createFreet(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /freets Freets CreateFreet
	//
	// Create a freet on behalf of the authenticated user.
	//
	// ---
	// responses:
	//   '201':
	//     description: created freet
	//     schema:
	//       "$ref": "#/definitions/Freet"

	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req CreateFreetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != 0 {
		t := time.Unix(*req.ExpiresAt, 0)
		expiresAt = &t
	}

	p, err := s.s.CreatePost(r.Context(), user, req.Content, expiresAt)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to create freet: "+err.Error())
		return
	}

	writeOK(w, http.StatusCreated, toAPIFreet(p))
}

func (s server) getFreet(w http.ResponseWriter, r *http.Request) {
	p, err := s.s.GetPost(r.Context(), chi.URLParam(r, "freetID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "freet not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to get freet: "+err.Error())
		return
	}

	writeOK(w, http.StatusOK, toAPIFreet(p))
}

func (s server) listFreets(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /freets Freets ListFreets
	//
	// Return all freets, most recently modified first. With the author query
	// parameter, return the given user's freets instead.
	//
	// ---
	// parameters:
	// - name: author
	//   description: filters freets by author username
	//   in: query
	//   required: false
	// responses:
	//   '200':
	//     description: freets
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Freet"

	var (
		pp  []*entities.Post
		err error
	)

	if author := r.URL.Query().Get("author"); author != "" {
		pp, err = s.s.ListPostsByUsername(r.Context(), author)
	} else {
		pp, err = s.s.ListPosts(r.Context())
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "author not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to list freets: "+err.Error())
		return
	}

	writeOK(w, http.StatusOK, toAPIFreets(pp))
}

func (s server) editFreet(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /freets/{freetID} Freets EditFreet
	//
	// Replace freet's content. Only the author may edit, and unverified
	// authors only within 30 minutes of creation.
	//
	// ---
	// responses:
	//   '200':
	//     description: edited freet
	//     schema:
	//       "$ref": "#/definitions/Freet"
	//   '403':
	//     description: not the author, or edit window expired

	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req EditFreetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	p, err := s.s.EditPost(r.Context(), chi.URLParam(r, "freetID"), user, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "freet not found")
		return
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "only the author can edit a freet")
		return
	case errors.Is(err, service.ErrEditWindowExpired):
		writeError(w, http.StatusForbidden, "edit window expired")
		return
	default:
		writeInternalError(r.Context(), w, "failed to edit freet: "+err.Error())
		return
	}

	writeOK(w, http.StatusOK, toAPIFreet(p))
}

func (s server) deleteFreet(w http.ResponseWriter, r *http.Request) {
	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := chi.URLParam(r, "freetID")

	p, err := s.s.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "freet not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to get freet: "+err.Error())
		return
	}

	if p.AuthorID != user {
		writeError(w, http.StatusForbidden, "only the author can delete a freet")
		return
	}

	if _, err := s.s.DeletePost(r.Context(), id); err != nil {
		writeInternalError(r.Context(), w, "failed to delete freet: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) likeFreet(w http.ResponseWriter, r *http.Request) {
	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := s.s.LikePost(r.Context(), user, chi.URLParam(r, "freetID")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "freet or user not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to like freet: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) unlikeFreet(w http.ResponseWriter, r *http.Request) {
	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := s.s.UnlikePost(r.Context(), user, chi.URLParam(r, "freetID")); err != nil {
		writeInternalError(r.Context(), w, "failed to unlike freet: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	u, err := s.s.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "username is taken")
			return
		}
		writeInternalError(r.Context(), w, "failed to create user: "+err.Error())
		return
	}

	writeOK(w, http.StatusCreated, toAPIUser(u))
}

func (s server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.s.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to get user: "+err.Error())
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) deleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := s.s.DeleteUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to delete user: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) setUserVerified(w http.ResponseWriter, r *http.Request) {
	// administrative endpoint, the gateway routes it for admins only

	var req SetVerifiedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	if err := s.s.SetUserVerified(r.Context(), chi.URLParam(r, "userID"), req.Verified); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to set verified flag: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) createComment(w http.ResponseWriter, r *http.Request) {
	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	c, err := s.s.CreateComment(r.Context(), user, chi.URLParam(r, "freetID"), req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "freet or user not found")
			return
		}
		writeInternalError(r.Context(), w, "failed to create comment: "+err.Error())
		return
	}

	writeOK(w, http.StatusCreated, toAPIComment(c))
}

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	cc, err := s.s.ListComments(r.Context(), chi.URLParam(r, "freetID"))
	if err != nil {
		writeInternalError(r.Context(), w, "failed to list comments: "+err.Error())
		return
	}

	writeOK(w, http.StatusOK, toAPIComments(cc))
}

func (s server) deleteComment(w http.ResponseWriter, r *http.Request) {
	user, ok := authenticatedUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	_, err := s.s.DeleteComment(r.Context(), chi.URLParam(r, "commentID"), user)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "comment not found")
		return
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "only the commenter can delete a comment")
		return
	default:
		writeInternalError(r.Context(), w, "failed to delete comment: "+err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
