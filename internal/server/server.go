// Package server freetd
//
// The freetd service provides access to freets, likes and comments.
//
//     Schemes: https
//     BasePath: /v1
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//
// swagger:meta
package server

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/freetnet/freetd/internal/service"
)

type server struct {
	s service.Service
}

// SetupRouter setups handlers to chi router.
func SetupRouter(s service.Service, r chi.Router, timeout time.Duration) {
	r.Use(
		middleware.RequestID,
		loggerMiddleware,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		bodyLimiterMiddleware(maxBodySize),
	)

	srv := server{
		s: s,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", srv.createUser)
		r.Get("/users/{username}", srv.getUser)
		r.Delete("/users/me", srv.deleteMe)
		r.Put("/users/{userID}/verified", srv.setUserVerified)

		r.Get("/freets", srv.listFreets)
		r.Post("/freets", srv.createFreet)
		r.Get("/freets/{freetID}", srv.getFreet)
		r.Put("/freets/{freetID}", srv.editFreet)
		r.Delete("/freets/{freetID}", srv.deleteFreet)

		r.Put("/freets/{freetID}/like", srv.likeFreet)
		r.Delete("/freets/{freetID}/like", srv.unlikeFreet)

		r.Get("/freets/{freetID}/comments", srv.listComments)
		r.Post("/freets/{freetID}/comments", srv.createComment)
		r.Delete("/comments/{commentID}", srv.deleteComment)
	})
}
