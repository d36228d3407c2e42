package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mathclub/festival-bbs/internal/auth"
	"github.com/mathclub/festival-bbs/internal/metrics"
)

// Dependencies are the handlers mounted next to the REST API.
type Dependencies struct {
	Handler        *Handler
	Admin          *auth.Jwt
	GraphQL        http.Handler
	Live           http.Handler
	AllowedOrigins []string
	RequestTimeout time.Duration
	Log            *slog.Logger
}

// NewRouter creates the chi router with all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := deps.Handler
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())
	if deps.GraphQL != nil {
		r.Handle("/query", deps.GraphQL)
	}
	if deps.Live != nil {
		r.Handle("/ws/boards/{boardID}", deps.Live)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(middleware.Timeout(deps.RequestTimeout))
		}

		r.Get("/boards", h.ListBoards)
		r.Get("/boards/{boardID}", h.GetBoard)
		r.Get("/boards/{boardID}/posts", h.ListPostsPaged)
		r.Get("/boards/{boardID}/posts/all", h.ListAllPosts)
		r.Post("/boards/{boardID}/posts", h.CreatePost)
		r.Get("/metadata", h.GetMetadata)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly(deps.Admin))
			r.Patch("/boards/{boardID}", h.UpdateBoard)
			r.Delete("/boards/{boardID}/posts/{postID}", h.DeletePost)
			r.Post("/metadata/recompute", h.RecomputeMetadata)
			r.Get("/export", h.Export)
		})
	})

	return r
}
