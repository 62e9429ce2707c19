package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/UkralStul/blogsphere/internal/auth"
	"github.com/UkralStul/blogsphere/internal/blog"
	"github.com/UkralStul/blogsphere/internal/dataloader"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/metrics"
	"github.com/UkralStul/blogsphere/internal/realtime"
	"github.com/UkralStul/blogsphere/internal/social"
	"github.com/UkralStul/blogsphere/internal/storage"
)

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	blogs   *blog.Service
	social  *social.Service
	auth    *auth.Service
	hub     *realtime.Hub
	store   storage.Storage
	log     *logger.Logger
	origins []string
}

type Deps struct {
	Blogs       *blog.Service
	Social      *social.Service
	Auth        *auth.Service
	Hub         *realtime.Hub
	Store       storage.Storage
	Log         *logger.Logger
	CORSOrigins []string
}

func NewServer(d Deps) *Server {
	return &Server{
		blogs:   d.Blogs,
		social:  d.Social,
		auth:    d.Auth,
		hub:     d.Hub,
		store:   d.Store,
		log:     d.Log.With("component", "http"),
		origins: d.CORSOrigins,
	}
}

// Router builds the full handler. Application routes are served both at the
// root and under /api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeMsg(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/api", s.routes())
	r.Mount("/", s.routes())
	return r
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(dataloader.Middleware(s.store))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.With(s.auth.OptionalAuth).Get("/user/{id}", s.profile)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Patch("/update", s.updateProfile)
			r.Delete("/me", s.deleteAccount)

			r.Post("/bookmark/{blogId}", s.bookmark)
			r.Delete("/bookmark/{blogId}", s.unbookmark)
			r.Get("/bookmarks", s.listBookmarks)

			r.Post("/follow/{id}", s.follow)
			r.Post("/unfollow/{id}", s.unfollow)
			r.Get("/following", s.listFollowing)
			r.Get("/followers", s.listFollowers)
		})
	})

	r.Route("/blogs", func(r chi.Router) {
		r.Get("/", s.listPosts)
		r.With(s.auth.RequireAuth).Post("/", s.createPost)
		r.With(s.auth.OptionalAuth).Get("/search", s.searchPosts)
		r.With(s.auth.RequireAuth).Get("/feed", s.feed)
		r.Get("/user/{userId}", s.listPostsByAuthor)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getPost)
			r.Get("/comments", s.listComments)
			r.Get("/comments/stream", s.streamComments)
			r.With(s.auth.OptionalAuth).Get("/likes", s.likeState)

			r.Group(func(r chi.Router) {
				r.Use(s.auth.RequireAuth)
				r.Put("/", s.updatePost)
				r.Delete("/", s.deletePost)
				r.Post("/comments", s.addComment)
				r.Put("/comments/{commentId}", s.editComment)
				r.Delete("/comments/{commentId}", s.deleteComment)
				r.Post("/comments/{commentId}/replies", s.addReply)
				r.Post("/like", s.like)
				r.Post("/unlike", s.unlike)
			})
		})
	})
	return r
}

// requestLogger logs one line per request after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
