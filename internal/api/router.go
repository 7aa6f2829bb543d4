package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/favmirror/internal/api/handler"
	mw "github.com/iconidentify/favmirror/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	postHandler *handler.PostHandler,
	searchHandler *handler.SearchHandler,
	healthHandler *handler.HealthHandler,
	galleryHandler *handler.GalleryHandler,
	allowedOrigin string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	// The companion script posts from the board's origin.
	r.Use(mw.CORS(allowedOrigin))

	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// Gallery
	r.Get("/", galleryHandler.Index)
	r.Get("/image/{postID}", galleryHandler.Image)
	r.Get("/thumb/{postID}", galleryHandler.Thumbnail)

	r.Route("/api", func(r chi.Router) {
		r.Post("/posts", postHandler.Submit)
		r.Get("/posts", postHandler.Count)
		r.Post("/posts/exists", postHandler.Exists)
		r.Get("/posts/pending", postHandler.Pending)
		r.Post("/upload", postHandler.Upload)

		r.Get("/search", searchHandler.Search)
		r.Get("/autocomplete", searchHandler.Autocomplete)
	})

	return r
}
