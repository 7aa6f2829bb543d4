package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/service"
	"github.com/iconidentify/favmirror/pkg/ui"
)

// Gallery pages through downloaded posts and resolves their files.
type Gallery interface {
	Page(ctx context.Context, term string, page int) (*service.GalleryPage, error)
	File(ctx context.Context, id domain.ExternalID, thumbnail bool) (*domain.Download, string, error)
}

// GalleryHandler serves the browsing UI and the mirrored files.
type GalleryHandler struct {
	gallery Gallery
	logger  *slog.Logger
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(gallery Gallery, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{
		gallery: gallery,
		logger:  logger,
	}
}

// Index handles GET /?term=&page=
func (h *GalleryHandler) Index(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	data, err := h.gallery.Page(r.Context(), r.URL.Query().Get("term"), page)
	if err != nil {
		h.logger.Error("gallery page failed", "error", err)
		http.Error(w, "failed to load gallery", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := ui.RenderGallery(&buf, data); err != nil {
		h.logger.Error("render gallery failed", "error", err)
		http.Error(w, "failed to render gallery", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// Image handles GET /image/{postID}
func (h *GalleryHandler) Image(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

// Thumbnail handles GET /thumb/{postID}
func (h *GalleryHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *GalleryHandler) serve(w http.ResponseWriter, r *http.Request, thumbnail bool) {
	id, err := domain.ParseExternalID(chi.URLParam(r, "postID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	d, path, err := h.gallery.File(r.Context(), id, thumbnail)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("resolve file failed", "post_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve file")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	contentType := d.MIME
	if thumbnail && d.IsVideo() {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	// http.ServeContent handles Range requests automatically
	http.ServeContent(w, r, filepath.Base(path), stat.ModTime(), file)
}
