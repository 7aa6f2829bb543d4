package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/service"
)

// maxBatchIDs bounds a single intake batch.
const maxBatchIDs = 10000

// Intake is the post intake surface used by the handlers.
type Intake interface {
	Submit(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error)
	Pending(ctx context.Context) ([]domain.ExternalID, error)
	Exists(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error)
	PostCount(ctx context.Context) (int64, error)
}

// Uploader ingests manually uploaded posts.
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*domain.Download, error)
}

// PostHandler handles post intake requests.
type PostHandler struct {
	intake        Intake
	uploader      Uploader
	maxUploadSize int64
	logger        *slog.Logger
}

// NewPostHandler creates a new post handler.
func NewPostHandler(intake Intake, uploader Uploader, maxUploadSize int64, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		intake:        intake,
		uploader:      uploader,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// PostIDs is the request and response body carrying post ids.
type PostIDs struct {
	PostIDs []domain.ExternalID `json:"postIds"`
}

// CountResponse is returned by GET /api/posts.
type CountResponse struct {
	Count int64 `json:"count"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	OK       bool   `json:"ok"`
	PostID   int64  `json:"postId"`
	FileName string `json:"fileName"`
	Original bool   `json:"original"`
}

// Submit handles POST /api/posts
func (h *PostHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeIDs(w, r)
	if !ok {
		return
	}

	inserted, err := h.intake.Submit(r.Context(), req.PostIDs)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPostID) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("submit failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to submit posts")
		return
	}

	h.writeJSON(w, http.StatusAccepted, PostIDs{PostIDs: nonNil(inserted)})
}

// Count handles GET /api/posts
func (h *PostHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.intake.PostCount(r.Context())
	if err != nil {
		h.logger.Error("count failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to count posts")
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// Exists handles POST /api/posts/exists
func (h *PostHandler) Exists(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeIDs(w, r)
	if !ok {
		return
	}

	existing, err := h.intake.Exists(r.Context(), req.PostIDs)
	if err != nil {
		h.logger.Error("exists check failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to check posts")
		return
	}
	h.writeJSON(w, http.StatusOK, PostIDs{PostIDs: nonNil(existing)})
}

// Pending handles GET /api/posts/pending
func (h *PostHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.intake.Pending(r.Context())
	if err != nil {
		h.logger.Error("pending query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list pending posts")
		return
	}
	h.writeJSON(w, http.StatusOK, PostIDs{PostIDs: nonNil(pending)})
}

// Upload handles POST /api/upload with multipart fields id, image and tags.
func (h *PostHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	id, err := domain.ParseExternalID(r.FormValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var tags []domain.Tag
	if raw := strings.TrimSpace(r.FormValue("tags")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid tags")
			return
		}
		for i := range tags {
			kind, err := domain.ParseTagKind(string(tags[i].Kind))
			if err != nil {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			tags[i].Kind = kind
		}
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing image")
		return
	}
	defer file.Close()

	d, err := h.uploader.Upload(r.Context(), service.UploadRequest{
		ExternalID: id,
		Content:    file,
		Tags:       tags,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyDownloaded):
			h.writeError(w, http.StatusConflict, "post already downloaded")
		case errors.Is(err, domain.ErrUnsupportedMedia), errors.Is(err, domain.ErrEmptyContent):
			h.writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, domain.ErrFileTooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, domain.ErrStorageFull):
			h.writeError(w, http.StatusInsufficientStorage, err.Error())
		default:
			h.logger.Error("upload failed", "post_id", id, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to ingest upload")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, UploadResponse{
		OK:       true,
		PostID:   int64(d.ExternalID),
		FileName: d.FileName,
		Original: d.Original,
	})
}

func (h *PostHandler) decodeIDs(w http.ResponseWriter, r *http.Request) (*PostIDs, bool) {
	var req PostIDs
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if len(req.PostIDs) > maxBatchIDs {
		h.writeError(w, http.StatusRequestEntityTooLarge, "too many post ids")
		return nil, false
	}
	return &req, true
}

func (h *PostHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (h *PostHandler) writeError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func nonNil(ids []domain.ExternalID) []domain.ExternalID {
	if ids == nil {
		return []domain.ExternalID{}
	}
	return ids
}
