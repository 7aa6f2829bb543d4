package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/iconidentify/favmirror/internal/domain"
)

func newTestPostHandler() (*PostHandler, *mockIntake, *mockUploader) {
	intake := newMockIntake()
	uploader := &mockUploader{}
	return NewPostHandler(intake, uploader, 1<<20, testLogger()), intake, uploader
}

func decodeIDs(t *testing.T, w *httptest.ResponseRecorder) []domain.ExternalID {
	t.Helper()
	var resp PostIDs
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.PostIDs
}

func TestPostHandler_Submit(t *testing.T) {
	handler, intake, _ := newTestPostHandler()
	intake.known[2] = true

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"postIds":[1,2,3]}`))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if got := decodeIDs(t, w); !reflect.DeepEqual(got, []domain.ExternalID{1, 3}) {
		t.Errorf("postIds = %v, want [1 3]", got)
	}
}

func TestPostHandler_SubmitNothingNew(t *testing.T) {
	handler, intake, _ := newTestPostHandler()
	intake.known[1] = true

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"postIds":[1]}`))
	w := httptest.NewRecorder()

	handler.Submit(w, req)

	if !strings.Contains(w.Body.String(), `"postIds":[]`) {
		t.Errorf("body = %s, want an empty postIds array", w.Body.String())
	}
}

func TestPostHandler_SubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"malformed body", `{"postIds":`, nil, http.StatusBadRequest},
		{"wrong type", `{"postIds":["x"]}`, nil, http.StatusBadRequest},
		{"negative id", `{"postIds":[-1]}`, nil, http.StatusBadRequest},
		{"store failure", `{"postIds":[1]}`, errors.New("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, intake, _ := newTestPostHandler()
			intake.err = tt.serviceErr

			req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.Submit(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestPostHandler_Count(t *testing.T) {
	handler, intake, _ := newTestPostHandler()
	intake.known[1] = true
	intake.known[2] = true

	w := httptest.NewRecorder()
	handler.Count(w, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	var resp CountResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestPostHandler_Exists(t *testing.T) {
	handler, intake, _ := newTestPostHandler()
	intake.downloaded[5] = true

	req := httptest.NewRequest(http.MethodPost, "/api/posts/exists", strings.NewReader(`{"postIds":[4,5,6]}`))
	w := httptest.NewRecorder()

	handler.Exists(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decodeIDs(t, w); !reflect.DeepEqual(got, []domain.ExternalID{5}) {
		t.Errorf("postIds = %v, want [5]", got)
	}
}

func TestPostHandler_Pending(t *testing.T) {
	handler, intake, _ := newTestPostHandler()
	intake.pending = []domain.ExternalID{9, 4}

	w := httptest.NewRecorder()
	handler.Pending(w, httptest.NewRequest(http.MethodGet, "/api/posts/pending", nil))

	if got := decodeIDs(t, w); !reflect.DeepEqual(got, []domain.ExternalID{9, 4}) {
		t.Errorf("postIds = %v, want [9 4]", got)
	}
}

func newUploadRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "upload.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPostHandler_Upload(t *testing.T) {
	handler, _, uploader := newTestPostHandler()

	req := newUploadRequest(t, map[string]string{
		"id":   "42",
		"tags": `[{"name":"Samus_Aran","kind":"character"},{"name":"metroid","kind":"copyright"},{"name":"solo"}]`,
	}, []byte("image bytes"))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OK || resp.PostID != 42 || resp.FileName != "0000001_42.png" {
		t.Errorf("response = %+v", resp)
	}

	if uploader.req.ExternalID != 42 {
		t.Errorf("ExternalID = %d, want 42", uploader.req.ExternalID)
	}
	if string(uploader.content) != "image bytes" {
		t.Errorf("content = %q", uploader.content)
	}
	wantTags := []domain.Tag{
		{Name: "Samus_Aran", Kind: domain.TagKindCharacter},
		{Name: "metroid", Kind: domain.TagKindCopyright},
		{Name: "solo"},
	}
	if !reflect.DeepEqual(uploader.req.Tags, wantTags) {
		t.Errorf("tags = %+v, want %+v", uploader.req.Tags, wantTags)
	}
}

func TestPostHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		image      []byte
		uploadErr  error
		wantStatus int
	}{
		{"missing id", map[string]string{}, []byte("x"), nil, http.StatusBadRequest},
		{"invalid id", map[string]string{"id": "abc"}, []byte("x"), nil, http.StatusBadRequest},
		{"zero id", map[string]string{"id": "0"}, []byte("x"), nil, http.StatusBadRequest},
		{"missing image", map[string]string{"id": "1"}, nil, nil, http.StatusBadRequest},
		{"malformed tags", map[string]string{"id": "1", "tags": "not json"}, []byte("x"), nil, http.StatusBadRequest},
		{"unknown tag kind", map[string]string{"id": "1", "tags": `[{"name":"a","kind":"weird"}]`}, []byte("x"), nil, http.StatusBadRequest},
		{"already downloaded", map[string]string{"id": "1"}, []byte("x"), domain.ErrAlreadyDownloaded, http.StatusConflict},
		{"unsupported", map[string]string{"id": "1"}, []byte("x"), domain.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"empty", map[string]string{"id": "1"}, []byte("x"), domain.ErrEmptyContent, http.StatusUnsupportedMediaType},
		{"too large", map[string]string{"id": "1"}, []byte("x"), domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"storage full", map[string]string{"id": "1"}, []byte("x"), domain.ErrStorageFull, http.StatusInsufficientStorage},
		{"internal", map[string]string{"id": "1"}, []byte("x"), errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, uploader := newTestPostHandler()
			uploader.err = tt.uploadErr

			w := httptest.NewRecorder()
			handler.Upload(w, newUploadRequest(t, tt.fields, tt.image))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestPostHandler_UploadTooLarge(t *testing.T) {
	handler := NewPostHandler(newMockIntake(), &mockUploader{}, 1024, testLogger())

	w := httptest.NewRecorder()
	handler.Upload(w, newUploadRequest(t, map[string]string{"id": "1"}, bytes.Repeat([]byte("a"), 4096)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
