package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/media"
)

func TestIngestService_ProcessImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addRemote(99, content(pngHeader, 2048), "Blue_Sky", "cloud")
	if _, err := env.intake.Submit(ctx, []domain.ExternalID{99}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := env.ingest.Process(ctx, 99); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	d, err := env.repo.GetDownload(ctx, 99)
	if err != nil {
		t.Fatalf("GetDownload failed: %v", err)
	}
	if d.FileName != "0000001_99.png" {
		t.Errorf("FileName = %q, want 0000001_99.png", d.FileName)
	}
	if !d.Original || d.MIME != "image/png" {
		t.Errorf("download = %+v", d)
	}

	data, err := os.ReadFile(domain.FilePath(env.cfg.BasePath, d.FileName))
	if err != nil {
		t.Fatalf("placed file missing: %v", err)
	}
	if len(data) != 2048 {
		t.Errorf("placed file has %d bytes, want 2048", len(data))
	}

	ids, err := env.intake.Search(ctx, "blue_sky cloud")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []domain.ExternalID{99}) {
		t.Errorf("Search = %v, want [99]", ids)
	}

	if n := env.tempEntries(t); n != 0 {
		t.Errorf("temp dir has %d leftover files", n)
	}

	pending, _ := env.intake.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("Pending = %v, want empty", pending)
	}
}

func TestIngestService_ProcessVideo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addRemote(7, content(mp4Header, 4096), "clip")
	if _, err := env.intake.Submit(ctx, []domain.ExternalID{7}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := env.ingest.Process(ctx, 7); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	d, err := env.repo.GetDownload(ctx, 7)
	if err != nil {
		t.Fatalf("GetDownload failed: %v", err)
	}
	if d.FileName != "0000001_7.mp4" || !d.IsVideo() {
		t.Errorf("download = %+v", d)
	}
	if _, err := os.Stat(domain.FilePath(env.cfg.BasePath, d.FileName)); err != nil {
		t.Errorf("video missing: %v", err)
	}
	if _, err := os.Stat(domain.ThumbnailPath(env.cfg.BasePath, d.FileName)); err != nil {
		t.Errorf("thumbnail missing: %v", err)
	}
	if n := env.tempEntries(t); n != 0 {
		t.Errorf("temp dir has %d leftover files", n)
	}
}

func TestIngestService_ProcessFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(env *testEnv)
		wantErr   error
		permanent bool
		op        string
	}{
		{
			name:      "remote post missing",
			setup:     func(env *testEnv) {},
			wantErr:   domain.ErrRemotePostNotFound,
			permanent: true,
			op:        "fetch metadata",
		},
		{
			name: "content url expired",
			setup: func(env *testEnv) {
				env.source.posts[5] = &domain.RemotePost{ID: 5, FileURL: "https://cdn.example.org/gone"}
			},
			wantErr:   domain.ErrURLExpired,
			permanent: false,
			op:        "download",
		},
		{
			name: "unsupported content",
			setup: func(env *testEnv) {
				env.addRemote(5, []byte("<html>not media</html>"))
			},
			wantErr:   domain.ErrUnsupportedMedia,
			permanent: true,
			op:        "classify",
		},
		{
			name: "empty content",
			setup: func(env *testEnv) {
				env.addRemote(5, []byte{})
			},
			wantErr:   domain.ErrEmptyContent,
			permanent: true,
			op:        "download",
		},
		{
			name: "content too large",
			setup: func(env *testEnv) {
				env.cfg.MaxFileSize = 100
				env.ingest.cfg.MaxFileSize = 100
				env.addRemote(5, content(pngHeader, 101))
			},
			wantErr:   domain.ErrFileTooLarge,
			permanent: true,
			op:        "download",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			tt.setup(env)

			if _, err := env.intake.Submit(ctx, []domain.ExternalID{5}); err != nil {
				t.Fatalf("Submit failed: %v", err)
			}

			err := env.ingest.Process(ctx, 5)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var pe *domain.PostError
			if !errors.As(err, &pe) || pe.Op != tt.op || pe.PostID != 5 {
				t.Errorf("expected PostError{5, %q}, got %v", tt.op, err)
			}
			if domain.IsPermanent(err) != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v", domain.IsPermanent(err), tt.permanent)
			}

			if _, err := env.repo.GetDownload(ctx, 5); !errors.Is(err, domain.ErrPostNotFound) {
				t.Errorf("failed post must not have a download record, got %v", err)
			}
			pending, _ := env.intake.Pending(ctx)
			if !reflect.DeepEqual(pending, []domain.ExternalID{5}) {
				t.Errorf("Pending = %v, want [5]", pending)
			}
			if n := env.tempEntries(t); n != 0 {
				t.Errorf("temp dir has %d leftover files", n)
			}
		})
	}
}

func TestIngestService_ProcessUnknownPost(t *testing.T) {
	env := newTestEnv(t)
	env.addRemote(3, content(pngHeader, 64))

	err := env.ingest.Process(context.Background(), 3)
	if !errors.Is(err, domain.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
	if env.downloader.calls != 0 {
		t.Error("content should not be fetched for a post unknown to the store")
	}
}

// A placement failure after the record is committed leaves a record without
// its file. The state is observable and reported by AuditDownloads.
func TestIngestService_PlacementFailureLeavesRecordWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addRemote(42, content(pngHeader, 512), "tag")
	if _, err := env.intake.Submit(ctx, []domain.ExternalID{42}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	placeErr := errors.New("disk unplugged")
	env.ingest.place = func(g *media.Guard, src, dst string) error {
		return placeErr
	}

	err := env.ingest.Process(ctx, 42)
	if !errors.Is(err, placeErr) {
		t.Fatalf("expected placement error, got %v", err)
	}

	d, err := env.repo.GetDownload(ctx, 42)
	if err != nil {
		t.Fatalf("download record should exist after persist: %v", err)
	}
	if _, err := os.Stat(domain.FilePath(env.cfg.BasePath, d.FileName)); !os.IsNotExist(err) {
		t.Errorf("file should not exist at %s, stat err = %v", d.FileName, err)
	}
	if n := env.tempEntries(t); n != 0 {
		t.Errorf("temp dir has %d leftover files", n)
	}

	missing, err := env.ingest.AuditDownloads(ctx)
	if err != nil {
		t.Fatalf("AuditDownloads failed: %v", err)
	}
	if missing != 1 {
		t.Errorf("AuditDownloads = %d, want 1", missing)
	}
}

func TestIngestService_AuditDownloadsClean(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addRemote(1, content(mp4Header, 256))
	env.addRemote(2, content(pngHeader, 256))
	if _, err := env.intake.Submit(ctx, []domain.ExternalID{1, 2}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	for _, id := range []domain.ExternalID{1, 2} {
		if err := env.ingest.Process(ctx, id); err != nil {
			t.Fatalf("Process(%d) failed: %v", id, err)
		}
	}

	missing, err := env.ingest.AuditDownloads(ctx)
	if err != nil {
		t.Fatalf("AuditDownloads failed: %v", err)
	}
	if missing != 0 {
		t.Errorf("AuditDownloads = %d, want 0", missing)
	}

	// Removing a thumbnail makes the video record incomplete.
	d, _ := env.repo.GetDownload(ctx, 1)
	os.Remove(domain.ThumbnailPath(env.cfg.BasePath, d.FileName))

	missing, _ = env.ingest.AuditDownloads(ctx)
	if missing != 1 {
		t.Errorf("AuditDownloads = %d, want 1", missing)
	}
}

func TestIngestService_Upload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tags := []domain.Tag{
		{Name: "Artist_Name", Kind: domain.TagKindArtist},
		{Name: "scenery", Kind: domain.TagKindGeneral},
	}
	d, err := env.ingest.Upload(ctx, UploadRequest{
		ExternalID: 555,
		Content:    bytes.NewReader(content(pngHeader, 1024)),
		Tags:       tags,
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if d.ExternalID != 555 {
		t.Errorf("ExternalID = %d, want 555", d.ExternalID)
	}
	if _, err := os.Stat(domain.FilePath(env.cfg.BasePath, d.FileName)); err != nil {
		t.Errorf("uploaded file missing: %v", err)
	}

	suggestions, _ := env.intake.Autocomplete(ctx, "artist")
	if len(suggestions) != 1 || suggestions[0].Name != "artist_name" || suggestions[0].Kind != domain.TagKindArtist {
		t.Errorf("Autocomplete = %+v", suggestions)
	}

	_, err = env.ingest.Upload(ctx, UploadRequest{
		ExternalID: 555,
		Content:    bytes.NewReader(content(pngHeader, 1024)),
	})
	if !errors.Is(err, domain.ErrAlreadyDownloaded) {
		t.Errorf("expected ErrAlreadyDownloaded, got %v", err)
	}
}

func TestIngestService_UploadInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ingest.Upload(ctx, UploadRequest{ExternalID: 0, Content: bytes.NewReader(pngHeader)}); !errors.Is(err, domain.ErrInvalidPostID) {
		t.Errorf("expected ErrInvalidPostID, got %v", err)
	}

	_, err := env.ingest.Upload(ctx, UploadRequest{ExternalID: 1, Content: bytes.NewReader([]byte("plain text"))})
	if !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Errorf("expected ErrUnsupportedMedia, got %v", err)
	}
	// Nothing is recorded for a rejected upload.
	if n, _ := env.repo.PostCount(ctx); n != 0 {
		t.Errorf("PostCount = %d, want 0", n)
	}
}
