package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/iconidentify/favmirror/internal/domain"
	"github.com/iconidentify/favmirror/internal/queue"
)

func drain(t *testing.T, q *queue.Queue) []domain.ExternalID {
	t.Helper()
	var ids []domain.ExternalID
	for q.Len() > 0 {
		id, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestIntakeService_SubmitIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ids := []domain.ExternalID{10, 11, 12}
	first, err := env.intake.Submit(ctx, ids)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !reflect.DeepEqual(first, ids) {
		t.Errorf("first Submit = %v, want %v", first, ids)
	}

	second, err := env.intake.Submit(ctx, ids)
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second Submit = %v, want empty", second)
	}

	if got := drain(t, env.queue); !reflect.DeepEqual(got, ids) {
		t.Errorf("queued = %v, want each id exactly once: %v", got, ids)
	}
}

func TestIntakeService_SubmitDedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.intake.Submit(ctx, []domain.ExternalID{1, 2}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	drain(t, env.queue)

	// N=5 ids with K=2 already known.
	got, err := env.intake.Submit(ctx, []domain.ExternalID{1, 3, 2, 4, 5})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	want := []domain.ExternalID{3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Submit = %v, want %v", got, want)
	}
	if queued := drain(t, env.queue); !reflect.DeepEqual(queued, want) {
		t.Errorf("queued = %v, want %v", queued, want)
	}
}

func TestIntakeService_SubmitInvalidID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.intake.Submit(context.Background(), []domain.ExternalID{1, -4})
	if !errors.Is(err, domain.ErrInvalidPostID) {
		t.Errorf("expected ErrInvalidPostID, got %v", err)
	}
	if n, _ := env.repo.PostCount(context.Background()); n != 0 {
		t.Errorf("PostCount = %d, a rejected batch inserts nothing", n)
	}
}

func TestIntakeService_SubmitAfterQueueClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.queue.Close()

	got, err := env.intake.Submit(ctx, []domain.ExternalID{8})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !reflect.DeepEqual(got, []domain.ExternalID{8}) {
		t.Errorf("Submit = %v, want [8]", got)
	}

	pending, _ := env.intake.Pending(ctx)
	if !reflect.DeepEqual(pending, []domain.ExternalID{8}) {
		t.Errorf("Pending = %v, want [8]", pending)
	}
}

// Posts without a download record are requeued by the next process start.
func TestIntakeService_RestartRecovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addRemote(1, content(pngHeader, 128))
	if _, err := env.intake.Submit(ctx, []domain.ExternalID{1, 2, 3}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := env.ingest.Process(ctx, 1); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	// Simulate a crash: the queued work is lost.
	env.queue.Close()

	restarted := queue.New()
	intake := NewIntakeService(env.repo, restarted, testLogger())

	n, err := intake.RequeuePending(ctx)
	if err != nil {
		t.Fatalf("RequeuePending failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RequeuePending = %d, want 2", n)
	}
	if got := drain(t, restarted); !reflect.DeepEqual(got, []domain.ExternalID{3, 2}) {
		t.Errorf("requeued = %v, want newest first [3 2]", got)
	}
}

func TestIntakeService_RequeuePendingEmpty(t *testing.T) {
	env := newTestEnv(t)

	n, err := env.intake.RequeuePending(context.Background())
	if err != nil || n != 0 {
		t.Errorf("RequeuePending = %d, %v; want 0, nil", n, err)
	}
}

func TestIntakeService_ExistsAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addRemote(1, content(pngHeader, 128))
	if _, err := env.intake.Submit(ctx, []domain.ExternalID{1, 2}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	drain(t, env.queue)
	if err := env.ingest.Process(ctx, 1); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	exists, err := env.intake.Exists(ctx, []domain.ExternalID{1, 2, 3})
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !reflect.DeepEqual(exists, []domain.ExternalID{1}) {
		t.Errorf("Exists = %v, want [1]", exists)
	}

	stats, err := env.intake.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := Stats{Posts: 2, Downloads: 1, Pending: 1, Queued: 0}
	if *stats != want {
		t.Errorf("Stats = %+v, want %+v", *stats, want)
	}
}
