package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"image-vault/internal/collection"
)

type fakeGenerator struct {
	mu     sync.Mutex
	seen   []GenerationRequest
	failOn string
}

func (g *fakeGenerator) Generate(ctx context.Context, collectionID, imageID string, kind collection.ArtifactKind, width, height int) (*collection.Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, GenerationRequest{CollectionID: collectionID, ImageID: imageID, Kind: kind, Width: width, Height: height})
	if imageID == g.failOn {
		return nil, errors.New("generation failed")
	}
	return &collection.Artifact{ImageID: imageID}, nil
}

type fakeProgress struct {
	mu        sync.Mutex
	completed map[string]int
	failed    map[string]int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{completed: make(map[string]int), failed: make(map[string]int)}
}

func (p *fakeProgress) RecordJobProgress(ctx context.Context, jobID string, completed, failed int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed[jobID] += completed
	p.failed[jobID] += failed
	return nil
}

func TestQueueProcessesAllRequests(t *testing.T) {
	gen := &fakeGenerator{}
	progress := newFakeProgress()
	q := New(gen, progress, 16)
	q.Start(3)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		req := GenerationRequest{
			JobID:        "job-1",
			CollectionID: "col-1",
			ImageID:      string(rune('a' + i)),
			Kind:         collection.KindThumbnail,
			Width:        200,
			Height:       200,
		}
		if err := q.Publish(ctx, req); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	q.Close()

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if len(gen.seen) != 10 {
		t.Errorf("processed %d requests, want 10", len(gen.seen))
	}
	if progress.completed["job-1"] != 10 {
		t.Errorf("completed = %d, want 10", progress.completed["job-1"])
	}
}

func TestQueueRecordsFailures(t *testing.T) {
	gen := &fakeGenerator{failOn: "bad"}
	progress := newFakeProgress()
	q := New(gen, progress, 16)
	q.Start(1)

	ctx := context.Background()
	for _, id := range []string{"ok1", "bad", "ok2"} {
		if err := q.Publish(ctx, GenerationRequest{JobID: "job-2", ImageID: id, Kind: collection.KindCache, Width: 1280, Height: 720}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	q.Close()

	if progress.completed["job-2"] != 2 {
		t.Errorf("completed = %d, want 2", progress.completed["job-2"])
	}
	if progress.failed["job-2"] != 1 {
		t.Errorf("failed = %d, want 1", progress.failed["job-2"])
	}
}

func TestQueueSkipsProgressWithoutJob(t *testing.T) {
	gen := &fakeGenerator{}
	progress := newFakeProgress()
	q := New(gen, progress, 4)
	q.Start(1)

	if err := q.Publish(context.Background(), GenerationRequest{ImageID: "x", Kind: collection.KindThumbnail, Width: 200, Height: 200}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	q.Close()

	if len(progress.completed) != 0 {
		t.Errorf("progress recorded for %d jobs, want none", len(progress.completed))
	}
}

type contextAwareGenerator struct {
	mu        sync.Mutex
	cancelled int
}

func (g *contextAwareGenerator) Generate(ctx context.Context, collectionID, imageID string, kind collection.ArtifactKind, width, height int) (*collection.Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ctx.Err() != nil {
		g.cancelled++
		return nil, ctx.Err()
	}
	return &collection.Artifact{ImageID: imageID}, nil
}

func TestCloseDrainsAcceptedWorkWithLiveContext(t *testing.T) {
	gen := &contextAwareGenerator{}
	progress := newFakeProgress()
	q := New(gen, progress, 16)

	// Queue work before the caller's own context goes away; a shutdown
	// signal must not fail generations that were already accepted.
	publishCtx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		req := GenerationRequest{JobID: "job-3", ImageID: string(rune('a' + i)), Kind: collection.KindThumbnail, Width: 200, Height: 200}
		if err := q.Publish(publishCtx, req); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	cancel()

	q.Start(1)
	q.Close()

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.cancelled != 0 {
		t.Errorf("%d generations saw a cancelled context, want 0", gen.cancelled)
	}
	if progress.completed["job-3"] != 5 {
		t.Errorf("completed = %d, want 5", progress.completed["job-3"])
	}
	if progress.failed["job-3"] != 0 {
		t.Errorf("failed = %d, want 0", progress.failed["job-3"])
	}
}

func TestPublishHonorsCancellation(t *testing.T) {
	// No workers started: a full queue stays full.
	q := New(&fakeGenerator{}, newFakeProgress(), 1)

	ctx := context.Background()
	if err := q.Publish(ctx, GenerationRequest{ImageID: "fill"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := q.Publish(cancelled, GenerationRequest{ImageID: "blocked"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish() error = %v, want deadline exceeded", err)
	}
}
