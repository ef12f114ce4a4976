package queue

import (
	"context"
	"sync"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
)

// GenerationRequest is one unit of artifact work. SourcePath is carried for
// observability; generation re-resolves the source from metadata so a stale
// path in a long-queued request cannot bypass validation.
type GenerationRequest struct {
	JobID        string
	CollectionID string
	ImageID      string
	SourcePath   string
	Kind         collection.ArtifactKind
	Width        int
	Height       int
}

// Generator produces one artifact for a request.
type Generator interface {
	Generate(ctx context.Context, collectionID, imageID string, kind collection.ArtifactKind, width, height int) (*collection.Artifact, error)
}

// ProgressRecorder persists job progress deltas.
type ProgressRecorder interface {
	RecordJobProgress(ctx context.Context, jobID string, completed, failed int) error
}

// Queue is a bounded in-process work queue feeding artifact generation
// workers. Publish blocks when the queue is full, providing natural
// backpressure on onboarding bursts.
type Queue struct {
	requests chan GenerationRequest
	gen      Generator
	progress ProgressRecorder
	wg       sync.WaitGroup

	// drainCtx outlives any caller context so that accepted work still
	// runs to completion while the rest of the process shuts down. It is
	// cancelled only once Close has finished draining.
	drainCtx  context.Context
	drainStop context.CancelFunc

	closeOnce sync.Once
}

// New creates a queue with the given buffer size.
func New(gen Generator, progress ProgressRecorder, size int) *Queue {
	if size <= 0 {
		size = 256
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Queue{
		requests:  make(chan GenerationRequest, size),
		gen:       gen,
		progress:  progress,
		drainCtx:  ctx,
		drainStop: stop,
	}
}

// Publish enqueues one request. Blocks when the queue is full; returns the
// context error when the caller gives up first.
func (q *Queue) Publish(ctx context.Context, req GenerationRequest) error {
	select {
	case q.requests <- req:
		metrics.QueuePublishedTotal.Inc()
		metrics.QueueDepth.Set(float64(len(q.requests)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches n workers that drain the queue until it is closed. Workers
// run under the queue's own context rather than a caller context, so
// accepted work is not failed out from under a shutdown signal.
func (q *Queue) Start(n int) {
	logging.Info("starting %d artifact workers (queue size %d)", n, cap(q.requests))
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Close stops accepting work and blocks until the workers have drained
// everything already queued.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.requests) })
	q.wg.Wait()
	q.drainStop()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for req := range q.requests {
		metrics.QueueDepth.Set(float64(len(q.requests)))
		q.process(q.drainCtx, req)
	}
}

func (q *Queue) process(ctx context.Context, req GenerationRequest) {
	_, err := q.gen.Generate(ctx, req.CollectionID, req.ImageID, req.Kind, req.Width, req.Height)

	completed, failed := 1, 0
	if err != nil {
		completed, failed = 0, 1
		logging.Warn("failed to generate %s for image %s: %v", req.Kind, req.ImageID, err)
	}

	if req.JobID == "" {
		return
	}
	if progErr := q.progress.RecordJobProgress(ctx, req.JobID, completed, failed); progErr != nil {
		logging.Error("failed to record progress for job %s: %v", req.JobID, progErr)
	}
}
