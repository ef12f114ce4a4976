// Package onboarding turns discovered candidate paths into registered
// collections with queued artifact work. The orchestrator is a state
// machine over what already exists: create, update, force-rescan, resume
// or skip, one decision per candidate.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
	"image-vault/internal/queue"
)

// CollectionStore is the persistence surface the orchestrator needs.
type CollectionStore interface {
	GetCollectionByPath(ctx context.Context, path string) (*collection.Collection, error)
	CreateCollection(ctx context.Context, col *collection.Collection) (string, error)
	ApplySettings(ctx context.Context, id string, settings collection.Settings, triggerScan, forceRescan bool) error
}

// JobTracker creates and sizes progress-tracked jobs.
type JobTracker interface {
	CreateJob(ctx context.Context, jobType, description string) (string, error)
	SetJobTotal(ctx context.Context, id string, total int) error
}

// WorkQueue accepts artifact generation requests.
type WorkQueue interface {
	Publish(ctx context.Context, req queue.GenerationRequest) error
}

// Discoverer finds candidate collections under a parent path.
type Discoverer interface {
	Discover(parentPath string, recursive bool, namePrefix string) ([]collection.Potential, error)
}

// Request describes one bulk onboarding run.
type Request struct {
	ParentPath        string `json:"parentPath"`
	IncludeSubfolders bool   `json:"includeSubfolders"`
	CollectionPrefix  string `json:"collectionPrefix,omitempty"`
	OverwriteExisting bool   `json:"overwriteExisting"`
	ResumeIncomplete  bool   `json:"resumeIncomplete"`
	AutoScan          bool   `json:"autoScan"`
	EnableCache       bool   `json:"enableCache"`
	ThumbnailWidth    int    `json:"thumbnailWidth,omitempty"`
	ThumbnailHeight   int    `json:"thumbnailHeight,omitempty"`
	CacheWidth        int    `json:"cacheWidth,omitempty"`
	CacheHeight       int    `json:"cacheHeight,omitempty"`
}

// Orchestrator runs bulk onboarding over discovered candidates.
type Orchestrator struct {
	store    CollectionStore
	jobs     JobTracker
	work     WorkQueue
	discover Discoverer
}

// New creates an orchestrator.
func New(store CollectionStore, jobs JobTracker, work WorkQueue, discover Discoverer) *Orchestrator {
	return &Orchestrator{store: store, jobs: jobs, work: work, discover: discover}
}

// Onboard discovers candidates under the request's parent path and
// processes each independently. Discovery errors abort the run;
// per-candidate errors are recorded and the run continues. Cancellation is
// honored between candidates, never mid-candidate.
func (o *Orchestrator) Onboard(ctx context.Context, req Request) (*collection.BulkResult, error) {
	start := time.Now()

	candidates, err := o.discover.Discover(req.ParentPath, req.IncludeSubfolders, req.CollectionPrefix)
	if err != nil {
		metrics.OnboardingRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &collection.BulkResult{}
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			logging.Info("onboarding cancelled after %d of %d candidates", len(result.Results), len(candidates))
			metrics.OnboardingRunsTotal.WithLabelValues("cancelled").Inc()
			return result, ctx.Err()
		}
		res := o.processCandidate(ctx, req, candidate)
		result.Add(res)
		metrics.OnboardingResultsTotal.WithLabelValues(string(res.Outcome)).Inc()
	}

	metrics.OnboardingRunsTotal.WithLabelValues("success").Inc()
	metrics.OnboardingDuration.Observe(time.Since(start).Seconds())
	logging.Info("onboarded %d candidates under %s: %d created, %d updated, %d rescanned, %d resumed, %d skipped, %d failed",
		len(candidates), req.ParentPath, result.Created, result.Updated, result.Rescanned, result.Resumed, result.Skipped, result.Failed)
	return result, nil
}

// processCandidate decides and applies the action for one candidate. A
// panic while processing is converted into an error outcome so a single
// pathological entry cannot take down a bulk run.
func (o *Orchestrator) processCandidate(ctx context.Context, req Request, candidate collection.Potential) (res collection.CandidateResult) {
	res = collection.CandidateResult{Name: candidate.Name, Path: candidate.Path}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("panic processing candidate %s: %v", candidate.Path, r)
			res.Outcome = collection.OutcomeError
			res.Message = fmt.Sprintf("internal error: %v", r)
		}
	}()

	existing, err := o.store.GetCollectionByPath(ctx, candidate.Path)
	switch {
	case err == nil:
		return o.processExisting(ctx, req, existing, res)
	case errors.Is(err, collection.ErrNotFound):
		return o.createNew(ctx, req, candidate, res)
	default:
		res.Outcome = collection.OutcomeError
		res.Message = err.Error()
		return res
	}
}

func (o *Orchestrator) createNew(ctx context.Context, req Request, candidate collection.Potential, res collection.CandidateResult) collection.CandidateResult {
	col := &collection.Collection{
		Name:     candidate.Name,
		Path:     candidate.Path,
		Type:     candidate.Type,
		Settings: req.settings(),
	}
	id, err := o.store.CreateCollection(ctx, col)
	if err != nil {
		res.Outcome = collection.OutcomeError
		res.Message = err.Error()
		return res
	}
	res.CollectionID = id

	if req.AutoScan {
		if err := o.store.ApplySettings(ctx, id, col.Settings, true, false); err != nil {
			res.Outcome = collection.OutcomeError
			res.Message = fmt.Sprintf("created but scan failed: %v", err)
			return res
		}
	}

	res.Outcome = collection.OutcomeCreated
	res.Message = "created, scan triggered"
	if !req.AutoScan {
		res.Message = "created"
	}
	return res
}

func (o *Orchestrator) processExisting(ctx context.Context, req Request, existing *collection.Collection, res collection.CandidateResult) collection.CandidateResult {
	res.CollectionID = existing.ID

	if req.OverwriteExisting {
		if err := o.store.ApplySettings(ctx, existing.ID, req.settings(), true, true); err != nil {
			res.Outcome = collection.OutcomeError
			res.Message = err.Error()
			return res
		}
		res.Outcome = collection.OutcomeRescanned
		res.Message = "updated and rescanned"
		return res
	}

	// Resume only applies once a scan has populated images; an unscanned
	// collection falls through to the scan path below.
	if req.ResumeIncomplete && len(existing.Images) > 0 {
		return o.resume(ctx, req, existing, res)
	}

	if len(existing.Images) > 0 {
		res.Outcome = collection.OutcomeSkipped
		res.Message = "already exists; use --overwrite or --resume"
		return res
	}

	// Registered but never scanned: apply settings and scan now.
	if err := o.store.ApplySettings(ctx, existing.ID, req.settings(), true, false); err != nil {
		res.Outcome = collection.OutcomeError
		res.Message = err.Error()
		return res
	}
	res.Outcome = collection.OutcomeUpdated
	res.Message = "updated, scan triggered"
	return res
}

// resume enqueues generation only for what is missing. A complete
// collection is reported as skipped with its counts so the caller can see
// why nothing was queued.
func (o *Orchestrator) resume(ctx context.Context, req Request, existing *collection.Collection, res collection.CandidateResult) collection.CandidateResult {
	if existing.Complete() {
		res.Outcome = collection.OutcomeSkipped
		res.Message = fmt.Sprintf("already complete: %d images, %d thumbnails", len(existing.Images), len(existing.Thumbnails))
		return res
	}

	settings := existing.Settings
	missingThumbs := existing.MissingThumbnails()
	var missingCache []collection.Image
	if settings.AutoCache || req.EnableCache {
		missingCache = existing.MissingCacheImages()
	}

	total := len(missingThumbs) + len(missingCache)
	if total == 0 {
		res.Outcome = collection.OutcomeSkipped
		res.Message = "nothing to resume"
		return res
	}

	jobID, err := o.jobs.CreateJob(ctx, "onboard-resume", fmt.Sprintf("resume artifacts for %s", existing.Name))
	if err != nil {
		res.Outcome = collection.OutcomeError
		res.Message = err.Error()
		return res
	}
	if err := o.jobs.SetJobTotal(ctx, jobID, total); err != nil {
		res.Outcome = collection.OutcomeError
		res.Message = err.Error()
		return res
	}

	for _, img := range missingThumbs {
		if err := o.publish(ctx, jobID, existing, img, collection.KindThumbnail, settings.ThumbnailWidth, settings.ThumbnailHeight); err != nil {
			res.Outcome = collection.OutcomeError
			res.Message = err.Error()
			return res
		}
	}
	for _, img := range missingCache {
		if err := o.publish(ctx, jobID, existing, img, collection.KindCache, settings.CacheWidth, settings.CacheHeight); err != nil {
			res.Outcome = collection.OutcomeError
			res.Message = err.Error()
			return res
		}
	}

	res.Outcome = collection.OutcomeResumed
	res.Message = fmt.Sprintf("resumed: %d thumbnails, %d cache images queued", len(missingThumbs), len(missingCache))
	return res
}

func (o *Orchestrator) publish(ctx context.Context, jobID string, col *collection.Collection, img collection.Image, kind collection.ArtifactKind, width, height int) error {
	return o.work.Publish(ctx, queue.GenerationRequest{
		JobID:        jobID,
		CollectionID: col.ID,
		ImageID:      img.ID,
		SourcePath:   sourcePath(col, img),
		Kind:         kind,
		Width:        width,
		Height:       height,
	})
}

// sourcePath reports the absolute source for a queued request. Archive
// members keep their archive#entry form.
func sourcePath(col *collection.Collection, img collection.Image) string {
	if strings.Contains(img.RelativePath, collection.ArchiveEntrySeparator) || filepath.IsAbs(img.RelativePath) {
		return img.RelativePath
	}
	return filepath.Join(col.Path, img.RelativePath)
}

// settings merges the request's overrides onto the defaults.
func (r Request) settings() collection.Settings {
	s := collection.DefaultSettings()
	s.AutoScan = r.AutoScan
	s.AutoCache = r.EnableCache
	if r.ThumbnailWidth > 0 {
		s.ThumbnailWidth = r.ThumbnailWidth
	}
	if r.ThumbnailHeight > 0 {
		s.ThumbnailHeight = r.ThumbnailHeight
	}
	if r.CacheWidth > 0 {
		s.CacheWidth = r.CacheWidth
	}
	if r.CacheHeight > 0 {
		s.CacheHeight = r.CacheHeight
	}
	return s
}
