package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"image-vault/internal/collection"
	"image-vault/internal/queue"
)

type fakeStore struct {
	collections map[string]*collection.Collection // keyed by path
	nextID      int

	applied []appliedSettings
	panicOn string // path that panics in GetCollectionByPath
	failOn  string // path that errors in CreateCollection
}

type appliedSettings struct {
	id          string
	settings    collection.Settings
	triggerScan bool
	forceRescan bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string]*collection.Collection)}
}

func (s *fakeStore) GetCollectionByPath(ctx context.Context, path string) (*collection.Collection, error) {
	if path == s.panicOn {
		panic("store corrupted")
	}
	col, ok := s.collections[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", collection.ErrNotFound, path)
	}
	return col, nil
}

func (s *fakeStore) CreateCollection(ctx context.Context, col *collection.Collection) (string, error) {
	if col.Path == s.failOn {
		return "", errors.New("disk full")
	}
	if _, ok := s.collections[col.Path]; ok {
		return "", fmt.Errorf("%w: %s", collection.ErrConflict, col.Path)
	}
	s.nextID++
	col.ID = fmt.Sprintf("col-%d", s.nextID)
	s.collections[col.Path] = col
	return col.ID, nil
}

func (s *fakeStore) ApplySettings(ctx context.Context, id string, settings collection.Settings, triggerScan, forceRescan bool) error {
	s.applied = append(s.applied, appliedSettings{id, settings, triggerScan, forceRescan})
	return nil
}

type fakeJobs struct {
	created int
	totals  map[string]int
}

func newFakeJobs() *fakeJobs { return &fakeJobs{totals: make(map[string]int)} }

func (j *fakeJobs) CreateJob(ctx context.Context, jobType, description string) (string, error) {
	j.created++
	return fmt.Sprintf("job-%d", j.created), nil
}

func (j *fakeJobs) SetJobTotal(ctx context.Context, id string, total int) error {
	j.totals[id] = total
	return nil
}

type fakeQueue struct {
	published []queue.GenerationRequest
}

func (q *fakeQueue) Publish(ctx context.Context, req queue.GenerationRequest) error {
	q.published = append(q.published, req)
	return nil
}

type fakeDiscoverer struct {
	candidates []collection.Potential
	err        error
}

func (d *fakeDiscoverer) Discover(parentPath string, recursive bool, namePrefix string) ([]collection.Potential, error) {
	return d.candidates, d.err
}

func candidates(n int) []collection.Potential {
	out := make([]collection.Potential, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, collection.Potential{
			Name: fmt.Sprintf("series%d", i),
			Path: fmt.Sprintf("/photos/series%d", i),
			Type: collection.TypeFolder,
		})
	}
	return out
}

func newOrchestrator(store *fakeStore, disc *fakeDiscoverer) (*Orchestrator, *fakeJobs, *fakeQueue) {
	jobs := newFakeJobs()
	work := &fakeQueue{}
	return New(store, jobs, work, disc), jobs, work
}

func TestOnboardCreatesNewCollections(t *testing.T) {
	store := newFakeStore()
	o, _, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(3)})

	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", AutoScan: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Created != 3 || result.Scanned != 3 {
		t.Errorf("created/scanned = %d/%d, want 3/3", result.Created, result.Scanned)
	}
	if len(store.collections) != 3 {
		t.Errorf("stored %d collections, want 3", len(store.collections))
	}
	for _, res := range result.Results {
		if res.Outcome != collection.OutcomeCreated {
			t.Errorf("outcome for %s = %q, want created", res.Name, res.Outcome)
		}
		if res.Message != "created, scan triggered" {
			t.Errorf("message = %q", res.Message)
		}
	}
	// Each create triggers one settings application with a scan.
	if len(store.applied) != 3 {
		t.Fatalf("applied settings %d times, want 3", len(store.applied))
	}
	for _, a := range store.applied {
		if !a.triggerScan || a.forceRescan {
			t.Errorf("applied triggerScan=%v forceRescan=%v, want true/false", a.triggerScan, a.forceRescan)
		}
	}
}

func TestOnboardIsIdempotentForPopulatedCollections(t *testing.T) {
	store := newFakeStore()
	disc := &fakeDiscoverer{candidates: candidates(2)}
	o, _, _ := newOrchestrator(store, disc)
	ctx := context.Background()

	first, err := o.Onboard(ctx, Request{ParentPath: "/photos", AutoScan: true})
	if err != nil {
		t.Fatalf("first Onboard() error = %v", err)
	}
	firstIDs := make(map[string]string)
	for _, res := range first.Results {
		firstIDs[res.Name] = res.CollectionID
	}
	// Simulate completed scans.
	for _, col := range store.collections {
		col.Images = []collection.Image{{ID: "i1"}}
		col.Thumbnails = []collection.Artifact{{ImageID: "i1"}}
	}

	result, err := o.Onboard(ctx, Request{ParentPath: "/photos", AutoScan: true})
	if err != nil {
		t.Fatalf("second Onboard() error = %v", err)
	}
	if result.Skipped != 2 || result.Created != 0 {
		t.Errorf("skipped/created = %d/%d, want 2/0", result.Skipped, result.Created)
	}
	for _, res := range result.Results {
		if !strings.Contains(res.Message, "--overwrite or --resume") {
			t.Errorf("skip message = %q, want the remediation hint", res.Message)
		}
		if res.CollectionID == "" || res.CollectionID != firstIDs[res.Name] {
			t.Errorf("collection id for %s = %q on second run, want %q", res.Name, res.CollectionID, firstIDs[res.Name])
		}
	}
}

func TestOnboardOverwriteForcesRescan(t *testing.T) {
	store := newFakeStore()
	store.collections["/photos/series0"] = &collection.Collection{
		ID: "col-old", Path: "/photos/series0", Name: "series0",
		Images:   []collection.Image{{ID: "i1"}},
		Settings: collection.DefaultSettings(),
	}
	o, _, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(1)})

	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", AutoScan: true, OverwriteExisting: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Rescanned != 1 || result.Skipped != 0 {
		t.Errorf("rescanned/skipped = %d/%d, want 1/0", result.Rescanned, result.Skipped)
	}
	if result.Results[0].Message != "updated and rescanned" {
		t.Errorf("message = %q", result.Results[0].Message)
	}
	if len(store.applied) != 1 || !store.applied[0].forceRescan {
		t.Error("overwrite must apply settings with forceRescan")
	}
}

func TestOnboardResumeQueuesOnlyMissing(t *testing.T) {
	store := newFakeStore()
	settings := collection.DefaultSettings()
	settings.AutoCache = true

	// 10 images; 7 have thumbnails (3 missing), 5 have cache images (5 missing).
	col := &collection.Collection{ID: "col-1", Path: "/photos/series0", Name: "series0", Settings: settings}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("img-%d", i)
		col.Images = append(col.Images, collection.Image{ID: id, RelativePath: fmt.Sprintf("img-%d.jpg", i)})
		if i < 7 {
			col.Thumbnails = append(col.Thumbnails, collection.Artifact{ImageID: id})
		}
		if i < 5 {
			col.CacheImages = append(col.CacheImages, collection.Artifact{ImageID: id})
		}
	}
	store.collections[col.Path] = col

	o, jobs, work := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(1)})
	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", ResumeIncomplete: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}

	if result.Resumed != 1 {
		t.Fatalf("resumed = %d, want 1", result.Resumed)
	}
	if result.Results[0].Message != "resumed: 3 thumbnails, 5 cache images queued" {
		t.Errorf("message = %q", result.Results[0].Message)
	}
	if jobs.created != 1 {
		t.Errorf("created %d jobs, want 1", jobs.created)
	}
	if jobs.totals["job-1"] != 8 {
		t.Errorf("job total = %d, want 8", jobs.totals["job-1"])
	}

	var thumbs, cache int
	for _, req := range work.published {
		switch req.Kind {
		case collection.KindThumbnail:
			thumbs++
		case collection.KindCache:
			cache++
		}
		if req.JobID != "job-1" {
			t.Errorf("request job = %q, want job-1", req.JobID)
		}
		if !strings.HasPrefix(req.SourcePath, "/photos/series0/") {
			t.Errorf("request source = %q, want it under the collection path", req.SourcePath)
		}
	}
	if thumbs != 3 || cache != 5 {
		t.Errorf("queued %d thumbnails and %d cache images, want 3 and 5", thumbs, cache)
	}
}

func TestOnboardResumeSkipsCompleteCollections(t *testing.T) {
	store := newFakeStore()
	col := &collection.Collection{
		ID: "col-1", Path: "/photos/series0", Name: "series0",
		Settings:   collection.DefaultSettings(),
		Images:     []collection.Image{{ID: "i1"}, {ID: "i2"}},
		Thumbnails: []collection.Artifact{{ImageID: "i1"}, {ImageID: "i2"}},
	}
	store.collections[col.Path] = col

	o, jobs, work := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(1)})
	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", ResumeIncomplete: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if result.Results[0].Message != "already complete: 2 images, 2 thumbnails" {
		t.Errorf("message = %q", result.Results[0].Message)
	}
	if jobs.created != 0 || len(work.published) != 0 {
		t.Error("complete collection must not create jobs or queue work")
	}
}

func TestOnboardUpdatesUnscannedCollections(t *testing.T) {
	store := newFakeStore()
	store.collections["/photos/series0"] = &collection.Collection{
		ID: "col-1", Path: "/photos/series0", Name: "series0", Settings: collection.DefaultSettings(),
	}
	o, _, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(1)})

	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", AutoScan: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Updated != 1 || result.Scanned != 1 {
		t.Errorf("updated/scanned = %d/%d, want 1/1", result.Updated, result.Scanned)
	}
	if result.Results[0].Message != "updated, scan triggered" {
		t.Errorf("message = %q", result.Results[0].Message)
	}
}

func TestOnboardResumeOnUnscannedCollectionScans(t *testing.T) {
	store := newFakeStore()
	store.collections["/photos/series0"] = &collection.Collection{
		ID: "col-1", Path: "/photos/series0", Name: "series0", Settings: collection.DefaultSettings(),
	}
	o, jobs, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(1)})

	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", ResumeIncomplete: true, AutoScan: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Updated != 1 || result.Resumed != 0 {
		t.Errorf("updated/resumed = %d/%d, want 1/0 for an unscanned collection", result.Updated, result.Resumed)
	}
	if jobs.created != 0 {
		t.Error("no resume job should exist before a scan populates images")
	}
	if len(store.applied) != 1 || !store.applied[0].triggerScan {
		t.Error("resume on an unscanned collection must trigger a scan")
	}
}

func TestOnboardIsolatesCandidateFailures(t *testing.T) {
	store := newFakeStore()
	store.panicOn = "/photos/series2"
	o, _, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(5)})

	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", AutoScan: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Created != 4 {
		t.Errorf("created = %d, want 4", result.Created)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}
	if !strings.HasPrefix(result.Errors[0], "series2:") {
		t.Errorf("error entry = %q, want the candidate name prefix", result.Errors[0])
	}
}

func TestOnboardRecordsCreateErrors(t *testing.T) {
	store := newFakeStore()
	store.failOn = "/photos/series1"
	o, _, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(2)})

	result, err := o.Onboard(context.Background(), Request{ParentPath: "/photos", AutoScan: true})
	if err != nil {
		t.Fatalf("Onboard() error = %v", err)
	}
	if result.Created != 1 || result.Failed != 1 {
		t.Errorf("created/failed = %d/%d, want 1/1", result.Created, result.Failed)
	}
}

func TestOnboardAbortsOnDiscoveryError(t *testing.T) {
	o, _, _ := newOrchestrator(newFakeStore(), &fakeDiscoverer{err: fmt.Errorf("%w: path outside allowed roots", collection.ErrUnsafePath)})

	_, err := o.Onboard(context.Background(), Request{ParentPath: "/etc"})
	if !errors.Is(err, collection.ErrUnsafePath) {
		t.Errorf("Onboard() error = %v, want ErrUnsafePath", err)
	}
}

func TestOnboardHonorsCancellationBetweenCandidates(t *testing.T) {
	store := newFakeStore()
	o, _, _ := newOrchestrator(store, &fakeDiscoverer{candidates: candidates(10)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Onboard(ctx, Request{ParentPath: "/photos", AutoScan: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Onboard() error = %v, want context.Canceled", err)
	}
	if len(result.Results) != 0 {
		t.Errorf("processed %d candidates after cancellation, want 0", len(result.Results))
	}
}

func TestRequestSettingsOverrides(t *testing.T) {
	req := Request{AutoScan: true, EnableCache: true, ThumbnailWidth: 320, CacheHeight: 900}
	s := req.settings()

	if !s.AutoScan || !s.AutoCache {
		t.Error("AutoScan and AutoCache must follow the request")
	}
	if s.ThumbnailWidth != 320 {
		t.Errorf("ThumbnailWidth = %d, want 320", s.ThumbnailWidth)
	}
	if s.ThumbnailHeight != 200 {
		t.Errorf("ThumbnailHeight = %d, want default 200", s.ThumbnailHeight)
	}
	if s.CacheHeight != 900 {
		t.Errorf("CacheHeight = %d, want 900", s.CacheHeight)
	}
	if s.CacheWidth != 1280 {
		t.Errorf("CacheWidth = %d, want default 1280", s.CacheWidth)
	}
}
