package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"image-vault/internal/collection"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func testCollection(path string) *collection.Collection {
	return &collection.Collection{
		Name:     filepath.Base(path),
		Path:     path,
		Type:     collection.TypeFolder,
		Settings: collection.DefaultSettings(),
	}
}

func TestCreateAndGetCollection(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	col := testCollection("/data/albums/summer")
	id, err := db.CreateCollection(ctx, col)
	if err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if id == "" {
		t.Fatal("CreateCollection returned empty id")
	}

	loaded, err := db.GetCollectionByPath(ctx, "/data/albums/summer")
	if err != nil {
		t.Fatalf("GetCollectionByPath failed: %v", err)
	}
	if loaded.ID != id {
		t.Errorf("loaded id = %s, want %s", loaded.ID, id)
	}
	if loaded.Name != "summer" {
		t.Errorf("loaded name = %s, want summer", loaded.Name)
	}
	if !loaded.Settings.AutoScan {
		t.Error("loaded settings lost AutoScan")
	}
}

func TestCreateCollectionDuplicatePathConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateCollection(ctx, testCollection("/data/x")); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := db.CreateCollection(ctx, testCollection("/data/x"))
	if !errors.Is(err, collection.ErrConflict) {
		t.Errorf("duplicate create error = %v, want ErrConflict", err)
	}
}

func TestGetCollectionByPathNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetCollectionByPath(context.Background(), "/nope")
	if !errors.Is(err, collection.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSoftDeleteFreesPath(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateCollection(ctx, testCollection("/data/y"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := db.SoftDeleteCollection(ctx, id); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	if _, err := db.GetCollectionByPath(ctx, "/data/y"); !errors.Is(err, collection.ErrNotFound) {
		t.Errorf("lookup after delete = %v, want ErrNotFound", err)
	}

	// The path must be reusable after a soft delete.
	if _, err := db.CreateCollection(ctx, testCollection("/data/y")); err != nil {
		t.Errorf("re-create after soft delete failed: %v", err)
	}
}

func TestUpsertImagesKeepsIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateCollection(ctx, testCollection("/data/z"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first := []collection.Image{
		{FileName: "a.jpg", RelativePath: "a.jpg", Size: 10},
		{FileName: "b.jpg", RelativePath: "b.jpg", Size: 20},
	}
	if err := db.UpsertImages(ctx, id, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	col, err := db.GetCollection(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(col.Images) != 2 {
		t.Fatalf("got %d images, want 2", len(col.Images))
	}
	originalID := col.Images[0].ID

	// Re-scan the same file with a new size: the row is updated in place.
	second := []collection.Image{{FileName: "a.jpg", RelativePath: "a.jpg", Size: 99}}
	if err := db.UpsertImages(ctx, id, second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	col, err = db.GetCollection(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(col.Images) != 2 {
		t.Fatalf("got %d images after rescan, want 2", len(col.Images))
	}
	for _, img := range col.Images {
		if img.RelativePath == "a.jpg" {
			if img.ID != originalID {
				t.Errorf("rescan changed image id: %s -> %s", originalID, img.ID)
			}
			if img.Size != 99 {
				t.Errorf("rescan did not update size: %d", img.Size)
			}
		}
	}
}

func TestUpsertArtifactReplaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	colID, _ := db.CreateCollection(ctx, testCollection("/data/art"))
	images := []collection.Image{{FileName: "a.jpg", RelativePath: "a.jpg"}}
	if err := db.UpsertImages(ctx, colID, images); err != nil {
		t.Fatalf("upsert images failed: %v", err)
	}

	a := &collection.Artifact{
		ImageID:      images[0].ID,
		CollectionID: colID,
		FolderID:     "f1",
		Kind:         collection.KindThumbnail,
		Path:         "/cache/a_200x200.jpg",
		Width:        200,
		Height:       200,
		Size:         1000,
		Valid:        true,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if err := db.UpsertArtifact(ctx, a); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// Regeneration supersedes rather than appends.
	b := *a
	b.ID = ""
	b.Size = 2000
	if err := db.UpsertArtifact(ctx, &b); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	// The row keeps its original id across regenerations; the returned
	// record must carry it, not a fresh uuid.
	if b.ID != a.ID {
		t.Errorf("replaced artifact id = %q, want original %q", b.ID, a.ID)
	}

	thumbs, err := db.ListArtifactsByCollection(ctx, colID, collection.KindThumbnail)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(thumbs) != 1 {
		t.Fatalf("got %d thumbnail records, want 1", len(thumbs))
	}
	if thumbs[0].Size != 2000 {
		t.Errorf("artifact size = %d, want 2000", thumbs[0].Size)
	}
	if thumbs[0].ID != a.ID {
		t.Errorf("stored artifact id = %q, want %q", thumbs[0].ID, a.ID)
	}
}

func TestRecomputeFolderStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	folder := &collection.CacheFolder{Name: "ssd", Path: "/cache/ssd", Active: true}
	if err := db.UpsertCacheFolder(ctx, folder); err != nil {
		t.Fatalf("upsert folder failed: %v", err)
	}

	colID, _ := db.CreateCollection(ctx, testCollection("/data/stats"))
	images := []collection.Image{
		{FileName: "a.jpg", RelativePath: "a.jpg"},
		{FileName: "b.jpg", RelativePath: "b.jpg"},
	}
	if err := db.UpsertImages(ctx, colID, images); err != nil {
		t.Fatalf("upsert images failed: %v", err)
	}

	for i, img := range images {
		a := &collection.Artifact{
			ImageID:      img.ID,
			CollectionID: colID,
			FolderID:     folder.ID,
			Kind:         collection.KindThumbnail,
			Path:         "/cache/ssd/" + img.FileName,
			Width:        200, Height: 200,
			Size:      int64(100 * (i + 1)),
			Valid:     true,
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := db.UpsertArtifact(ctx, a); err != nil {
			t.Fatalf("upsert artifact failed: %v", err)
		}
	}

	if err := db.RecomputeFolderStats(ctx, folder.ID); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	folders, err := db.ListCacheFolders(ctx)
	if err != nil {
		t.Fatalf("list folders failed: %v", err)
	}
	if len(folders) != 1 {
		t.Fatalf("got %d folders, want 1", len(folders))
	}
	if folders[0].CurrentSize != 300 {
		t.Errorf("current size = %d, want 300", folders[0].CurrentSize)
	}
	if folders[0].FileCount != 2 {
		t.Errorf("file count = %d, want 2", folders[0].FileCount)
	}
}

func TestApplySettingsTriggersScan(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	colID, _ := db.CreateCollection(ctx, testCollection("/data/scanme"))

	scanned := 0
	db.ScanImages = func(col *collection.Collection) ([]collection.Image, error) {
		scanned++
		return []collection.Image{{FileName: "p1.jpg", RelativePath: "p1.jpg"}}, nil
	}

	settings := collection.DefaultSettings()
	settings.ThumbnailWidth = 320
	if err := db.ApplySettings(ctx, colID, settings, true, false); err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}

	if scanned != 1 {
		t.Errorf("scan invoked %d times, want 1", scanned)
	}

	col, err := db.GetCollection(ctx, colID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if col.Settings.ThumbnailWidth != 320 {
		t.Errorf("thumbnail width = %d, want 320", col.Settings.ThumbnailWidth)
	}
	if len(col.Images) != 1 {
		t.Errorf("got %d images, want 1", len(col.Images))
	}
}

func TestApplySettingsForceRescanClearsState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	colID, _ := db.CreateCollection(ctx, testCollection("/data/force"))
	old := []collection.Image{{FileName: "old.jpg", RelativePath: "old.jpg"}}
	if err := db.UpsertImages(ctx, colID, old); err != nil {
		t.Fatalf("seed images failed: %v", err)
	}
	a := &collection.Artifact{
		ImageID: old[0].ID, CollectionID: colID, Kind: collection.KindThumbnail,
		Path: "/x", Width: 200, Height: 200, Valid: true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.UpsertArtifact(ctx, a); err != nil {
		t.Fatalf("seed artifact failed: %v", err)
	}

	db.ScanImages = func(col *collection.Collection) ([]collection.Image, error) {
		return []collection.Image{{FileName: "new.jpg", RelativePath: "new.jpg"}}, nil
	}

	if err := db.ApplySettings(ctx, colID, collection.DefaultSettings(), false, true); err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}

	col, err := db.GetCollection(ctx, colID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(col.Images) != 1 || col.Images[0].FileName != "new.jpg" {
		t.Errorf("images after force rescan = %+v, want only new.jpg", col.Images)
	}
	if len(col.Thumbnails) != 0 {
		t.Errorf("got %d thumbnails after force rescan, want 0", len(col.Thumbnails))
	}
}

func TestJobLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateJob(ctx, "resume", "resume collection x")
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := db.SetJobTotal(ctx, id, 3); err != nil {
		t.Fatalf("SetJobTotal failed: %v", err)
	}

	if err := db.RecordJobProgress(ctx, id, 2, 0); err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	job, err := db.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != JobStatusRunning {
		t.Errorf("status = %s, want running", job.Status)
	}

	if err := db.RecordJobProgress(ctx, id, 0, 1); err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	job, err = db.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != JobStatusComplete {
		t.Errorf("status = %s, want complete", job.Status)
	}
	if job.Completed != 2 || job.Failed != 1 {
		t.Errorf("counts = %d/%d, want 2/1", job.Completed, job.Failed)
	}
}

func TestListExpiredArtifacts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	colID, _ := db.CreateCollection(ctx, testCollection("/data/exp"))
	images := []collection.Image{
		{FileName: "a.jpg", RelativePath: "a.jpg"},
		{FileName: "b.jpg", RelativePath: "b.jpg"},
	}
	if err := db.UpsertImages(ctx, colID, images); err != nil {
		t.Fatalf("upsert images failed: %v", err)
	}

	expired := &collection.Artifact{
		ImageID: images[0].ID, CollectionID: colID, Kind: collection.KindCache,
		Path: "/x/a", Width: 100, Height: 100, Valid: true,
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	fresh := &collection.Artifact{
		ImageID: images[1].ID, CollectionID: colID, Kind: collection.KindCache,
		Path: "/x/b", Width: 100, Height: 100, Valid: true,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, a := range []*collection.Artifact{expired, fresh} {
		if err := db.UpsertArtifact(ctx, a); err != nil {
			t.Fatalf("upsert artifact failed: %v", err)
		}
	}

	got, err := db.ListExpiredArtifacts(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListExpiredArtifacts failed: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/x/a" {
		t.Errorf("expired = %+v, want only /x/a", got)
	}
}
