package main

import (
	"context"
	"fmt"

	"image-vault/internal/artifact"
	"image-vault/internal/cachefolder"
	"image-vault/internal/database"
	"image-vault/internal/onboarding"
	"image-vault/internal/processor"
	"image-vault/internal/queue"
	"image-vault/internal/scanner"
	"image-vault/internal/startup"
)

// commandContext lazily opens the engine components shared by commands.
type commandContext struct {
	dbPath      *string
	foldersFile *string
	fallbackDir *string

	db       *database.Database
	registry *cachefolder.Registry
	store    *artifact.Store
}

func newCommandContext(dbPath, foldersFile, fallbackDir *string) *commandContext {
	return &commandContext{dbPath: dbPath, foldersFile: foldersFile, fallbackDir: fallbackDir}
}

// open initializes the database, folder registry and artifact store.
func (c *commandContext) open(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	db, err := database.New(ctx, *c.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", *c.dbPath, err)
	}

	registry := cachefolder.NewRegistry(db, *c.fallbackDir)
	configured, err := startup.LoadCacheFolders(*c.foldersFile)
	if err != nil {
		db.Close()
		return err
	}
	if _, err := registry.LoadConfigured(ctx, configured); err != nil {
		db.Close()
		return err
	}

	c.db = db
	c.registry = registry
	c.store = artifact.NewStore(db, registry, processor.New(false), 0)
	return nil
}

func (c *commandContext) close() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			fmt.Printf("warning: failed to close database: %v\n", err)
		}
		c.db = nil
	}
}

// orchestrator builds a local onboarding orchestrator whose work queue
// generates artifacts synchronously in-process.
func (c *commandContext) orchestrator() *onboarding.Orchestrator {
	return onboarding.New(c.db, c.db, &inlineQueue{store: c.store, db: c.db}, scanner.New())
}

// inlineQueue executes generation requests immediately instead of queueing
// them. The CLI has no worker pool to hand off to; running synchronously
// keeps "vaultctl onboard" a single blocking operation.
type inlineQueue struct {
	store *artifact.Store
	db    *database.Database
}

func (q *inlineQueue) Publish(ctx context.Context, req queue.GenerationRequest) error {
	_, err := q.store.Generate(ctx, req.CollectionID, req.ImageID, req.Kind, req.Width, req.Height)
	completed, failed := 1, 0
	if err != nil {
		completed, failed = 0, 1
		fmt.Printf("warning: failed to generate %s for image %s: %v\n", req.Kind, req.ImageID, err)
	}
	if req.JobID != "" {
		if progErr := q.db.RecordJobProgress(ctx, req.JobID, completed, failed); progErr != nil {
			return progErr
		}
	}
	return nil
}

var _ onboarding.WorkQueue = (*inlineQueue)(nil)
