package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/onboarding"
	"image-vault/internal/startup"
)

// handleOnboard runs a bulk onboarding request synchronously. Artifact
// generation continues in the background; the response reports per-candidate
// outcomes and any job ids created for resumed collections.
func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ParentPath == "" {
		writeJSONError(w, "parentPath is required", http.StatusBadRequest)
		return
	}

	result, err := s.orchestrate.Onboard(r.Context(), req.Request)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, collection.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, collection.ErrUnsafePath):
			status = http.StatusForbidden
		case errors.Is(err, context.Canceled):
			status = 499 // client closed request
		}
		writeJSONError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// onboardRequest wraps the orchestrator request so the API shape can grow
// without touching the orchestrator.
type onboardRequest struct {
	onboarding.Request
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := s.db.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			writeJSONError(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, job)
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.db.ListCacheFolders(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	snap := s.registry.Snapshot()
	response := foldersResponse{
		SnapshotVersion: snap.Version,
		Folders:         folders,
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

type foldersResponse struct {
	SnapshotVersion int                      `json:"snapshotVersion"`
	Folders         []collection.CacheFolder `json:"folders"`
}

// handleRecalculateFolders recomputes every folder's statistics from
// artifact metadata and publishes a fresh snapshot.
func (s *Server) handleRecalculateFolders(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := s.db.RecomputeAllFolderStats(r.Context()); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	snap, err := s.registry.Reload(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logging.Info("folder stats recalculated in %v (snapshot v%d)", time.Since(start), snap.Version)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"status":          "ok",
		"snapshotVersion": snap.Version,
		"durationMs":      time.Since(start).Milliseconds(),
	})
}

// healthzResponse is the readiness payload.
type healthzResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	ActiveFolders int    `json:"activeFolders"`
	GoVersion     string `json:"goVersion"`
	NumGoroutine  int    `json:"numGoroutine"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Snapshot()
	response := healthzResponse{
		Status:        "healthy",
		Version:       startup.Version,
		ActiveFolders: len(snap.Folders),
		GoVersion:     runtime.Version(),
		NumGoroutine:  runtime.NumGoroutine(),
	}
	if len(snap.Folders) == 0 {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "alive"})
}

// writeJSON encodes v as JSON. Encoding errors are logged since the
// response is usually half-written by the time they surface.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}
