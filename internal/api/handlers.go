package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mattjoyce/warden/internal/runlog"
	"github.com/mattjoyce/warden/internal/track"
)

func newOwnerID() track.OwnerID {
	return track.OwnerID(uuid.NewString())
}

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.Stats()
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Active:        stats.Active,
		Flushing:      stats.Flushing,
	})
}

// handleRegister handles POST /scripts.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PID < 0 {
		s.writeError(w, http.StatusBadRequest, "pid must not be negative")
		return
	}

	owner := s.newOwner()
	if _, err := s.tracker.Register(track.JobID(req.JobID), req.PID, owner); err != nil {
		switch {
		case errors.Is(err, track.ErrClosed):
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, track.ErrDuplicateOwner):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("failed to register script", "job_id", req.JobID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to register script")
		}
		return
	}

	if s.runs != nil {
		start := runlog.StartRequest{Owner: string(owner), JobID: req.JobID, PID: req.PID, Script: req.Script}
		if err := s.runs.Start(r.Context(), start); err != nil {
			s.logger.Error("failed to record script run", "owner", owner, "error", err)
		}
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{Owner: string(owner)})
}

// handleListScripts handles GET /scripts.
func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ScriptsResponse{Scripts: s.tracker.Snapshot()})
}

// handleGetScript handles GET /scripts/{owner}.
func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.tracker.Lookup(ownerParam(r))
	if !ok {
		s.writeError(w, http.StatusNotFound, "script not tracked")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleUpdatePID handles PUT /scripts/{owner}/pid.
func (s *Server) handleUpdatePID(w http.ResponseWriter, r *http.Request) {
	var req UpdatePIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PID <= 0 {
		s.writeError(w, http.StatusBadRequest, "pid must be positive")
		return
	}

	owner := ownerParam(r)
	s.tracker.UpdatePID(owner, req.PID)
	if s.runs != nil {
		if err := s.runs.SetPID(r.Context(), string(owner), req.PID); err != nil && !errors.Is(err, runlog.ErrRunNotFound) {
			s.logger.Error("failed to record script pid", "owner", owner, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExit handles POST /scripts/{owner}/exit. The launcher reports the
// wait status and learns whether the failure is the tracker's doing.
func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	var req ExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Signaled == req.Exited {
		s.writeError(w, http.StatusBadRequest, "exactly one of signaled and exited must be set")
		return
	}

	owner := ownerParam(r)
	status := track.Exit(req.ExitCode)
	if req.Signaled {
		status = track.SignaledBy(syscall.Signal(req.Signal))
	}
	killed := s.tracker.Killed(owner, status)

	resp := ExitResponse{Killed: killed, Outcome: outcomeOf(killed, req)}
	if s.runs != nil {
		fin := runlog.FinishRequest{Owner: string(owner), Outcome: resp.Outcome}
		if req.Signaled {
			fin.Signal = &req.Signal
		} else {
			fin.ExitCode = &req.ExitCode
		}
		if err := s.runs.Finish(r.Context(), fin); err != nil && !errors.Is(err, runlog.ErrRunNotFound) {
			s.logger.Error("failed to record script exit", "owner", owner, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func outcomeOf(killed bool, req ExitRequest) runlog.Outcome {
	switch {
	case killed:
		return runlog.OutcomeKilled
	case req.Signaled || req.ExitCode != 0:
		return runlog.OutcomeFailed
	default:
		return runlog.OutcomeSucceeded
	}
}

// handleDeregister handles DELETE /scripts/{owner}.
func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	if !s.tracker.Deregister(ownerParam(r)) {
		s.writeError(w, http.StatusNotFound, "script not tracked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleKillJob handles POST /jobs/{jobID}/kill.
func (s *Server) handleKillJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "jobID"), 10, 32)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	n := s.tracker.KillJob(track.JobID(id))
	respondJSON(w, http.StatusOK, KillJobResponse{JobID: uint32(id), Signaled: n})
}

// handleFlush handles POST /flush. It returns once every script active at
// the time of the call has been retired.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	before := s.tracker.Stats().Active
	start := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.tracker.Flush()
	}()

	var timeout <-chan time.Time
	if s.config.FlushTimeout > 0 {
		t := time.NewTimer(s.config.FlushTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-done:
		respondJSON(w, http.StatusOK, FlushResponse{Flushed: before, DurationMS: time.Since(start).Milliseconds()})
	case <-timeout:
		// The flush keeps running; only the caller stops waiting.
		s.writeError(w, http.StatusGatewayTimeout, "flush still in progress")
	case <-r.Context().Done():
	}
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.tracker.Stats())
}

// handleRuns handles GET /runs?limit=N.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusNotImplemented, "run log disabled")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// handleAnomalies handles GET /anomalies?limit=N.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusNotImplemented, "run log disabled")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	anomalies, err := s.runs.Anomalies(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list anomalies", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	respondJSON(w, http.StatusOK, AnomaliesResponse{Anomalies: anomalies})
}

func ownerParam(r *http.Request) track.OwnerID {
	return track.OwnerID(chi.URLParam(r, "owner"))
}

func limitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 50, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 1000 {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return n, nil
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
