package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/job-pricer/internal/db"
	"github.com/jonathan/job-pricer/internal/engine"
	"github.com/jonathan/job-pricer/internal/types"
	"go.uber.org/zap"
)

// maxRunsLimit caps GET /runs page size.
const maxRunsLimit = 500

// BatchRequest is the body of POST /price/batch.
type BatchRequest struct {
	Requests []*types.JobRequest `json:"requests"`
}

// BatchItemResponse is one priced request of a batch.
type BatchItemResponse struct {
	Index  int                  `json:"index"`
	Result *types.PricingResult `json:"result,omitempty"`
	Error  *ErrorBody           `json:"error,omitempty"`
}

// BatchResponse is the response of POST /price/batch.
type BatchResponse struct {
	Items []BatchItemResponse `json:"items"`
}

// RunResponse is the response of GET /runs/{id}.
type RunResponse struct {
	Run    *db.Run              `json:"run"`
	Result *types.PricingResult `json:"result,omitempty"`
}

// ParamsResponse lists the loaded parameter versions.
type ParamsResponse struct {
	Versions []string `json:"versions"`
	Current  string   `json:"current,omitempty"`
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// snapshotFor returns the snapshot pinned by ?params_version, or the current one. A missing
// current snapshot yields nil so the call is priced with the invalid_parameters fallback.
func (s *Server) snapshotFor(r *http.Request) (*types.PricingParameters, error) {
	if v := strings.TrimSpace(r.URL.Query().Get("params_version")); v != "" {
		p, err := s.deps.Params.Version(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, v)
		}
		return p, nil
	}
	p, err := s.deps.Params.Current()
	if err != nil {
		s.log.Warn("no pricing parameters in force", zap.Error(err))
		return nil, nil
	}
	return p, nil
}

// handlePrice prices a single job request
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req types.JobRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	snapshot, err := s.snapshotFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.deps.Engine.PriceJob(r.Context(), &req, snapshot)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handlePriceStream prices a job request and streams stage progress as server-sent events
func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	var req types.JobRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	snapshot, err := s.snapshotFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	priced := s.deps.Engine.WithProgress(func(ev engine.ProgressEvent) {
		if err := sse.WriteEvent("progress", ev); err != nil {
			s.log.Debug("failed to write progress event", zap.Error(err))
		}
	})

	result, err := priced.PriceJob(r.Context(), &req, snapshot)
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	if err := sse.WriteEvent("result", result); err != nil {
		s.log.Warn("failed to write result event", zap.Error(err))
		return
	}
	sse.WriteComplete(result.Match.JobCode, len(result.Provenance))
}

// handlePriceBatch prices several job requests concurrently
func (s *Server) handlePriceBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if len(body.Requests) == 0 {
		s.writeError(w, &ErrValidation{Field: "requests", Message: "at least one request is required"})
		return
	}
	if len(body.Requests) > s.cfg.MaxBatchSize {
		s.writeError(w, fmt.Errorf("%w: %d requests, limit %d", ErrBatchTooLarge, len(body.Requests), s.cfg.MaxBatchSize))
		return
	}
	snapshot, err := s.snapshotFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items, err := s.deps.Engine.PriceBatch(r.Context(), body.Requests, snapshot, s.cfg.BatchConcurrency)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := BatchResponse{Items: make([]BatchItemResponse, len(items))}
	for i, item := range items {
		resp.Items[i] = BatchItemResponse{Index: item.Index, Result: item.Result}
		if item.Err != nil {
			eb := errorBody(item.Err)
			resp.Items[i].Error = &eb
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleListParams lists the loaded parameter versions
func (s *Server) handleListParams(w http.ResponseWriter, _ *http.Request) {
	resp := ParamsResponse{Versions: s.deps.Params.Versions()}
	if p, err := s.deps.Params.Current(); err == nil {
		resp.Current = p.Version
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func parseRunFilters(r *http.Request) (db.RunFilters, error) {
	q := r.URL.Query()
	filters := db.RunFilters{
		JobCode: strings.TrimSpace(q.Get("job_code")),
		Status:  strings.TrimSpace(q.Get("status")),
	}
	if v := q.Get("degraded"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filters, &ErrValidation{Field: "degraded", Message: "must be a boolean"}
		}
		filters.Degraded = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRunsLimit {
			return filters, &ErrValidation{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxRunsLimit)}
		}
		filters.Limit = n
	}
	return filters, nil
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "must be a UUID"}
	}
	return id, nil
}

// handleListRuns lists recorded pricing runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		s.writeError(w, ErrRunsUnavailable)
		return
	}
	filters, err := parseRunFilters(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns a recorded run with its pricing result
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		s.writeError(w, ErrRunsUnavailable)
		return
	}
	id, err := parseRunID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run, err := s.deps.Runs.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if run == nil {
		s.writeError(w, fmt.Errorf("%w: %s", db.ErrRunNotFound, id))
		return
	}

	result, err := s.deps.Runs.GetPricingResult(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, RunResponse{Run: run, Result: result})
}

// handleDeleteRun deletes a recorded run
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		s.writeError(w, ErrRunsUnavailable)
		return
	}
	id, err := parseRunID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Runs.DeleteRun(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
