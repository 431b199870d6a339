package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/momentum/internal/optimization"
	"github.com/copyleftdev/momentum/internal/optimization/firstorder"
	"github.com/copyleftdev/momentum/internal/optimization/objectives"
)

// JSON-RPC 2.0 error codes
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

// StartResponse is returned when a job is accepted.
type StartResponse struct {
	OptimizationID string `json:"optimization_id"`
	Status         string `json:"status"`
}

// StatusResponse describes a job.
type StatusResponse struct {
	ID                  string                `json:"optimization_id"`
	Status              string                `json:"status"`
	Method              string                `json:"method"`
	Objective           string                `json:"objective"`
	Settings            optimization.Settings `json:"settings"`
	StartTime           string                `json:"start_time"`
	LastUpdate          string                `json:"last_update"`
	EndTime             string                `json:"end_time,omitempty"`
	Outcome             optimization.Status   `json:"outcome,omitempty"`
	Iterations          *int                  `json:"iterations,omitempty"`
	GradientEvaluations int                   `json:"gradient_evaluations,omitempty"`
	FinalPoint          []Float               `json:"final_point,omitempty"`
	FinalNorm           *Float                `json:"final_norm,omitempty"`
	Trace               *TraceResponse        `json:"trace,omitempty"`
	Error               string                `json:"error,omitempty"`
}

// MinimizeResponse is the result of a synchronous run.
type MinimizeResponse struct {
	Method              string                `json:"method"`
	Objective           string                `json:"objective"`
	Settings            optimization.Settings `json:"settings"`
	Outcome             optimization.Status   `json:"outcome"`
	GradientEvaluations int                   `json:"gradient_evaluations"`
	Trace               *TraceResponse        `json:"trace"`
}

// statusCodeOf maps an error to an HTTP status code.
func statusCodeOf(err error) int {
	switch {
	case stderrors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrJobFinished):
		return http.StatusConflict
	}
	if _, ok := optimization.IsOptimizationError(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// rpcCodeOf maps an error to a JSON-RPC error code.
func rpcCodeOf(err error) int {
	if statusCodeOf(err) == http.StatusBadRequest {
		return rpcInvalidParams
	}
	return rpcServerError
}

func (s *Server) statusOf(id string, withTrace bool) (*StatusResponse, error) {
	job, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	resp := &StatusResponse{
		ID:                  job.ID,
		Status:              job.Status,
		Method:              job.Method.Name(),
		Objective:           job.Objective,
		Settings:            job.Settings,
		StartTime:           job.StartTime.Format(time.RFC3339),
		LastUpdate:          job.LastUpdated.Format(time.RFC3339),
		GradientEvaluations: job.GradientCalls,
	}
	if job.EndTime != nil {
		resp.EndTime = job.EndTime.Format(time.RFC3339)
	}
	if job.Err != nil {
		resp.Error = job.Err.Error()
	}
	if job.Trace != nil {
		x, norm := job.Trace.Final()
		iterations := job.Trace.Iterations
		final := Float(norm)

		resp.Outcome = job.Outcome
		resp.Iterations = &iterations
		resp.FinalPoint = floatsOf(x)
		resp.FinalNorm = &final
		if withTrace {
			resp.Trace = traceResponse(*job.Trace)
		}
	}
	return resp, nil
}

func (s *Server) startRequest(req OptimizeRequest) (*StartResponse, error) {
	job, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	s.start(job)
	return &StartResponse{OptimizationID: job.ID, Status: StatusPending}, nil
}

func (s *Server) minimizeRequest(r *http.Request, req OptimizeRequest) (*MinimizeResponse, error) {
	job, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	trace, calls, err := s.minimize(r.Context(), job)
	if err != nil {
		return nil, err
	}
	return &MinimizeResponse{
		Method:              job.Method.Name(),
		Objective:           job.Objective,
		Settings:            job.Settings,
		Outcome:             optimization.Classify(trace, job.Settings),
		GradientEvaluations: calls,
		Trace:               traceResponse(trace),
	}, nil
}

// handleOptimize handles POST /api/v1/optimize, starting a background job
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := s.startRequest(req)
	if err != nil {
		writeError(w, statusCodeOf(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleMinimize handles POST /api/v1/minimize, running to completion
// before responding
func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := s.minimizeRequest(r, req)
	if err != nil {
		writeError(w, statusCodeOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus handles GET /api/v1/status/{id}. Pass ?trace=false to omit
// the iteration history.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	withTrace := true
	if v := r.URL.Query().Get("trace"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid trace parameter %q", v))
			return
		}
		withTrace = b
	}

	resp, err := s.statusOf(chi.URLParam(r, "id"), withTrace)
	if err != nil {
		writeError(w, statusCodeOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusCodeOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": StatusCancelled,
	})
}

// handleMethods handles GET /api/v1/methods
func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	type methodInfo struct {
		Name     string `json:"name"`
		Momentum bool   `json:"momentum"`
	}
	names := firstorder.Names()
	out := make([]methodInfo, len(names))
	for i, name := range names {
		out[i] = methodInfo{Name: name, Momentum: firstorder.UsesMomentum(name)}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleObjectives handles GET /api/v1/objectives
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, objectives.All())
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// decodeParams accepts params either as an object or as a one-element array
// holding the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return err
		}
		if len(list) != 1 {
			return fmt.Errorf("expected exactly one parameter object, got %d", len(list))
		}
		raw = list[0]
	}
	return json.Unmarshal(raw, v)
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
	Trace          *bool  `json:"trace,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)

	switch request.Method {
	case "optimization.start", "optimization.minimize":
		var req OptimizeRequest
		if err := decodeParams(request.Params, &req); err != nil {
			s.respondWithError(w, rpcInvalidParams, err.Error(), request.ID)
			return
		}
		if request.Method == "optimization.start" {
			result, err = s.startRequest(req)
		} else {
			result, err = s.minimizeRequest(r, req)
		}
	case "optimization.status", "optimization.cancel":
		var p idParams
		if err := decodeParams(request.Params, &p); err != nil || p.OptimizationID == "" {
			s.respondWithError(w, rpcInvalidParams, "optimization_id is required", request.ID)
			return
		}
		if request.Method == "optimization.status" {
			result, err = s.statusOf(p.OptimizationID, p.Trace == nil || *p.Trace)
		} else {
			err = s.cancel(p.OptimizationID)
			result = map[string]string{"status": StatusCancelled}
		}
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, rpcCodeOf(err), err.Error(), request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
