package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/copyleftdev/momentum/internal/config"
	"github.com/copyleftdev/momentum/internal/errors"
	"github.com/copyleftdev/momentum/internal/logging"
	"github.com/copyleftdev/momentum/internal/optimization"
	"github.com/copyleftdev/momentum/internal/optimization/firstorder"
	"github.com/copyleftdev/momentum/internal/optimization/objectives"
)

// Job statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Errors returned for job lookups
var (
	ErrJobNotFound = errors.New("optimization not found")
	ErrJobFinished = errors.New("optimization already finished")
)

// OptimizeRequest describes one descent run. Omitted step parameters fall
// back to the configured defaults.
type OptimizeRequest struct {
	Method    string    `json:"method"`
	Objective string    `json:"objective"`
	Numeric   bool      `json:"numeric,omitempty"`
	X0        []float64 `json:"x0"`
	Alpha     *float64  `json:"alpha,omitempty"`
	Beta      *float64  `json:"beta,omitempty"`
	Epsilon   *float64  `json:"epsilon,omitempty"`
	MaxIter   *int      `json:"max_iter,omitempty"`
}

// JobState represents the state of an optimization job.
// Fields are guarded by Server.jobsMu.
type JobState struct {
	ID          string
	Status      string
	Method      optimization.Method
	Objective   string
	Settings    optimization.Settings
	X0          optimization.Point
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	Trace         *optimization.Trace
	Outcome       optimization.Status
	GradientCalls int
	Err           error

	oracle     optimization.Oracle
	cancelFunc context.CancelFunc
	ctx        context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithRegisterer registers the server metrics with reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) { s.registerer = reg }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server implements the HTTP and JSON-RPC front end for the descent methods.
// It runs jobs in the background, bounded by the configured worker count.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	runLog  *zap.Logger
	metrics *Metrics

	registerer prometheus.Registerer
	now        func() time.Time

	jobs   map[string]*JobState
	jobsMu sync.RWMutex

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
		now:        time.Now,
		jobs:       make(map[string]*JobState),
	}
	for _, opt := range opts {
		opt(s)
	}

	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	s.slots = make(chan struct{}, workers)
	s.metrics = NewMetrics(s.registerer)
	s.runLog = logging.NewZapLogger(logger, zap.AddCaller()).Named("runner")
	return s
}

// RegisterRoutes mounts the REST and JSON-RPC endpoints on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Post("/minimize", s.handleMinimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/methods", s.handleMethods)
		r.Get("/objectives", s.handleObjectives)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// prepare resolves and validates a request into a job that has not been
// scheduled yet.
func (s *Server) prepare(req OptimizeRequest) (*JobState, error) {
	method, err := firstorder.Lookup(req.Method)
	if err != nil {
		return nil, err
	}

	objective, err := objectives.Lookup(req.Objective)
	if err != nil {
		return nil, err
	}

	x0 := optimization.Point(req.X0)
	if err := optimization.CheckDimension(x0, 0); err != nil {
		return nil, err
	}
	if len(x0) > s.cfg.Optimization.MaxDimension {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"got %d coordinates, limit is %d", len(x0), s.cfg.Optimization.MaxDimension)
	}

	oracle, err := objective.Oracle(len(x0), req.Numeric)
	if err != nil {
		return nil, err
	}

	settings := s.cfg.DefaultSettings()
	if req.Alpha != nil {
		settings.Alpha = *req.Alpha
	}
	if req.Beta != nil {
		settings.Beta = *req.Beta
	}
	if req.Epsilon != nil {
		settings.Epsilon = *req.Epsilon
	}
	if req.MaxIter != nil {
		settings.MaxIterations = *req.MaxIter
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.MaxIterations > s.cfg.Optimization.MaxMaxIter {
		return nil, optimization.NewErrorf("max_iter %d exceeds limit %d",
			settings.MaxIterations, s.cfg.Optimization.MaxMaxIter).WithComponent("server")
	}
	if values := traceValues(method, len(x0), settings.MaxIterations); values > s.cfg.Optimization.MaxTraceValues {
		return nil, optimization.NewErrorf("trace of up to %d values exceeds limit %d, lower max_iter or the dimension",
			values, s.cfg.Optimization.MaxTraceValues).WithComponent("server")
	}

	now := s.now()
	return &JobState{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Method:      method,
		Objective:   objective.Name,
		Settings:    settings,
		X0:          x0.Clone(),
		StartTime:   now,
		LastUpdated: now,
		oracle:      oracle,
	}, nil
}

// traceValues is the largest number of float64 values a run can record.
func traceValues(method optimization.Method, dim, maxIter int) int64 {
	values := int64(maxIter+1) * int64(dim)
	if method.Name() == firstorder.NameNesterov {
		values *= 2
	}
	return values
}

// runLabel is the status label a finished run is counted under.
func runLabel(trace optimization.Trace, settings optimization.Settings, err error) string {
	if err != nil {
		return StatusFailed
	}
	return string(optimization.Classify(trace, settings))
}

// start registers the job and runs it in the background.
func (s *Server) start(job *JobState) {
	s.pruneExpired()

	job.ctx, job.cancelFunc = context.WithCancel(context.Background())

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	s.logger.Info("Optimization queued", map[string]interface{}{
		"optimization_id": job.ID,
		"method":          job.Method.Name(),
		"objective":       job.Objective,
		"dimension":       len(job.X0),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job)
	}()
}

// runJob waits for a worker slot and executes the job. A job cancelled
// while queued never runs; one cancelled while running finishes but its
// result is dropped, since the descent routines cannot be interrupted.
func (s *Server) runJob(job *JobState) {
	select {
	case s.slots <- struct{}{}:
	case <-job.ctx.Done():
		return
	}
	defer func() { <-s.slots }()

	s.jobsMu.Lock()
	if job.Status != StatusPending {
		s.jobsMu.Unlock()
		return
	}
	job.Status = StatusRunning
	job.LastUpdated = s.now()
	s.jobsMu.Unlock()

	trace, calls, err := s.execute(job.Method, job.X0, job.oracle, job.Settings)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := s.now()
	job.LastUpdated = now
	if job.Status == StatusCancelled {
		s.metrics.Runs.WithLabelValues(job.Method.Name(), StatusCancelled).Inc()
		return
	}
	s.metrics.Runs.WithLabelValues(job.Method.Name(), runLabel(trace, job.Settings, err)).Inc()
	job.EndTime = &now
	job.GradientCalls = calls
	if err != nil {
		job.Status = StatusFailed
		job.Err = err
		return
	}
	job.Status = StatusCompleted
	job.Trace = &trace
	job.Outcome = optimization.Classify(trace, job.Settings)
}

// execute performs a single run, recovering panics raised by the oracle or
// by a gradient of the wrong length. The caller counts the run in
// momentum_runs_total once its final status is known.
func (s *Server) execute(method optimization.Method, x0 optimization.Point, oracle optimization.Oracle, settings optimization.Settings) (optimization.Trace, int, error) {
	counter := optimization.NewCountingOracle(oracle)
	name := method.Name()

	s.metrics.ActiveJobs.Inc()
	defer s.metrics.ActiveJobs.Dec()

	var trace optimization.Trace
	start := time.Now()
	err := errors.Safely(func() {
		trace = method.Minimize(x0, counter, settings)
	})
	elapsed := time.Since(start)

	s.metrics.RunDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	s.metrics.GradientEvaluations.WithLabelValues(name).Add(float64(counter.Gradients()))

	if err != nil {
		s.runLog.Error("Run failed",
			zap.String("method", name),
			zap.Int("dimension", len(x0)),
			zap.Error(err),
		)
		return optimization.Trace{}, counter.Gradients(), errors.Wrap(err, "run failed").
			WithOperation("minimize").WithComponent(name)
	}

	outcome := optimization.Classify(trace, settings)
	s.metrics.Iterations.WithLabelValues(name).Observe(float64(trace.Iterations))

	_, norm := trace.Final()
	fields := []zap.Field{
		zap.String("method", name),
		zap.String("outcome", string(outcome)),
		zap.Int("iterations", trace.Iterations),
		zap.Int("gradient_evaluations", counter.Gradients()),
		zap.Float64("final_norm", norm),
		zap.Duration("elapsed", elapsed),
	}
	if outcome == optimization.StatusNonFinite {
		s.runLog.Warn("Run stopped on a non-finite value", fields...)
	} else {
		s.runLog.Info("Run finished", fields...)
	}
	return trace, counter.Gradients(), nil
}

// minimize runs a prepared job synchronously, still honouring the worker
// limit. ctx only bounds the wait for a slot.
func (s *Server) minimize(ctx context.Context, job *JobState) (optimization.Trace, int, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return optimization.Trace{}, 0, ctx.Err()
	}
	defer func() { <-s.slots }()

	trace, calls, err := s.execute(job.Method, job.X0, job.oracle, job.Settings)
	s.metrics.Runs.WithLabelValues(job.Method.Name(), runLabel(trace, job.Settings, err)).Inc()
	return trace, calls, err
}

// lookup returns the job with the given ID.
func (s *Server) lookup(id string) (*JobState, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return job, nil
}

// cancel cancels a pending or running job.
func (s *Server) cancel(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}

	switch job.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("%w: status %s", ErrJobFinished, job.Status)
	}

	// A running job is counted by runJob when the routine returns.
	if job.Status == StatusPending {
		s.metrics.Runs.WithLabelValues(job.Method.Name(), StatusCancelled).Inc()
	}

	job.cancelFunc()
	now := s.now()
	job.Status = StatusCancelled
	job.EndTime = &now
	job.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// pruneExpired drops finished jobs older than the configured TTL.
func (s *Server) pruneExpired() {
	ttl := s.cfg.Optimization.JobTTL
	if ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-ttl)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for id, job := range s.jobs {
		if job.EndTime != nil && job.EndTime.Before(cutoff) {
			job.cancelFunc()
			delete(s.jobs, id)
		}
	}
}

// Shutdown cancels every job and waits for running ones to return or for
// ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobsMu.Lock()
	for _, job := range s.jobs {
		if job.cancelFunc != nil {
			job.cancelFunc()
		}
	}
	s.jobsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cleans up resources
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}
