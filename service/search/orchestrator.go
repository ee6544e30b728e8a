package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brojonat/tronlink/service/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers is the number of redundant search workers.
	DefaultWorkers = 1

	// DefaultLogFile is where the CLI writes the search log.
	DefaultLogFile = "connection_log.txt"
)

// ErrInvalidRequest is wrapped by every request validation error.
var ErrInvalidRequest = errors.New("invalid search request")

// Request describes one connection search run.
type Request struct {
	Source   string
	Target   string
	MaxDepth int // default 3
	Workers  int // default 1

	// LogFile receives the final log, overwriting it. Empty skips the file.
	LogFile string

	// FollowJQ optionally restricts which transactions are recursed into.
	FollowJQ string

	// CancelOnFound stops sibling workers once one finds the target.
	// By default every worker runs to completion.
	CancelOnFound bool
}

func (r Request) withDefaults() Request {
	if r.MaxDepth == 0 {
		r.MaxDepth = DefaultMaxDepth
	}
	if r.Workers == 0 {
		r.Workers = DefaultWorkers
	}
	return r
}

// Validate checks the request after defaults are applied.
func (r Request) Validate() error {
	var errs []error
	if r.Source == "" {
		errs = append(errs, fmt.Errorf("source address is required"))
	}
	if r.Target == "" {
		errs = append(errs, fmt.Errorf("target address is required"))
	}
	if r.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max depth must be at least 1, got %d", r.MaxDepth))
	}
	if r.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", r.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

// Report is the outcome of a search run.
type Report struct {
	ID       uuid.UUID `json:"id"`
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	MaxDepth int       `json:"max_depth"`
	Workers  int       `json:"workers"`
	FollowJQ string    `json:"follow_jq,omitempty"`

	Found bool `json:"found"`

	// Inconclusive is set when nothing was found but at least one fetch
	// failed or the search was cancelled, so a path may have been missed.
	Inconclusive    bool     `json:"inconclusive"`
	FailedAddresses []string `json:"failed_addresses,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Log        []string  `json:"log"`
}

// Outcome is the metrics label for the report: found, not_found or inconclusive.
func (r *Report) Outcome() string {
	switch {
	case r.Found:
		return "found"
	case r.Inconclusive:
		return "inconclusive"
	default:
		return "not_found"
	}
}

// Orchestrator runs redundant search workers against a shared source.
type Orchestrator struct {
	source  func() TransactionSource
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator. The source should memoize, since
// every worker repeats the same traversal. m may be nil.
func NewOrchestrator(source TransactionSource, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	return NewSessionOrchestrator(func() TransactionSource { return source }, m, logger)
}

// NewSessionOrchestrator creates an Orchestrator that calls newSource once
// per Run. Workers of one run share that source; separate runs do not.
func NewSessionOrchestrator(newSource func() TransactionSource, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:  newSource,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run launches req.Workers identical searches from source to target, waits
// for all of them, and summarizes the result in the log.
//
// Fetch failures and cancellation of ctx never surface as errors; they only
// mark the report inconclusive. The returned error is non-nil for an invalid request, in
// which case the report is nil, or when the log file cannot be written,
// in which case the report is still returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	filter, err := NewFilter(req.FollowJQ)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	report := &Report{
		ID:        uuid.New(),
		Source:    req.Source,
		Target:    req.Target,
		MaxDepth:  req.MaxDepth,
		Workers:   req.Workers,
		FollowJQ:  req.FollowJQ,
		StartedAt: o.now().UTC(),
	}
	logger := o.logger.With("search_id", report.ID.String())

	log := NewLog(logger)
	log.now = o.now
	log.Printf("Starting connection search between %s and %s", req.Source, req.Target)

	searcher := NewSearcher(o.source(), log, filter, o.metrics)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var found atomic.Bool
	var g errgroup.Group
	for i := range req.Workers {
		g.Go(func() error {
			logger.Debug("search worker started", "worker", i)
			if searcher.Search(runCtx, req.Source, req.Target, req.MaxDepth) {
				if found.CompareAndSwap(false, true) && req.CancelOnFound {
					logger.Debug("cancelling remaining workers", "worker", i)
					cancel()
				}
			}
			logger.Debug("search worker finished", "worker", i)
			return nil
		})
	}
	_ = g.Wait()

	report.Found = found.Load()
	report.FailedAddresses = searcher.FailedAddresses()
	cancelled := !report.Found && ctx.Err() != nil
	report.Inconclusive = !report.Found && (cancelled || len(report.FailedAddresses) > 0)

	if cancelled {
		log.Printf("Search inconclusive: cancelled")
	}
	if !report.Found && len(report.FailedAddresses) > 0 {
		log.Printf("Search inconclusive: %d fetches failed", len(report.FailedAddresses))
	}
	if report.Found {
		log.Printf("Connection found!")
	} else {
		log.Printf("No connection found.")
	}

	report.FinishedAt = o.now().UTC()
	report.Log = log.Lines()

	if o.metrics != nil {
		o.metrics.RecordSearch(report.Outcome(), report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	logger.Info("connection search finished",
		"source", req.Source,
		"target", req.Target,
		"outcome", report.Outcome(),
		"failed_fetches", len(report.FailedAddresses),
	)

	if req.LogFile != "" {
		if err := log.WriteFile(req.LogFile); err != nil {
			return report, err
		}
	}

	return report, nil
}
