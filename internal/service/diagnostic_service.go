package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/agents"
	"github.com/ujpm/Microsmart-PF/internal/analysis"
	"github.com/ujpm/Microsmart-PF/internal/archive"
	"github.com/ujpm/Microsmart-PF/internal/domain"
	"github.com/ujpm/Microsmart-PF/internal/repository"
	"github.com/ujpm/Microsmart-PF/internal/staging"
)

// Closed error taxonomy of the diagnostic pipeline. Handlers map these to
// HTTP statuses with errors.Is.
var (
	ErrNotReady           = errors.New("agents are not ready")
	ErrInferenceFailed    = errors.New("inference failed")
	ErrSynthesisFailed    = errors.New("report synthesis failed")
	ErrBackendUnavailable = errors.New("memory store is not configured")
	ErrSearchFailed       = errors.New("search failed")
)

const searchLimit = 10

// Diagnostics is the request-handling core: it sequences staging, inference,
// aggregation and synthesis, and schedules archival without waiting for it.
type Diagnostics interface {
	Analyze(ctx context.Context, sample []byte, filename string) (*domain.CaseResult, error)
	Search(ctx context.Context, query string) ([]domain.Match, error)
	Ready() bool
	StoreEnabled() bool
}

type diagnosticService struct {
	detector agents.Detector
	reporter agents.Reporter
	stager   *staging.Stager
	archiver *archive.Archiver
	store    repository.CaseStore
	log      *zap.Logger
}

// NewDiagnostics wires the pipeline. detector/reporter may be nil when the
// upstream services are unconfigured; archiver and store may be nil when the
// remote content store is disabled.
func NewDiagnostics(
	detector agents.Detector,
	reporter agents.Reporter,
	stager *staging.Stager,
	archiver *archive.Archiver,
	store repository.CaseStore,
	log *zap.Logger,
) Diagnostics {
	return &diagnosticService{
		detector: detector,
		reporter: reporter,
		stager:   stager,
		archiver: archiver,
		store:    store,
		log:      log,
	}
}

func (s *diagnosticService) Ready() bool {
	return s.detector != nil && s.reporter != nil
}

func (s *diagnosticService) StoreEnabled() bool {
	return s.store != nil
}

// Analyze runs the full per-sample pipeline. The staged file is released on
// every exit path: synchronously on any failure after staging, synchronously
// after the response is built when no archiver is configured, and otherwise
// by the archive task on its terminal event. Ownership transfers to the
// archiver at the scheduling boundary, never shared.
func (s *diagnosticService) Analyze(ctx context.Context, sample []byte, filename string) (*domain.CaseResult, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}

	rec, err := s.stager.Stage(sample, filename)
	if err != nil {
		return nil, fmt.Errorf("stage sample: %w", err)
	}

	handedOff := false
	defer func() {
		if !handedOff {
			s.stager.Release(rec)
		}
	}()

	vision, err := s.detector.Detect(ctx, rec.StagedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	counts := analysis.Aggregate(vision.Detections)

	report, err := s.reporter.GenerateReport(ctx, counts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	if s.archiver != nil {
		s.archiver.Schedule(rec, report)
		handedOff = true
	}

	s.log.Info("Case analyzed",
		zap.String("case_id", rec.ID),
		zap.Int("detections", len(vision.Detections)),
		zap.Float64("parasitemia_pct", counts.ParasitemiaPct))

	meta := vision.Image
	return &domain.CaseResult{
		CaseID: rec.ID,
		Analysis: domain.Analysis{
			Counts:         counts.Counts,
			ParasitemiaPct: counts.ParasitemiaPct,
			ImageMetadata:  &meta,
		},
		Report: report,
	}, nil
}

// Search forwards the query to the remote store's semantic search.
func (s *diagnosticService) Search(ctx context.Context, query string) ([]domain.Match, error) {
	if s.store == nil {
		return nil, ErrBackendUnavailable
	}

	matches, err := s.store.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if matches == nil {
		matches = []domain.Match{}
	}
	return matches, nil
}
