package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dgallion1/tenkview/internal/config"
	"github.com/dgallion1/tenkview/internal/extract"
	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/metadata"
	"github.com/dgallion1/tenkview/internal/parser"
	"github.com/dgallion1/tenkview/internal/riskfactor"
	"github.com/dgallion1/tenkview/internal/store"
)

// ErrTimeout means extraction did not finish within its deadline.
var ErrTimeout = errors.New("pipeline: extraction timed out")

// parseFunc matches parser.Parse.
type parseFunc func(ctx context.Context, filename string, data []byte, log *slog.Logger) (*layout.Document, error)

// observer receives phase changes of a computation.
type observer func(status JobStatus, phase string)

// Service serves extraction bundles, computing each at most once per upload.
type Service struct {
	store   store.Store
	log     *slog.Logger
	stats   *extract.Stats
	timeout time.Duration
	risk    riskfactor.Options
	meta    metadata.Options

	parse parseFunc
	group singleflight.Group
}

// NewService wires a Service to its store.
func NewService(st store.Store, cfg config.Config, stats *extract.Stats, log *slog.Logger) *Service {
	return &Service{
		store:   st,
		log:     log,
		stats:   stats,
		timeout: cfg.ExtractTimeout,
		risk:    riskfactor.Options{MaxTitleLen: cfg.RiskTitleMaxLen},
		meta:    metadata.Options{PreviewChars: cfg.PreviewChars},
		parse:   parser.Parse,
	}
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// Stats returns the extraction latency recorder.
func (s *Service) Stats() *extract.Stats { return s.stats }

// Bundle returns the persisted bundle for filename, computing it on a miss.
// The returned bundle may be shared between callers and must not be modified.
func (s *Service) Bundle(ctx context.Context, filename string) (*extract.Bundle, error) {
	return s.bundle(ctx, filename, nil)
}

// Forget detaches any in-flight computation for filename so the next request
// starts from the current upload.
func (s *Service) Forget(filename string) {
	s.group.Forget(filename)
}

func (s *Service) bundle(ctx context.Context, filename string, observe observer) (*extract.Bundle, error) {
	var cached extract.Bundle
	err := s.store.GetArtifact(filename, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ch := s.group.DoChan(filename, func() (any, error) {
		// A computation that finished between the miss above and this call
		// has already persisted its bundle.
		var done extract.Bundle
		err := s.store.GetArtifact(filename, &done)
		if err == nil {
			return &done, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		cctx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
		defer cancel()
		return s.compute(cctx, filename, observe)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, filename)
		}
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*extract.Bundle), nil
	}
}

func (s *Service) compute(ctx context.Context, filename string, observe observer) (*extract.Bundle, error) {
	if observe == nil {
		observe = func(JobStatus, string) {}
	}
	log := s.log.With("filename", filename)
	start := time.Now()

	data, err := s.store.ReadUpload(filename)
	if err != nil {
		return nil, err
	}

	observe(StatusParsing, "parsing")
	doc, err := s.parse(ctx, filename, data, log)
	s.stats.Record(extract.StageParse, time.Since(start))
	if err != nil {
		return nil, s.timedOut(ctx, filename, fmt.Errorf("parse %s: %w", filename, err))
	}

	observe(StatusExtracting, "extracting")
	b, err := extract.Run(ctx, doc, extract.Options{
		Filename:    filename,
		ContentHash: ContentHashHex(data),
		Risk:        s.risk,
		Metadata:    s.meta,
		Stats:       s.stats,
		Log:         log,
	})
	if err != nil {
		return nil, s.timedOut(ctx, filename, fmt.Errorf("extract %s: %w", filename, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, s.timedOut(ctx, filename, err)
	}

	observe(StatusStoring, "storing")
	err = s.store.PutArtifactIfUnchanged(filename, data, b)
	switch {
	case errors.Is(err, store.ErrStale):
		log.Warn("upload changed during extraction, bundle not persisted")
	case err != nil:
		return nil, fmt.Errorf("persist bundle: %w", err)
	}

	s.stats.Record(extract.StageTotal, time.Since(start))
	log.Info("extraction complete",
		"pages", b.Metadata.NumPages,
		"tables", len(b.Tables.Tables),
		"risk_items", b.RiskFactors.Set.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// timedOut maps a failure caused by the deadline to ErrTimeout.
func (s *Service) timedOut(ctx context.Context, filename string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, filename)
	}
	return err
}
