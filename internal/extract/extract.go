// Package extract runs every extractor over a parsed filing and assembles the
// bundle that is persisted and served.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/tenkview/internal/finance"
	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/metadata"
	"github.com/dgallion1/tenkview/internal/riskfactor"
	"github.com/dgallion1/tenkview/internal/section"
)

// SectionUnavailable is the error text recorded for a section that could not be found.
const SectionUnavailable = "section unavailable"

// SectionResult is one item's outcome.
type SectionResult struct {
	Found   bool             `json:"found"`
	Error   string           `json:"error,omitempty"`
	Section *section.Section `json:"section,omitempty"`
}

// RiskResult is the risk factor split, or why it is missing.
type RiskResult struct {
	Available bool           `json:"available"`
	Error     string         `json:"error,omitempty"`
	Set       riskfactor.Set `json:"set"`
}

// TablesResult holds the financial tables. WholeDocument means no Item 8 or
// Item 15 was found and every page was scanned.
type TablesResult struct {
	Tables        []finance.Table `json:"tables"`
	WholeDocument bool            `json:"whole_document"`
	Error         string          `json:"error,omitempty"`
}

// Bundle is everything derived from one filing.
type Bundle struct {
	Filename    string                   `json:"filename"`
	ContentHash string                   `json:"content_hash"`
	ExtractedAt time.Time                `json:"extracted_at"`
	Metadata    metadata.Metadata        `json:"metadata"`
	Sections    map[string]SectionResult `json:"sections"`
	RiskFactors RiskResult               `json:"risk_factors"`
	Tables      TablesResult             `json:"tables"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// Section returns the result for id in any accepted spelling.
func (b *Bundle) Section(id string) (SectionResult, error) {
	canonical, err := section.ParseID(id)
	if err != nil {
		return SectionResult{}, err
	}
	r, ok := b.Sections[canonical]
	if !ok {
		return SectionResult{Error: SectionUnavailable}, nil
	}
	return r, nil
}

// Options configures a run.
type Options struct {
	Filename    string
	ContentHash string
	Risk        riskfactor.Options
	Metadata    metadata.Options
	Stats       *Stats
	Log         *slog.Logger
}

// Run fans the extractors out over the read-only document. A failure or panic
// in one extractor is recorded on its part of the bundle; only a done context
// fails the run. The section and table extractors check ctx as they go.
func Run(ctx context.Context, doc *layout.Document, opts Options) (*Bundle, error) {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Bundle{
		Filename:    opts.Filename,
		ContentHash: opts.ContentHash,
	}

	var (
		sections = make(map[string]SectionResult, len(section.Catalog))
		risks    RiskResult
		tables   = TablesResult{Tables: []finance.Table{}}
		meta     metadata.Metadata
	)

	g, gctx := errgroup.WithContext(ctx)
	run := func(stage string, fn func() error, onErr func(error)) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			err := guard(fn)
			opts.Stats.Record(stage, time.Since(start))
			if cerr := gctx.Err(); cerr != nil && errors.Is(err, cerr) {
				return err
			}
			if err != nil {
				log.Warn("extractor failed", "stage", stage, "error", err)
				onErr(err)
			}
			return nil
		})
	}

	run(StageSections, func() error {
		ix := section.Segment(doc)
		for _, def := range section.Catalog {
			if err := gctx.Err(); err != nil {
				return err
			}
			sec, err := ix.Get(def.ID)
			if err != nil {
				sections[def.ID] = SectionResult{Error: SectionUnavailable}
				continue
			}
			sections[def.ID] = SectionResult{Found: true, Section: &sec}
		}
		return nil
	}, func(err error) {
		for _, def := range section.Catalog {
			sections[def.ID] = SectionResult{Error: SectionUnavailable}
		}
	})

	run(StageRisks, func() error {
		set, err := riskfactor.Extract(doc, opts.Risk)
		risks = RiskResult{Available: err == nil, Set: set}
		if err != nil {
			risks.Error = SectionUnavailable
		}
		return nil
	}, func(err error) {
		risks = RiskResult{Error: err.Error(), Set: riskfactor.Split("", opts.Risk)}
	})

	run(StageTables, func() error {
		spans, ok := finance.Region(doc)
		if !ok {
			log.Warn("financial statements not located, scanning whole document")
		}
		found, err := finance.FromLinesContext(gctx, doc, spans...)
		if err != nil {
			return err
		}
		tables = TablesResult{Tables: found, WholeDocument: !ok}
		return nil
	}, func(err error) {
		tables = TablesResult{Tables: []finance.Table{}, Error: err.Error()}
	})

	run(StageMetadata, func() error {
		meta = metadata.Extract(doc, opts.Filename, opts.Metadata)
		return nil
	}, func(err error) {
		meta = metadata.Metadata{Filename: opts.Filename, NumPages: doc.NumPages()}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.Sections = sections
	b.RiskFactors = risks
	b.Tables = tables
	b.Metadata = meta
	b.ExtractedAt = time.Now().UTC()

	if err := Validate(b); err != nil {
		log.Warn("bundle failed validation", "error", err)
		b.Warnings = append(b.Warnings, err.Error())
	}
	return b, nil
}

// guard turns a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract: panic: %v", r)
		}
	}()
	return fn()
}
