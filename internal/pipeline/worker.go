package pipeline

import (
	"context"
	"log/slog"

	"github.com/dgallion1/tenkview/internal/extract"
)

// Worker processes a single extraction job.
type Worker struct {
	svc *Service
	log *slog.Logger
}

func NewWorker(svc *Service, log *slog.Logger) *Worker {
	return &Worker{svc: svc, log: log}
}

// Process extracts and persists the bundle for the job's filing.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	log.Info("job started")

	job.SetStatus(StatusParsing, "loading")
	b, err := w.svc.bundle(ctx, job.Filename, job.SetStatus)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, string(job.Snapshot().Status))
		return
	}

	job.Record(b)
	for _, warning := range b.Warnings {
		job.AddError(warning)
	}
	for _, part := range []string{b.RiskFactors.Error, b.Tables.Error} {
		if part != "" && part != extract.SectionUnavailable {
			job.AddError(part)
		}
	}
	job.SetStatus(StatusCompleted, "done")
	log.Info("job completed", "pages", b.Metadata.NumPages, "tables", len(b.Tables.Tables))
}
