package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/resilience"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reportTracer = otel.Tracer("service/report")

const msgReportFailed = "Erro ao gerar relatório"

// ReportExporter downloads the inconsistency spreadsheet of a company.
// A 404 from the backend means every invoice passed the audit; it is an
// informational outcome, not an error.
type ReportExporter struct {
	fetcher port.ReportFetcher
	metrics *observability.Metrics
	logger  *zap.Logger
	guard   *resilience.Guard
}

// NewReportExporter creates the exporter.
func NewReportExporter(fetcher port.ReportFetcher, metrics *observability.Metrics, logger *zap.Logger) *ReportExporter {
	return &ReportExporter{
		fetcher: fetcher,
		metrics: metrics,
		logger:  logger,
		guard:   resilience.NewGuard(),
	}
}

// Export fetches the report. While one export is pending a second call gets ErrBusy.
func (r *ReportExporter) Export(ctx context.Context, sess domain.Session, companyID string) (*domain.ReportOutcome, error) {
	if !r.guard.TryAcquire() {
		return nil, &domain.ErrBusy{Action: "report"}
	}
	defer r.guard.Release()

	ctx, span := reportTracer.Start(ctx, "ReportExporter.Export")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	file, err := r.fetcher.GetInconsistencyReport(ctx, sess, companyID)

	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		r.metrics.IncrReport(string(domain.ReportEmpty))
		r.logger.Info("report: nothing to report", zap.String("company_id", companyID))
		return &domain.ReportOutcome{Status: domain.ReportEmpty, Message: domain.ReportEmptyMessage}, nil
	case err != nil:
		r.metrics.IncrReport("error")
		r.logger.Warn("report export failed", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("inconsistency report: %w", err)
	}

	r.metrics.IncrReport(string(domain.ReportReady))
	r.logger.Info("report exported",
		zap.String("company_id", companyID),
		zap.String("filename", file.Filename),
		zap.Int("bytes", len(file.Data)),
	)
	return &domain.ReportOutcome{Status: domain.ReportReady, File: file}, nil
}

// Busy reports whether an export is pending.
func (r *ReportExporter) Busy() bool {
	return r.guard.Busy()
}

// ReportErrorMessage is the text shown for a failed export.
func ReportErrorMessage(err error) string {
	return domain.UserMessage(err, msgReportFailed)
}
