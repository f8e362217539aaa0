package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/resilience"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var uploadTracer = otel.Tracer("service/upload")

const (
	msgNoXML        = "Selecione um arquivo XML primeiro"
	msgTooManyFiles = "Máximo de 100 arquivos por upload"
	msgUploadFailed = "Erro ao processar XML"
)

// UploadView is the upload panel as rendered by the UI.
type UploadView struct {
	Busy    bool                `json:"busy"`
	Result  *domain.BatchResult `json:"resultado,omitempty"`
	Error   string              `json:"error,omitempty"`
	Ignored []string            `json:"ignorados,omitempty"`
}

// UploadFlow submits XML files of one company for audit.
type UploadFlow struct {
	companyID string
	importer  port.InvoiceImporter
	metrics   *observability.Metrics
	logger    *zap.Logger
	onSuccess func(ctx context.Context, sess domain.Session)

	guard *resilience.Guard

	mu      sync.Mutex
	result  *domain.BatchResult
	lastErr string
	ignored []string
}

// NewUploadFlow creates the upload flow of companyID. onSuccess runs after every
// completed submission, partial batch failures included; it may be nil.
func NewUploadFlow(
	companyID string,
	importer port.InvoiceImporter,
	metrics *observability.Metrics,
	logger *zap.Logger,
	onSuccess func(context.Context, domain.Session),
) *UploadFlow {
	return &UploadFlow{
		companyID: companyID,
		importer:  importer,
		metrics:   metrics,
		logger:    logger,
		onSuccess: onSuccess,
		guard:     resilience.NewGuard(),
	}
}

// XMLFiles splits a selection into the files whose name ends in ".xml" and the
// names of the rest. The match is case-sensitive.
func XMLFiles(files []domain.UploadFile) (xml []domain.UploadFile, ignored []string) {
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".xml") {
			xml = append(xml, f)
		} else {
			ignored = append(ignored, f.Name)
		}
	}
	return xml, ignored
}

// Submit filters the selection to XML files and sends them: none or more than
// MaxUploadFiles is rejected locally, one goes to the single-import endpoint and
// several to the batch endpoint. On completion the selection is gone (the caller
// holds no files after this returns) and the success callback fires.
func (u *UploadFlow) Submit(ctx context.Context, sess domain.Session, files []domain.UploadFile) (domain.BatchResult, error) {
	xml, ignored := XMLFiles(files)

	var rejection error
	switch {
	case len(xml) == 0:
		rejection = &domain.ErrValidation{Field: "files", Message: msgNoXML}
	case len(xml) > domain.MaxUploadFiles:
		rejection = &domain.ErrValidation{Field: "files", Message: msgTooManyFiles}
	}
	if rejection != nil {
		u.metrics.AddUploadedFiles("rejected", len(files))
		u.record(nil, domain.UserMessage(rejection, msgUploadFailed), ignored)
		return domain.BatchResult{}, rejection
	}

	if !u.guard.TryAcquire() {
		return domain.BatchResult{}, &domain.ErrBusy{Action: "upload"}
	}
	defer u.guard.Release()

	ctx, span := uploadTracer.Start(ctx, "UploadFlow.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", u.companyID),
		attribute.Int("upload.files", len(xml)),
	)

	if len(ignored) > 0 {
		u.metrics.AddUploadedFiles("rejected", len(ignored))
	}
	u.record(nil, "", ignored)

	outcome, err := u.importer.Import(ctx, sess, u.companyID, xml)
	if err != nil {
		u.metrics.AddUploadedFiles("failure", len(xml))
		u.setError(domain.UserMessage(err, msgUploadFailed))
		u.logger.Warn("upload failed",
			zap.String("company_id", u.companyID),
			zap.Int("files", len(xml)),
			zap.Error(err),
		)
		return domain.BatchResult{}, fmt.Errorf("import: %w", err)
	}

	summary := outcome.Summary()
	u.metrics.AddUploadedFiles("success", summary.Success)
	u.metrics.AddUploadedFiles("failure", summary.Failures)
	u.record(&summary, "", ignored)

	fields := []zap.Field{
		zap.String("company_id", u.companyID),
		zap.Int("files", summary.Total),
		zap.Int("success", summary.Success),
		zap.Int("failures", summary.Failures),
	}
	if ferr := summary.Err(); ferr != nil {
		fields = append(fields, zap.NamedError("file_errors", ferr))
	}
	u.logger.Info("upload completed", fields...)

	if u.onSuccess != nil {
		u.onSuccess(ctx, sess)
	}
	return summary, nil
}

// Busy reports whether a submission is outstanding.
func (u *UploadFlow) Busy() bool {
	return u.guard.Busy()
}

// View renders the upload panel.
func (u *UploadFlow) View() UploadView {
	u.mu.Lock()
	defer u.mu.Unlock()

	v := UploadView{
		Busy:    u.guard.Busy(),
		Error:   u.lastErr,
		Ignored: append([]string(nil), u.ignored...),
	}
	if u.result != nil {
		r := *u.result
		v.Result = &r
	}
	return v
}

func (u *UploadFlow) record(result *domain.BatchResult, errMsg string, ignored []string) {
	u.mu.Lock()
	u.result = result
	u.lastErr = errMsg
	u.ignored = ignored
	u.mu.Unlock()
}

func (u *UploadFlow) setError(msg string) {
	u.mu.Lock()
	u.lastErr = msg
	u.mu.Unlock()
}
