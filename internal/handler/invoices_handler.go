package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Invoices, uploads and reports: /v1/companies/{companyId}/...
// ============================================================

const (
	msgBoardFailed   = "Erro ao carregar notas"
	msgDeleteFailed  = "Erro ao excluir nota"
	msgPreviewFailed = "Erro ao abrir nota"
	msgPDFFailed     = "Erro ao carregar PDF"
	msgUploadFailed  = "Erro ao processar XML"

	// maxUploadBytes caps a multipart upload (100 files of up to 1 MiB plus framing).
	maxUploadBytes = 110 << 20
	multipartMem   = 32 << 20
)

type previewRequest struct {
	InvoiceID string `json:"invoiceId" validate:"required"`
}

type reportEmptyResponse struct {
	Status  domain.ReportStatus `json:"status"`
	Message string              `json:"message"`
}

// workspace resolves the {companyId} workspace of the request's session.
func workspace(ws *service.Workspaces, r *http.Request) (*service.Workspace, domain.Session) {
	sess := SessionFromContext(r.Context())
	return ws.Get(sess, chi.URLParam(r, "companyId")), sess
}

// GET /v1/companies/{companyId}/invoices[?refresh=true]
func boardHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}/invoices")
		defer span.End()

		space, sess := workspace(ws, r)
		span.SetAttributes(attribute.String("company.id", space.CompanyID))

		err := space.LoadBoard(ctx, sess, r.URL.Query().Get("refresh") == "true")
		snap := space.Board.Snapshot()

		// A half-loaded board is still a board; the snapshot carries the inline error.
		if err != nil && snap.ListError != "" && snap.StatsError != "" {
			handleServiceError(w, err, msgBoardFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// DELETE /v1/companies/{companyId}/invoices/{invoiceId}?confirm=true
func deleteInvoiceHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/companies/{companyId}/invoices/{invoiceId}")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceId")
		span.SetAttributes(attribute.String("invoice.id", invoiceID))

		if r.URL.Query().Get("confirm") != "true" {
			handleServiceError(w, &domain.ErrValidation{Field: "confirm", Message: "Confirme a exclusão da nota"}, msgDeleteFailed, logger)
			return
		}

		space, sess := workspace(ws, r)
		if err := space.LoadBoard(ctx, sess, false); err != nil {
			logger.Debug("board partially loaded before delete", zap.Error(err))
		}

		if err := space.Board.Delete(ctx, sess, invoiceID); err != nil {
			handleServiceError(w, err, msgDeleteFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, space.Board.Snapshot())
	}
}

// PUT /v1/companies/{companyId}/preview
func openPreviewHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req previewRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, msgPreviewFailed, logger)
			return
		}

		space, sess := workspace(ws, r)
		if err := space.LoadBoard(ctx, sess, false); err != nil {
			logger.Debug("board partially loaded before preview", zap.Error(err))
		}

		if err := space.Board.OpenPreview(req.InvoiceID); err != nil {
			handleServiceError(w, err, msgPreviewFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, space.Board.Snapshot())
	}
}

// DELETE /v1/companies/{companyId}/preview
func closePreviewHandler(ws *service.Workspaces) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		space, _ := workspace(ws, r)
		space.Board.ClosePreview()
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /v1/companies/{companyId}/preview/pdf
func previewPDFHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		space, sess := workspace(ws, r)

		file, err := space.Board.PreviewPDF(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, msgPDFFailed, logger)
			return
		}
		writeFile(w, file, "inline")
	}
}

// GET /v1/invoices/{invoiceId}/pdf
func invoicePDFHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{invoiceId}/pdf")
		defer span.End()

		invoiceID := chi.URLParam(r, "invoiceId")
		span.SetAttributes(attribute.String("invoice.id", invoiceID))

		file, err := ws.InvoicePDF(ctx, SessionFromContext(ctx), invoiceID)
		if err != nil {
			handleServiceError(w, err, msgPDFFailed, logger)
			return
		}
		writeFile(w, file, "inline")
	}
}

// ============================================================
// Uploads
// ============================================================

// GET /v1/companies/{companyId}/uploads
func uploadStatusHandler(ws *service.Workspaces) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		space, _ := workspace(ws, r)
		writeJSON(w, http.StatusOK, space.Upload.View())
	}
}

// POST /v1/companies/{companyId}/uploads (multipart/form-data, any field name)
func uploadHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/companies/{companyId}/uploads")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMem); err != nil {
			var tooLarge *http.MaxBytesError
			msg := "Envio inválido: esperado multipart/form-data"
			if errors.As(err, &tooLarge) {
				msg = "Arquivos excedem o tamanho máximo"
			}
			handleServiceError(w, &domain.ErrValidation{Field: "files", Message: msg}, msgUploadFailed, logger)
			return
		}
		defer r.MultipartForm.RemoveAll()

		files, err := formFiles(r.MultipartForm)
		if err != nil {
			handleServiceError(w, err, msgUploadFailed, logger)
			return
		}

		space, sess := workspace(ws, r)
		span.SetAttributes(
			attribute.String("company.id", space.CompanyID),
			attribute.Int("upload.selected", len(files)),
		)

		result, err := space.Upload.Submit(ctx, sess, files)
		if err != nil {
			handleServiceError(w, err, msgUploadFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// formFiles reads every file of the form, fields in name order.
func formFiles(form *multipart.Form) ([]domain.UploadFile, error) {
	fields := make([]string, 0, len(form.File))
	for name := range form.File {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var files []domain.UploadFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			data, err := readPart(fh)
			if err != nil {
				return nil, &domain.ErrValidation{Field: field, Message: "Não foi possível ler o arquivo " + fh.Filename}
			}
			files = append(files, domain.UploadFile{Name: fh.Filename, Data: data})
		}
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ============================================================
// Report
// ============================================================

// GET /v1/companies/{companyId}/report
func reportHandler(ws *service.Workspaces, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}/report")
		defer span.End()

		space, sess := workspace(ws, r)
		span.SetAttributes(attribute.String("company.id", space.CompanyID))

		outcome, err := space.Report.Export(ctx, sess, space.CompanyID)
		if err != nil {
			handleServiceError(w, err, service.ReportErrorMessage(err), logger)
			return
		}
		if outcome.Status == domain.ReportEmpty {
			writeJSON(w, http.StatusOK, reportEmptyResponse{Status: outcome.Status, Message: outcome.Message})
			return
		}
		writeFile(w, outcome.File, "attachment")
	}
}
