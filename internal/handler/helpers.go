package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeFile sends a binary payload. disposition is "attachment" or "inline".
func writeFile(w http.ResponseWriter, file *domain.BinaryFile, disposition string) {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": file.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

// decodeBody decodes a JSON body and runs its validate tags.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "Corpo da requisição inválido"}
	}
	return service.ValidateStruct(dst)
}

// handleServiceError maps domain errors to HTTP responses. The body carries the
// text the UI shows: the backend's detail when it sent one, else fallback.
func handleServiceError(w http.ResponseWriter, err error, fallback string, logger *zap.Logger) {
	var (
		validation  *domain.ErrValidation
		busy        *domain.ErrBusy
		notFound    *domain.ErrNotFound
		upstream    *domain.ErrUpstream
		transport   *domain.ErrTransport
		circuitOpen *domain.ErrCircuitOpen
	)
	msg := domain.UserMessage(err, fallback)

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, msg)
	case errors.As(err, &busy):
		logger.Debug("action busy", zap.String("action", busy.Action))
		writeError(w, http.StatusConflict, msg)
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, msg)
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.Status >= 400 && upstream.Status < 500 {
			status = upstream.Status
		}
		logger.Warn("backend rejected request", zap.Int("backend_status", upstream.Status), zap.Error(err))
		writeError(w, status, msg)
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, msg)
	case errors.As(err, &transport):
		logger.Error("backend unreachable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, msg)
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func pathIndex(r *http.Request, name string) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, &domain.ErrValidation{Field: name, Message: "Índice inválido"}
	}
	return i, nil
}
