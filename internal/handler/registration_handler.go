package handler

import (
	"net/http"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Company registration wizard: /v1/registrations
// ============================================================

const (
	msgLookupFailed   = "Erro ao consultar CNPJ"
	msgRegisterFailed = "Erro ao cadastrar empresa"
	msgWizardFailed   = "Erro no cadastro da empresa"
)

type lookupRequest struct {
	CNPJ string `json:"cnpj" validate:"required"`
}

type regimeRequest struct {
	Regime domain.TaxRegime `json:"regime_tributario" validate:"required,oneof=MEI 'Simples Nacional' 'Lucro Presumido'"`
}

type serviceCodeUpdate struct {
	Field string  `json:"campo" validate:"required,oneof=cnae_codigo codigo_servico_municipal descricao"`
	Value *string `json:"valor" validate:"required"`
}

type submitResponse struct {
	ID           string                   `json:"id"`
	Message      string                   `json:"mensagem"`
	Registration service.RegistrationView `json:"cadastro"`
}

func startRegistrationHandler(regs *service.Registrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow := regs.Start(SessionFromContext(r.Context()))
		writeJSON(w, http.StatusCreated, flow.View())
	}
}

// withFlow resolves the request session's {registrationId} wizard before calling fn.
func withFlow(regs *service.Registrations, logger *zap.Logger, fn func(http.ResponseWriter, *http.Request, *service.RegistrationFlow)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow, err := regs.Get(SessionFromContext(r.Context()), chi.URLParam(r, "registrationId"))
		if err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		fn(w, r, flow)
	}
}

func getRegistrationHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		writeJSON(w, http.StatusOK, flow.View())
	})
}

func discardRegistrationHandler(regs *service.Registrations) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regs.Discard(SessionFromContext(r.Context()), chi.URLParam(r, "registrationId"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func registrationLookupHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/registrations/{registrationId}/lookup")
		defer span.End()
		span.SetAttributes(attribute.String("registration.id", flow.ID()))

		var req lookupRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, msgLookupFailed, logger)
			return
		}

		if err := flow.Lookup(ctx, SessionFromContext(ctx), req.CNPJ); err != nil {
			handleServiceError(w, err, msgLookupFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, flow.View())
	})
}

func registrationRegimeHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		var req regimeRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		if err := flow.SetRegime(req.Regime); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, flow.View())
	})
}

func addServiceCodeHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		if _, err := flow.AddServiceCode(); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		writeJSON(w, http.StatusCreated, flow.View())
	})
}

func updateServiceCodeHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		i, err := pathIndex(r, "index")
		if err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}

		var req serviceCodeUpdate
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		if err := flow.UpdateServiceCode(i, req.Field, *req.Value); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, flow.View())
	})
}

func removeServiceCodeHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		i, err := pathIndex(r, "index")
		if err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		if err := flow.RemoveServiceCode(i); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, flow.View())
	})
}

func registrationBackHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		if err := flow.Back(r.Context()); err != nil {
			handleServiceError(w, err, msgWizardFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, flow.View())
	})
}

func registrationSubmitHandler(regs *service.Registrations, logger *zap.Logger) http.HandlerFunc {
	return withFlow(regs, logger, func(w http.ResponseWriter, r *http.Request, flow *service.RegistrationFlow) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/registrations/{registrationId}/submit")
		defer span.End()
		span.SetAttributes(attribute.String("registration.id", flow.ID()))

		companyID, err := flow.Submit(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, msgRegisterFailed, logger)
			return
		}
		writeJSON(w, http.StatusCreated, submitResponse{
			ID:           companyID,
			Message:      "Empresa cadastrada com sucesso",
			Registration: flow.View(),
		})
	})
}
