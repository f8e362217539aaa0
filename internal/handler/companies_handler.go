package handler

import (
	"net/http"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Companies: /v1/companies
// ============================================================

const (
	msgCompaniesFailed = "Erro ao carregar empresas"
	msgCompanyFailed   = "Erro ao carregar empresa"
	msgDashboardFailed = "Erro ao carregar métricas"
)

func listCompaniesHandler(dir *service.CompanyDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies")
		defer span.End()

		companies, err := dir.ListCompanies(ctx, SessionFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, msgCompaniesFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, companies)
	}
}

func getCompanyHandler(dir *service.CompanyDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}")
		defer span.End()

		companyID := chi.URLParam(r, "companyId")
		span.SetAttributes(attribute.String("company.id", companyID))

		company, err := dir.GetCompany(ctx, SessionFromContext(ctx), companyID)
		if err != nil {
			handleServiceError(w, err, msgCompanyFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, company)
	}
}

func dashboardHandler(dir *service.CompanyDirectory, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}/dashboard")
		defer span.End()

		companyID := chi.URLParam(r, "companyId")
		span.SetAttributes(attribute.String("company.id", companyID))

		monitor, err := dir.GetRevenueMonitor(ctx, SessionFromContext(ctx), companyID)
		if err != nil {
			handleServiceError(w, err, msgDashboardFailed, logger)
			return
		}
		writeJSON(w, http.StatusOK, monitor)
	}
}
