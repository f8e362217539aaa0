package handler

import (
	"net/http"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/cnpj"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles what the routes delegate to.
type Services struct {
	Session       *service.SessionHolder
	Companies     *service.CompanyDirectory
	Registrations *service.Registrations
	Workspaces    *service.Workspaces
	Backend       port.HealthChecker
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the contract of the fiscal-facil browser UI.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Backend, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/summary", metricsSummaryHandler(metrics))
		r.Get("/cnpj/mask", cnpjMaskHandler())

		// =============================================
		// 🔐 Autenticação
		// =============================================
		r.Post("/auth/login", authLoginHandler(svc.Session, logger))
		r.Post("/auth/register", authRegisterHandler(svc.Session, logger))
		r.Post("/auth/logout", authLogoutHandler(svc.Session, logger))

		// Everything below is issued with the request's session.
		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(svc.Session, logger))

			r.Get("/auth/me", authMeHandler(svc.Session, logger))

			// =============================================
			// 🏢 Cadastro de empresa (wizard)
			// =============================================
			r.Route("/registrations", func(r chi.Router) {
				r.Post("/", startRegistrationHandler(svc.Registrations))
				r.Route("/{registrationId}", func(r chi.Router) {
					r.Get("/", getRegistrationHandler(svc.Registrations, logger))
					r.Delete("/", discardRegistrationHandler(svc.Registrations))
					r.Post("/lookup", registrationLookupHandler(svc.Registrations, logger))
					r.Put("/regime", registrationRegimeHandler(svc.Registrations, logger))
					r.Post("/service-codes", addServiceCodeHandler(svc.Registrations, logger))
					r.Put("/service-codes/{index}", updateServiceCodeHandler(svc.Registrations, logger))
					r.Delete("/service-codes/{index}", removeServiceCodeHandler(svc.Registrations, logger))
					r.Post("/back", registrationBackHandler(svc.Registrations, logger))
					r.Post("/submit", registrationSubmitHandler(svc.Registrations, logger))
				})
			})

			// =============================================
			// 📊 Empresas, notas e relatórios
			// =============================================
			r.Get("/companies", listCompaniesHandler(svc.Companies, logger))
			r.Route("/companies/{companyId}", func(r chi.Router) {
				r.Get("/", getCompanyHandler(svc.Companies, logger))
				r.Get("/dashboard", dashboardHandler(svc.Companies, logger))

				r.Get("/invoices", boardHandler(svc.Workspaces, logger))
				r.Delete("/invoices/{invoiceId}", deleteInvoiceHandler(svc.Workspaces, logger))
				r.Put("/preview", openPreviewHandler(svc.Workspaces, logger))
				r.Delete("/preview", closePreviewHandler(svc.Workspaces))
				r.Get("/preview/pdf", previewPDFHandler(svc.Workspaces, logger))

				r.Get("/uploads", uploadStatusHandler(svc.Workspaces))
				r.Post("/uploads", uploadHandler(svc.Workspaces, logger))

				r.Get("/report", reportHandler(svc.Workspaces, logger))
			})
			r.Get("/invoices/{invoiceId}/pdf", invoicePDFHandler(svc.Workspaces, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(backend port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa", Status: "up", LastChecked: now},
		}

		if backend != nil {
			start := time.Now()
			health, err := backend.Health(r.Context())
			sh := domain.ServiceHealth{
				Name:        "fiscal-backend",
				Status:      "up",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			switch {
			case err != nil:
				logger.Warn("backend health check failed", zap.Error(err))
				sh.Status = "down"
				sh.Detail = err.Error()
			case health.Database != "" && health.Database != "connected":
				sh.Detail = "database: " + health.Database
			}
			services = append(services, sh)
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "down" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

// ============================================================
// CNPJ mask: GET /v1/cnpj/mask?value=
// ============================================================

type maskResponse struct {
	Masked   string `json:"masked"`
	Digits   string `json:"digits"`
	Complete bool   `json:"complete"`
}

func cnpjMaskHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := r.URL.Query().Get("value")
		writeJSON(w, http.StatusOK, maskResponse{
			Masked:   cnpj.Mask(value),
			Digits:   cnpj.Unmask(value),
			Complete: cnpj.Complete(value),
		})
	}
}
