package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// Company workspaces
// ============================================================

// Workspace is everything the UI shows for one company: the invoice board, the
// upload panel and the report button. Uploads refresh the board.
type Workspace struct {
	CompanyID string
	Board     *InvoiceBoard
	Upload    *UploadFlow
	Report    *ReportExporter
}

// Workspaces hands out one Workspace per (session, company), kept alive while in use.
type Workspaces struct {
	invoices port.InvoiceAPI
	importer port.InvoiceImporter
	reports  port.ReportFetcher
	store    port.Cache[*Workspace]
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu sync.Mutex
}

// NewWorkspaces creates the workspace registry.
func NewWorkspaces(
	invoices port.InvoiceAPI,
	importer port.InvoiceImporter,
	reports port.ReportFetcher,
	store port.Cache[*Workspace],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Workspaces {
	return &Workspaces{
		invoices: invoices,
		importer: importer,
		reports:  reports,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Get returns the workspace of companyID for sess, creating it on first use.
// Every call restarts the workspace's idle timer.
func (w *Workspaces) Get(sess domain.Session, companyID string) *Workspace {
	key := sessionKey(sess) + ":" + companyID

	w.mu.Lock()
	defer w.mu.Unlock()

	ws, ok := w.store.Get(key)
	if !ok {
		ws = w.newWorkspace(companyID)
		w.logger.Debug("workspace opened", zap.String("company_id", companyID))
	}
	w.store.Set(key, ws)
	return ws
}

func (w *Workspaces) newWorkspace(companyID string) *Workspace {
	board := NewInvoiceBoard(w.invoices, w.logger)
	ws := &Workspace{
		CompanyID: companyID,
		Board:     board,
		Report:    NewReportExporter(w.reports, w.metrics, w.logger),
	}
	ws.Upload = NewUploadFlow(companyID, w.importer, w.metrics, w.logger, func(ctx context.Context, sess domain.Session) {
		if err := ws.LoadBoard(ctx, sess, true); err != nil {
			w.logger.Warn("board refresh after upload failed", zap.String("company_id", companyID), zap.Error(err))
		}
	})
	return ws
}

// LoadBoard binds the board to the workspace's company, loading it on first use.
// force reloads an already loaded board.
func (ws *Workspace) LoadBoard(ctx context.Context, sess domain.Session, force bool) error {
	if !ws.Board.Loaded() {
		return ws.Board.SetCompany(ctx, sess, ws.CompanyID)
	}
	if force {
		return ws.Board.Refresh(ctx, sess)
	}
	return nil
}

// InvoicePDF fetches an invoice PDF outside of any board.
func (w *Workspaces) InvoicePDF(ctx context.Context, sess domain.Session, invoiceID string) (*domain.BinaryFile, error) {
	file, err := w.invoices.GetInvoicePDF(ctx, sess, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoice pdf: %w", err)
	}
	return file, nil
}

// ============================================================
// Registration wizards
// ============================================================

// Registrations holds open registration wizards by id. A wizard belongs to the
// session that started it and is invisible to any other. Abandoned wizards
// expire with the backing cache's TTL.
type Registrations struct {
	api     port.CompanyAPI
	flows   port.Cache[*RegistrationFlow]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRegistrations creates the wizard registry. api is normally a *CompanyDirectory.
func NewRegistrations(api port.CompanyAPI, flows port.Cache[*RegistrationFlow], metrics *observability.Metrics, logger *zap.Logger) *Registrations {
	return &Registrations{api: api, flows: flows, metrics: metrics, logger: logger}
}

// Start opens a new wizard in LOOKUP owned by sess.
func (r *Registrations) Start(sess domain.Session) *RegistrationFlow {
	id := uuid.NewString()
	flow := NewRegistrationFlow(id, r.api, r.completed(id), r.logger)
	flow.owner = sessionKey(sess)
	r.flows.Set(id, flow)
	return flow
}

// Get returns an open wizard of sess. Another session's wizard is reported as
// not found.
func (r *Registrations) Get(sess domain.Session, id string) (*RegistrationFlow, error) {
	flow, ok := r.flows.Get(id)
	if !ok || flow.owner != sessionKey(sess) {
		return nil, &domain.ErrNotFound{Resource: "registration", ID: id, Detail: "Cadastro não encontrado ou expirado"}
	}
	return flow, nil
}

// Discard closes a wizard of sess. Unknown ids and other sessions' wizards are ignored.
func (r *Registrations) Discard(sess domain.Session, id string) {
	if _, err := r.Get(sess, id); err != nil {
		return
	}
	r.flows.Delete(id)
}

func (r *Registrations) completed(wizardID string) func(domain.Session, string) {
	return func(_ domain.Session, companyID string) {
		r.metrics.IncrRegistration()
		r.logger.Info("company registered",
			zap.String("wizard_id", wizardID),
			zap.String("company_id", companyID),
		)
	}
}
