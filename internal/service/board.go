package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var boardTracer = otel.Tracer("service/board")

// Fallbacks when the backend sends no detail.
const (
	msgListFailed  = "Erro ao carregar notas"
	msgStatsFailed = "Erro ao carregar estatísticas"
)

// InvoiceRow is an invoice with its pt-BR display fields.
type InvoiceRow struct {
	domain.Invoice
	Approved     bool   `json:"aprovada"`
	ValueDisplay string `json:"valor_formatado"`
	DateDisplay  string `json:"data_formatada"`
}

// BoardSnapshot is the invoice board as rendered by the UI.
type BoardSnapshot struct {
	CompanyID    string                    `json:"companyId"`
	Invoices     []InvoiceRow              `json:"notas"`
	Statistics   *domain.InvoiceStatistics `json:"estatisticas,omitempty"`
	TotalDisplay string                    `json:"valor_total_formatado,omitempty"`
	ListError    string                    `json:"listError,omitempty"`
	StatsError   string                    `json:"statsError,omitempty"`
	Preview      string                    `json:"preview,omitempty"`
	LoadedAt     *time.Time                `json:"loadedAt,omitempty"`
}

// InvoiceBoard holds one company's invoice list, its statistics and the invoice
// open in the preview pane. List and statistics are fetched independently: a
// failure of one keeps the other.
type InvoiceBoard struct {
	api     port.InvoiceAPI
	printer *message.Printer
	logger  *zap.Logger

	mu         sync.Mutex
	companyID  string
	invoices   []domain.Invoice
	stats      *domain.InvoiceStatistics
	listErr    string
	statsErr   string
	preview    string
	loadedAt   time.Time
	generation uint64 // bumped by SetCompany; stale loads are discarded

	// mutation is bumped by every successful Delete; deletedAt records the
	// mutation that removed each id so a load started earlier cannot restore it.
	mutation  uint64
	deletedAt map[string]uint64
}

// NewInvoiceBoard creates an empty board. SetCompany binds it and loads.
func NewInvoiceBoard(api port.InvoiceAPI, logger *zap.Logger) *InvoiceBoard {
	return &InvoiceBoard{
		api:     api,
		printer: message.NewPrinter(language.BrazilianPortuguese),
		logger:  logger,
	}
}

// SetCompany binds the board to companyID. A different company resets the board
// and reloads it; the same company is a no-op.
func (b *InvoiceBoard) SetCompany(ctx context.Context, sess domain.Session, companyID string) error {
	b.mu.Lock()
	if b.companyID == companyID && !b.loadedAt.IsZero() {
		b.mu.Unlock()
		return nil
	}
	b.companyID = companyID
	b.invoices = nil
	b.stats = nil
	b.listErr, b.statsErr = "", ""
	b.preview = ""
	b.loadedAt = time.Time{}
	b.deletedAt = nil
	b.generation++
	b.mu.Unlock()

	return b.Load(ctx, sess)
}

// Loaded reports whether the board has completed a load for its company.
func (b *InvoiceBoard) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.companyID != "" && !b.loadedAt.IsZero()
}

// Refresh reloads list and statistics, e.g. after an upload completed.
func (b *InvoiceBoard) Refresh(ctx context.Context, sess domain.Session) error {
	return b.Load(ctx, sess)
}

// Load fetches list and statistics concurrently. Each failure is recorded on the
// snapshot; the returned error aggregates both.
func (b *InvoiceBoard) Load(ctx context.Context, sess domain.Session) error {
	b.mu.Lock()
	companyID, gen, mut := b.companyID, b.generation, b.mutation
	b.mu.Unlock()

	if companyID == "" {
		return &domain.ErrValidation{Field: "companyId", Message: "Nenhuma empresa selecionada"}
	}

	ctx, span := boardTracer.Start(ctx, "InvoiceBoard.Load")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	var (
		invoices []domain.Invoice
		stats    *domain.InvoiceStatistics
		listErr  error
		statsErr error
	)

	// a plain Group: one fetch failing must not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		invoices, listErr = b.api.ListInvoices(ctx, sess, companyID)
		return nil
	})
	g.Go(func() error {
		stats, statsErr = b.api.GetStatistics(ctx, sess, companyID)
		return nil
	})
	_ = g.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return nil
	}

	var result *multierror.Error
	if listErr != nil {
		b.listErr = domain.UserMessage(listErr, msgListFailed)
		b.logger.Error("failed to fetch invoices", zap.String("company_id", companyID), zap.Error(listErr))
		result = multierror.Append(result, fmt.Errorf("list invoices: %w", listErr))
	} else {
		b.invoices = b.withoutDeletedSince(invoices, mut)
		b.listErr = ""
		if b.preview != "" && indexOf(b.invoices, b.preview) < 0 {
			b.preview = ""
		}
	}
	if statsErr != nil {
		b.statsErr = domain.UserMessage(statsErr, msgStatsFailed)
		b.logger.Error("failed to fetch statistics", zap.String("company_id", companyID), zap.Error(statsErr))
		result = multierror.Append(result, fmt.Errorf("statistics: %w", statsErr))
	} else if b.mutation == mut {
		b.stats = stats
		b.statsErr = ""
	}
	b.loadedAt = time.Now()

	return result.ErrorOrNil()
}

// Delete removes an invoice. On success exactly that id leaves the local list
// (no list reload) and statistics are re-fetched; on failure the list is untouched.
// Confirmation is the caller's responsibility.
func (b *InvoiceBoard) Delete(ctx context.Context, sess domain.Session, invoiceID string) error {
	ctx, span := boardTracer.Start(ctx, "InvoiceBoard.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", invoiceID))

	b.mu.Lock()
	companyID, gen := b.companyID, b.generation
	b.mu.Unlock()

	if err := b.api.DeleteInvoice(ctx, sess, invoiceID); err != nil {
		b.logger.Warn("failed to delete invoice",
			zap.String("company_id", companyID),
			zap.String("invoice_id", invoiceID),
			zap.Error(err),
		)
		return fmt.Errorf("delete invoice: %w", err)
	}

	b.mu.Lock()
	if gen == b.generation {
		b.mutation++
		if b.deletedAt == nil {
			b.deletedAt = make(map[string]uint64)
		}
		b.deletedAt[invoiceID] = b.mutation
		if i := indexOf(b.invoices, invoiceID); i >= 0 {
			b.invoices = append(b.invoices[:i:i], b.invoices[i+1:]...)
		}
		if b.preview == invoiceID {
			b.preview = ""
		}
	}
	b.mu.Unlock()

	stats, err := b.api.GetStatistics(ctx, sess, companyID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.generation {
		return nil
	}
	if err != nil {
		b.statsErr = domain.UserMessage(err, msgStatsFailed)
		b.logger.Error("failed to refresh statistics", zap.String("company_id", companyID), zap.Error(err))
		return nil
	}
	b.stats = stats
	b.statsErr = ""
	return nil
}

// OpenPreview selects an invoice of the loaded list for the preview pane.
func (b *InvoiceBoard) OpenPreview(invoiceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if indexOf(b.invoices, invoiceID) < 0 {
		return &domain.ErrNotFound{Resource: "invoice", ID: invoiceID, Detail: "Nota não encontrada na lista"}
	}
	b.preview = invoiceID
	return nil
}

// ClosePreview closes the preview pane.
func (b *InvoiceBoard) ClosePreview() {
	b.mu.Lock()
	b.preview = ""
	b.mu.Unlock()
}

// Preview returns the invoice open in the preview pane, "" when closed.
func (b *InvoiceBoard) Preview() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.preview
}

// PreviewPDF fetches the PDF of the invoice open in the preview pane.
func (b *InvoiceBoard) PreviewPDF(ctx context.Context, sess domain.Session) (*domain.BinaryFile, error) {
	id := b.Preview()
	if id == "" {
		return nil, &domain.ErrValidation{Field: "preview", Message: "Nenhuma nota selecionada"}
	}

	ctx, span := boardTracer.Start(ctx, "InvoiceBoard.PreviewPDF")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	file, err := b.api.GetInvoicePDF(ctx, sess, id)
	if err != nil {
		return nil, fmt.Errorf("invoice pdf: %w", err)
	}
	return file, nil
}

// Snapshot renders the board.
func (b *InvoiceBoard) Snapshot() BoardSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BoardSnapshot{
		CompanyID:  b.companyID,
		Invoices:   make([]InvoiceRow, 0, len(b.invoices)),
		ListError:  b.listErr,
		StatsError: b.statsErr,
		Preview:    b.preview,
	}
	for _, inv := range b.invoices {
		snap.Invoices = append(snap.Invoices, InvoiceRow{
			Invoice:      inv,
			Approved:     inv.Status.Approved(),
			ValueDisplay: b.formatBRL(inv.TotalValue),
			DateDisplay:  formatDate(inv.IssueDate),
		})
	}
	if b.stats != nil {
		stats := *b.stats
		snap.Statistics = &stats
		snap.TotalDisplay = b.formatBRL(stats.TotalValue)
	}
	if !b.loadedAt.IsZero() {
		t := b.loadedAt
		snap.LoadedAt = &t
	}
	return snap
}

func (b *InvoiceBoard) formatBRL(v float64) string {
	return b.printer.Sprintf("R$ %.2f", v)
}

// formatDate renders an ISO date or timestamp as dd/mm/yyyy; anything else is
// returned as sent.
func formatDate(s string) string {
	if len(s) < len("2006-01-02") {
		return s
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

// withoutDeletedSince drops the ids deleted after mutation mut from a freshly
// fetched list. Caller holds b.mu.
func (b *InvoiceBoard) withoutDeletedSince(invoices []domain.Invoice, mut uint64) []domain.Invoice {
	if b.mutation == mut {
		return invoices
	}
	kept := invoices[:0]
	for _, inv := range invoices {
		if at, ok := b.deletedAt[inv.ID]; ok && at > mut {
			continue
		}
		kept = append(kept, inv)
	}
	return kept
}

func indexOf(invoices []domain.Invoice, id string) int {
	for i := range invoices {
		if invoices[i].ID == id {
			return i
		}
	}
	return -1
}
