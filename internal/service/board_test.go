package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleInvoices() []domain.Invoice {
	return []domain.Invoice{
		{ID: "n1", Number: 1, IssueDate: "2024-03-05T10:00:00", TotalValue: 1234.56, Status: domain.AuditApproved},
		{ID: "n2", Number: 2, IssueDate: "2024-03-06", TotalValue: 10, Status: domain.AuditErrorCNAE, ErrorMessage: "CNAE não permitido"},
		{ID: "n3", Number: 3, IssueDate: "06/03/2024", TotalValue: 5, Status: domain.AuditApproved},
	}
}

func loadedBoard(t *testing.T, api *mockInvoiceAPI) *service.InvoiceBoard {
	t.Helper()
	b := service.NewInvoiceBoard(api, zap.NewNop())
	require.NoError(t, b.SetCompany(context.Background(), domain.Session{}, "emp-1"))
	return b
}

func ids(snap service.BoardSnapshot) []string {
	out := make([]string, 0, len(snap.Invoices))
	for _, r := range snap.Invoices {
		out = append(out, r.ID)
	}
	return out
}

func TestBoard_LoadRendersPtBR(t *testing.T) {
	api := &mockInvoiceAPI{invoices: sampleInvoices(), stats: &domain.InvoiceStatistics{Total: 3, Approved: 2, WithErrors: 1, TotalValue: 1249.56}}
	b := loadedBoard(t, api)

	snap := b.Snapshot()
	assert.Equal(t, []string{"n1", "n2", "n3"}, ids(snap))
	assert.Equal(t, "05/03/2024", snap.Invoices[0].DateDisplay)
	assert.Equal(t, "06/03/2024", snap.Invoices[1].DateDisplay)
	assert.Equal(t, "06/03/2024", snap.Invoices[2].DateDisplay, "non-ISO dates pass through")
	assert.True(t, strings.HasPrefix(snap.Invoices[0].ValueDisplay, "R$ "))
	assert.True(t, strings.HasSuffix(snap.Invoices[0].ValueDisplay, ",56"))
	assert.True(t, snap.Invoices[0].Approved)
	assert.False(t, snap.Invoices[1].Approved)
	require.NotNil(t, snap.Statistics)
	assert.Equal(t, 1, snap.Statistics.WithErrors)
	assert.NotNil(t, snap.LoadedAt)
}

func TestBoard_IndependentFailures(t *testing.T) {
	api := &mockInvoiceAPI{invoices: sampleInvoices(), statsErr: &domain.ErrUpstream{Status: 500}}
	b := service.NewInvoiceBoard(api, zap.NewNop())

	err := b.SetCompany(context.Background(), domain.Session{}, "emp-1")
	require.Error(t, err)

	snap := b.Snapshot()
	assert.Len(t, snap.Invoices, 3, "list survives a statistics failure")
	assert.Nil(t, snap.Statistics)
	assert.Equal(t, "Erro ao carregar estatísticas", snap.StatsError)
	assert.Empty(t, snap.ListError)

	// now the list fails and statistics recover; the previous list is kept
	api.mu.Lock()
	api.statsErr = nil
	api.stats = &domain.InvoiceStatistics{Total: 3}
	api.listErr = &domain.ErrTransport{Err: errors.New("timeout")}
	api.mu.Unlock()

	require.Error(t, b.Refresh(context.Background(), domain.Session{}))
	snap = b.Snapshot()
	assert.Len(t, snap.Invoices, 3)
	assert.NotNil(t, snap.Statistics)
	assert.Equal(t, "Erro ao carregar notas", snap.ListError)
	assert.Empty(t, snap.StatsError)
}

func TestBoard_DeleteRemovesExactlyThatID(t *testing.T) {
	api := &mockInvoiceAPI{invoices: sampleInvoices(), stats: &domain.InvoiceStatistics{Total: 3}}
	b := loadedBoard(t, api)
	listCalls := api.listCalls.Load()

	api.mu.Lock()
	api.stats = &domain.InvoiceStatistics{Total: 2}
	api.mu.Unlock()

	require.NoError(t, b.Delete(context.Background(), domain.Session{}, "n2"))

	snap := b.Snapshot()
	assert.Equal(t, []string{"n1", "n3"}, ids(snap))
	assert.Equal(t, 2, snap.Statistics.Total, "statistics re-fetched")
	assert.Equal(t, listCalls, api.listCalls.Load(), "list is not reloaded")
	assert.Equal(t, []string{"n2"}, api.deleted)
}

func TestBoard_DeleteWinsOverConcurrentRefresh(t *testing.T) {
	api := &mockInvoiceAPI{invoices: sampleInvoices(), stats: &domain.InvoiceStatistics{Total: 3}}
	b := loadedBoard(t, api)

	gate := make(chan struct{})
	started := make(chan struct{})
	api.mu.Lock()
	api.listGate, api.listStarted = gate, started
	api.mu.Unlock()

	// the refresh fetches the list while n1 still exists and is held there
	done := make(chan error, 1)
	go func() { done <- b.Refresh(context.Background(), domain.Session{}) }()
	<-started

	api.mu.Lock()
	api.stats = &domain.InvoiceStatistics{Total: 2}
	api.mu.Unlock()
	require.NoError(t, b.Delete(context.Background(), domain.Session{}, "n1"))
	assert.Equal(t, []string{"n2", "n3"}, ids(b.Snapshot()))

	close(gate)
	require.NoError(t, <-done)

	snap := b.Snapshot()
	assert.Equal(t, []string{"n2", "n3"}, ids(snap), "deleted invoice stays out after the refresh lands")
	require.NotNil(t, snap.Statistics)
	assert.Equal(t, 2, snap.Statistics.Total, "stale statistics are not applied")
}

func TestBoard_DeleteFailureKeepsList(t *testing.T) {
	api := &mockInvoiceAPI{invoices: sampleInvoices(), stats: &domain.InvoiceStatistics{Total: 3}}
	b := loadedBoard(t, api)
	api.deleteErr = &domain.ErrNotFound{Resource: "invoice", ID: "ghost", Detail: "Nota não encontrada"}

	err := b.Delete(context.Background(), domain.Session{}, "ghost")

	require.Error(t, err)
	assert.Equal(t, "Nota não encontrada", domain.UserMessage(err, "x"))
	assert.Equal(t, []string{"n1", "n2", "n3"}, ids(b.Snapshot()))
}

func TestBoard_Preview(t *testing.T) {
	api := &mockInvoiceAPI{
		invoices: sampleInvoices(),
		stats:    &domain.InvoiceStatistics{},
		pdf:      &domain.BinaryFile{Filename: "nota_n1.pdf", Data: []byte("%PDF")},
	}
	b := loadedBoard(t, api)

	assert.Empty(t, b.Preview())
	_, err := b.PreviewPDF(context.Background(), domain.Session{})
	assert.Error(t, err, "no invoice selected")

	assert.Error(t, b.OpenPreview("unknown"))
	require.NoError(t, b.OpenPreview("n1"))
	assert.Equal(t, "n1", b.Snapshot().Preview)

	file, err := b.PreviewPDF(context.Background(), domain.Session{})
	require.NoError(t, err)
	assert.Equal(t, "nota_n1.pdf", file.Filename)

	// deleting the previewed invoice closes the pane
	require.NoError(t, b.Delete(context.Background(), domain.Session{}, "n1"))
	assert.Empty(t, b.Preview())

	require.NoError(t, b.OpenPreview("n2"))
	b.ClosePreview()
	assert.Empty(t, b.Preview())
}

func TestBoard_SetCompanyReloadsOnlyOnChange(t *testing.T) {
	api := &mockInvoiceAPI{invoices: sampleInvoices(), stats: &domain.InvoiceStatistics{}}
	b := loadedBoard(t, api)
	require.NoError(t, b.OpenPreview("n1"))

	require.NoError(t, b.SetCompany(context.Background(), domain.Session{}, "emp-1"))
	assert.EqualValues(t, 1, api.listCalls.Load())
	assert.Equal(t, "n1", b.Preview())

	require.NoError(t, b.SetCompany(context.Background(), domain.Session{}, "emp-2"))
	assert.EqualValues(t, 2, api.listCalls.Load())
	assert.Empty(t, b.Preview(), "switching company closes the preview")
	assert.Equal(t, "emp-2", b.Snapshot().CompanyID)
}

func TestBoard_LoadWithoutCompany(t *testing.T) {
	b := service.NewInvoiceBoard(&mockInvoiceAPI{}, zap.NewNop())

	var ve *domain.ErrValidation
	assert.True(t, errors.As(b.Load(context.Background(), domain.Session{}), &ve))
}
