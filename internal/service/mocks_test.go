package service_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
)

// --- Mocks ---

type mockCompanyAPI struct {
	record    *domain.RegistryRecord
	lookupErr error
	created   *domain.CompanyCreated
	createErr error
	companies []domain.Company

	// block, when set, holds LookupCNPJ until closed.
	block chan struct{}

	lookups   atomic.Int32
	registers atomic.Int32
	lists     atomic.Int32

	mu      sync.Mutex
	lastReg *domain.CompanyRegistration
}

func (m *mockCompanyAPI) LookupCNPJ(_ context.Context, _ domain.Session, _ string) (*domain.RegistryRecord, error) {
	m.lookups.Add(1)
	if m.block != nil {
		<-m.block
	}
	return m.record, m.lookupErr
}

func (m *mockCompanyAPI) RegisterCompany(_ context.Context, _ domain.Session, req *domain.CompanyRegistration) (*domain.CompanyCreated, error) {
	m.registers.Add(1)
	m.mu.Lock()
	m.lastReg = req
	m.mu.Unlock()
	return m.created, m.createErr
}

func (m *mockCompanyAPI) ListCompanies(_ context.Context, _ domain.Session) ([]domain.Company, error) {
	m.lists.Add(1)
	return m.companies, nil
}

func (m *mockCompanyAPI) GetCompany(_ context.Context, _ domain.Session, id string) (*domain.Company, error) {
	return &domain.Company{ID: id}, nil
}

func (m *mockCompanyAPI) GetRevenueMonitor(_ context.Context, _ domain.Session, _ string) (*domain.RevenueMonitor, error) {
	return &domain.RevenueMonitor{Status: domain.RevenueOK}, nil
}

type mockInvoiceAPI struct {
	mu        sync.Mutex
	invoices  []domain.Invoice
	stats     *domain.InvoiceStatistics
	listErr   error
	statsErr  error
	deleteErr error
	pdf       *domain.BinaryFile

	// listGate, when set, holds ListInvoices until closed; listStarted is
	// signalled once the held call has begun.
	listGate    chan struct{}
	listStarted chan struct{}

	listCalls  atomic.Int32
	statsCalls atomic.Int32
	deleted    []string
}

func (m *mockInvoiceAPI) ListInvoices(_ context.Context, _ domain.Session, _ string) ([]domain.Invoice, error) {
	m.listCalls.Add(1)
	m.mu.Lock()
	if m.listErr != nil {
		m.mu.Unlock()
		return nil, m.listErr
	}
	list := append([]domain.Invoice(nil), m.invoices...)
	gate, started := m.listGate, m.listStarted
	m.mu.Unlock()

	if gate != nil {
		if started != nil {
			close(started)
		}
		<-gate
	}
	return list, nil
}

func (m *mockInvoiceAPI) GetStatistics(_ context.Context, _ domain.Session, _ string) (*domain.InvoiceStatistics, error) {
	m.statsCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	s := *m.stats
	return &s, nil
}

func (m *mockInvoiceAPI) DeleteInvoice(_ context.Context, _ domain.Session, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockInvoiceAPI) GetInvoicePDF(_ context.Context, _ domain.Session, _ string) (*domain.BinaryFile, error) {
	return m.pdf, nil
}

type mockImporter struct {
	outcome domain.UploadOutcome
	err     error
	calls   atomic.Int32
	sent    []domain.UploadFile
}

func (m *mockImporter) Import(_ context.Context, _ domain.Session, _ string, files []domain.UploadFile) (domain.UploadOutcome, error) {
	m.calls.Add(1)
	m.sent = files
	return m.outcome, m.err
}

type mockReportFetcher struct {
	file  *domain.BinaryFile
	err   error
	block chan struct{}
}

func (m *mockReportFetcher) GetInconsistencyReport(_ context.Context, _ domain.Session, _ string) (*domain.BinaryFile, error) {
	if m.block != nil {
		<-m.block
	}
	return m.file, m.err
}

type mockAuthAPI struct {
	resp    *domain.AuthResponse
	err     error
	me      *domain.User
	meErr   error
	meCalls atomic.Int32
	meToken string
}

func (m *mockAuthAPI) Login(_ context.Context, _ *domain.LoginRequest) (*domain.AuthResponse, error) {
	return m.resp, m.err
}

func (m *mockAuthAPI) Register(_ context.Context, _ *domain.RegisterRequest) (*domain.AuthResponse, error) {
	return m.resp, m.err
}

func (m *mockAuthAPI) Me(_ context.Context, sess domain.Session) (*domain.User, error) {
	m.meCalls.Add(1)
	m.meToken = sess.Token
	return m.me, m.meErr
}
