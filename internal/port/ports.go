// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the fiscal backend client and local storage.
package port

import (
	"context"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
)

// Every backend call takes the session explicitly; implementations attach its
// bearer token to that one request only.

// CompanyAPI covers company lookup and registration.
type CompanyAPI interface {
	LookupCNPJ(ctx context.Context, sess domain.Session, cnpj string) (*domain.RegistryRecord, error)
	RegisterCompany(ctx context.Context, sess domain.Session, req *domain.CompanyRegistration) (*domain.CompanyCreated, error)
	ListCompanies(ctx context.Context, sess domain.Session) ([]domain.Company, error)
	GetCompany(ctx context.Context, sess domain.Session, companyID string) (*domain.Company, error)
	GetRevenueMonitor(ctx context.Context, sess domain.Session, companyID string) (*domain.RevenueMonitor, error)
}

// InvoiceAPI covers the invoice list, statistics, deletion and PDF rendering.
type InvoiceAPI interface {
	ListInvoices(ctx context.Context, sess domain.Session, companyID string) ([]domain.Invoice, error)
	GetStatistics(ctx context.Context, sess domain.Session, companyID string) (*domain.InvoiceStatistics, error)
	DeleteInvoice(ctx context.Context, sess domain.Session, invoiceID string) error
	GetInvoicePDF(ctx context.Context, sess domain.Session, invoiceID string) (*domain.BinaryFile, error)
}

// InvoiceImporter sends XML files for audit. One file goes to the single-import
// endpoint, several to the batch endpoint.
type InvoiceImporter interface {
	Import(ctx context.Context, sess domain.Session, companyID string, files []domain.UploadFile) (domain.UploadOutcome, error)
}

// ReportFetcher downloads the inconsistency spreadsheet.
type ReportFetcher interface {
	GetInconsistencyReport(ctx context.Context, sess domain.Session, companyID string) (*domain.BinaryFile, error)
}

// AuthAPI issues and resolves bearer tokens.
type AuthAPI interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error)
	Me(ctx context.Context, sess domain.Session) (*domain.User, error)
}

// HealthChecker probes the backend.
type HealthChecker interface {
	Health(ctx context.Context) (*domain.BackendHealth, error)
}

// TokenStore is client-local persistent key/value storage.
type TokenStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
