package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var companiesTracer = otel.Tracer("service/companies")

// Cache labels used for hit/miss metrics.
const (
	cacheLookup    = "cnpj_lookup"
	cacheCompanies = "companies"
)

// CompanyDirectory fronts the backend's company endpoints with two caches:
// registry lookups by CNPJ, and the company list per session token. A
// successful registration drops the caller's cached list.
//
// It satisfies port.CompanyAPI, so the registration wizard uses it in place
// of the raw client.
type CompanyDirectory struct {
	api       port.CompanyAPI
	lookups   port.Cache[*domain.RegistryRecord]
	companies port.Cache[[]domain.Company]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewCompanyDirectory creates the directory.
func NewCompanyDirectory(
	api port.CompanyAPI,
	lookups port.Cache[*domain.RegistryRecord],
	companies port.Cache[[]domain.Company],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CompanyDirectory {
	return &CompanyDirectory{
		api:       api,
		lookups:   lookups,
		companies: companies,
		metrics:   metrics,
		logger:    logger,
	}
}

// LookupCNPJ returns the registry record for a normalized CNPJ.
func (d *CompanyDirectory) LookupCNPJ(ctx context.Context, sess domain.Session, cnpj string) (*domain.RegistryRecord, error) {
	ctx, span := companiesTracer.Start(ctx, "CompanyDirectory.LookupCNPJ")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	if rec, ok := d.lookups.Get(cnpj); ok {
		d.metrics.IncrCacheHit(cacheLookup)
		return rec, nil
	}
	d.metrics.IncrCacheMiss(cacheLookup)

	rec, err := d.api.LookupCNPJ(ctx, sess, cnpj)
	if err != nil {
		return nil, fmt.Errorf("cnpj lookup: %w", err)
	}
	d.lookups.Set(cnpj, rec)
	return rec, nil
}

// RegisterCompany creates the company and invalidates the caller's company list.
func (d *CompanyDirectory) RegisterCompany(ctx context.Context, sess domain.Session, req *domain.CompanyRegistration) (*domain.CompanyCreated, error) {
	ctx, span := companiesTracer.Start(ctx, "CompanyDirectory.RegisterCompany")
	defer span.End()

	created, err := d.api.RegisterCompany(ctx, sess, req)
	if err != nil {
		return nil, fmt.Errorf("register company: %w", err)
	}
	d.companies.Delete(sessionKey(sess))
	return created, nil
}

// ListCompanies returns the companies visible to the session.
func (d *CompanyDirectory) ListCompanies(ctx context.Context, sess domain.Session) ([]domain.Company, error) {
	ctx, span := companiesTracer.Start(ctx, "CompanyDirectory.ListCompanies")
	defer span.End()

	key := sessionKey(sess)
	if list, ok := d.companies.Get(key); ok {
		d.metrics.IncrCacheHit(cacheCompanies)
		return list, nil
	}
	d.metrics.IncrCacheMiss(cacheCompanies)

	list, err := d.api.ListCompanies(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	d.companies.Set(key, list)
	return list, nil
}

// GetCompany fetches one company. Not cached: it is only opened on demand.
func (d *CompanyDirectory) GetCompany(ctx context.Context, sess domain.Session, companyID string) (*domain.Company, error) {
	ctx, span := companiesTracer.Start(ctx, "CompanyDirectory.GetCompany")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	return d.api.GetCompany(ctx, sess, companyID)
}

// GetRevenueMonitor fetches the RBT12 dashboard of a company.
func (d *CompanyDirectory) GetRevenueMonitor(ctx context.Context, sess domain.Session, companyID string) (*domain.RevenueMonitor, error) {
	ctx, span := companiesTracer.Start(ctx, "CompanyDirectory.GetRevenueMonitor")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	return d.api.GetRevenueMonitor(ctx, sess, companyID)
}

// InvalidateCompanies drops the cached company list of sess.
func (d *CompanyDirectory) InvalidateCompanies(sess domain.Session) {
	d.companies.Delete(sessionKey(sess))
}

// sessionKey keys per-session caches without keeping raw tokens as map keys.
func sessionKey(sess domain.Session) string {
	if !sess.Authenticated() {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(sess.Token))
	return hex.EncodeToString(sum[:])
}
