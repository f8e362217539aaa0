package client

import (
	"context"
	"net/http"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
)

// LookupCNPJ queries the public registry through the backend.
// cnpj must already be normalized to 14 digits.
func (c *FiscalClient) LookupCNPJ(ctx context.Context, sess domain.Session, cnpj string) (*domain.RegistryRecord, error) {
	var record domain.RegistryRecord
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/empresas/consulta/%s", cnpj),
		endpoint: "empresas.consulta",
		resource: "cnpj",
		id:       cnpj,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RegisterCompany creates a company with its permitted service codes.
func (c *FiscalClient) RegisterCompany(ctx context.Context, sess domain.Session, req *domain.CompanyRegistration) (*domain.CompanyCreated, error) {
	var created domain.CompanyCreated
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodPost,
		path:     "/api/empresas",
		endpoint: "empresas.cadastrar",
		resource: "company",
		id:       req.CNPJ,
		body:     jsonBody(req),
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListCompanies returns the companies visible to the session.
func (c *FiscalClient) ListCompanies(ctx context.Context, sess domain.Session) ([]domain.Company, error) {
	companies := []domain.Company{}
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     "/api/empresas",
		endpoint: "empresas.listar",
		resource: "companies",
	}, &companies)
	if err != nil {
		return nil, err
	}
	return companies, nil
}

// GetCompany fetches one company.
func (c *FiscalClient) GetCompany(ctx context.Context, sess domain.Session, companyID string) (*domain.Company, error) {
	var company domain.Company
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/empresas/%s", companyID),
		endpoint: "empresas.detalhe",
		resource: "company",
		id:       companyID,
	}, &company)
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// GetRevenueMonitor fetches the rolling twelve-month revenue against the regime limit.
func (c *FiscalClient) GetRevenueMonitor(ctx context.Context, sess domain.Session, companyID string) (*domain.RevenueMonitor, error) {
	var monitor domain.RevenueMonitor
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/dashboard/metrics/%s", companyID),
		endpoint: "dashboard.metrics",
		resource: "company",
		id:       companyID,
	}, &monitor)
	if err != nil {
		return nil, err
	}
	return &monitor, nil
}
