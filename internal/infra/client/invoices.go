package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
)

// ListInvoices returns the invoices of a company in backend order.
func (c *FiscalClient) ListInvoices(ctx context.Context, sess domain.Session, companyID string) ([]domain.Invoice, error) {
	invoices := []domain.Invoice{}
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/notas/empresa/%s", companyID),
		endpoint: "notas.listar",
		resource: "company",
		id:       companyID,
	}, &invoices)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetStatistics returns the audit counters of a company.
func (c *FiscalClient) GetStatistics(ctx context.Context, sess domain.Session, companyID string) (*domain.InvoiceStatistics, error) {
	var stats domain.InvoiceStatistics
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/notas/estatisticas/%s", companyID),
		endpoint: "notas.estatisticas",
		resource: "company",
		id:       companyID,
	}, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// DeleteInvoice removes an invoice.
func (c *FiscalClient) DeleteInvoice(ctx context.Context, sess domain.Session, invoiceID string) error {
	return c.getJSON(ctx, sess, call{
		method:   http.MethodDelete,
		path:     pathf("/api/notas/%s", invoiceID),
		endpoint: "notas.excluir",
		resource: "invoice",
		id:       invoiceID,
	}, nil)
}

// GetInvoicePDF downloads the rendered invoice.
func (c *FiscalClient) GetInvoicePDF(ctx context.Context, sess domain.Session, invoiceID string) (*domain.BinaryFile, error) {
	return c.download(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/notas/%s/pdf", invoiceID),
		endpoint: "notas.pdf",
		resource: "invoice",
		id:       invoiceID,
	}, "nota_"+invoiceID+".pdf")
}

// GetInconsistencyReport downloads the spreadsheet of invoices that failed the audit.
// The backend answers 404 when there is nothing to report.
func (c *FiscalClient) GetInconsistencyReport(ctx context.Context, sess domain.Session, companyID string) (*domain.BinaryFile, error) {
	return c.download(ctx, sess, call{
		method:   http.MethodGet,
		path:     pathf("/api/relatorios/inconsistencias/%s", companyID),
		endpoint: "relatorios.inconsistencias",
		resource: "report",
		id:       companyID,
	}, domain.DefaultReportFilename)
}

func (c *FiscalClient) download(ctx context.Context, sess domain.Session, r call, defaultName string) (*domain.BinaryFile, error) {
	var file *domain.BinaryFile
	err := c.send(ctx, sess, r, func(resp *http.Response) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &domain.ErrTransport{Service: serviceName, Err: err}
		}
		file = &domain.BinaryFile{
			Filename:    filenameFrom(resp.Header.Get("Content-Disposition"), defaultName),
			ContentType: resp.Header.Get("Content-Type"),
			Data:        data,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

var filenamePattern = regexp.MustCompile(`filename="?(.+)"?`)

// filenameFrom reads the filename out of a Content-Disposition header, quotes
// stripped, falling back to def.
func filenameFrom(header, def string) string {
	m := filenamePattern.FindStringSubmatch(header)
	if m == nil {
		return def
	}
	name := m[1]
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
	if name == "" {
		return def
	}
	return name
}

// Import sends XML files for audit. One file goes to the single-import endpoint
// under field "file"; several go to the batch endpoint under repeated "files".
// The endpoint choice is resolved here, once, into an UploadOutcome.
func (c *FiscalClient) Import(ctx context.Context, sess domain.Session, companyID string, files []domain.UploadFile) (domain.UploadOutcome, error) {
	if len(files) == 1 {
		var invoice domain.Invoice
		err := c.getJSON(ctx, sess, call{
			method:   http.MethodPost,
			path:     pathf("/api/notas/importar/%s", companyID),
			endpoint: "notas.importar",
			resource: "company",
			id:       companyID,
			body:     multipartBody("file", files),
		}, &invoice)
		if err != nil {
			return nil, err
		}
		return domain.SingleOutcome{Invoice: invoice}, nil
	}

	var result domain.BatchResult
	err := c.getJSON(ctx, sess, call{
		method:   http.MethodPost,
		path:     pathf("/api/notas/importar-lote/%s", companyID),
		endpoint: "notas.importar_lote",
		resource: "company",
		id:       companyID,
		body:     multipartBody("files", files),
	}, &result)
	if err != nil {
		return nil, err
	}
	return domain.BatchOutcome{Result: result}, nil
}

func multipartBody(field string, files []domain.UploadFile) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, f := range files {
			part, err := w.CreateFormFile(field, f.Name)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
}
