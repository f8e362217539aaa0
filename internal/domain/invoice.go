package domain

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ============================================================
// Invoices (notas fiscais)
// ============================================================

// AuditStatus is the server-assigned audit outcome of an invoice.
// The backend reports APROVADA for approved invoices and an ERRO_* code otherwise.
type AuditStatus string

const (
	AuditApproved  AuditStatus = "APROVADA"
	AuditErrorCNAE AuditStatus = "ERRO_CNAE"
)

// Approved reports whether the invoice passed the audit. Every other value is an error.
func (s AuditStatus) Approved() bool {
	return s == AuditApproved
}

// Invoice is an audited invoice record.
type Invoice struct {
	ID            string      `json:"id"`
	Number        int64       `json:"numero_nota"`
	IssueDate     string      `json:"data_emissao"`
	ServiceCode   string      `json:"codigo_servico_utilizado"`
	TotalValue    float64     `json:"valor_total"`
	Status        AuditStatus `json:"status_auditoria"`
	ErrorMessage  string      `json:"mensagem_erro,omitempty"`
	ValidationKey string      `json:"chave_validacao,omitempty"`
	BuyerDocument string      `json:"cnpj_tomador,omitempty"`
	ImportedAt    string      `json:"data_importacao,omitempty"`
}

// InvoiceStatistics is returned by GET /api/notas/estatisticas/{companyId}.
type InvoiceStatistics struct {
	Total      int     `json:"total_notas"`
	Approved   int     `json:"aprovadas"`
	WithErrors int     `json:"com_erros"`
	TotalValue float64 `json:"valor_total"`
}

// ============================================================
// Upload
// ============================================================

// MaxUploadFiles is the largest XML selection accepted in a single submission.
const MaxUploadFiles = 100

// UploadFile is one file picked by the user.
type UploadFile struct {
	Name string
	Data []byte
}

// UploadFailure is one failed file inside a batch import.
type UploadFailure struct {
	File  string `json:"arquivo"`
	Error string `json:"erro"`
}

// BatchFileResult is the per-file outcome the batch endpoint may include.
type BatchFileResult struct {
	Success bool     `json:"sucesso"`
	File    string   `json:"nome_arquivo"`
	Error   string   `json:"erro,omitempty"`
	Invoice *Invoice `json:"nota,omitempty"`
}

// BatchResult aggregates the outcome of a multi-file import.
type BatchResult struct {
	Total    int               `json:"total_arquivos"`
	Success  int               `json:"sucesso"`
	Failures int               `json:"falhas"`
	Failed   []UploadFailure   `json:"detalhes_falhas"`
	Results  []BatchFileResult `json:"resultados,omitempty"`
}

// Err returns the per-file failures as a single error, or nil when every file succeeded.
func (b BatchResult) Err() error {
	var result *multierror.Error
	for _, f := range b.Failed {
		result = multierror.Append(result, fmt.Errorf("%s: %s", f.File, f.Error))
	}
	return result.ErrorOrNil()
}

// UploadOutcome is the result of a submission: a single audited invoice or a batch summary.
// It is resolved once where the request is sent; consumers call Summary.
type UploadOutcome interface {
	Summary() BatchResult
	uploadOutcome()
}

// SingleOutcome wraps the invoice returned by the single-import endpoint.
type SingleOutcome struct {
	Invoice Invoice
}

// Summary presents a single import as a one-file batch.
func (o SingleOutcome) Summary() BatchResult {
	return BatchResult{
		Total:   1,
		Success: 1,
		Failed:  []UploadFailure{},
		Results: []BatchFileResult{{Success: true, Invoice: &o.Invoice}},
	}
}

func (SingleOutcome) uploadOutcome() {}

// BatchOutcome wraps the summary returned by the batch-import endpoint.
type BatchOutcome struct {
	Result BatchResult
}

// Summary returns the batch result, with a non-nil failure list.
func (o BatchOutcome) Summary() BatchResult {
	r := o.Result
	if r.Failed == nil {
		r.Failed = []UploadFailure{}
	}
	return r
}

func (BatchOutcome) uploadOutcome() {}
