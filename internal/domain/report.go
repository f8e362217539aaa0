package domain

// ============================================================
// Report export
// ============================================================

// DefaultReportFilename is used when the backend sends no Content-Disposition filename.
const DefaultReportFilename = "relatorio_inconsistencias.xlsx"

// ReportEmptyMessage is shown when the backend has nothing to report (404).
const ReportEmptyMessage = "Nenhuma inconsistência encontrada. Todas as notas estão aprovadas!"

// BinaryFile is a downloaded binary payload (spreadsheet report, invoice PDF).
type BinaryFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportStatus distinguishes a downloadable report from the "nothing to report" outcome.
type ReportStatus string

const (
	ReportReady ReportStatus = "ready"
	ReportEmpty ReportStatus = "empty"
)

// ReportOutcome is the non-error result of an export.
type ReportOutcome struct {
	Status  ReportStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	File    *BinaryFile  `json:"-"`
}
