package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // up, down
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Detail      string `json:"detail,omitempty"`
}

// BackendHealth is the body of GET /api/health on the fiscal backend.
type BackendHealth struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ClientMetrics is returned by GET /v1/metrics/summary.
type ClientMetrics struct {
	BackendErrors     int64   `json:"backendErrors"`
	LookupCacheHitPct float64 `json:"lookupCacheHitRate"`
	FilesUploaded     int64   `json:"filesUploaded"`
	FilesRejected     int64   `json:"filesRejected"`
	Registrations     int64   `json:"registrations"`
	ReportsExported   int64   `json:"reportsExported"`
	Period            string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
