package domain

// ============================================================
// Companies (empresas)
// ============================================================

// TaxRegime is the company's tax regime (regime tributário).
type TaxRegime string

const (
	RegimeMEI             TaxRegime = "MEI"
	RegimeSimplesNacional TaxRegime = "Simples Nacional"
	RegimeLucroPresumido  TaxRegime = "Lucro Presumido"
)

// DefaultRegime is preselected when the confirm step opens.
const DefaultRegime = RegimeSimplesNacional

// Valid reports whether r is one of the regimes the backend accepts.
func (r TaxRegime) Valid() bool {
	switch r {
	case RegimeMEI, RegimeSimplesNacional, RegimeLucroPresumido:
		return true
	}
	return false
}

// ServiceCodeMapping links an activity classification (CNAE) to the municipal
// service code the company is allowed to invoice under.
type ServiceCodeMapping struct {
	CNAE        string `json:"cnae_codigo"`
	ServiceCode string `json:"codigo_servico_municipal"`
	Description string `json:"descricao"`
}

// Editable fields of a ServiceCodeMapping, as named by the UI.
const (
	FieldCNAE        = "cnae_codigo"
	FieldServiceCode = "codigo_servico_municipal"
	FieldDescription = "descricao"
)

// RegistryRecord is returned by GET /api/empresas/consulta/{cnpj}.
type RegistryRecord struct {
	CNPJ           string   `json:"cnpj"`
	LegalName      string   `json:"razao_social"`
	TradeName      string   `json:"nome_fantasia"`
	Street         string   `json:"logradouro,omitempty"`
	District       string   `json:"bairro,omitempty"`
	City           string   `json:"municipio,omitempty"`
	State          string   `json:"uf,omitempty"`
	PrimaryCNAE    string   `json:"cnae_principal"`
	SecondaryCNAEs []string `json:"cnaes_secundarios,omitempty"`
}

// CompanyRegistration is the body for POST /api/empresas.
type CompanyRegistration struct {
	CNPJ         string               `json:"cnpj"`
	LegalName    string               `json:"razao_social"`
	TradeName    string               `json:"nome_fantasia"`
	Regime       TaxRegime            `json:"regime_tributario"`
	OpeningDate  *string              `json:"data_abertura"`
	ServiceCodes []ServiceCodeMapping `json:"cnaes_permitidos"`
}

// CompanyCreated is the backend answer to a registration.
type CompanyCreated struct {
	Message string `json:"mensagem"`
	ID      string `json:"id"`
}

// Company is a registered company as listed by GET /api/empresas and
// GET /api/empresas/{id}.
type Company struct {
	ID           string               `json:"id"`
	CNPJ         string               `json:"cnpj"`
	LegalName    string               `json:"razao_social"`
	TradeName    string               `json:"nome_fantasia"`
	Regime       TaxRegime            `json:"regime_tributario"`
	OpeningDate  *string              `json:"data_abertura,omitempty"`
	ServiceCodes []ServiceCodeMapping `json:"cnaes_permitidos,omitempty"`
}

// RevenueStatus classifies RBT12 usage against the regime limit.
type RevenueStatus string

const (
	RevenueOK       RevenueStatus = "OK"
	RevenueAlert    RevenueStatus = "ALERTA"
	RevenueExceeded RevenueStatus = "ESTOUROU"
)

// RevenueMonitor is returned by GET /api/dashboard/metrics/{id} (rolling
// twelve-month revenue against the regime's annual limit).
type RevenueMonitor struct {
	CurrentRevenue  float64       `json:"faturamento_atual"`
	Limit           float64       `json:"limite"`
	UsagePercent    float64       `json:"percentual_uso"`
	Status          RevenueStatus `json:"status"`
	AvailableMargin float64       `json:"margem_disponivel"`
	Regime          TaxRegime     `json:"regime_tributario"`
	LegalName       string        `json:"razao_social"`
}
