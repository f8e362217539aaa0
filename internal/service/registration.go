package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/cnpj"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/resilience"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/port"

	"github.com/qmuntal/stateless"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var registrationTracer = otel.Tracer("service/registration")

// RegistrationState is a step of the company registration wizard.
type RegistrationState string

const (
	StateLookup  RegistrationState = "LOOKUP"
	StateConfirm RegistrationState = "CONFIRM"
)

const (
	triggerFound = "found"
	triggerBack  = "back"
)

// User-facing fallbacks when the backend sends no detail.
const (
	msgLookupFailed   = "Erro ao consultar CNPJ"
	msgRegisterFailed = "Erro ao cadastrar empresa"
)

// RegistrationView is the wizard as rendered by the UI.
type RegistrationView struct {
	ID           string                      `json:"id"`
	State        RegistrationState           `json:"state"`
	CNPJ         string                      `json:"cnpj"`
	Record       *domain.RegistryRecord      `json:"dadosReceita,omitempty"`
	Regime       domain.TaxRegime            `json:"regime_tributario,omitempty"`
	ServiceCodes []domain.ServiceCodeMapping `json:"cnaes_permitidos"`
	Error        string                      `json:"error,omitempty"`
	Busy         bool                        `json:"busy"`
	CanSubmit    bool                        `json:"canSubmit"`
	CompanyID    string                      `json:"companyId,omitempty"`
}

// RegistrationFlow is the two-step company registration wizard:
// LOOKUP (enter a CNPJ) and CONFIRM (pick regime, list permitted service codes).
type RegistrationFlow struct {
	id         string
	owner      string // sessionKey of the session that started the wizard
	api        port.CompanyAPI
	onComplete func(sess domain.Session, companyID string)
	logger     *zap.Logger

	lookupGuard *resilience.Guard
	submitGuard *resilience.Guard

	mu        sync.Mutex
	sm        *stateless.StateMachine
	input     string // masked CNPJ as last typed
	record    *domain.RegistryRecord
	regime    domain.TaxRegime
	codes     []domain.ServiceCodeMapping
	lastErr   string
	companyID string
}

// NewRegistrationFlow creates a wizard in LOOKUP. onComplete runs once per
// successful submission; it may be nil.
func NewRegistrationFlow(id string, api port.CompanyAPI, onComplete func(domain.Session, string), logger *zap.Logger) *RegistrationFlow {
	f := &RegistrationFlow{
		id:          id,
		api:         api,
		onComplete:  onComplete,
		logger:      logger,
		lookupGuard: resilience.NewGuard(),
		submitGuard: resilience.NewGuard(),
		sm:          stateless.NewStateMachine(StateLookup),
	}

	f.sm.Configure(StateLookup).
		Permit(triggerFound, StateConfirm)

	f.sm.Configure(StateConfirm).
		OnEntry(func(_ context.Context, _ ...any) error {
			f.regime = domain.DefaultRegime
			f.codes = []domain.ServiceCodeMapping{}
			return nil
		}).
		OnExit(func(_ context.Context, _ ...any) error {
			f.record = nil
			f.regime = ""
			f.codes = nil
			return nil
		}).
		Permit(triggerBack, StateLookup)

	return f
}

// ID returns the wizard id.
func (f *RegistrationFlow) ID() string { return f.id }

// State returns the current step.
func (f *RegistrationFlow) State() RegistrationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state()
}

func (f *RegistrationFlow) state() RegistrationState {
	return f.sm.MustState().(RegistrationState)
}

// Lookup validates the typed CNPJ and queries the registry. On success the wizard
// moves to CONFIRM; on failure it stays in LOOKUP with the error recorded.
func (f *RegistrationFlow) Lookup(ctx context.Context, sess domain.Session, raw string) error {
	ctx, span := registrationTracer.Start(ctx, "RegistrationFlow.Lookup")
	defer span.End()

	f.mu.Lock()
	if f.state() != StateLookup {
		f.mu.Unlock()
		return &domain.ErrValidation{Field: "state", Message: "Consulta disponível apenas na etapa de CNPJ"}
	}
	f.input = cnpj.Mask(raw)
	digits, err := cnpj.Normalize(raw)
	if err != nil {
		f.lastErr = domain.UserMessage(err, cnpj.InvalidMessage)
		f.mu.Unlock()
		return err
	}
	f.lastErr = ""
	f.mu.Unlock()

	if !f.lookupGuard.TryAcquire() {
		return &domain.ErrBusy{Action: "lookup"}
	}
	defer f.lookupGuard.Release()

	span.SetAttributes(attribute.String("company.cnpj", digits))
	record, err := f.api.LookupCNPJ(ctx, sess, digits)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.lastErr = domain.UserMessage(err, msgLookupFailed)
		f.logger.Warn("registration: lookup failed",
			zap.String("wizard_id", f.id),
			zap.String("cnpj", digits),
			zap.Error(err),
		)
		return err
	}

	// a Back or a second lookup may have raced us; only the LOOKUP step accepts a record
	if f.state() != StateLookup {
		return &domain.ErrBusy{Action: "lookup"}
	}
	if err := f.sm.FireCtx(ctx, triggerFound); err != nil {
		return fmt.Errorf("registration transition: %w", err)
	}
	f.record = record
	return nil
}

// SetRegime picks the tax regime.
func (f *RegistrationFlow) SetRegime(regime domain.TaxRegime) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireConfirm(); err != nil {
		return err
	}
	if !regime.Valid() {
		return &domain.ErrValidation{Field: "regime_tributario", Message: "Regime tributário inválido"}
	}
	f.regime = regime
	return nil
}

// AddServiceCode appends an empty mapping and returns its index.
func (f *RegistrationFlow) AddServiceCode() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireConfirm(); err != nil {
		return 0, err
	}
	f.codes = append(f.codes, domain.ServiceCodeMapping{})
	return len(f.codes) - 1, nil
}

// UpdateServiceCode sets one field of the mapping at index i.
func (f *RegistrationFlow) UpdateServiceCode(i int, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireConfirm(); err != nil {
		return err
	}
	if err := f.checkIndex(i); err != nil {
		return err
	}

	switch field {
	case domain.FieldCNAE:
		f.codes[i].CNAE = value
	case domain.FieldServiceCode:
		f.codes[i].ServiceCode = value
	case domain.FieldDescription:
		f.codes[i].Description = value
	default:
		return &domain.ErrValidation{Field: "field", Message: fmt.Sprintf("Campo desconhecido: %s", field)}
	}
	return nil
}

// RemoveServiceCode deletes the mapping at index i.
func (f *RegistrationFlow) RemoveServiceCode(i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireConfirm(); err != nil {
		return err
	}
	if err := f.checkIndex(i); err != nil {
		return err
	}
	f.codes = append(f.codes[:i], f.codes[i+1:]...)
	return nil
}

// CanSubmit reports whether Submit is enabled: CONFIRM, idle, at least one mapping.
func (f *RegistrationFlow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

func (f *RegistrationFlow) canSubmit() bool {
	return f.state() == StateConfirm && f.companyID == "" && !f.submitGuard.Busy() && len(f.codes) > 0
}

// Submit registers the company. On success the completion callback runs exactly
// once and the new company id is returned; on failure the wizard stays in CONFIRM
// with the backend's detail recorded.
func (f *RegistrationFlow) Submit(ctx context.Context, sess domain.Session) (string, error) {
	ctx, span := registrationTracer.Start(ctx, "RegistrationFlow.Submit")
	defer span.End()

	if !f.submitGuard.TryAcquire() {
		return "", &domain.ErrBusy{Action: "submit"}
	}
	defer f.submitGuard.Release()

	f.mu.Lock()
	if err := f.requireConfirm(); err != nil {
		f.mu.Unlock()
		return "", err
	}
	if f.companyID != "" {
		f.mu.Unlock()
		return "", &domain.ErrValidation{Field: "state", Message: "Empresa já cadastrada"}
	}
	if len(f.codes) == 0 {
		f.mu.Unlock()
		return "", &domain.ErrValidation{Field: "cnaes_permitidos", Message: "Adicione ao menos um CNAE permitido"}
	}
	req := &domain.CompanyRegistration{
		CNPJ:         f.record.CNPJ,
		LegalName:    f.record.LegalName,
		TradeName:    f.record.TradeName,
		Regime:       f.regime,
		ServiceCodes: append([]domain.ServiceCodeMapping(nil), f.codes...),
	}
	f.lastErr = ""
	f.mu.Unlock()

	span.SetAttributes(attribute.String("company.cnpj", req.CNPJ))
	created, err := f.api.RegisterCompany(ctx, sess, req)

	f.mu.Lock()
	if err != nil {
		f.lastErr = domain.UserMessage(err, msgRegisterFailed)
		f.mu.Unlock()
		f.logger.Warn("registration: submit failed",
			zap.String("wizard_id", f.id),
			zap.String("cnpj", req.CNPJ),
			zap.Error(err),
		)
		return "", err
	}
	f.companyID = created.ID
	f.mu.Unlock()

	if f.onComplete != nil {
		f.onComplete(sess, created.ID)
	}
	return created.ID, nil
}

// Back returns to LOOKUP, discarding the record and every CONFIRM edit.
func (f *RegistrationFlow) Back(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state() != StateConfirm {
		return &domain.ErrValidation{Field: "state", Message: "Já na etapa de consulta"}
	}
	if f.submitGuard.Busy() {
		return &domain.ErrBusy{Action: "submit"}
	}
	f.lastErr = ""
	return f.sm.FireCtx(ctx, triggerBack)
}

// View renders the wizard.
func (f *RegistrationFlow) View() RegistrationView {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := RegistrationView{
		ID:           f.id,
		State:        f.state(),
		CNPJ:         f.input,
		Regime:       f.regime,
		ServiceCodes: append([]domain.ServiceCodeMapping{}, f.codes...),
		Error:        f.lastErr,
		Busy:         f.lookupGuard.Busy() || f.submitGuard.Busy(),
		CanSubmit:    f.canSubmit(),
		CompanyID:    f.companyID,
	}
	if f.record != nil {
		rec := *f.record
		v.Record = &rec
	}
	return v
}

func (f *RegistrationFlow) requireConfirm() error {
	if f.state() != StateConfirm {
		return &domain.ErrValidation{Field: "state", Message: "Consulte o CNPJ antes de continuar"}
	}
	return nil
}

func (f *RegistrationFlow) checkIndex(i int) error {
	if i < 0 || i >= len(f.codes) {
		return &domain.ErrValidation{Field: "index", Message: fmt.Sprintf("CNAE %d não existe", i)}
	}
	return nil
}
