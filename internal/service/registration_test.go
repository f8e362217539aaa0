package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var acme = &domain.RegistryRecord{
	CNPJ:        "11222333000181",
	LegalName:   "ACME SERVICOS LTDA",
	TradeName:   "ACME",
	PrimaryCNAE: "6201-5/00",
}

func newFlow(api *mockCompanyAPI, onComplete func(domain.Session, string)) *service.RegistrationFlow {
	return service.NewRegistrationFlow("wiz-1", api, onComplete, zap.NewNop())
}

func TestRegistration_EndToEnd(t *testing.T) {
	api := &mockCompanyAPI{record: acme, created: &domain.CompanyCreated{ID: "emp-1", Message: "Empresa cadastrada com sucesso"}}

	var completions []string
	flow := newFlow(api, func(_ domain.Session, id string) { completions = append(completions, id) })
	ctx := context.Background()
	sess := domain.Session{Token: "tok"}

	require.NoError(t, flow.Lookup(ctx, sess, "11.222.333/0001-81"))
	assert.Equal(t, service.StateConfirm, flow.State())
	assert.False(t, flow.CanSubmit(), "submit needs at least one service code")

	i, err := flow.AddServiceCode()
	require.NoError(t, err)
	require.NoError(t, flow.UpdateServiceCode(i, domain.FieldCNAE, "6201-5/00"))
	require.NoError(t, flow.UpdateServiceCode(i, domain.FieldServiceCode, "08.02"))
	assert.True(t, flow.CanSubmit())

	id, err := flow.Submit(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", id)
	assert.Equal(t, []string{"emp-1"}, completions, "completion callback fires exactly once")

	want := &domain.CompanyRegistration{
		CNPJ:         "11222333000181",
		LegalName:    "ACME SERVICOS LTDA",
		TradeName:    "ACME",
		Regime:       domain.RegimeSimplesNacional,
		ServiceCodes: []domain.ServiceCodeMapping{{CNAE: "6201-5/00", ServiceCode: "08.02"}},
	}
	if diff := cmp.Diff(want, api.lastReg); diff != "" {
		t.Errorf("registration body mismatch (-want +got):\n%s", diff)
	}

	// a finished wizard does not register twice
	_, err = flow.Submit(ctx, sess)
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve))
	assert.EqualValues(t, 1, api.registers.Load())
	assert.Len(t, completions, 1)
}

func TestRegistration_InvalidCNPJNeverCallsBackend(t *testing.T) {
	api := &mockCompanyAPI{record: acme}
	flow := newFlow(api, nil)

	for _, raw := range []string{"", "1122233300018", "112223330001811", "abc"} {
		err := flow.Lookup(context.Background(), domain.Session{}, raw)
		var ve *domain.ErrValidation
		require.True(t, errors.As(err, &ve), "input %q", raw)
	}
	assert.EqualValues(t, 0, api.lookups.Load())
	assert.Equal(t, service.StateLookup, flow.State())
	assert.Equal(t, "CNPJ inválido. Digite 14 números.", flow.View().Error)
}

func TestRegistration_LookupNotFoundStaysInLookup(t *testing.T) {
	api := &mockCompanyAPI{lookupErr: &domain.ErrNotFound{Resource: "cnpj", Detail: "CNPJ não encontrado na Receita"}}
	flow := newFlow(api, nil)

	err := flow.Lookup(context.Background(), domain.Session{}, "11222333000181")

	require.Error(t, err)
	assert.Equal(t, service.StateLookup, flow.State())
	assert.Equal(t, "CNPJ não encontrado na Receita", flow.View().Error)
	assert.Equal(t, "11.222.333/0001-81", flow.View().CNPJ)
}

func TestRegistration_TransportErrorUsesFallback(t *testing.T) {
	api := &mockCompanyAPI{lookupErr: &domain.ErrTransport{Service: "fiscal-backend", Err: errors.New("connection refused")}}
	flow := newFlow(api, nil)

	_ = flow.Lookup(context.Background(), domain.Session{}, "11222333000181")

	assert.Equal(t, "Erro ao consultar CNPJ", flow.View().Error)
}

func TestRegistration_EditsRequireConfirm(t *testing.T) {
	flow := newFlow(&mockCompanyAPI{}, nil)

	_, err := flow.AddServiceCode()
	assert.Error(t, err)
	assert.Error(t, flow.SetRegime(domain.RegimeMEI))
	assert.Error(t, flow.RemoveServiceCode(0))
	_, err = flow.Submit(context.Background(), domain.Session{})
	assert.Error(t, err)
}

func TestRegistration_ServiceCodeEditing(t *testing.T) {
	flow := newFlow(&mockCompanyAPI{record: acme}, nil)
	require.NoError(t, flow.Lookup(context.Background(), domain.Session{}, "11222333000181"))

	for i := 0; i < 3; i++ {
		_, err := flow.AddServiceCode()
		require.NoError(t, err)
	}
	require.NoError(t, flow.UpdateServiceCode(0, domain.FieldDescription, "primeiro"))
	require.NoError(t, flow.UpdateServiceCode(1, domain.FieldDescription, "segundo"))
	require.NoError(t, flow.UpdateServiceCode(2, domain.FieldDescription, "terceiro"))
	require.NoError(t, flow.RemoveServiceCode(1))

	codes := flow.View().ServiceCodes
	require.Len(t, codes, 2)
	assert.Equal(t, "primeiro", codes[0].Description)
	assert.Equal(t, "terceiro", codes[1].Description)

	assert.Error(t, flow.UpdateServiceCode(5, domain.FieldCNAE, "x"))
	assert.Error(t, flow.UpdateServiceCode(0, "unknown", "x"))
	assert.Error(t, flow.SetRegime("Lucro Real"))
	require.NoError(t, flow.SetRegime(domain.RegimeMEI))
	assert.Equal(t, domain.RegimeMEI, flow.View().Regime)

	require.NoError(t, flow.RemoveServiceCode(0))
	require.NoError(t, flow.RemoveServiceCode(0))
	assert.False(t, flow.CanSubmit())
}

func TestRegistration_SubmitFailureStaysInConfirm(t *testing.T) {
	api := &mockCompanyAPI{record: acme, createErr: &domain.ErrUpstream{Status: 400, Detail: "CNPJ já cadastrado"}}
	called := false
	flow := newFlow(api, func(domain.Session, string) { called = true })
	require.NoError(t, flow.Lookup(context.Background(), domain.Session{}, "11222333000181"))
	_, _ = flow.AddServiceCode()

	_, err := flow.Submit(context.Background(), domain.Session{})

	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, service.StateConfirm, flow.State())
	assert.Equal(t, "CNPJ já cadastrado", flow.View().Error)
	assert.True(t, flow.CanSubmit(), "user may retry by hand")
}

func TestRegistration_BackDiscardsEdits(t *testing.T) {
	flow := newFlow(&mockCompanyAPI{record: acme}, nil)
	require.NoError(t, flow.Lookup(context.Background(), domain.Session{}, "11222333000181"))
	require.NoError(t, flow.SetRegime(domain.RegimeLucroPresumido))
	_, _ = flow.AddServiceCode()

	require.NoError(t, flow.Back(context.Background()))

	v := flow.View()
	assert.Equal(t, service.StateLookup, v.State)
	assert.Nil(t, v.Record)
	assert.Empty(t, v.ServiceCodes)
	assert.Empty(t, v.Regime)

	// entering CONFIRM again starts from the defaults
	require.NoError(t, flow.Lookup(context.Background(), domain.Session{}, "11222333000181"))
	v = flow.View()
	assert.Equal(t, domain.DefaultRegime, v.Regime)
	assert.Empty(t, v.ServiceCodes)

	assert.NoError(t, flow.Back(context.Background()))
	assert.Error(t, flow.Back(context.Background()), "back from LOOKUP is invalid")
}

func TestRegistration_ConcurrentLookupIsBusy(t *testing.T) {
	api := &mockCompanyAPI{record: acme, block: make(chan struct{})}
	flow := newFlow(api, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = flow.Lookup(context.Background(), domain.Session{}, "11222333000181")
	}()

	require.Eventually(t, func() bool { return api.lookups.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, flow.View().Busy)

	err := flow.Lookup(context.Background(), domain.Session{}, "11222333000181")
	var busy *domain.ErrBusy
	assert.True(t, errors.As(err, &busy))

	close(api.block)
	wg.Wait()
	assert.Equal(t, service.StateConfirm, flow.State())
	assert.EqualValues(t, 1, api.lookups.Load())
}
