package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReport_Ready(t *testing.T) {
	f := &mockReportFetcher{file: &domain.BinaryFile{Filename: "inconsistencias.xlsx", Data: []byte("PK")}}
	r := service.NewReportExporter(f, observability.NewMetrics(), zap.NewNop())

	out, err := r.Export(context.Background(), domain.Session{}, "emp-1")

	require.NoError(t, err)
	assert.Equal(t, domain.ReportReady, out.Status)
	assert.Equal(t, "inconsistencias.xlsx", out.File.Filename)
	assert.False(t, r.Busy())
}

func TestReport_NotFoundIsInformational(t *testing.T) {
	f := &mockReportFetcher{err: &domain.ErrNotFound{Resource: "report", Detail: "Nenhuma nota com erro"}}
	r := service.NewReportExporter(f, observability.NewMetrics(), zap.NewNop())

	out, err := r.Export(context.Background(), domain.Session{}, "emp-1")

	require.NoError(t, err)
	assert.Equal(t, domain.ReportEmpty, out.Status)
	assert.Equal(t, domain.ReportEmptyMessage, out.Message)
	assert.Nil(t, out.File)
}

func TestReport_ServerErrorIsError(t *testing.T) {
	f := &mockReportFetcher{err: &domain.ErrUpstream{Status: 500}}
	r := service.NewReportExporter(f, observability.NewMetrics(), zap.NewNop())

	_, err := r.Export(context.Background(), domain.Session{}, "emp-1")

	require.Error(t, err)
	assert.Equal(t, "Erro ao gerar relatório", service.ReportErrorMessage(err))
}

func TestReport_BusyWhilePending(t *testing.T) {
	f := &mockReportFetcher{file: &domain.BinaryFile{}, block: make(chan struct{})}
	r := service.NewReportExporter(f, observability.NewMetrics(), zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Export(context.Background(), domain.Session{}, "emp-1")
	}()

	require.Eventually(t, r.Busy, time.Second, time.Millisecond)

	_, err := r.Export(context.Background(), domain.Session{}, "emp-1")
	var busy *domain.ErrBusy
	assert.True(t, errors.As(err, &busy))

	close(f.block)
	wg.Wait()
	assert.False(t, r.Busy())
}
