// Package client talks to the fiscal backend over HTTP.
//
// Every call goes through the same pipeline: an OpenTelemetry span, the circuit
// breaker, and the (opt-in) retry loop. The caller's session is attached to that
// one request; nothing is stored on the client between calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

const serviceName = "fiscal-backend"

// maxErrorBody caps how much of an error response is read looking for "detail".
const maxErrorBody = 64 << 10

// FiscalClient implements the backend ports (companies, invoices, imports,
// reports, auth, health).
type FiscalClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewFiscalClient creates a new FiscalClient.
func NewFiscalClient(
	httpClient *http.Client,
	baseURL string,
	cb *gobreaker.CircuitBreaker,
	cfg resilience.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *FiscalClient {
	return &FiscalClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// call describes one backend request.
type call struct {
	method   string
	path     string
	endpoint string // metric and span label, e.g. "notas.listar"

	// resource/id name the entity for ErrNotFound.
	resource string
	id       string

	// body builds a fresh request body for every attempt. Nil means no body.
	body func() (io.Reader, string, error)
}

func jsonBody(v any) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// getJSON issues the call and decodes a JSON response into out (when non-nil).
func (c *FiscalClient) getJSON(ctx context.Context, sess domain.Session, r call, out any) error {
	return c.send(ctx, sess, r, func(resp *http.Response) error {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resilience.Permanent(&domain.ErrTransport{
				Service: serviceName,
				Err:     fmt.Errorf("decode %s response: %w", r.endpoint, err),
			})
		}
		return nil
	})
}

// send runs r through tracing, the circuit breaker and the retry loop. handle is
// only invoked for 2xx responses.
func (c *FiscalClient) send(ctx context.Context, sess domain.Session, r call, handle func(*http.Response) error) error {
	ctx, span := tracer.Start(ctx, "FiscalClient."+r.endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", r.method),
		attribute.String("http.path", r.path),
		attribute.Bool("session.authenticated", sess.Authenticated()),
	)

	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.attempt(ctx, sess, r, handle)
		})
	})
	c.metrics.RecordRequestDuration(r.endpoint, time.Since(start))

	if err == nil {
		return nil
	}

	err = c.classify(err)
	c.metrics.IncrBackendError(r.endpoint)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("backend call failed",
		zap.String("endpoint", r.endpoint),
		zap.String("path", r.path),
		zap.Error(err),
	)
	return err
}

func (c *FiscalClient) attempt(ctx context.Context, sess domain.Session, r call, handle func(*http.Response) error) error {
	var body io.Reader
	contentType := ""
	if r.body != nil {
		var err error
		body, contentType, err = r.body()
		if err != nil {
			return resilience.Permanent(fmt.Errorf("build %s body: %w", r.endpoint, err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return resilience.Permanent(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if sess.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ErrTransport{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(r, resp)
	}
	return handle(resp)
}

// statusError turns a non-2xx response into a domain error. 4xx answers are
// permanent: retrying cannot change them and they say nothing about backend health.
func statusError(r call, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := parseDetail(raw)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resilience.Permanent(&domain.ErrNotFound{Resource: r.resource, ID: r.id, Detail: detail})
	case resp.StatusCode < 500:
		return resilience.Permanent(&domain.ErrUpstream{Service: serviceName, Status: resp.StatusCode, Detail: detail})
	default:
		return &domain.ErrUpstream{Service: serviceName, Status: resp.StatusCode, Detail: detail}
	}
}

// parseDetail extracts the backend's "detail" field. It is usually a string; on
// request validation failures it is a list of {"msg": ...} objects.
func parseDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// classify maps breaker rejections to ErrCircuitOpen and leaves domain errors as they are.
func (c *FiscalClient) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}

	var (
		notFound  *domain.ErrNotFound
		upstream  *domain.ErrUpstream
		transport *domain.ErrTransport
	)
	switch {
	case errors.As(err, &notFound):
		return notFound
	case errors.As(err, &upstream):
		return upstream
	case errors.As(err, &transport):
		return transport
	}
	return &domain.ErrTransport{Service: serviceName, Err: err}
}

func pathf(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return fmt.Sprintf(format, escaped...)
}
