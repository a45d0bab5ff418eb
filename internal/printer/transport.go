// Package printer sends encoded tickets to ePOS network printers.
package printer

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServicePath    = "/cgi-bin/epos/service.cgi?devid=local_printer&timeout=5000"
	ContentType    = "text/xml; charset=utf-8"
	DefaultTimeout = 5 * time.Second

	instrumentation = "github.com/Riboost-Studio/refugio-pos-printing/internal/printer"
)

// User facing messages.
const (
	MsgSentUnconfirmed  = "Enviado (sin confirmacion)"
	MsgPrinted          = "Impreso"
	MsgConnectionFailed = "Error de conexion"
	MsgBlockedByPolicy  = "Bloqueo de red (acceso a red privada): use la impresion manual"
)

type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureConnection FailureKind = "connection"
	FailurePolicy     FailureKind = "policy"
	FailureDevice     FailureKind = "device"
)

// Result is the classified outcome of one send.
type Result struct {
	Success bool
	Message string
	Failure FailureKind
}

// Transport delivers one payload to one printer. Implementations never retry and
// report failures as values.
type Transport interface {
	Send(ctx context.Context, address, payload string) Result
}

type Mode string

const (
	// ModeFireAndForget treats a request that left the process as printed.
	ModeFireAndForget Mode = "fire_and_forget"
	// ModeConfirmed reads the ePOS response and reports firmware errors.
	ModeConfirmed Mode = "confirmed"
)

type Options struct {
	Timeout time.Duration
	Mode    Mode
	Policy  *Policy
	Logger  *slog.Logger
	// Base overrides the round tripper wrapped by the tracing transport.
	Base http.RoundTripper
}

// HTTPTransport posts tickets to the printer's ePOS service endpoint.
type HTTPTransport struct {
	client *http.Client
	mode   Mode
	policy Policy
	logger *slog.Logger
	tracer trace.Tracer
	sends  metric.Int64Counter
}

func NewHTTPTransport(opts Options) *HTTPTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Mode == "" {
		opts.Mode = ModeFireAndForget
	}
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	base := opts.Base
	if base == nil {
		base = newBaseTransport(policy, opts.Timeout)
	}

	sends, err := otel.Meter(instrumentation).Int64Counter("pos.printer.sends",
		metric.WithDescription("Ticket sends by result"))
	if err != nil {
		opts.Logger.Warn("printer send counter unavailable", "error", err)
	}

	return &HTTPTransport{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		mode:   opts.Mode,
		policy: policy,
		logger: opts.Logger,
		tracer: otel.Tracer(instrumentation),
		sends:  sends,
	}
}

// newBaseTransport re-checks the policy on the resolved address at dial time.
func newBaseTransport(policy Policy, timeout time.Duration) *http.Transport {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(_, address string, _ syscall.RawConn) error {
			return policy.Check(address)
		},
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = dialer.DialContext
	t.DisableKeepAlives = true
	return t
}

// EndpointURL is the ePOS service URL of a printer.
func EndpointURL(address string) string {
	return "http://" + address + ServicePath
}

func (t *HTTPTransport) Send(ctx context.Context, address, payload string) Result {
	ctx, span := t.tracer.Start(ctx, "printer.Send", trace.WithAttributes(
		attribute.String("printer.address", address),
		attribute.String("printer.mode", string(t.mode)),
		attribute.Int("payload.bytes", len(payload)),
	))
	defer span.End()

	res := t.send(ctx, address, payload)

	if res.Success {
		span.SetStatus(codes.Ok, res.Message)
	} else {
		span.SetStatus(codes.Error, res.Message)
	}
	if t.sends != nil {
		t.sends.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", res.Success),
			attribute.String("failure", string(res.Failure)),
		))
	}
	return res
}

func (t *HTTPTransport) send(ctx context.Context, address, payload string) Result {
	if err := t.policy.Check(address); err != nil {
		t.logger.Warn("print request refused", "address", address, "error", err)
		return classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointURL(address), strings.NewReader(payload))
	if err != nil {
		t.logger.Error("build print request", "address", address, "error", err)
		return classify(err)
	}
	req.Header.Set("Content-Type", ContentType)

	t.logger.Debug("sending ticket", "address", address, "bytes", len(payload))
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("print request failed", "address", address, "error", err)
		return classify(err)
	}
	defer resp.Body.Close()

	if t.mode == ModeConfirmed {
		return confirm(resp)
	}
	// The reply is not trusted in this mode; drain it so the connection closes cleanly.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return Result{Success: true, Message: MsgSentUnconfirmed}
}

func classify(err error) Result {
	if errors.Is(err, ErrBlockedByPolicy) {
		return Result{Message: MsgBlockedByPolicy, Failure: FailurePolicy}
	}
	return Result{Message: MsgConnectionFailed, Failure: FailureConnection}
}

// eposResponse is the <response> element the printer answers with.
type eposResponse struct {
	Success bool   `xml:"success,attr"`
	Code    string `xml:"code,attr"`
	Status  string `xml:"status,attr"`
}

func confirm(resp *http.Response) Result {
	if resp.StatusCode >= 400 {
		return Result{Message: fmt.Sprintf("Impresora respondio HTTP %d", resp.StatusCode), Failure: FailureDevice}
	}
	r, err := parseResponse(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Result{Message: "Respuesta de impresora invalida", Failure: FailureDevice}
	}
	if !r.Success {
		code := r.Code
		if code == "" {
			code = "desconocido"
		}
		return Result{Message: "Error de impresora: " + code, Failure: FailureDevice}
	}
	return Result{Success: true, Message: MsgPrinted}
}

func parseResponse(body io.Reader) (eposResponse, error) {
	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if err != nil {
			return eposResponse{}, fmt.Errorf("no response element: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "response" {
			continue
		}
		var r eposResponse
		if err := dec.DecodeElement(&r, &start); err != nil {
			return eposResponse{}, err
		}
		return r, nil
	}
}
