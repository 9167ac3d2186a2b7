// Package backend is the single funnel for all gateway I/O against the
// legacy PHP RPC service.
//
// The backend exposes one URL (<base>/udp.php?objectcode=<discriminator>)
// that dispatches on a `type` field in the JSON body. The client turns
// every call into a tagged Result instead of an error: transport and
// protocol failures are data, not exceptions, so handlers can translate
// them to HTTP statuses while keeping the raw payload for operators.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jdcruz/wmsgate/internal/logging"
	"github.com/jdcruz/wmsgate/internal/metrics"
	"github.com/jdcruz/wmsgate/internal/traces"
	"go.opentelemetry.io/otel/attribute"
)

const maxResponseSize = 10 * 1024 * 1024 // 10MB

// rpcPath is the backend's single dispatch script.
const rpcPath = "/udp.php"

// Command is the JSON envelope sent to the backend. Type is the
// discriminator the PHP side switches on; Params are merged into the body.
// ObjectCode overrides the default routing key for the rare commands that
// live under a different objectcode.
type Command struct {
	Type       string
	Params     map[string]any
	ObjectCode string
}

// Config configures the RPC client. It is injected explicitly so tests can
// point the client at an httptest server.
type Config struct {
	BaseURL    string // empty means unconfigured; calls return MissingConfig
	ObjectCode string // default query discriminator
	HTTPClient *http.Client
}

// Client sends command envelopes to the backend endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a backend RPC client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No explicit timeout: callers inherit the request lifetime via ctx.
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Call POSTs one command to the backend and classifies the outcome.
// It performs exactly one network round trip: no retries, no caching.
// Retry policy, where one exists, belongs to the calling handler.
func (c *Client) Call(ctx context.Context, cmd Command) Result {
	start := time.Now()
	res := c.call(ctx, cmd)
	metrics.ObserveBackendCall(cmd.Type, res.MetricOutcome(), time.Since(start))
	return res
}

func (c *Client) call(ctx context.Context, cmd Command) Result {
	if c.cfg.BaseURL == "" {
		return Result{Status: http.StatusInternalServerError, Kind: KindMissingConfig}
	}

	ctx, span := traces.StartSpan(ctx, "backend.call",
		traces.CommandType(cmd.Type),
	)
	defer span.End()

	objectCode := cmd.ObjectCode
	if objectCode == "" {
		objectCode = c.cfg.ObjectCode
	}
	endpoint := c.cfg.BaseURL + rpcPath + "?objectcode=" + url.QueryEscape(objectCode)

	envelope := make(map[string]any, len(cmd.Params)+1)
	for k, v := range cmd.Params {
		envelope[k] = v
	}
	envelope["type"] = cmd.Type

	body, err := json.Marshal(envelope)
	if err != nil {
		// Params contained something unmarshalable; a caller bug, not a backend fault.
		return Result{Status: http.StatusInternalServerError, Kind: KindShapeInvalid}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Status: http.StatusInternalServerError, Kind: KindMissingConfig}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.L(ctx).Warn("backend unreachable", "command", cmd.Type, "error", err)
		span.SetAttributes(attribute.String("backend.outcome", "unreachable"))
		return Result{Status: http.StatusServiceUnavailable, Kind: KindUnreachable}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("backend.status", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		logging.L(ctx).Warn("backend body read failed", "command", cmd.Type, "error", err)
		return Result{Status: http.StatusServiceUnavailable, Kind: KindUnreachable}
	}
	rawBody := string(raw)

	// The PHP side answers some commands with a completely empty body;
	// treat that as an empty row list rather than a parse failure.
	var parsed any
	if strings.TrimSpace(rawBody) == "" {
		parsed = []any{}
	} else if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{Status: http.StatusBadGateway, Kind: KindNonJSON, RawBody: rawBody}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Status: resp.StatusCode, Kind: KindRejected, RawBody: rawBody, Parsed: parsed}
	}

	return Result{OK: true, Status: resp.StatusCode, RawBody: rawBody, Parsed: parsed}
}
