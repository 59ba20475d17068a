package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/decoy/internal/audit"
	"github.com/antoniostano/decoy/internal/observability"
	"github.com/antoniostano/decoy/internal/report"
)

// Client delivers final reports to the central collection webhook. Delivery
// is a single attempt with a bounded timeout.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	audit   *audit.Logger
	metrics *observability.Metrics
}

func New(url, apiKey string, timeout time.Duration, auditLog *audit.Logger, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:     strings.TrimSpace(url),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		audit:   auditLog,
		metrics: metrics,
	}
}

// Send posts the report once and returns any delivery error.
func (c *Client) Send(ctx context.Context, rep report.FinalReport) error {
	if c.url == "" {
		return errors.New("callback url not configured")
	}

	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("callback status %d: %s", res.StatusCode, string(body))
	}
	return nil
}

// Dispatch sends the report off the request path. The outcome is audited and
// counted; it never reaches the inbound caller.
func (c *Client) Dispatch(rep report.FinalReport) {
	if c.url == "" {
		c.audit.Record("callback_skipped", "session_id", rep.SessionID)
		c.metrics.CallbackOutcomes.WithLabelValues("skipped").Inc()
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.Send(ctx, rep); err != nil {
			c.audit.Record("callback_error", "session_id", rep.SessionID, "error", err.Error())
			c.metrics.CallbackOutcomes.WithLabelValues("error").Inc()
			return
		}
		c.audit.Record("callback_sent", "session_id", rep.SessionID)
		c.metrics.CallbackOutcomes.WithLabelValues("sent").Inc()
	}()
}
