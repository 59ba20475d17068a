package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/decoy/internal/audit"
	"github.com/antoniostano/decoy/internal/callback"
	"github.com/antoniostano/decoy/internal/config"
	"github.com/antoniostano/decoy/internal/observability"
	"github.com/antoniostano/decoy/internal/persona"
	"github.com/antoniostano/decoy/internal/report"
)

type testEnv struct {
	server   *httptest.Server
	received chan report.FinalReport
}

func newTestEnv(t *testing.T, metricsNamespace string) *testEnv {
	t.Helper()

	received := make(chan report.FinalReport, 4)
	sinkServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rep report.FinalReport
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			t.Errorf("decode callback payload: %v", err)
		}
		if got := r.Header.Get("x-api-key"); got != "test-secret" {
			t.Errorf("x-api-key = %q, want test-secret", got)
		}
		received <- rep
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sinkServer.Close)

	cfg := config.Config{
		Platform:            "test",
		CallbackURL:         sinkServer.URL,
		CallbackAPIKey:      "test-secret",
		CallbackTimeout:     2 * time.Second,
		MinTurnsBeforeFinal: 6,
	}

	auditLog, err := audit.New("")
	if err != nil {
		t.Fatalf("audit.New() error = %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })

	metrics := observability.NewMetrics(metricsNamespace)
	selector, err := persona.NewSelector(persona.DefaultPools(), nil)
	if err != nil {
		t.Fatalf("persona.NewSelector() error = %v", err)
	}
	gate := report.NewGate(report.NewMemoryStore(), cfg.MinTurnsBeforeFinal)
	sink := callback.New(cfg.CallbackURL, cfg.CallbackAPIKey, cfg.CallbackTimeout, auditLog, metrics)

	srv := New(cfg, selector, gate, sink, auditLog, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, received: received}
}

func (e *testEnv) post(t *testing.T, body string) honeypotResponse {
	t.Helper()
	res, err := http.Post(e.server.URL+"/honey-pote", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /honey-pote error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out honeypotResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRootDescriptor(t *testing.T) {
	env := newTestEnv(t, "test_httpapi_root")

	res, err := http.Get(env.server.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["endpoint"] != "/honey-pote" {
		t.Fatalf("endpoint = %q, want /honey-pote", body["endpoint"])
	}
	if body["platform"] != "test" || body["status"] == "" {
		t.Fatalf("unexpected descriptor: %+v", body)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "test_httpapi_healthz")

	res, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestHoneypotFirstTurn(t *testing.T) {
	env := newTestEnv(t, "test_httpapi_firstturn")

	out := env.post(t, `{
		"sessionId": "s1",
		"message": {"text": "Your account will be BLOCKED, share OTP to verify"}
	}`)
	if out.Status != "success" {
		t.Fatalf("status = %q, want success", out.Status)
	}
	if out.Reply == "" {
		t.Fatalf("reply is empty")
	}

	// Reply must be assembled from the fixed template pools.
	pools := persona.DefaultPools()
	openerOK := false
	for _, op := range pools.Openers {
		if strings.HasPrefix(out.Reply, op) {
			openerOK = true
			break
		}
	}
	if !openerOK {
		t.Fatalf("reply %q does not start with a known opener", out.Reply)
	}

	// One turn is far below the finalization floor.
	select {
	case rep := <-env.received:
		t.Fatalf("unexpected final report: %+v", rep)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHoneypotFinalizesOnceAtTurnFloor(t *testing.T) {
	env := newTestEnv(t, "test_httpapi_finalize")

	history := `[
		{"text": "hello"},
		{"text": "I am from your bank"},
		{"text": "there is urgent kyc problem"},
		{"text": "call 9876543210 now"},
		{"text": "share otp to verify"}
	]`
	body := `{
		"sessionId": "s-final",
		"message": {"text": "do it urgent or account suspend"},
		"conversationHistory": ` + history + `
	}`

	out := env.post(t, body)
	if out.Status != "success" {
		t.Fatalf("status = %q", out.Status)
	}

	var rep report.FinalReport
	select {
	case rep = <-env.received:
	case <-time.After(2 * time.Second):
		t.Fatalf("final report was never delivered")
	}
	if rep.SessionID != "s-final" || !rep.ScamDetected {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.TotalMessagesExchanged != 6 {
		t.Fatalf("TotalMessagesExchanged = %d, want 6", rep.TotalMessagesExchanged)
	}
	if len(rep.ExtractedIntelligence.PhoneNumbers) != 1 {
		t.Fatalf("phone numbers = %v", rep.ExtractedIntelligence.PhoneNumbers)
	}

	// A seventh turn for the same session must not produce a second report.
	env.post(t, `{
		"sessionId": "s-final",
		"message": {"text": "still there? urgent otp"},
		"conversationHistory": `+history+`
	}`)
	select {
	case rep := <-env.received:
		t.Fatalf("session finalized twice: %+v", rep)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHoneypotLenientOnMalformedInput(t *testing.T) {
	env := newTestEnv(t, "test_httpapi_lenient")

	for _, body := range []string{
		``,
		`not json at all`,
		`{}`,
		`{"sessionId": "s2"}`,
		`{"message": {}}`,
	} {
		res, err := http.Post(env.server.URL+"/honey-pote", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		var out honeypotResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatalf("decode response for body %q: %v", body, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK || out.Status != "success" {
			t.Fatalf("body %q: status %d / %q, want lenient success", body, res.StatusCode, out.Status)
		}
		if out.Reply == "" {
			t.Fatalf("body %q: reply is empty", body)
		}
	}
}

func TestHoneypotBankOnlyNeverFinalizes(t *testing.T) {
	env := newTestEnv(t, "test_httpapi_bankonly")

	env.post(t, `{
		"sessionId": "s-bank",
		"message": {"text": "my number is 123456789012"},
		"conversationHistory": [
			{"text": "123456789012"},
			{"text": "123456789012"},
			{"text": "123456789012"},
			{"text": "123456789012"},
			{"text": "123456789012"}
		]
	}`)

	select {
	case rep := <-env.received:
		t.Fatalf("bank-only conversation finalized: %+v", rep)
	case <-time.After(300 * time.Millisecond):
	}
}
