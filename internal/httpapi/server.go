package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/decoy/internal/audit"
	"github.com/antoniostano/decoy/internal/callback"
	"github.com/antoniostano/decoy/internal/config"
	"github.com/antoniostano/decoy/internal/intel"
	"github.com/antoniostano/decoy/internal/observability"
	"github.com/antoniostano/decoy/internal/persona"
	"github.com/antoniostano/decoy/internal/policy"
	"github.com/antoniostano/decoy/internal/report"
)

type Server struct {
	cfg      config.Config
	selector *persona.Selector
	gate     *report.Gate
	sink     *callback.Client
	audit    *audit.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, selector *persona.Selector, gate *report.Gate, sink *callback.Client, auditLog *audit.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		selector: selector,
		gate:     gate,
		sink:     sink,
		audit:    auditLog,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser clients may watch the event stream
				// unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/honey-pote", s.handleHoneypot)
	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

// handleRoot serves the static descriptor the scam platform probes for.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.audit.Record("health_check", "platform", s.cfg.Platform)
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "decoy honeypot running",
		"platform": s.cfg.Platform,
		"endpoint": "/honey-pote",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"callback_configured": s.cfg.CallbackURL != "",
	})
}

type honeypotMessage struct {
	Text string `json:"text"`
}

type honeypotRequest struct {
	SessionID           string            `json:"sessionId"`
	Message             honeypotMessage   `json:"message"`
	ConversationHistory []honeypotMessage `json:"conversationHistory"`
}

type honeypotResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

func (s *Server) handleHoneypot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	// Lenient by contract: a malformed payload degrades to empty fields so
	// the scammer side never sees an error surface.
	var req honeypotRequest
	_ = decodeJSON(r, &req)

	sessionID := policy.Sanitize(req.SessionID)
	incoming := policy.Sanitize(req.Message.Text)

	// The caller-supplied history is ground truth; the latest message is
	// appended as the newest turn.
	history := make([]string, 0, len(req.ConversationHistory)+1)
	for _, m := range req.ConversationHistory {
		history = append(history, policy.Sanitize(m.Text))
	}
	history = append(history, incoming)

	bundle := intel.Extract(history)
	reply, category := s.selector.Reply(incoming)
	s.metrics.Messages.WithLabelValues(string(category)).Inc()

	s.audit.Record("incoming_message",
		"request_id", requestID,
		"session_id", sessionID,
		"message", incoming,
		"turns", len(history),
		"category", string(category),
	)

	rep, err := s.gate.Evaluate(r.Context(), sessionID, bundle, len(history))
	if err != nil {
		s.audit.Record("finalize_error",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err.Error(),
		)
	}
	if rep != nil {
		s.countIndicators(rep.ExtractedIntelligence)
		s.metrics.FinalReports.Inc()
		s.audit.Record("final_result",
			"request_id", requestID,
			"session_id", rep.SessionID,
			"turns", rep.TotalMessagesExchanged,
			"agent_notes", rep.AgentNotes,
		)
		s.sink.Dispatch(*rep)
	}

	s.metrics.ObserveHandleLatency(time.Since(start))
	respondJSON(w, http.StatusOK, honeypotResponse{Status: "success", Reply: reply})
}

func (s *Server) countIndicators(b intel.Bundle) {
	for kind, n := range map[intel.Kind]int{
		intel.KindBankAccount:  len(b.BankAccounts),
		intel.KindUPIID:        len(b.UPIIDs),
		intel.KindPhishingLink: len(b.PhishingLinks),
		intel.KindPhoneNumber:  len(b.PhoneNumbers),
		intel.KindKeyword:      len(b.SuspiciousKeywords),
	} {
		if n > 0 {
			s.metrics.Indicators.WithLabelValues(string(kind)).Add(float64(n))
		}
	}
}

// handleEventsWS streams audit events to analyst clients as JSON frames.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.audit.Subscribe()
	defer unsubscribe()

	s.metrics.StreamClients.Inc()
	defer s.metrics.StreamClients.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The reader only detects the client going away; inbound frames carry
	// no meaning on this endpoint.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
