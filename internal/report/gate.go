package report

import (
	"context"
	"strings"

	"github.com/antoniostano/decoy/internal/intel"
)

// FinalReport is the intelligence summary delivered to the collection webhook.
type FinalReport struct {
	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ExtractedIntelligence  intel.Bundle `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes"`
}

// Gate decides, at most once per session, whether a final report goes out.
type Gate struct {
	seen     SeenStore
	minTurns int
}

func NewGate(seen SeenStore, minTurns int) *Gate {
	if minTurns <= 0 {
		minTurns = 6
	}
	return &Gate{seen: seen, minTurns: minTurns}
}

// Evaluate returns a report when the bundle triggers detection, the
// conversation has reached the turn floor, and no report was produced for
// this session before. A nil report with a nil error means "not yet".
func (g *Gate) Evaluate(ctx context.Context, sessionID string, bundle intel.Bundle, turnCount int) (*FinalReport, error) {
	if !bundle.Detected() || turnCount < g.minTurns {
		return nil, nil
	}
	first, err := g.seen.MarkFinalized(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, nil
	}
	return &FinalReport{
		SessionID:              sessionID,
		ScamDetected:           true,
		TotalMessagesExchanged: turnCount,
		ExtractedIntelligence:  bundle,
		AgentNotes:             agentNotes(bundle),
	}, nil
}

func agentNotes(b intel.Bundle) string {
	observed := make([]string, 0, 5)
	if len(b.SuspiciousKeywords) > 0 {
		observed = append(observed, "urgency and threat language")
	}
	if len(b.UPIIDs) > 0 {
		observed = append(observed, "UPI collection handles")
	}
	if len(b.PhishingLinks) > 0 {
		observed = append(observed, "phishing links")
	}
	if len(b.PhoneNumbers) > 0 {
		observed = append(observed, "contact phone numbers")
	}
	if len(b.BankAccounts) > 0 {
		observed = append(observed, "bank account numbers")
	}
	if len(observed) == 0 {
		return "Scam engagement recorded; no indicators extracted."
	}
	return "Scammer exposed " + strings.Join(observed, ", ") + " during the engagement."
}
