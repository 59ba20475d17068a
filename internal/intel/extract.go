package intel

import (
	"regexp"
	"strings"

	"github.com/antoniostano/decoy/internal/policy"
)

// Kind names one extraction pattern.
type Kind string

const (
	KindBankAccount  Kind = "bank_account"
	KindUPIID        Kind = "upi_id"
	KindPhishingLink Kind = "phishing_link"
	KindPhoneNumber  Kind = "phone_number"
	KindKeyword      Kind = "suspicious_keyword"
)

var patterns = map[Kind]*regexp.Regexp{
	// Bare digit runs of 9-18. Indian account numbers vary by bank, so the
	// wide range is used instead of a fixed 12-digit rule.
	KindBankAccount:  regexp.MustCompile(`\b\d{9,18}\b`),
	KindUPIID:        regexp.MustCompile(`[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}`),
	KindPhishingLink: regexp.MustCompile(`https?://\S+|www\.\S+`),
	// Optional +91 country code, then a ten-digit mobile starting 6-9.
	KindPhoneNumber: regexp.MustCompile(`(?:\+91[-\s]?)?[6-9]\d{9}`),
	KindKeyword:     regexp.MustCompile(`(?i)\b(urgent|verify|blocked|suspend|kyc|police|otp)\b`),
}

// Bundle groups deduplicated indicators by category. Slices are never nil so
// the JSON form always carries arrays.
type Bundle struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Detected reports whether the bundle triggers scam detection. Bank-account
// matches alone are not enough: a bare digit run has no payment intent.
func (b Bundle) Detected() bool {
	return len(b.UPIIDs) > 0 ||
		len(b.PhishingLinks) > 0 ||
		len(b.PhoneNumbers) > 0 ||
		len(b.SuspiciousKeywords) > 0
}

// Extract joins the conversation turns, sanitizes the blob and runs every
// pattern over it. No matches is not an error; the field is just empty.
func Extract(turns []string) Bundle {
	blob := policy.Sanitize(strings.Join(turns, " "))
	return Bundle{
		BankAccounts:       ExtractKind(KindBankAccount, blob),
		UPIIDs:             ExtractKind(KindUPIID, blob),
		PhishingLinks:      ExtractKind(KindPhishingLink, blob),
		PhoneNumbers:       ExtractKind(KindPhoneNumber, blob),
		SuspiciousKeywords: ExtractKind(KindKeyword, blob),
	}
}

// ExtractKind runs a single pattern over already-sanitized text and returns
// the deduplicated matches. Keyword matches are case-folded before dedup.
func ExtractKind(kind Kind, text string) []string {
	re, ok := patterns[kind]
	if !ok {
		return []string{}
	}
	matches := re.FindAllString(text, -1)
	if kind == KindKeyword {
		for i, m := range matches {
			matches[i] = strings.ToLower(m)
		}
	}
	return dedupe(matches)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
