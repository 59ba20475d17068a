package persona

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/antoniostano/decoy/internal/policy"
)

// Category is the reply bucket an inbound message falls into.
type Category string

const (
	CategoryBank    Category = "bank"
	CategoryUPI     Category = "upi"
	CategoryLink    Category = "link"
	CategoryOTP     Category = "otp"
	CategoryThreat  Category = "threat"
	CategoryGeneric Category = "generic"
)

// Categories lists every reply bucket, generic last.
var Categories = []Category{
	CategoryBank, CategoryUPI, CategoryLink, CategoryOTP, CategoryThreat, CategoryGeneric,
}

// Keyword triggers, checked in order. First hit wins.
var triggers = []struct {
	category Category
	keywords []string
}{
	{CategoryBank, []string{"bank", "account", "ifsc"}},
	{CategoryUPI, []string{"upi", "gpay", "paytm", "phonepe"}},
	{CategoryLink, []string{"http", "link", "apk", "url"}},
	{CategoryOTP, []string{"otp", "pin", "code"}},
	{CategoryThreat, []string{"block", "police", "suspend"}},
}

// Classify buckets an already-sanitized message by keyword match.
func Classify(message string) Category {
	m := strings.ToLower(message)
	for _, t := range triggers {
		for _, kw := range t.keywords {
			if strings.Contains(m, kw) {
				return t.category
			}
		}
	}
	return CategoryGeneric
}

// Picker selects one index in [0, n). Injected so tests can pin the draw.
type Picker interface {
	Pick(n int) int
}

type randomPicker struct{}

// NewRandomPicker returns the production picker backed by the shared
// math/rand source, which is safe for concurrent use.
func NewRandomPicker() Picker { return randomPicker{} }

func (randomPicker) Pick(n int) int { return rand.Intn(n) }

// Pools holds the reply template pools. Openers and closers are shared
// across all categories; bodies are per category.
type Pools struct {
	Openers []string              `yaml:"openers"`
	Bodies  map[Category][]string `yaml:"bodies"`
	Closers []string              `yaml:"closers"`
}

// DefaultPools returns the built-in confused-victim persona.
func DefaultPools() Pools {
	return Pools{
		Openers: []string{
			"Hello sir,", "Excuse me,", "One second please,",
			"Listen,", "I am confused,", "Please wait,",
		},
		Bodies: map[Category][]string{
			CategoryBank: {
				"Why will my account be blocked?",
				"Which bank are you talking about?",
				"I just received pension yesterday.",
			},
			CategoryUPI: {
				"I don't know my UPI ID.",
				"Can I send 1 rupee to check?",
				"Do I share this with anyone?",
			},
			CategoryLink: {
				"The link is not opening.",
				"Chrome says unsafe website.",
				"Is this government site?",
			},
			CategoryOTP: {
				"My son told me not to share OTP.",
				"The message disappeared.",
				"Is OTP required?",
			},
			CategoryThreat: {
				"Please don't block my account.",
				"Will police really come?",
				"I am very scared.",
			},
			CategoryGeneric: {
				"What should I do now?",
				"Please explain slowly.",
				"I don't understand technology.",
			},
		},
		Closers: []string{
			"Please reply.", "Are you there?", "Waiting for response.",
		},
	}
}

// Validate checks that every pool the selector can draw from is non-empty.
func (p Pools) Validate() error {
	if len(p.Openers) == 0 {
		return fmt.Errorf("openers pool is empty")
	}
	if len(p.Closers) == 0 {
		return fmt.Errorf("closers pool is empty")
	}
	for _, cat := range Categories {
		if len(p.Bodies[cat]) == 0 {
			return fmt.Errorf("body pool for category %q is empty", cat)
		}
	}
	return nil
}

// Selector composes scripted victim replies from the template pools.
type Selector struct {
	pools  Pools
	picker Picker
}

func NewSelector(pools Pools, picker Picker) (*Selector, error) {
	if err := pools.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pools: %w", err)
	}
	if picker == nil {
		picker = NewRandomPicker()
	}
	return &Selector{pools: pools, picker: picker}, nil
}

// Reply classifies the message and composes one opener, one category body and
// one closer, each drawn independently. The category is deterministic; only
// the phrasing is random.
func (s *Selector) Reply(message string) (string, Category) {
	cat := Classify(message)
	opener := s.pools.Openers[s.picker.Pick(len(s.pools.Openers))]
	body := s.pools.Bodies[cat][s.picker.Pick(len(s.pools.Bodies[cat]))]
	closer := s.pools.Closers[s.picker.Pick(len(s.pools.Closers))]
	return policy.Sanitize(opener + " " + body + " " + closer), cat
}
