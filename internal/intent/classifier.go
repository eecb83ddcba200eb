// Package intent labels a customer message with what the customer is trying
// to do and pulls the product words out of it.
package intent

import (
	"strings"
	"unicode"

	"github.com/example/chat-storefront/internal/fuzzy"
)

type Intent string

const (
	Greeting            Intent = "greeting"
	Help                Intent = "help"
	PriceInquiry        Intent = "price_inquiry"
	AvailabilityCheck   Intent = "availability_check"
	Purchase            Intent = "purchase"
	PaymentConfirmation Intent = "payment_confirmation"
	Unknown             Intent = "unknown"
)

const (
	DefaultThreshold = 70
	// minFuzzyLen keeps short words like "hi" and "ok" exact-only; at that
	// length one edit already crosses most thresholds.
	minFuzzyLen = 4
)

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	threshold int

	greeting     []string
	help         []string
	price        []string
	availability []string
	purchase     []string
	payment      []string
	confirm      []string
	want         []string
	buy          []string
	indicators   []string
	stopWords    map[string]bool
}

// NewClassifier builds a classifier. threshold is the per-word similarity
// (0..100) above which a keyword counts as present; zero selects the
// default.
func NewClassifier(v Vocabulary, threshold int) *Classifier {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	c := &Classifier{
		threshold:    threshold,
		greeting:     normalizeAll(v.Greeting.All()),
		help:         normalizeAll(v.Help.All()),
		price:        normalizeAll(v.Price.All()),
		availability: normalizeAll(v.Availability.All()),
		purchase:     normalizeAll(v.Purchase.All()),
		payment:      normalizeAll(v.PaymentPhrases),
		confirm:      normalizeAll(v.PurchaseConfirmWords),
		want:         normalizeAll(v.WantPhrases),
		buy:          normalizeAll(v.BuyWords),
		indicators:   normalizeAll(v.ProductIndicators),
		stopWords:    make(map[string]bool, len(v.StopWords)),
	}
	for _, w := range normalizeAll(v.StopWords) {
		c.stopWords[w] = true
	}
	return c
}

// Classify runs the ordered cascade and returns the first intent that fires.
// It never fails; text that matches nothing is Unknown.
func (c *Classifier) Classify(text string) Intent {
	m := newMessage(text)
	if len(m.words) == 0 {
		return Unknown
	}

	switch {
	case m.hasPhrase(c.payment):
		return PaymentConfirmation
	case c.matches(m, c.help) && !m.hasPhrase(c.confirm):
		return Help
	case c.matches(m, c.purchase):
		return Purchase
	case m.hasPhrase(c.want) && m.hasPhrase(c.buy):
		return Purchase
	case c.matches(m, c.price):
		return PriceInquiry
	case c.matches(m, c.availability):
		return AvailabilityCheck
	case c.matches(m, c.greeting):
		if m.hasPhrase(c.indicators) {
			return AvailabilityCheck
		}
		return Greeting
	}
	return Unknown
}

// ExtractProductQuery strips punctuation, stop words and one-letter tokens.
// It reports false when nothing is left.
func (c *Classifier) ExtractProductQuery(text string) (string, bool) {
	m := newMessage(text)
	kept := make([]string, 0, len(m.words))
	for _, w := range m.words {
		w = strings.Trim(w, "'")
		if len([]rune(w)) <= 1 || c.stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

// matches reports whether any keyword is present as a phrase, or any
// single-word keyword is within the similarity threshold of a message word.
func (c *Classifier) matches(m message, keywords []string) bool {
	if m.hasPhrase(keywords) {
		return true
	}
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') || len([]rune(kw)) < minFuzzyLen {
			continue
		}
		for _, w := range m.words {
			if len([]rune(w)) < minFuzzyLen {
				continue
			}
			if fuzzy.Ratio(w, kw) >= c.threshold {
				return true
			}
		}
	}
	return false
}

type message struct {
	padded string // " w1 w2 ... wn "
	words  []string
}

func newMessage(text string) message {
	norm := Normalize(text)
	return message{padded: " " + norm + " ", words: strings.Fields(norm)}
}

// hasPhrase reports whether any phrase occurs on word boundaries.
func (m message) hasPhrase(phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(m.padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// Normalize lower-cases text and turns everything except letters, digits and
// apostrophes into single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '’' || r == '‘':
			r = '\''
			fallthrough
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
