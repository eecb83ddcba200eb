// Package search ranks catalog products against a free-text query and picks
// a product out of a previously shown candidate list.
package search

import (
	"sort"
	"strings"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/fuzzy"
	"github.com/example/chat-storefront/internal/intent"
)

// Match is a ranked product. Score is zero for products found only by the
// unscored fallback pass.
type Match struct {
	Product catalog.Product `json:"product"`
	Score   int             `json:"score"`
}

// Resolver is stateless after construction and safe for concurrent use.
type Resolver struct {
	w             Weights
	synonyms      map[string][]string
	categoryTerms map[string][]string
}

func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		w:             cfg.Weights,
		synonyms:      make(map[string][]string),
		categoryTerms: make(map[string][]string, len(cfg.CategoryTerms)),
	}
	for _, group := range cfg.Synonyms {
		for _, word := range group {
			word = strings.ToLower(word)
			for _, other := range group {
				other = strings.ToLower(other)
				if other != word && !contains(r.synonyms[word], other) {
					r.synonyms[word] = append(r.synonyms[word], other)
				}
			}
		}
	}
	for cat, terms := range cfg.CategoryTerms {
		lowered := make([]string, len(terms))
		for i, t := range terms {
			lowered[i] = strings.ToLower(t)
		}
		r.categoryTerms[strings.ToLower(cat)] = lowered
	}
	return r
}

// Synonyms returns the words interchangeable with word.
func (r *Resolver) Synonyms(word string) []string {
	return r.synonyms[strings.ToLower(word)]
}

// Resolve ranks products against query. Products scoring at least MinScore
// are returned best first, ties in catalog order. When none qualify, every
// product whose name or tags contain a longer query word is returned in
// catalog order. An empty result means nothing matched.
func (r *Resolver) Resolve(query string, products []catalog.Product) []Match {
	q := intent.Normalize(query)
	if q == "" || len(products) == 0 {
		return nil
	}
	words := strings.Fields(q)

	var matches []Match
	for _, p := range products {
		if score := r.score(q, words, p); score >= r.w.MinScore {
			matches = append(matches, Match{Product: p, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > 0 {
		return matches
	}

	for _, p := range products {
		name, tags := strings.ToLower(p.Name), lowerAll(p.Tags)
		for _, word := range words {
			if len([]rune(word)) < r.w.FallbackWordLen {
				continue
			}
			if strings.Contains(name, word) || anyContains(tags, word) {
				matches = append(matches, Match{Product: p})
				break
			}
		}
	}
	return matches
}

// Score returns the relevance of p for query.
func (r *Resolver) Score(query string, p catalog.Product) int {
	q := intent.Normalize(query)
	if q == "" {
		return 0
	}
	return r.score(q, strings.Fields(q), p)
}

func (r *Resolver) score(q string, words []string, p catalog.Product) int {
	var (
		w        = r.w
		score    int
		name     = strings.ToLower(p.Name)
		desc     = strings.ToLower(p.Description)
		category = strings.ToLower(p.Category)
		tags     = lowerAll(p.Tags)
	)

	if strings.Contains(name, q) {
		score += w.FullQueryInName
	}
	for _, tag := range tags {
		if q == tag || strings.Contains(tag, q) || strings.Contains(q, tag) {
			score += w.TagMatch
			break
		}
	}

	for _, word := range words {
		if len([]rune(word)) < w.MinWordLen {
			continue
		}
		if strings.Contains(name, word) {
			score += w.WordInName
		}
		if anyContains(tags, word) {
			score += w.WordInTag
		}
		if strings.Contains(desc, word) {
			score += w.WordInDescription
		}
		if strings.Contains(category, word) {
			score += w.WordInCategory
		}
	}

	for _, word := range words {
		if len([]rune(word)) < w.MinSynonymWordLen {
			continue
		}
		for _, syn := range r.synonyms[word] {
			if strings.Contains(name, syn) {
				score += w.SynonymInName
			}
			if anyContains(tags, syn) {
				score += w.SynonymInTag
			}
			if category != "" && strings.Contains(category, syn) {
				score += w.SynonymInCategory
			}
		}
	}

	if sim := fuzzy.PartialRatio(q, name); sim > w.FuzzyNameThreshold {
		score += sim / w.FuzzyNameDivisor
	}
	for _, tag := range tags {
		if sim := fuzzy.Ratio(q, tag); sim > w.FuzzyTagThreshold {
			score += sim / w.FuzzyTagDivisor
			break
		}
	}

	if category != "" {
		if terms, ok := r.categoryTerms[category]; ok {
			for _, term := range terms {
				if strings.Contains(q, term) {
					score += w.CategoryTerm
					break
				}
			}
		}
	}
	return score
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// anyContains reports whether any of haystacks contains needle.
func anyContains(haystacks []string, needle string) bool {
	for _, h := range haystacks {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
