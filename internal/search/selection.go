package search

import (
	"errors"
	"strconv"
	"strings"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/fuzzy"
	"github.com/example/chat-storefront/internal/intent"
)

var ErrInvalidSelection = errors.New("selection does not match any candidate")

var ordinals = map[string]int{
	"first": 0, "1st": 0,
	"second": 1, "2nd": 1,
	"third": 2, "3rd": 2,
}

// selectionFillers are removed on word boundaries, so "one" never eats the
// middle of "phone".
var selectionFillers = []string{"i want", "give me", "show me", "the", "one", "please"}

const (
	selectionWordLen    = 3
	selectionNameBonus  = 20
	selectionTagBonus   = 10
	selectionRatioBonus = 50
	// minSelectionScore keeps replies such as "yes" or "ok", whose
	// similarity to any name is small but non-zero, from picking a candidate.
	minSelectionScore = 40
)

// ResolveSelection picks one of candidates from the customer's reply to a
// numbered list. It returns ErrInvalidSelection when nothing fits.
func ResolveSelection(text string, candidates []catalog.Product) (catalog.Product, error) {
	if len(candidates) == 0 {
		return catalog.Product{}, ErrInvalidSelection
	}
	sel := intent.Normalize(text)
	if p, handled, err := byIndex(sel, candidates); handled {
		return p, err
	}

	cleaned := stripFillers(sel)
	if cleaned == "" {
		return catalog.Product{}, ErrInvalidSelection
	}
	if p, handled, err := byIndex(cleaned, candidates); handled {
		return p, err
	}

	for _, p := range candidates {
		name := strings.ToLower(p.Name)
		if cleaned == name || strings.Contains(name, cleaned) {
			return p, nil
		}
	}

	words := strings.Fields(cleaned)
	long := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) >= selectionWordLen {
			long = append(long, w)
		}
	}
	if len(long) > 0 {
		for _, p := range candidates {
			name := strings.ToLower(p.Name)
			all := true
			for _, w := range long {
				if !strings.Contains(name, w) {
					all = false
					break
				}
			}
			if all {
				return p, nil
			}
		}
	}

	var (
		best      catalog.Product
		bestScore int
	)
	for _, p := range candidates {
		if score := selectionScore(cleaned, words, p); score > bestScore {
			best, bestScore = p, score
		}
	}
	if bestScore < minSelectionScore {
		return catalog.Product{}, ErrInvalidSelection
	}
	return best, nil
}

// byIndex handles a bare 1-based number or an ordinal word. handled is false
// when sel is neither.
func byIndex(sel string, candidates []catalog.Product) (p catalog.Product, handled bool, err error) {
	idx := -1
	if n, convErr := strconv.Atoi(sel); convErr == nil {
		idx = n - 1
	} else if o, ok := ordinals[sel]; ok {
		idx = o
	} else {
		return catalog.Product{}, false, nil
	}
	if idx < 0 || idx >= len(candidates) {
		return catalog.Product{}, true, ErrInvalidSelection
	}
	return candidates[idx], true, nil
}

func selectionScore(cleaned string, words []string, p catalog.Product) int {
	name := strings.ToLower(p.Name)
	tags := lowerAll(p.Tags)

	score := fuzzy.Ratio(cleaned, name)
	matched := 0
	for _, w := range words {
		if len([]rune(w)) < selectionWordLen {
			continue
		}
		if strings.Contains(name, w) {
			matched++
			score += selectionNameBonus
		}
		if anyContains(tags, w) {
			score += selectionTagBonus
		}
	}
	if len(words) > 0 {
		score += matched * selectionRatioBonus / len(words)
	}
	return score
}

func stripFillers(sel string) string {
	padded := " " + sel + " "
	for _, f := range selectionFillers {
		for strings.Contains(padded, " "+f+" ") {
			padded = strings.Replace(padded, " "+f+" ", " ", 1)
		}
	}
	return strings.Join(strings.Fields(padded), " ")
}
