package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/chat-storefront/internal/domain/catalog"
)

func redSneakers() catalog.Product {
	return catalog.Product{
		ID:          "p-sneakers",
		Name:        "Red Sneakers",
		Price:       15000,
		StockLevel:  3,
		Tags:        []string{"kicks"},
		Description: "Comfortable red sneakers",
		Category:    "footwear",
	}
}

func phoneCharger() catalog.Product {
	return catalog.Product{
		ID:          "p-charger",
		Name:        "Phone Charger",
		Price:       3500,
		StockLevel:  10,
		Tags:        []string{"charger"},
		Description: "Fast USB charger",
		Category:    "electronics",
	}
}

func canvasShoe() catalog.Product {
	return catalog.Product{
		ID:         "p-canvas",
		Name:       "Canvas Shoe",
		Price:      8000,
		StockLevel: 5,
		Tags:       []string{"shoes", "canvas"},
		Category:   "footwear",
	}
}

func leatherShoe() catalog.Product {
	return catalog.Product{
		ID:         "p-leather",
		Name:       "Leather Shoe",
		Price:      22000,
		StockLevel: 2,
		Tags:       []string{"shoes", "leather"},
		Category:   "footwear",
	}
}

func newTestResolver() *Resolver {
	return NewResolver(DefaultConfig())
}

// ============================================
// Resolve Tests
// ============================================

func TestResolve_TagQueryFindsSingleProduct(t *testing.T) {
	r := newTestResolver()

	matches := r.Resolve("kicks", []catalog.Product{redSneakers(), phoneCharger()})

	require.Len(t, matches, 1)
	assert.Equal(t, "p-sneakers", matches[0].Product.ID)
	assert.GreaterOrEqual(t, matches[0].Score, 80)
}

func TestResolve_SharedTagReturnsAllInCatalogOrder(t *testing.T) {
	r := newTestResolver()

	matches := r.Resolve("shoes", []catalog.Product{canvasShoe(), leatherShoe(), phoneCharger()})

	require.Len(t, matches, 2)
	assert.Equal(t, "p-canvas", matches[0].Product.ID)
	assert.Equal(t, "p-leather", matches[1].Product.ID)
	assert.Equal(t, matches[0].Score, matches[1].Score)
}

func TestResolve_BestMatchFirst(t *testing.T) {
	r := newTestResolver()

	matches := r.Resolve("leather shoe", []catalog.Product{canvasShoe(), leatherShoe()})

	require.NotEmpty(t, matches)
	assert.Equal(t, "p-leather", matches[0].Product.ID)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestResolve_IsDeterministic(t *testing.T) {
	r := newTestResolver()
	products := []catalog.Product{redSneakers(), canvasShoe(), leatherShoe(), phoneCharger()}

	first := r.Resolve("shoes", products)
	second := r.Resolve("shoes", products)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("ranking changed between runs (-first +second):\n%s", diff)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	r := newTestResolver()

	assert.Empty(t, r.Resolve("television", []catalog.Product{redSneakers(), phoneCharger()}))
	assert.Empty(t, r.Resolve("", []catalog.Product{redSneakers()}))
	assert.Empty(t, r.Resolve("kicks", nil))
}

func TestResolve_FallbackPassWhenNothingScores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.MinScore = 10_000
	r := NewResolver(cfg)

	matches := r.Resolve("red thing", []catalog.Product{phoneCharger(), redSneakers()})

	require.Len(t, matches, 1)
	assert.Equal(t, "p-sneakers", matches[0].Product.ID)
	assert.Zero(t, matches[0].Score)
}

func TestResolve_SynonymsContribute(t *testing.T) {
	r := newTestResolver()

	// "trainers" appears nowhere on the product; only the synonym group links it.
	matches := r.Resolve("trainers", []catalog.Product{redSneakers(), phoneCharger()})

	require.Len(t, matches, 1)
	assert.Equal(t, "p-sneakers", matches[0].Product.ID)
}

func TestScore_WeightsAreApplied(t *testing.T) {
	cfg := Config{Weights: Weights{
		FullQueryInName:    7,
		FuzzyNameThreshold: 101,
		FuzzyNameDivisor:   1,
		FuzzyTagThreshold:  101,
		FuzzyTagDivisor:    1,
	}}
	r := NewResolver(cfg)

	assert.Equal(t, 7, r.Score("red sneakers", redSneakers()))
	assert.Equal(t, 0, r.Score("charger", redSneakers()))
}

func TestSynonyms(t *testing.T) {
	r := newTestResolver()

	assert.Contains(t, r.Synonyms("kicks"), "sneakers")
	assert.NotContains(t, r.Synonyms("kicks"), "kicks")
	assert.Empty(t, r.Synonyms("television"))
}

// ============================================
// Config Tests
// ============================================

func TestLoadConfig_OverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  min_score: 50\n  tag_match: 90\n"), 0o600))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Weights.MinScore)
	assert.Equal(t, 90, cfg.Weights.TagMatch)
	assert.Equal(t, DefaultWeights().WordInName, cfg.Weights.WordInName)
	assert.NotEmpty(t, cfg.Synonyms)
}

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), cfg.Weights)
}

func TestLoadConfig_RejectsZeroDivisor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  fuzzy_name_divisor: 0\n"), 0o600))

	_, err := LoadConfig(path)

	assert.Error(t, err)
}
