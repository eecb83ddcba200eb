package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights is the scoring policy of the product resolver. Every signal the
// resolver checks adds the weight named after it.
type Weights struct {
	FullQueryInName   int `yaml:"full_query_in_name"`
	TagMatch          int `yaml:"tag_match"`
	WordInName        int `yaml:"word_in_name"`
	WordInTag         int `yaml:"word_in_tag"`
	WordInDescription int `yaml:"word_in_description"`
	WordInCategory    int `yaml:"word_in_category"`
	SynonymInName     int `yaml:"synonym_in_name"`
	SynonymInTag      int `yaml:"synonym_in_tag"`
	SynonymInCategory int `yaml:"synonym_in_category"`
	CategoryTerm      int `yaml:"category_term"`

	// Fuzzy signals add similarity/divisor once similarity exceeds the
	// threshold.
	FuzzyNameThreshold int `yaml:"fuzzy_name_threshold"`
	FuzzyNameDivisor   int `yaml:"fuzzy_name_divisor"`
	FuzzyTagThreshold  int `yaml:"fuzzy_tag_threshold"`
	FuzzyTagDivisor    int `yaml:"fuzzy_tag_divisor"`

	MinScore          int `yaml:"min_score"`
	MinWordLen        int `yaml:"min_word_len"`
	MinSynonymWordLen int `yaml:"min_synonym_word_len"`
	FallbackWordLen   int `yaml:"fallback_word_len"`
}

func DefaultWeights() Weights {
	return Weights{
		FullQueryInName:    100,
		TagMatch:           80,
		WordInName:         40,
		WordInTag:          35,
		WordInDescription:  15,
		WordInCategory:     25,
		SynonymInName:      30,
		SynonymInTag:       25,
		SynonymInCategory:  20,
		CategoryTerm:       20,
		FuzzyNameThreshold: 70,
		FuzzyNameDivisor:   4,
		FuzzyTagThreshold:  70,
		FuzzyTagDivisor:    5,
		MinScore:           20,
		MinWordLen:         2,
		MinSynonymWordLen:  3,
		FallbackWordLen:    3,
	}
}

// Config is everything the resolver needs besides the catalog.
type Config struct {
	Weights Weights `yaml:"weights"`
	// Synonyms lists groups of interchangeable words.
	Synonyms [][]string `yaml:"synonyms"`
	// CategoryTerms maps a category name to words that imply it.
	CategoryTerms map[string][]string `yaml:"category_terms"`
}

func DefaultConfig() Config {
	return Config{
		Weights: DefaultWeights(),
		Synonyms: [][]string{
			{"sneakers", "sneaker", "kicks", "trainers", "canvas"},
			{"shoe", "shoes", "footwear"},
			{"shirt", "tee", "top"},
			{"trouser", "trousers", "pants", "joggers"},
			{"jeans", "denim"},
			{"bag", "handbag", "purse"},
			{"charger", "adapter"},
			{"phone", "mobile", "handset"},
			{"earphones", "earpiece", "headphones", "earbuds"},
			{"glasses", "shades", "sunglasses"},
			{"necklace", "chain"},
			{"watch", "wristwatch"},
			{"cap", "hat"},
		},
		CategoryTerms: map[string][]string{
			"footwear":    {"shoe", "shoes", "sneaker", "sneakers", "canvas", "kicks"},
			"clothing":    {"shirt", "shorts", "jeans", "trouser", "top", "clothes"},
			"accessories": {"bag", "wallet", "chain", "glasses", "shades"},
			"jewelry":     {"chain", "necklace", "gold", "ring", "earring"},
			"electronics": {"charger", "phone", "cable", "earphones"},
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Fields the file leaves
// out keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read scoring config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scoring config %s: %w", path, err)
	}
	if cfg.Weights.FuzzyNameDivisor <= 0 || cfg.Weights.FuzzyTagDivisor <= 0 {
		return cfg, fmt.Errorf("parse scoring config %s: fuzzy divisors must be positive", path)
	}
	return cfg, nil
}
