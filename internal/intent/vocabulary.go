package intent

// Keywords holds the trigger phrases of one intent in two registers.
type Keywords struct {
	Formal     []string `yaml:"formal"`
	Colloquial []string `yaml:"colloquial"`
}

// All returns formal then colloquial phrases.
func (k Keywords) All() []string {
	out := make([]string, 0, len(k.Formal)+len(k.Colloquial))
	out = append(out, k.Formal...)
	return append(out, k.Colloquial...)
}

// Vocabulary is every word list the classifier consults. It can be loaded
// from YAML to tune a deployment without a rebuild.
type Vocabulary struct {
	Greeting     Keywords `yaml:"greeting"`
	Help         Keywords `yaml:"help"`
	Price        Keywords `yaml:"price"`
	Availability Keywords `yaml:"availability"`
	Purchase     Keywords `yaml:"purchase"`

	// PaymentPhrases only match as whole phrases, never fuzzily.
	PaymentPhrases []string `yaml:"payment_phrases"`
	// PurchaseConfirmWords stop a message that also asks for help from
	// being treated as a help request.
	PurchaseConfirmWords []string `yaml:"purchase_confirm_words"`
	// WantPhrases combined with a BuyWords entry mean the customer is buying.
	WantPhrases []string `yaml:"want_phrases"`
	BuyWords    []string `yaml:"buy_words"`
	// ProductIndicators turn a greeting that names a product into an
	// availability check.
	ProductIndicators []string `yaml:"product_indicators"`
	StopWords         []string `yaml:"stop_words"`
}

// DefaultVocabulary returns the built-in English and Nigerian Pidgin lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Greeting: Keywords{
			Formal:     []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
			Colloquial: []string{"how far", "wetin dey", "sup", "oya", "abeg"},
		},
		Help: Keywords{
			Formal:     []string{"help", "assist", "support", "what can", "how do", "how to"},
			Colloquial: []string{"abeg help me", "i no understand", "wetin i go do"},
		},
		Price: Keywords{
			Formal: []string{"price", "cost", "how much", "rate", "amount", "naira"},
			Colloquial: []string{
				"how far", "wetin be the price", "na how much", "how much you dey sell",
				"how much be", "wetin e cost", "na wetin",
			},
		},
		Availability: Keywords{
			Formal: []string{"available", "have", "stock", "in stock", "do you have"},
			Colloquial: []string{
				"get", "you get", "una get", "you dey sell", "hope you get",
				"make i see", "abeg you get", "i need", "i wan buy", "you fit sell me",
			},
		},
		Purchase: Keywords{
			Formal: []string{"yes", "okay", "ok", "sure", "buy now", "purchase it", "i'll take it", "proceed", "send link"},
			Colloquial: []string{"make i pay", "i go pay", "i dey buy", "gimme", "abeg sell me"},
		},
		PaymentPhrases: []string{
			"i paid", "i have paid", "i've paid", "ive paid", "i don pay", "i don transfer",
			"payment done", "payment made", "payment sent", "payment successful",
			"paid already", "already paid", "i transferred", "i have transferred",
			"transfer done", "transfer made", "money sent", "sent the money", "i have sent the money",
		},
		PurchaseConfirmWords: []string{"yes", "okay", "ok", "sure", "proceed", "buy now"},
		WantPhrases:          []string{"i want", "i wan"},
		BuyWords:             []string{"buy"},
		ProductIndicators: []string{
			"canvas", "shoe", "shoes", "sneaker", "sneakers", "shirt", "bag", "jeans", "charger",
			"trouser", "joggers", "polo", "packing", "kicks",
		},
		StopWords: []string{
			// fillers
			"abeg", "oya", "na", "wetin", "dey", "fit", "una", "am", "e", "o", "that", "this",
			"my", "brother", "sister", "hope", "you", "me", "i", "wan", "make", "for", "be",
			"go", "don", "the", "a", "an", "get", "need", "have", "pls", "please", "kindly",
			// intent words
			"want", "to", "buy", "purchase", "price", "cost", "how", "much", "is", "of", "do",
			"what", "what's", "whats", "rate", "amount", "naira", "available", "stock", "in",
			"sell", "see", "any", "some", "show", "give", "gimme", "got", "there", "it", "i'll",
			"take", "yes", "ok", "okay", "sure", "now", "hello", "hi", "hey", "good", "morning",
			"afternoon", "evening", "far", "sup", "can", "again", "still", "left", "and", "or",
		},
	}
}
