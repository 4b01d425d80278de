// Package classify maps opaque gateway result codes onto a stable error
// taxonomy. The code table is configuration, not logic: providers renumber
// their codes, the categories here do not.
package classify

// Category is a canonical failure (or success) bucket for gateway results.
type Category string

const (
	CategorySuccess           Category = "success"
	CategoryUserCancelled     Category = "user_cancelled"
	CategoryWrongPin          Category = "wrong_pin"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryPhoneUnreachable  Category = "phone_unreachable"
	CategoryTimeout           Category = "timeout"
	CategoryNetworkError      Category = "network_error"
	CategoryUnknown           Category = "unknown"
)

// Classification is the actionable interpretation of a raw gateway result.
// UserMessage and SuggestedAction are the only wording ever shown to users;
// raw provider text never leaks past this package.
type Classification struct {
	Category        Category
	Retryable       bool
	UserMessage     string
	SuggestedAction string
}

// profiles fixes the retryability and wording per category.
var profiles = map[Category]Classification{
	CategorySuccess: {
		Category:        CategorySuccess,
		Retryable:       false,
		UserMessage:     "Payment received.",
		SuggestedAction: "No action needed.",
	},
	CategoryUserCancelled: {
		Category:        CategoryUserCancelled,
		Retryable:       true,
		UserMessage:     "The customer dismissed the payment prompt.",
		SuggestedAction: "Confirm with the customer and send the prompt again.",
	},
	CategoryWrongPin: {
		Category:        CategoryWrongPin,
		Retryable:       true,
		UserMessage:     "The customer entered a wrong PIN.",
		SuggestedAction: "Ask the customer to retry carefully; the provider may lock after repeated wrong PINs.",
	},
	CategoryInsufficientFunds: {
		Category:        CategoryInsufficientFunds,
		Retryable:       true,
		UserMessage:     "The customer's account balance is too low.",
		SuggestedAction: "Ask the customer to top up, then retry.",
	},
	CategoryPhoneUnreachable: {
		Category:        CategoryPhoneUnreachable,
		Retryable:       true,
		UserMessage:     "The payment prompt could not reach the customer's phone.",
		SuggestedAction: "Check the phone is on and within coverage, then retry.",
	},
	CategoryTimeout: {
		Category:        CategoryTimeout,
		Retryable:       true,
		UserMessage:     "The payment was not confirmed in time.",
		SuggestedAction: "Retry the payment.",
	},
	CategoryNetworkError: {
		Category:        CategoryNetworkError,
		Retryable:       true,
		UserMessage:     "We could not reach the payment gateway.",
		SuggestedAction: "Retry in a moment.",
	},
	CategoryUnknown: {
		Category:        CategoryUnknown,
		Retryable:       false,
		UserMessage:     "The payment ended with an unrecognized gateway result.",
		SuggestedAction: "Do not retry automatically; reconcile against the provider's records.",
	},
}

// DefaultCodeTable is the built-in raw-code mapping, flavoured after
// M-Pesa-style STK result codes. Deployments override it via configuration.
func DefaultCodeTable() map[string]string {
	return map[string]string{
		"0":    string(CategorySuccess),
		"1032": string(CategoryUserCancelled),
		"1":    string(CategoryInsufficientFunds),
		"2001": string(CategoryWrongPin),
		"1037": string(CategoryPhoneUnreachable),
		"1019": string(CategoryTimeout),
		"1025": string(CategoryNetworkError),
	}
}

// Classifier resolves raw gateway codes to classifications.
type Classifier struct {
	codes map[string]Category
}

// New builds a classifier from a code->category table. Entries naming a
// category this package does not know are dropped; their codes will classify
// as unknown, which is the safe default.
func New(table map[string]string) *Classifier {
	codes := make(map[string]Category, len(table))
	for code, cat := range table {
		if _, ok := profiles[Category(cat)]; ok {
			codes[code] = Category(cat)
		}
	}
	return &Classifier{codes: codes}
}

// Default returns a classifier backed by DefaultCodeTable.
func Default() *Classifier {
	return New(DefaultCodeTable())
}

// Classify maps a raw gateway result to its classification. Unrecognized
// codes come back as CategoryUnknown with Retryable=false; they must never
// be silently folded into success or an ordinary failure.
func (c *Classifier) Classify(rawCode, rawMessage string) Classification {
	_ = rawMessage // kept for operator logs only, never for classification
	if cat, ok := c.codes[rawCode]; ok {
		return profiles[cat]
	}
	return profiles[CategoryUnknown]
}

// IsSuccess reports whether the raw code maps to the success category.
func (c *Classifier) IsSuccess(rawCode string) bool {
	return c.codes[rawCode] == CategorySuccess
}

// Profile returns the classification for a known category. Unknown names
// fall back to the unknown profile.
func Profile(category string) Classification {
	if p, ok := profiles[Category(category)]; ok {
		return p
	}
	return profiles[CategoryUnknown]
}
