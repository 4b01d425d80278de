package classify_test

import (
	"testing"

	"github.com/DTBbuilds/smartduka-payments/internal/classify"
	"github.com/stretchr/testify/assert"
)

func TestClassify_DefaultTable(t *testing.T) {
	c := classify.Default()

	tests := []struct {
		code      string
		category  classify.Category
		retryable bool
	}{
		{"0", classify.CategorySuccess, false},
		{"1032", classify.CategoryUserCancelled, true},
		{"1", classify.CategoryInsufficientFunds, true},
		{"2001", classify.CategoryWrongPin, true},
		{"1037", classify.CategoryPhoneUnreachable, true},
		{"1019", classify.CategoryTimeout, true},
		{"1025", classify.CategoryNetworkError, true},
	}
	for _, tt := range tests {
		cls := c.Classify(tt.code, "")
		assert.Equal(t, tt.category, cls.Category, "code %s", tt.code)
		assert.Equal(t, tt.retryable, cls.Retryable, "code %s", tt.code)
		assert.NotEmpty(t, cls.UserMessage, "code %s", tt.code)
		assert.NotEmpty(t, cls.SuggestedAction, "code %s", tt.code)
	}
}

func TestClassify_UnknownCode(t *testing.T) {
	c := classify.Default()
	cls := c.Classify("9999", "Something new from the provider")
	assert.Equal(t, classify.CategoryUnknown, cls.Category)
	assert.False(t, cls.Retryable, "unknown results must never be auto-retried")
}

func TestClassify_MessageNeverLeaksIntoWording(t *testing.T) {
	c := classify.Default()
	cls := c.Classify("1032", "DS timeout user cannot be reached")
	assert.NotContains(t, cls.UserMessage, "DS timeout")
}

func TestIsSuccess(t *testing.T) {
	c := classify.Default()
	assert.True(t, c.IsSuccess("0"))
	assert.False(t, c.IsSuccess("1032"))
	assert.False(t, c.IsSuccess("9999"))
}

func TestNew_CustomTable(t *testing.T) {
	c := classify.New(map[string]string{
		"OK":  "success",
		"X1":  "wrong_pin",
		"bad": "no_such_category",
	})
	assert.True(t, c.IsSuccess("OK"))
	assert.Equal(t, classify.CategoryWrongPin, c.Classify("X1", "").Category)
	// Entries naming unknown categories are dropped, their codes classify as unknown.
	assert.Equal(t, classify.CategoryUnknown, c.Classify("bad", "").Category)
	// The default codes are gone once a custom table is supplied.
	assert.False(t, c.IsSuccess("0"))
}

func TestProfile(t *testing.T) {
	assert.True(t, classify.Profile("user_cancelled").Retryable)
	assert.False(t, classify.Profile("success").Retryable)
	assert.Equal(t, classify.CategoryUnknown, classify.Profile("nonsense").Category)
	assert.Equal(t, classify.CategoryUnknown, classify.Profile("").Category)
}
