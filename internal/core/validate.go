package core

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

var (
	ErrBodyNotObject        = errors.New("Request body must be an object")
	ErrAmountNotNumber      = errors.New("amount must be a number")
	ErrAmountNegative       = errors.New("amount must be non-negative")
	ErrAmountNotInteger     = errors.New("amount must be an integer (paise)")
	ErrAmountOutOfRange     = errors.New("amount exceeds the supported range")
	ErrDateRequired         = errors.New("date is required")
	ErrDateFormat           = errors.New("date must be YYYY-MM-DD")
	ErrCategoryRequired     = errors.New("category is required")
	ErrDescriptionNotString = errors.New("description must be a string")
)

// Pattern-only date check: four digits, dash, two digits, dash, two digits.
// Calendar validity is deliberately not checked, so 2024-02-30 passes.
var dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// CreateExpenseBody is a validated creation payload with surrounding
// whitespace stripped from the text fields.
type CreateExpenseBody struct {
	Amount      int64
	Category    string
	Description string
	Date        string
}

// ValidateCreateExpenseBody gates a decoded JSON creation payload. Checks
// run in a fixed order and short-circuit on the first failing field, so
// callers always get a single message naming one offending condition.
func ValidateCreateExpenseBody(body any) (CreateExpenseBody, error) {
	obj, ok := body.(map[string]any)
	if !ok || obj == nil {
		return CreateExpenseBody{}, ErrBodyNotObject
	}

	amount, ok := obj["amount"].(float64)
	if !ok || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return CreateExpenseBody{}, ErrAmountNotNumber
	}
	if amount < 0 {
		return CreateExpenseBody{}, ErrAmountNegative
	}
	if amount != math.Trunc(amount) {
		return CreateExpenseBody{}, ErrAmountNotInteger
	}
	// float64(math.MaxInt64) rounds up to 2^63, so anything at or above it
	// would overflow the int64 conversion below and flip sign.
	if amount >= float64(math.MaxInt64) {
		return CreateExpenseBody{}, ErrAmountOutOfRange
	}

	date, ok := obj["date"].(string)
	if !ok || strings.TrimSpace(date) == "" {
		return CreateExpenseBody{}, ErrDateRequired
	}
	if !dateOnlyPattern.MatchString(date) {
		return CreateExpenseBody{}, ErrDateFormat
	}

	category, ok := obj["category"].(string)
	if !ok || strings.TrimSpace(category) == "" {
		return CreateExpenseBody{}, ErrCategoryRequired
	}

	description, ok := obj["description"].(string)
	if !ok {
		return CreateExpenseBody{}, ErrDescriptionNotString
	}

	return CreateExpenseBody{
		Amount:      int64(amount),
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Date:        strings.TrimSpace(date),
	}, nil
}
