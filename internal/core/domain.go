package core

import (
	"strings"
	"time"
)

const (
	SortDateDesc SortOption = "date_desc"
	SortDateAsc  SortOption = "date_asc"
)

type (
	// SortOption selects the date ordering for expense listings.
	SortOption string

	// Expense is a single recorded expense. Immutable once created:
	// the ledger only ever appends, never mutates or deletes.
	// Amount is in minor currency units to avoid float rounding drift.
	Expense struct {
		ID          string `json:"id"`
		Amount      int64  `json:"amount"`
		Category    string `json:"category"`
		Description string `json:"description"`
		Date        string `json:"date"`
		CreatedAt   string `json:"created_at"`
	}

	// IdempotencyRecord maps a client-supplied idempotency key to the
	// expense it produced.
	IdempotencyRecord struct {
		ExpenseID string `json:"expenseId"`
		CreatedAt string `json:"createdAt"`
	}

	// LedgerFile is the persisted aggregate: an ordered expense sequence
	// (insertion order = creation order) plus the idempotency key map.
	LedgerFile struct {
		Expenses        []Expense                    `json:"expenses"`
		IdempotencyKeys map[string]IdempotencyRecord `json:"idempotencyKeys"`
	}

	// ListOptions controls filtering and ordering of expense listings.
	ListOptions struct {
		Category string
		Sort     SortOption
	}
)

// CreatedAtFormat is the layout used for server-side creation timestamps.
const CreatedAtFormat = time.RFC3339

// EmptyLedger returns a ledger with initialized (non-nil) collections so it
// serializes as {"expenses": [], "idempotencyKeys": {}}.
func EmptyLedger() LedgerFile {
	return LedgerFile{
		Expenses:        []Expense{},
		IdempotencyKeys: map[string]IdempotencyRecord{},
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (l LedgerFile) Clone() LedgerFile {
	out := LedgerFile{
		Expenses:        make([]Expense, len(l.Expenses)),
		IdempotencyKeys: make(map[string]IdempotencyRecord, len(l.IdempotencyKeys)),
	}
	copy(out.Expenses, l.Expenses)
	for k, v := range l.IdempotencyKeys {
		out.IdempotencyKeys[k] = v
	}
	return out
}

// ParseSortOption maps a query parameter to a sort option. Anything other
// than exactly "date_asc" falls back to date_desc.
func ParseSortOption(s string) SortOption {
	if SortOption(s) == SortDateAsc {
		return SortDateAsc
	}
	return SortDateDesc
}

// CategoryMatches reports whether the expense belongs to the given category,
// compared case-insensitively as an exact match.
func (e Expense) CategoryMatches(category string) bool {
	return strings.EqualFold(e.Category, category)
}
