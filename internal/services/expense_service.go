package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/core"
	"spendlog/internal/store"
)

// EventPublisher emits domain events for freshly created expenses.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
}

// ExpenseService orchestrates domain rules above the ledger store:
// create-with-idempotency and list-with-filter-and-sort.
type ExpenseService struct {
	store  *store.Store
	events EventPublisher // nil disables event publishing

	// Overridable for tests.
	now   func() time.Time
	newID func() string
}

func NewExpenseService(st *store.Store, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:  st,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateExpense records a validated expense. When an idempotency key is
// supplied and already maps to an existing expense, the original is returned
// with created=false and nothing is written: at-most-once effect under
// client retries. A key whose mapped expense is missing counts as not found
// and falls through to a fresh create.
func (s *ExpenseService) CreateExpense(ctx context.Context, body core.CreateExpenseBody, idempotencyKey string) (core.Expense, bool, error) {
	if idempotencyKey != "" {
		id, ok, err := s.store.LookupIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return core.Expense{}, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
		if ok {
			existing, found, err := s.store.GetByID(ctx, id)
			if err != nil {
				return core.Expense{}, false, fmt.Errorf("resolve idempotency key: %w", err)
			}
			if found {
				slog.InfoContext(ctx, "Idempotent replay, returning existing expense",
					"id", existing.ID)
				return existing, false, nil
			}
			// Dangling mapping, treat as key not found.
		}
	}

	expense := core.Expense{
		ID:          s.newID(),
		Amount:      body.Amount,
		Category:    body.Category,
		Description: body.Description,
		Date:        body.Date,
		CreatedAt:   s.now().UTC().Format(core.CreatedAtFormat),
	}

	if err := s.store.Append(ctx, expense, idempotencyKey); err != nil {
		return core.Expense{}, false, fmt.Errorf("append expense: %w", err)
	}

	s.publishCreated(ctx, expense)
	return expense, true, nil
}

// ListExpenses returns a fresh, sorted slice of the stored expenses. The
// category filter is a case-insensitive exact match; sorting is stable, so
// equal dates keep their insertion order relative to each other.
func (s *ExpenseService) ListExpenses(ctx context.Context, opts core.ListOptions) ([]core.Expense, error) {
	ledger, err := s.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	list := make([]core.Expense, 0, len(ledger.Expenses))
	for _, e := range ledger.Expenses {
		if opts.Category != "" && !e.CategoryMatches(opts.Category) {
			continue
		}
		list = append(list, e)
	}

	// Zero-padded YYYY-MM-DD strings order the same as calendar dates.
	if opts.Sort == core.SortDateAsc {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	} else {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Date > list[j].Date })
	}

	return list, nil
}

// publishCreated emits the created event best-effort: the expense is already
// durable, so a publish failure is logged and never fails the request.
func (s *ExpenseService) publishCreated(ctx context.Context, e core.Expense) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseCreated(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense created event",
			"id", e.ID, "error", err)
	}
}
