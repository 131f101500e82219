// Package store owns the on-disk JSON ledger. All reads and writes of
// expense data go through it.
//
// Concurrency discipline: every write is a full read-modify-write of the
// ledger document, serialized behind one mutex so that concurrent creates
// can never interleave their cycles and drop an expense. The document is
// committed by writing a temp file and renaming it over the target, so
// readers always observe either the fully-old or fully-new content.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"spendlog/internal/core"
)

type Store struct {
	path string

	// mu serializes read-modify-write cycles; held for the duration of
	// exactly one Append.
	mu sync.Mutex

	// reads coalesces concurrent loads of the same file.
	reads singleflight.Group
}

// Open prepares the ledger at path, creating the parent directory and an
// empty ledger file when absent.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.persist(core.EmptyLedger()); err != nil {
			return nil, fmt.Errorf("initialize ledger file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat ledger file: %w", err)
	}
	return s, nil
}

// Read loads and parses the ledger. A missing file or content that does not
// match the expected shape is normalized to an empty ledger rather than
// surfaced as an error; the next write overwrites the bad content.
func (s *Store) Read(ctx context.Context) (core.LedgerFile, error) {
	v, err, _ := s.reads.Do("ledger", func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return core.LedgerFile{}, err
	}
	// Each caller gets its own copy; the singleflight result is shared.
	return v.(core.LedgerFile).Clone(), nil
}

// Append pushes a new expense onto the ledger and, when an idempotency key
// is given, records the key-to-id mapping, then persists the whole document.
func (s *Store) Append(ctx context.Context, e core.Expense, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load(ctx)
	if err != nil {
		return err
	}

	ledger.Expenses = append(ledger.Expenses, e)
	if idempotencyKey != "" {
		ledger.IdempotencyKeys[idempotencyKey] = core.IdempotencyRecord{
			ExpenseID: e.ID,
			CreatedAt: e.CreatedAt,
		}
	}

	if err := s.persist(ledger); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense appended to ledger",
		"id", e.ID,
		"amount", e.Amount,
		"category", e.Category,
		"idempotency_key_recorded", idempotencyKey != "")
	return nil
}

// LookupIdempotencyKey returns the expense id a key maps to, if any.
func (s *Store) LookupIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	ledger, err := s.Read(ctx)
	if err != nil {
		return "", false, err
	}
	rec, ok := ledger.IdempotencyKeys[key]
	if !ok {
		return "", false, nil
	}
	return rec.ExpenseID, true, nil
}

// GetByID returns the expense with the given id, if present.
func (s *Store) GetByID(ctx context.Context, id string) (core.Expense, bool, error) {
	ledger, err := s.Read(ctx)
	if err != nil {
		return core.Expense{}, false, err
	}
	for _, e := range ledger.Expenses {
		if e.ID == id {
			return e, true, nil
		}
	}
	return core.Expense{}, false, nil
}

func (s *Store) load(ctx context.Context) (core.LedgerFile, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.EmptyLedger(), nil
	}
	if err != nil {
		return core.LedgerFile{}, fmt.Errorf("read ledger file: %w", err)
	}

	var ledger core.LedgerFile
	if err := json.Unmarshal(raw, &ledger); err != nil {
		// Availability over strict integrity: corrupt content is repaired
		// in memory and fully overwritten on the next write.
		slog.WarnContext(ctx, "Ledger file unparsable, continuing with empty ledger",
			"path", s.path, "error", err)
		return core.EmptyLedger(), nil
	}
	if ledger.Expenses == nil {
		ledger.Expenses = []core.Expense{}
	}
	if ledger.IdempotencyKeys == nil {
		ledger.IdempotencyKeys = map[string]core.IdempotencyRecord{}
	}
	return ledger, nil
}

// persist writes the full document to a temp file in the same directory and
// renames it over the target, so a crash mid-write never leaves a torn file.
func (s *Store) persist(ledger core.LedgerFile) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
