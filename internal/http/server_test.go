package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"spendlog/internal/core"
	"spendlog/internal/services"
	"spendlog/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "expenses.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := services.NewExpenseService(st, nil)
	srv := NewServer("127.0.0.1:0", svc, Options{})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, r)
	return w
}

func decodeExpense(t *testing.T, body []byte) core.Expense {
	t.Helper()
	var e core.Expense
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode expense: %v (body %s)", err, body)
	}
	return e
}

func decodeList(t *testing.T, body []byte) []core.Expense {
	t.Helper()
	var resp struct {
		Expenses []core.Expense `json:"expenses"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode list: %v (body %s)", err, body)
	}
	return resp.Expenses
}

func TestCreateThenList(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/expenses",
		`{"amount": 2500, "category": "Food", "description": "lunch", "date": "2024-03-15"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	created := decodeExpense(t, w.Body.Bytes())
	if created.ID == "" {
		t.Fatal("created expense must have an id")
	}
	if created.Amount != 2500 || created.Category != "Food" || created.Date != "2024-03-15" {
		t.Fatalf("unexpected expense: %+v", created)
	}
	if created.CreatedAt == "" {
		t.Fatal("created expense must have a created_at timestamp")
	}

	w = doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
	items := decodeList(t, w.Body.Bytes())
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("list = %+v, want the created expense", items)
	}
}

func TestListEmptyLedger(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"expenses":[]`) {
		t.Fatalf("empty list must serialize as an empty array, got %s", w.Body.String())
	}
}

func TestCreateIdempotentReplay(t *testing.T) {
	srv := newTestServer(t)
	body := `{"amount": 100, "category": "Travel", "description": "", "date": "2024-01-01"}`
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := doRequest(t, srv, http.MethodPost, "/api/expenses", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	second := doRequest(t, srv, http.MethodPost, "/api/expenses", body, headers)
	if second.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", second.Code)
	}

	e1 := decodeExpense(t, first.Body.Bytes())
	e2 := decodeExpense(t, second.Body.Bytes())
	if e1.ID != e2.ID {
		t.Fatalf("replay returned id %q, want original %q", e2.ID, e1.ID)
	}

	items := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil).Body.Bytes())
	if len(items) != 1 {
		t.Fatalf("ledger has %d expenses after replay, want 1", len(items))
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/expenses", `{not json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid JSON body") {
		t.Fatalf("body = %s, want Invalid JSON body error", w.Body.String())
	}
}

func TestCreateValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "body not an object",
			body:    `[1, 2, 3]`,
			wantMsg: "Request body must be an object",
		},
		{
			name:    "missing amount",
			body:    `{"category": "Food", "date": "2024-01-01", "description": ""}`,
			wantMsg: "amount must be a number",
		},
		{
			name:    "negative amount",
			body:    `{"amount": -1, "category": "Food", "date": "2024-01-01", "description": ""}`,
			wantMsg: "amount must be non-negative",
		},
		{
			name:    "fractional amount",
			body:    `{"amount": 10.5, "category": "Food", "date": "2024-01-01", "description": ""}`,
			wantMsg: "amount must be an integer (paise)",
		},
		{
			name:    "missing date",
			body:    `{"amount": 100, "category": "Food", "description": ""}`,
			wantMsg: "date is required",
		},
		{
			name:    "malformed date",
			body:    `{"amount": 100, "category": "Food", "date": "2024-1-1", "description": ""}`,
			wantMsg: "date must be YYYY-MM-DD",
		},
		{
			name:    "missing category",
			body:    `{"amount": 100, "date": "2024-01-01", "description": ""}`,
			wantMsg: "category is required",
		},
		{
			name:    "description wrong type",
			body:    `{"amount": 100, "category": "Food", "date": "2024-01-01", "description": 42}`,
			wantMsg: "description must be a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			w := doRequest(t, srv, http.MethodPost, "/api/expenses", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error != tt.wantMsg {
				t.Fatalf("error = %q, want %q", resp.Error, tt.wantMsg)
			}
		})
	}
}

func TestListCategoryFilterIsCaseInsensitive(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`{"amount": 1, "category": "Food", "description": "", "date": "2024-01-01"}`,
		`{"amount": 2, "category": "travel", "description": "", "date": "2024-01-02"}`,
	} {
		if w := doRequest(t, srv, http.MethodPost, "/api/expenses", body, nil); w.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d %s", w.Code, w.Body.String())
		}
	}

	items := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses?category=FOOD", "", nil).Body.Bytes())
	if len(items) != 1 || items[0].Category != "Food" {
		t.Fatalf("filtered list = %+v, want only the Food expense", items)
	}
}

func TestListSortOrder(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`{"amount": 1, "category": "A", "description": "", "date": "2024-02-10"}`,
		`{"amount": 2, "category": "A", "description": "", "date": "2024-01-05"}`,
		`{"amount": 3, "category": "A", "description": "", "date": "2024-03-20"}`,
	} {
		if w := doRequest(t, srv, http.MethodPost, "/api/expenses", body, nil); w.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d %s", w.Code, w.Body.String())
		}
	}

	desc := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil).Body.Bytes())
	if desc[0].Date != "2024-03-20" || desc[2].Date != "2024-01-05" {
		t.Fatalf("default order = %v, want newest first", dates(desc))
	}

	asc := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses?sort=date_asc", "", nil).Body.Bytes())
	if asc[0].Date != "2024-01-05" || asc[2].Date != "2024-03-20" {
		t.Fatalf("ascending order = %v, want oldest first", dates(asc))
	}

	// Anything other than exactly date_asc falls back to descending.
	fallback := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses?sort=DATE_ASC", "", nil).Body.Bytes())
	if fallback[0].Date != "2024-03-20" {
		t.Fatalf("unrecognized sort order = %v, want newest first", dates(fallback))
	}
}

func TestCreateInvalidatesListCache(t *testing.T) {
	srv := newTestServer(t)

	before := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil).Body.Bytes())
	if len(before) != 0 {
		t.Fatalf("expected empty ledger, got %d items", len(before))
	}

	if w := doRequest(t, srv, http.MethodPost, "/api/expenses",
		`{"amount": 7, "category": "Misc", "description": "", "date": "2024-06-01"}`, nil); w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", w.Code)
	}

	after := decodeList(t, doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil).Body.Bytes())
	if len(after) != 1 {
		t.Fatalf("list after create has %d items, want 1 (stale cache?)", len(after))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPut, "/api/expenses", `{}`, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "GET, POST" {
		t.Fatalf("Allow = %q, want GET, POST", allow)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/expenses", "", nil)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	if w := doRequest(t, srv, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", w.Code)
	}
	if w := doRequest(t, srv, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", w.Code)
	}
}

func TestRateLimitOnCreate(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "expenses.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := services.NewExpenseService(st, nil)
	srv := NewServer("127.0.0.1:0", svc, Options{RateLimitPerMinute: 2})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})

	body := `{"amount": 1, "category": "Food", "description": "", "date": "2024-01-01"}`
	headers := map[string]string{"X-Real-IP": "203.0.113.9"}
	for i := 0; i < 2; i++ {
		if w := doRequest(t, srv, http.MethodPost, "/api/expenses", body, headers); w.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d, want 201", i+1, w.Code)
		}
	}

	w := doRequest(t, srv, http.MethodPost, "/api/expenses", body, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}

	// Reads are not rate limited.
	if w := doRequest(t, srv, http.MethodGet, "/api/expenses", "", headers); w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
}

func dates(items []core.Expense) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Date
	}
	return out
}
