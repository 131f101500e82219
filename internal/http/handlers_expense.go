package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"spendlog/internal/core"
)

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExpenses(w, r)
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	key := listCacheKey(opts)
	if items, found := s.listCache.Get(key); found {
		slog.DebugContext(r.Context(), "Expense list cache hit", "key", key, "count", len(items))
		writeExpenseList(w, items)
		return
	}

	items, err := s.service.ListExpenses(r.Context(), opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense list error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.listCache.Set(key, items)
	writeExpenseList(w, items)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)
	if !s.limiter.Allow(clientIP) {
		slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP, "path", r.URL.Path)
		w.Header().Set("Retry-After", "60")
		writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		slog.ErrorContext(r.Context(), "Request body read error", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	fields, err := core.ValidateCreateExpenseBody(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	expense, created, err := s.service.CreateExpense(r.Context(), fields, idempotencyKey)
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense create error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if created {
		// New state on disk invalidates every cached list view.
		s.listCache.Clear()
		writeJSON(w, http.StatusCreated, expense)
		return
	}

	writeJSON(w, http.StatusOK, expense)
}
