package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"spendlog/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

type expenseListResponse struct {
	Expenses []core.Expense `json:"expenses"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Response encoding failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeExpenseList wraps the items so an empty result serializes as
// {"expenses": []} rather than a null array.
func writeExpenseList(w http.ResponseWriter, items []core.Expense) {
	if items == nil {
		items = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenseListResponse{Expenses: items})
}
