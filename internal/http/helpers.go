package http

import (
	"net/http"
	"strings"

	"spendlog/internal/core"
)

// extractClientIP resolves the client address, honoring proxy headers.
func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// First hop is the original client.
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func listOptionsFromQuery(r *http.Request) core.ListOptions {
	q := r.URL.Query()
	return core.ListOptions{
		Category: strings.TrimSpace(q.Get("category")),
		Sort:     core.ParseSortOption(q.Get("sort")),
	}
}

func listCacheKey(opts core.ListOptions) string {
	return strings.ToLower(opts.Category) + "|" + string(opts.Sort)
}
