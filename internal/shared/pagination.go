package shared

import (
	"net/http"
	"strconv"
)

// Page holds limit/offset bounds for listing queries.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit/offset query parameters, clamping to sane bounds.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) Page {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return Page{Limit: limit, Offset: offset}
}
