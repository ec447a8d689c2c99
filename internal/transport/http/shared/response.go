package shared

import (
	"net/http"
	"strconv"

	"icegrid/internal/transport/http/json"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Pagination carries the page window of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ParsePagination reads page/page_size query parameters, clamping them to
// sane bounds. Invalid values fall back to defaults rather than erroring.
func ParsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		pageSize = min(v, maxPageSize)
	}
	return page, pageSize
}

// NewPagination computes the page descriptor for a total row count.
func NewPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

// WriteData writes a success envelope around a single payload.
func WriteData(w http.ResponseWriter, status int, data any) {
	json.WriteJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

// WriteList writes a success envelope around a paginated collection.
func WriteList(w http.ResponseWriter, data any, p Pagination) {
	json.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       data,
		"pagination": p,
	})
}
