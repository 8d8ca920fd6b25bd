// Package domain provides shared types for domain services.
package domain

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// OrderBy specifies sorting (e.g., "received_date", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit: 50,
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
