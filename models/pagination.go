package models

import "math"

// Pagination is the block returned alongside every paged list. Pages are 1-indexed.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Skip is the number of items before page, saturating at math.MaxInt for
// pages too far out to address.
func (p Pagination) Skip() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Page is one slice of a filtered result set.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Paginate slices items for page/limit after all filtering has been applied.
// Out-of-range pages yield an empty, non-nil slice.
func Paginate[T any](items []T, page, limit int) Page[T] {
	p := NewPagination(page, limit, int64(len(items)))
	start := min(p.Skip(), len(items))
	end := start + min(max(limit, 0), len(items)-start)
	data := make([]T, end-start)
	copy(data, items[start:end])
	return Page[T]{Data: data, Pagination: p}
}
