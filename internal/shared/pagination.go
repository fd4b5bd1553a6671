package shared

import "math"

// DefaultPageLimit applies when a listing omits its page size.
const DefaultPageLimit = 20

// Page is the requested slice of a listing.
type Page struct {
	Page  int
	Limit int
}

// Normalize fills defaults for zero or negative values.
func (p Page) Normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page Page, total int) Pagination {
	page = page.Normalize()
	totalPages := int(math.Ceil(float64(total) / float64(page.Limit)))
	return Pagination{Page: page.Page, Limit: page.Limit, Total: total, TotalPages: totalPages}
}
