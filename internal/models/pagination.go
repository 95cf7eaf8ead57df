package models

// Pagination defaults for list endpoints.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// MaxPage keeps Offset far from integer overflow.
	MaxPage = 1_000_000
)

// Page selects one slice of a listing.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps the requested page and limit to allowed values.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pagination is the metadata returned alongside a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination builds response metadata for a page of total rows.
func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}
