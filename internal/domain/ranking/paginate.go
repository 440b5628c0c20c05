package ranking

// Page-size bounds and the backward-compatible default.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination describes one page of a ranking.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ClampPage floors page to 1 and bounds pageSize to [1, MaxPageSize].
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// paginate slices rows for the requested page. page and pageSize must already
// be clamped. Pages past the end yield no rows.
func paginate(rows []Row, page, pageSize int) ([]Row, Pagination) {
	total := len(rows)
	p := Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	p.HasNext = page < p.TotalPages
	p.HasPrev = page > 1

	if page > p.TotalPages {
		return []Row{}, p
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	return rows[start:end], p
}
