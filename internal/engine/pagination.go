package engine

// DefaultPageLimit is used when a list call passes a non-positive limit.
const DefaultPageLimit = 20

// Pagination describes one page of a list result. The same contract applies
// to every list operation in the engine.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// normalizePage clamps page/limit to sane values: page >= 1, limit >= 1.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return page, limit
}

// paginate slices one page out of items and builds the pagination envelope.
func paginate[T any](items []T, page, limit int) ([]T, Pagination) {
	page, limit = normalizePage(page, limit)
	total := len(items)

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	out := make([]T, end-start)
	copy(out, items[start:end])

	return out, Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNext:      page*limit < total,
		HasPrev:      page > 1,
	}
}
