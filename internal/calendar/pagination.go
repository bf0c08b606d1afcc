package calendar

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Page is one page of items plus navigation metadata.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"` // 1-based
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"`
}

// NormalizePage applies defaults to page/pageSize and returns the offset for
// a limit/offset query.
func NormalizePage(page, pageSize int) (int, int, int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return page, pageSize, (page - 1) * pageSize
}

// Paginate slices items for the given page. Invalid values fall back to
// defaults.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	page, pageSize, start := NormalizePage(page, pageSize)
	total := len(items)

	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}

// PageOf wraps an already-sliced result of a limit/offset query.
func PageOf[T any](items []T, total int64, page, pageSize int) Page[T] {
	page, pageSize, offset := NormalizePage(page, pageSize)
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  int64(offset+len(items)) < total,
		HasPrev:  page > 1,
		Total:    int(total),
	}
}
