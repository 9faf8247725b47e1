package models

// Page is a slice of results plus the total matching row count.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

// TotalPages rounds Total up to whole pages of Limit.
func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
