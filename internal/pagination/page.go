package pagination

import "time"

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Page is one slice of a creation-time ordered listing. NextCursor is nil on
// the last page.
type Page[T any] struct {
	Items      []T        `json:"items"`
	NextCursor *time.Time `json:"next_cursor"`
}

// Trim builds a page from up to limit+1 fetched rows. The extra row only
// signals that another page exists; the cursor is the stamp of the last
// returned item.
func Trim[T any](rows []T, limit int, stamp func(T) time.Time) Page[T] {
	if len(rows) <= limit {
		if rows == nil {
			rows = []T{}
		}
		return Page[T]{Items: rows}
	}
	items := rows[:limit]
	next := stamp(items[len(items)-1])
	return Page[T]{Items: items, NextCursor: &next}
}
