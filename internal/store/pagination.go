package store

import (
	"encoding/base64"
	"encoding/json"
	"sort"
)

type OffsetPage[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

type CursorPage[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

const MaxPageSize = 100

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return 20
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}

// Paginate slices an in-memory result. Page numbers start at 1.
func Paginate[T any](items []T, page, pageSize int) OffsetPage[T] {
	pageSize = clampPageSize(pageSize)
	if page < 1 {
		page = 1
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize

	// Pages past the end are empty; checking first keeps the offset from
	// overflowing on huge page numbers.
	start := total
	if page <= totalPages {
		start = (page - 1) * pageSize
	}
	end := min(start+pageSize, total)

	return OffsetPage[T]{
		Items:      append([]T{}, items[start:end]...),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

type IDCursor struct {
	AfterID string `json:"after_id"`
}

func EncodeCursor(cursor IDCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func DecodeCursor(encoded string) (IDCursor, error) {
	var cursor IDCursor
	if encoded == "" {
		return cursor, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, err
	}

	err = json.Unmarshal(data, &cursor)
	return cursor, err
}

// PaginateAfter returns up to pageSize items whose id sorts after the cursor.
// items must be sorted by id.
func PaginateAfter[T any](items []T, id func(T) string, encoded string, pageSize int) (CursorPage[T], error) {
	cursor, err := DecodeCursor(encoded)
	if err != nil {
		return CursorPage[T]{}, err
	}
	pageSize = clampPageSize(pageSize)

	start := 0
	if cursor.AfterID != "" {
		start = sort.Search(len(items), func(i int) bool { return id(items[i]) > cursor.AfterID })
	}
	end := min(start+pageSize, len(items))

	page := CursorPage[T]{
		Items:   append([]T{}, items[start:end]...),
		HasMore: end < len(items),
	}
	if page.HasMore && end > start {
		page.NextCursor = EncodeCursor(IDCursor{AfterID: id(items[end-1])})
	}
	return page, nil
}
