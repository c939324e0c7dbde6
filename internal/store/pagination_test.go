package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	page := Paginate(items, 2, 2)
	assert.Equal(t, []string{"c", "d"}, page.Items)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)

	page = Paginate(items, 9, 2)
	assert.Empty(t, page.Items)

	page = Paginate(items, 1<<62, 100)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)

	page = Paginate(items, 0, 0)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.Items, 5)
}

func TestPaginateAfterWalksAllItems(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	self := func(s string) string { return s }

	var seen []string
	cursor := ""
	for {
		page, err := PaginateAfter(items, self, cursor, 2)
		require.NoError(t, err)
		seen = append(seen, page.Items...)
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, items, seen)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.Error(t, err)
}
