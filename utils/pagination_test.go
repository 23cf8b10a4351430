package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest("GET", "/items?"+query, nil)
	return ctx
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query  string
		page   int
		limit  int
		offset int
	}{
		{"", 1, 10, 0},
		{"page=3&limit=20", 3, 20, 40},
		{"page=0&limit=0", 1, 10, 0},
		{"page=-4&limit=-1", 1, 10, 0},
		{"page=abc&limit=xyz", 1, 10, 0},
		{"page=2&limit=1000", 2, 100, 100},
		{"page=9223372036854775807&limit=100", MaxPage, 100, (MaxPage - 1) * 100},
	}
	for _, c := range cases {
		p := ParsePagination(contextWithQuery(c.query))
		assert.Equal(t, c.page, p.Page, c.query)
		assert.Equal(t, c.limit, p.Limit, c.query)
		assert.Equal(t, c.offset, p.Offset, c.query)
	}
}

func TestNewPageMeta(t *testing.T) {
	meta := NewPageMeta(Pagination{Page: 1, Limit: 10}, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNextPage)
	assert.False(t, meta.HasPrevPage)

	meta = NewPageMeta(Pagination{Page: 3, Limit: 10}, 25)
	assert.False(t, meta.HasNextPage)
	assert.True(t, meta.HasPrevPage)

	meta = NewPageMeta(Pagination{Page: 1, Limit: 10}, 20)
	assert.Equal(t, 2, meta.TotalPages)

	meta = NewPageMeta(Pagination{Page: 1, Limit: 10}, 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNextPage)
	assert.False(t, meta.HasPrevPage)

	meta = NewPageMeta(Pagination{Page: 5, Limit: 10}, 12)
	assert.False(t, meta.HasNextPage, "page beyond the last one")
	assert.True(t, meta.HasPrevPage)
}
