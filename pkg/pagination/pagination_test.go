package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest_NotRequested(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	p, ok := FromRequest(req)

	assert.False(t, ok)
	assert.Equal(t, DefaultParams(), p)
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"page=3&per_page=10", 3, 10, 20},
		{"page=2", 2, 20, 20},
		{"per_page=5", 1, 5, 0},
		{"page=0&per_page=10", 1, 10, 0},
		{"page=-4", 1, 20, 0},
		{"page=abc&per_page=xyz", 1, 20, 0},
		{"per_page=500", 1, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/items?"+tt.query, nil)
			p, ok := FromRequest(req)

			assert.True(t, ok)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}
