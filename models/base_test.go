package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationQueryNormalize(t *testing.T) {
	cases := []struct {
		name     string
		query    PaginationQuery
		wantPage int
		wantSize int
	}{
		{"默认值", PaginationQuery{}, 1, 20},
		{"合法参数原样保留", PaginationQuery{Page: 3, PageSize: 50}, 3, 50},
		{"页码下限", PaginationQuery{Page: -1, PageSize: 10}, 1, 10},
		{"每页条数上限", PaginationQuery{Page: 2, PageSize: 500}, 2, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.query.Normalize(20)
			assert.Equal(t, tc.wantPage, tc.query.Page)
			assert.Equal(t, tc.wantSize, tc.query.PageSize)
		})
	}
}

func TestNewPaginationResult(t *testing.T) {
	result := NewPaginationResult(42, 2, 20)
	assert.Equal(t, PaginationResult{Total: 42, Page: 2, PageSize: 20}, result)
}
