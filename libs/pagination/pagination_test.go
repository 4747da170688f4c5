package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromQuery(t *testing.T) {
	cases := []struct {
		query string
		want  Page
	}{
		{"", Page{Page: 1, PageSize: 20}},
		{"page=3&page_size=10", Page{Page: 3, PageSize: 10}},
		{"page=0&page_size=1000", Page{Page: 1, PageSize: MaxPageSize}},
		{"page=-2&page_size=0", Page{Page: 1, PageSize: 1}},
		{"page=abc", Page{Page: 1, PageSize: 20}},
	}
	for _, tc := range cases {
		q, _ := url.ParseQuery(tc.query)
		assert.Equal(t, tc.want, FromQuery(q), tc.query)
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Page{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Page{Page: 3, PageSize: 20}.Offset())
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 21, Page{Page: 2, PageSize: 10})
	assert.Equal(t, 2, r.Count)
	assert.EqualValues(t, 3, r.PageCount)
	assert.Equal(t, 2, r.Page)

	empty := NewResponse[string](nil, 0, Page{Page: 1, PageSize: 20})
	assert.NotNil(t, empty.Data)
	assert.Zero(t, empty.PageCount)
}
