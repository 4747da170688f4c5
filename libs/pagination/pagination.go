// Package pagination parses page/page_size query parameters and shapes
// paginated list responses.
package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Page     int
	PageSize int
}

// FromQuery reads page and page_size. Missing or unparsable values fall back
// to the defaults; the result is normalized.
func FromQuery(q url.Values) Page {
	p := Page{Page: DefaultPage, PageSize: DefaultPageSize}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil {
		p.PageSize = v
	}
	return p.Normalize()
}

func (p Page) Normalize() Page {
	p.Page = max(p.Page, 1)
	p.PageSize = min(max(p.PageSize, 1), MaxPageSize)
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

func (p Page) Limit() int { return p.PageSize }

type Response[T any] struct {
	Data      []T   `json:"data"`
	Count     int   `json:"count"`
	Total     int64 `json:"total"`
	Page      int   `json:"page"`
	PageCount int64 `json:"page_count"`
}

func NewResponse[T any](data []T, total int64, p Page) Response[T] {
	if data == nil {
		data = []T{}
	}
	size := int64(p.PageSize)
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return Response[T]{
		Data:      data,
		Count:     len(data),
		Total:     total,
		Page:      p.Page,
		PageCount: pages,
	}
}
