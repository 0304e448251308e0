// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the number of rows in one page of a list.
const PageSize = 50

// LimitPlusOne is the fetch size for look-ahead paging: one row past the
// page tells whether another page exists.
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// ParseStart reads the 1-based "start" query parameter, defaulting to 1.
func ParseStart(r *http.Request) int {
	n, err := strconv.Atoi(query.Get(r, "start"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Offset converts a 1-based start to a skip count.
func Offset(start int) int64 {
	if start < 1 {
		return 0
	}
	return int64(start - 1)
}

// Page describes one page of an offset-paged list.
type Page struct {
	Start     int  `json:"start"`
	End       int  `json:"end"`
	HasPrev   bool `json:"has_prev"`
	HasNext   bool `json:"has_next"`
	PrevStart int  `json:"prev_start,omitempty"`
	NextStart int  `json:"next_start,omitempty"`
}

// Trim cuts rows fetched with LimitPlusOne down to PageSize and describes
// the resulting page.
func Trim[T any](rows *[]T, start int) Page {
	if start < 1 {
		start = 1
	}
	hasNext := false
	if len(*rows) > PageSize {
		*rows = (*rows)[:PageSize]
		hasNext = true
	}
	shown := len(*rows)

	p := Page{HasPrev: start > 1, HasNext: hasNext}
	if shown > 0 {
		p.Start = start
		p.End = start + shown - 1
	}
	if p.HasPrev {
		p.PrevStart = max(start-PageSize, 1)
	}
	if p.HasNext {
		p.NextStart = start + shown
	}
	return p
}
