package core

import (
	"math"
	"strings"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// NewOrdering builds a DBOrdering from a `sort` field and an `order` ("asc" | "desc").
// Fields which are not in `allowed` fall back to `fallback`.
func NewOrdering(sort, order, fallback string, allowed ...string) DBOrdering {
	sort = CleanString(sort, true /* lower */)
	field := fallback
	for _, f := range allowed {
		if f == sort {
			field = f
			break
		}
	}
	return DBOrdering{Field: field, Ascending: !strings.EqualFold(CleanString(order), "desc")}
}

// Page holds pagination info. Page numbers start at 1.
type Page struct {
	Number int `query:"page"`
	Limit  int `query:"limit"`
}

func (p *Page) Clean() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Number > maxPageNumber {
		p.Number = maxPageNumber
	}
}

// maxPageNumber keeps Offset from overflowing.
const maxPageNumber = math.MaxInt32 / MaxPageLimit

func (p Page) Offset() int {
	if p.Number < 1 || p.Limit < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt32/p.Limit {
		return math.MaxInt32
	}
	return (p.Number - 1) * p.Limit
}

// Slice returns the [start, end) bounds of the page within `total` items.
func (p Page) Slice(total int) (start, end int) {
	start = p.Offset()
	if start > total {
		start = total
	}
	end = start + p.Limit
	if p.Limit <= 0 || end > total || end < start {
		end = total
	}
	return start, end
}
