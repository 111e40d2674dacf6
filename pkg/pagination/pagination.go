package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
// Pages are 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page with the default page size.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: defaultPerPage,
		Offset:  0,
	}
}

// New normalizes page and perPage into Params. Out-of-range values fall back
// to the defaults; perPage is capped at 100.
func New(page, perPage int) Params {
	p := DefaultParams()
	if page > 0 {
		p.Page = page
	}
	if perPage > 0 {
		p.PerPage = min(perPage, maxPerPage)
	}
	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// FromRequest extracts pagination parameters from an HTTP request. The
// boolean reports whether the client asked for paging at all.
func FromRequest(r *http.Request) (Params, bool) {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("per_page") {
		return DefaultParams(), false
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return New(page, perPage), true
}
