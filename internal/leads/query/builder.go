// Package query turns list parameters into a storage-agnostic list specification.
package query

import (
	"fmt"
	"strings"

	"leadtracker_backend/platform/apperr"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortField names a sortable lead attribute.
type SortField string

const (
	SortName          SortField = "name"
	SortCompany       SortField = "company"
	SortCurrentStage  SortField = "current_stage"
	SortLastContacted SortField = "last_contacted"
	SortCreatedAt     SortField = "created_at"
)

var sortFields = map[SortField]struct{}{
	SortName:          {},
	SortCompany:       {},
	SortCurrentStage:  {},
	SortLastContacted: {},
	SortCreatedAt:     {},
}

// SortFields lists every accepted sort field.
func SortFields() []SortField {
	return []SortField{SortName, SortCompany, SortCurrentStage, SortLastContacted, SortCreatedAt}
}

// Params is what a caller may ask of a lead listing. Zero values select the
// defaults: first page, ten per page, newest first, no search. Skip, when
// set, takes precedence over Page.
type Params struct {
	Page     int
	PageSize int
	Skip     *int
	SortBy   string
	SortDesc *bool
	Search   string
}

// Filter restricts which leads match. An empty Search matches everything.
type Filter struct {
	Search string
}

// Sort orders the matching leads.
type Sort struct {
	Field SortField
	Desc  bool
}

// Spec is the complete, validated description of one page of leads.
type Spec struct {
	Filter Filter
	Sort   Sort
	Skip   int
	Limit  int
}

// Page is the 1-based page Spec starts on.
func (s Spec) Page() int {
	if s.Limit <= 0 {
		return 1
	}
	return s.Skip/s.Limit + 1
}

// Build validates params and fills in defaults.
func Build(params Params) (Spec, error) {
	pageSize := params.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return Spec{}, apperr.Validation(fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize))
	}

	var skip int
	switch {
	case params.Skip != nil:
		if *params.Skip < 0 {
			return Spec{}, apperr.Validation("skip must not be negative")
		}
		skip = *params.Skip
	default:
		page := params.Page
		if page == 0 {
			page = 1
		}
		if page < 1 {
			return Spec{}, apperr.Validation("page must be at least 1")
		}
		skip = (page - 1) * pageSize
	}

	field := SortField(strings.TrimSpace(params.SortBy))
	if field == "" {
		field = SortCreatedAt
	}
	if _, ok := sortFields[field]; !ok {
		return Spec{}, apperr.Validation(fmt.Sprintf("cannot sort by %q", params.SortBy))
	}

	desc := true
	if params.SortDesc != nil {
		desc = *params.SortDesc
	}

	return Spec{
		Filter: NewFilter(params.Search),
		Sort:   Sort{Field: field, Desc: desc},
		Skip:   skip,
		Limit:  pageSize,
	}, nil
}

// NewFilter normalizes a free-text search term.
func NewFilter(search string) Filter {
	return Filter{Search: strings.TrimSpace(search)}
}

// IsEmpty reports whether the filter matches every lead.
func (f Filter) IsEmpty() bool {
	return f.Search == ""
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern is the search term as a substring pattern with LIKE
// wildcards in the term itself escaped.
func (f Filter) LikePattern() string {
	return "%" + likeEscaper.Replace(f.Search) + "%"
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
