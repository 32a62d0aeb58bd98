// Package filter narrows a business list by review status, category, and a
// free-text search.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/locale-cli/internal/category"
	"github.com/sells-group/locale-cli/internal/model"
)

// Criteria is ANDed together. Empty fields do not constrain.
type Criteria struct {
	Statuses    []model.StatusGroup `json:"statuses,omitempty"`
	Categories  []string            `json:"categories,omitempty"`
	SearchQuery string              `json:"q,omitempty"`
}

// Apply returns the businesses matching c in their original order.
// visits maps business ID to status; a missing entry means unreviewed.
func Apply(businesses []model.Business, visits map[int64]model.VisitStatus, c Criteria) []model.Business {
	var fold cases.Caser
	var query string
	if c.SearchQuery != "" {
		fold = cases.Fold()
		query = fold.String(c.SearchQuery)
	}

	out := make([]model.Business, 0, len(businesses))
	for _, b := range businesses {
		status, reviewed := visits[b.ID]
		if !matchStatus(c.Statuses, status, reviewed) {
			continue
		}
		if len(c.Categories) > 0 && !contains(c.Categories, b.Category) {
			continue
		}
		if query != "" && !matchSearch(fold, query, b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matchStatus(groups []model.StatusGroup, status model.VisitStatus, reviewed bool) bool {
	if len(groups) == 0 {
		return true
	}
	g, ok := model.GroupOf(status, reviewed)
	if !ok {
		return false
	}
	for _, want := range groups {
		if want == g {
			return true
		}
	}
	return false
}

func matchSearch(fold cases.Caser, query string, b model.Business) bool {
	for _, field := range []string{
		category.DisplayName(b.Name, b.Subcategory),
		b.Subcategory,
		b.AddressOrEmpty(),
	} {
		if strings.Contains(fold.String(field), query) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatusGroups parses comma-separated group names. Blank input yields nil.
func ParseStatusGroups(s string) ([]model.StatusGroup, error) {
	var out []model.StatusGroup
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		g, err := model.ParseStatusGroup(part)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// ParseCategories splits a comma-separated category list. Blank input yields nil.
func ParseCategories(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
