// Package stats summarizes review progress over a set of businesses.
package stats

import (
	"math"
	"sort"

	"github.com/sells-group/locale-cli/internal/model"
)

// CategoryStats is the breakdown for one category.
type CategoryStats struct {
	Category   string `json:"category"`
	Total      int    `json:"total"`
	Visited    int    `json:"visited"`
	NotVisited int    `json:"not_visited"`
	Unreviewed int    `json:"unreviewed"`
	Percentage int    `json:"percentage"`
}

// Summary is the aggregate over all businesses. Flagged businesses are
// counted only in Flagged and are excluded from Total and Categories.
type Summary struct {
	Total      int             `json:"total"`
	Visited    int             `json:"visited"`
	NotVisited int             `json:"not_visited"`
	Unreviewed int             `json:"unreviewed"`
	Flagged    int             `json:"flagged"`
	Percentage int             `json:"percentage"`
	Categories []CategoryStats `json:"categories"`
}

// Aggregate buckets every business into exactly one of visited, not visited,
// unreviewed, or flagged. A skipped business counts as unreviewed.
func Aggregate(businesses []model.Business, visits map[int64]model.VisitStatus) Summary {
	var s Summary
	byCategory := map[string]*CategoryStats{}
	var order []string

	for _, b := range businesses {
		status, reviewed := visits[b.ID]
		if reviewed && status.IsFlagged() {
			s.Flagged++
			continue
		}

		cat, ok := byCategory[b.Category]
		if !ok {
			cat = &CategoryStats{Category: b.Category}
			byCategory[b.Category] = cat
			order = append(order, b.Category)
		}
		cat.Total++

		switch {
		case reviewed && status == model.StatusVisited:
			s.Visited++
			cat.Visited++
		case reviewed && status == model.StatusNotVisited:
			s.NotVisited++
			cat.NotVisited++
		default:
			s.Unreviewed++
			cat.Unreviewed++
		}
	}

	s.Total = len(businesses) - s.Flagged
	s.Percentage = percent(s.Visited, s.Total)

	s.Categories = make([]CategoryStats, 0, len(order))
	for _, name := range order {
		cat := byCategory[name]
		cat.Percentage = percent(cat.Visited, cat.Total)
		s.Categories = append(s.Categories, *cat)
	}
	sort.SliceStable(s.Categories, func(i, j int) bool {
		return s.Categories[i].Total > s.Categories[j].Total
	})
	return s
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
