package core

import "sort"

type (
	CategoryAmount struct {
		Name   string
		Amount Money
	}

	// Overview aggregates a set of expenses for the dashboard.
	Overview struct {
		Total      Money
		Count      int
		ByCategory []CategoryAmount
	}
)

// Summarize totals expenses per category, largest first. Ties are ordered by
// category name so the result is stable.
func Summarize(expenses []Expense) Overview {
	var ov Overview
	sums := make(map[string]Money)
	for _, e := range expenses {
		ov.Total = ov.Total.Add(e.Amount)
		sums[e.Category] = sums[e.Category].Add(e.Amount)
	}
	ov.Count = len(expenses)

	for name, amount := range sums {
		ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		if c := ov.ByCategory[i].Amount.Cmp(ov.ByCategory[j].Amount); c != 0 {
			return c > 0
		}
		return ov.ByCategory[i].Name < ov.ByCategory[j].Name
	})
	return ov
}

// Categories returns the distinct categories of expenses in ascending order.
func Categories(expenses []Expense) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range expenses {
		if e.Category == "" {
			continue
		}
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	sort.Strings(out)
	return out
}
