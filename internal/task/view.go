package task

import (
	"fmt"
	"slices"
	"strings"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterHigh      Filter = "high"
	FilterMedium    Filter = "medium"
	FilterLow       Filter = "low"
	FilterRecurring Filter = "recurring"
)

var filters = []Filter{FilterAll, FilterActive, FilterCompleted, FilterHigh, FilterMedium, FilterLow, FilterRecurring}

type Sort string

const (
	SortNewest       Sort = "newest"
	SortOldest       Sort = "oldest"
	SortDue          Sort = "due"
	SortPriority     Sort = "priority"
	SortAlphabetical Sort = "alphabetical"
)

var sorts = []Sort{SortNewest, SortOldest, SortDue, SortPriority, SortAlphabetical}

func ParseFilter(v string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(v)))
	if f == "" {
		return FilterAll, nil
	}
	if !slices.Contains(filters, f) {
		return "", fmt.Errorf("unknown filter %q", v)
	}
	return f, nil
}

func ParseSort(v string) (Sort, error) {
	s := Sort(strings.ToLower(strings.TrimSpace(v)))
	if s == "" {
		return SortNewest, nil
	}
	if !slices.Contains(sorts, s) {
		return "", fmt.Errorf("unknown sort %q", v)
	}
	return s, nil
}

// Next cycles through the filters in display order.
func (f Filter) Next() Filter {
	i := slices.Index(filters, f)
	return filters[(i+1)%len(filters)]
}

func (s Sort) Next() Sort {
	i := slices.Index(sorts, s)
	return sorts[(i+1)%len(sorts)]
}

func (f Filter) Match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	case FilterHigh:
		return t.Priority == PriorityHigh
	case FilterMedium:
		return t.Priority == PriorityMedium
	case FilterLow:
		return t.Priority == PriorityLow
	case FilterRecurring:
		return t.IsRecurring()
	default:
		return true
	}
}

// Apply returns a filtered, sorted copy of tasks. Ties keep their input order.
func Apply(tasks []Task, f Filter, s Sort) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, compareBy(s))
	return out
}

func compareBy(s Sort) func(a, b Task) int {
	switch s {
	case SortOldest:
		return func(a, b Task) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortDue:
		return func(a, b Task) int {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			case a.DueDate.Before(*b.DueDate):
				return -1
			case b.DueDate.Before(*a.DueDate):
				return 1
			}
			return 0
		}
	case SortPriority:
		return func(a, b Task) int { return b.Priority.Rank() - a.Priority.Rank() }
	case SortAlphabetical:
		return func(a, b Task) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	default:
		return func(a, b Task) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Active    int `json:"active"`
	Recurring int `json:"recurring"`
}

func Summarize(tasks []Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		} else {
			s.Active++
		}
		if t.IsRecurring() {
			s.Recurring++
		}
	}
	return s
}
