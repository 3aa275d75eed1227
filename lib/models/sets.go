package models

import "slices"

// Set helpers over string slices. Results are sorted so messages and stored rows are stable.

func SameSet(a, b []string) bool {
	return slices.Equal(Uniq(a), Uniq(b))
}

func Uniq(a []string) []string {
	out := slices.Clone(a)
	slices.Sort(out)
	return slices.Compact(out)
}

func Intersect(a, b []string) []string {
	out := []string{}
	for _, s := range Uniq(a) {
		if slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}

// Difference returns the members of a missing from b.
func Difference(a, b []string) []string {
	out := []string{}
	for _, s := range Uniq(a) {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
