package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Scope is an immutable set of variable indices, kept sorted ascending.
// A Scope identifies the random variables a region (or partition) covers.
//
// Scopes are value objects: all operations return new scopes and never
// mutate the receiver. Callers must not modify the backing slice.
type Scope []int

// NewScope builds a scope from the given variable indices.
// Duplicates are removed and the result is sorted.
func NewScope(vars ...int) Scope {
	if len(vars) == 0 {
		return Scope{}
	}
	seen := make(map[int]bool, len(vars))
	out := make([]int, 0, len(vars))
	for _, v := range vars {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return Scope(out)
}

// Range returns the scope {0, 1, ..., n-1}.
func Range(n int) Scope {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return Scope(out)
}

// Len returns the number of variables in the scope.
func (s Scope) Len() int { return len(s) }

// IsEmpty reports whether the scope covers no variables.
func (s Scope) IsEmpty() bool { return len(s) == 0 }

// Contains reports whether v is in the scope.
func (s Scope) Contains(v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

// Equal reports whether two scopes cover exactly the same variables.
func (s Scope) Equal(other Scope) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every variable of s is in other.
func (s Scope) SubsetOf(other Scope) bool {
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			i++
			j++
		case s[i] > other[j]:
			j++
		default:
			return false
		}
	}
	return i == len(s)
}

// Disjoint reports whether the two scopes share no variable.
func (s Scope) Disjoint(other Scope) bool {
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			return false
		case s[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return true
}

// Union returns the merged scope of s and other.
func (s Scope) Union(other Scope) Scope {
	out := make([]int, 0, len(s)+len(other))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			out = append(out, s[i])
			i++
			j++
		case s[i] < other[j]:
			out = append(out, s[i])
			i++
		default:
			out = append(out, other[j])
			j++
		}
	}
	out = append(out, s[i:]...)
	out = append(out, other[j:]...)
	return Scope(out)
}

// Intersect returns the variables shared by s and other.
func (s Scope) Intersect(other Scope) Scope {
	out := make([]int, 0, len(s))
	for _, v := range s {
		if other.Contains(v) {
			out = append(out, v)
		}
	}
	return Scope(out)
}

// Difference returns the variables of s that are not in other.
func (s Scope) Difference(other Scope) Scope {
	out := make([]int, 0, len(s))
	for _, v := range s {
		if !other.Contains(v) {
			out = append(out, v)
		}
	}
	return Scope(out)
}

// Compare defines the total order used for topological layering:
// smaller scopes sort first, ties break on the sorted variable tuple.
// Cardinality comes first so that a proper subset always sorts strictly
// before any of its supersets, which is what makes the node order a
// valid topological order for region-to-partition edges.
func (s Scope) Compare(other Scope) int {
	if len(s) != len(other) {
		if len(s) < len(other) {
			return -1
		}
		return 1
	}
	for i := range s {
		if s[i] != other[i] {
			if s[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the scope as "{0, 1, 4}".
func (s Scope) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
