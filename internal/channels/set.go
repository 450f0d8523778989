package channels

import "sort"

// Set is a set of channel group base names.
type Set map[string]struct{}

// NewSet returns a set holding names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name.
func (s Set) Add(name string) { s[name] = struct{}{} }

// Has reports whether name is a member.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// minus returns the members of s not present in any of others.
func (s Set) minus(others ...Set) Set {
	out := make(Set, len(s))
	for n := range s {
		excluded := false
		for _, o := range others {
			if o.Has(n) {
				excluded = true
				break
			}
		}
		if !excluded {
			out.Add(n)
		}
	}
	return out
}
