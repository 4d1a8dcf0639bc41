package reconcile

import "sort"

type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, item := range items {
		s.add(item)
	}
	return s
}

func (s set) add(item string) {
	s[item] = struct{}{}
}

func (s set) has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s set) union(o set) set {
	out := make(set, len(s)+len(o))
	for k := range s {
		out.add(k)
	}
	for k := range o {
		out.add(k)
	}
	return out
}

func (s set) minus(o set) set {
	out := make(set)
	for k := range s {
		if !o.has(k) {
			out.add(k)
		}
	}
	return out
}

func (s set) intersect(o set) set {
	out := make(set)
	for k := range s {
		if o.has(k) {
			out.add(k)
		}
	}
	return out
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
