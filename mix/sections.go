package mix

import "slices"

// SectionFrames is the default granularity of dirty tracking, in frames.
const SectionFrames = 32768

// sections is a set of section indices of one track.
type sections map[int]struct{}

// mark adds all sections overlapping the frame range [start, end).
func (s sections) mark(start, end, size int) {
	if end <= start || end <= 0 {
		return
	}
	for i := max(start, 0) / size; i <= (end-1)/size; i++ {
		s[i] = struct{}{}
	}
}

// overlaps reports whether any section overlapping [start, end) is in the set.
func (s sections) overlaps(start, end, size int) bool {
	if end <= start || end <= 0 {
		return false
	}
	for i := max(start, 0) / size; i <= (end-1)/size; i++ {
		if _, ok := s[i]; ok {
			return true
		}
	}
	return false
}

// runs returns the sections as sorted, coalesced half-open index ranges.
func (s sections) runs() [][2]int {
	idx := make([]int, 0, len(s))
	for i := range s {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	var ret [][2]int
	for _, i := range idx {
		if n := len(ret); n > 0 && ret[n-1][1] == i {
			ret[n-1][1] = i + 1
			continue
		}
		ret = append(ret, [2]int{i, i + 1})
	}
	return ret
}
