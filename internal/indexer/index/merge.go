package index

// IntersectSorted merges two strictly ascending lists and returns the ids
// present in both, ascending. It walks each list once with its own cursor
// and stops as soon as either is exhausted.
func IntersectSorted(a, b PostingList) PostingList {
	out := make(PostingList, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
