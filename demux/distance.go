package demux

// Levenshtein returns the edit distance between two barcode sequences:
// the number of substitutions, insertions, and deletions needed to turn
// one into the other.  The index tools use it to decide whether an
// observed sequence plausibly originated from a known barcode; unlike the
// per-cluster matcher it tolerates length drift from indel sequencing
// errors.
func Levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			v := prev[j-1] + cost // substitution or match
			if d := prev[j] + 1; d < v { // deletion from a
				v = d
			}
			if d := cur[j-1] + 1; d < v { // insertion into a
				v = d
			}
			cur[j] = v
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
