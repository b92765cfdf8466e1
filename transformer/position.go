package transformer

// PositionIDs returns the integer positions 0..seqLen-1 for one sequence.
// The embedding layer shares it across every example in a batch.
func PositionIDs(seqLen int) []int {
	ids := make([]int, seqLen)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
