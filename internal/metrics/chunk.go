package metrics

// MaxBatchSize is the PutMetricData per-call datum limit.
const MaxBatchSize = 20

// Chunk splits items into contiguous groups of at most size elements.
// The last group may be shorter; empty input yields no groups.
// A non-positive size falls back to MaxBatchSize.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = MaxBatchSize
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}
