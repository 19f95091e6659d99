package service

import "github.com/dandantas/tasyrunner/internal/model"

// SplitChunks cuts items into n contiguous slices of nearly equal size.
// Boundaries fall on the truncated multiples of len(items)/n, so sizes can
// differ by one and some slices are empty when len(items) < n. Every item
// lands in exactly one slice, in input order.
func SplitChunks(items []model.WorkItem, n int) [][]model.WorkItem {
	if n < 1 {
		n = 1
	}
	if len(items) == 0 {
		return nil
	}

	avg := float64(len(items)) / float64(n)
	chunks := make([][]model.WorkItem, 0, n)

	for i := 0; i < n; i++ {
		start := int(float64(i) * avg)
		end := int(float64(i+1) * avg)
		if i == n-1 || end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
