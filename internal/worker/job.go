package worker

import "context"

// Job is one chunk of a batch waiting for a browser slot
type Job struct {
	JobID string
	Chunk int
	Size  int

	// Run drives the chunk to completion. It must not block past ctx.
	Run func(ctx context.Context)
}
