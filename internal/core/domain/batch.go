package domain

import "time"

// DefaultBatchSize is how many UKPRNs a single queued batch carries.
const DefaultBatchSize = 100

// StagingBatch is the payload of one queued unit of cache work: a slice of
// provider identities staged under a single point in time.
type StagingBatch struct {
	UKPRNs      []int64   `json:"ukprns"`
	PointInTime time.Time `json:"point_in_time"`
}

// Partition splits ids into consecutive chunks of at most size elements.
// The final chunk holds the remainder. A non-positive size falls back to
// DefaultBatchSize. Partition never returns an empty chunk.
func Partition(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]int64
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}
