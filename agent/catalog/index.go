package catalog

import (
	"sort"
	"sync"

	contractx "github.com/tanpawarit/Chative-Voice-Commerce/agent/contract"
)

type indexEntry struct {
	candidate contractx.Candidate
	vector    []float64
}

// Index is an in-memory nearest-neighbour store over product embeddings.
type Index struct {
	mu      sync.RWMutex
	entries []indexEntry
}

func NewIndex() *Index {
	return &Index{}
}

// Replace swaps the whole index. Candidates and vectors must line up.
func (x *Index) Replace(candidates []contractx.Candidate, vectors [][]float64) int {
	n := min(len(candidates), len(vectors))
	entries := make([]indexEntry, 0, n)
	for i := 0; i < n; i++ {
		if len(vectors[i]) == 0 {
			continue
		}
		entries = append(entries, indexEntry{candidate: candidates[i], vector: vectors[i]})
	}

	x.mu.Lock()
	x.entries = entries
	x.mu.Unlock()
	return len(entries)
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Query returns at most limit candidates scoring at or above threshold,
// best first with 1-based ranks.
func (x *Index) Query(vector []float64, limit int, threshold float64) []contractx.Candidate {
	if limit <= 0 || len(vector) == 0 {
		return nil
	}

	x.mu.RLock()
	hits := make([]contractx.Candidate, 0, len(x.entries))
	for _, e := range x.entries {
		if len(e.vector) != len(vector) {
			continue
		}
		score := similarity(vector, e.vector)
		if score < threshold {
			continue
		}
		c := e.candidate
		c.Score = score
		hits = append(hits, c)
	}
	x.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}

// similarity maps squared L2 distance into (0, 1].
func similarity(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return 1 / (1 + d)
}
