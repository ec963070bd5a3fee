package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force in-memory Index using cosine similarity.
// It backs tests and single-process development; production uses Postgres.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	seq     uint64
}

type memoryEntry struct {
	vector []float32
	title  string
	// seq records upsert recency for deterministic tie-breaking.
	seq uint64
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

// Upsert replaces any existing entry for entry.DocumentID.
func (m *Memory) Upsert(_ context.Context, entry Entry) error {
	vec := make([]float32, len(entry.Vector))
	copy(vec, entry.Vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.entries[entry.DocumentID] = &memoryEntry{vector: vec, title: entry.Title, seq: m.seq}
	return nil
}

// Query returns the k most similar entries ordered by cosine similarity
// descending, ties broken by most recent upsert, then id descending.
func (m *Memory) Query(_ context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		Match
		seq uint64
	}

	results := make([]scored, 0, len(m.entries))
	for id, e := range m.entries {
		results = append(results, scored{
			Match: Match{DocumentID: id, Score: cosine(vector, e.vector), Title: e.title},
			seq:   e.seq,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].seq != results[j].seq {
			return results[i].seq > results[j].seq
		}
		return results[i].DocumentID > results[j].DocumentID
	})

	if k > len(results) {
		k = len(results)
	}

	matches := make([]Match, k)
	for i := range matches {
		matches[i] = results[i].Match
	}
	return matches, nil
}

// Remove deletes the entry for documentID. Absent ids are a no-op.
func (m *Memory) Remove(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, documentID)
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cosine computes cosine similarity between a and b.
// Returns 0 for zero-length or zero-magnitude vectors.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
