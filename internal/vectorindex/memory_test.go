package vectorindex

import (
	"context"
	"testing"
)

func TestMemory_QueryOrdering(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	entries := []Entry{
		{DocumentID: "a", Vector: []float32{1, 0, 0}, Title: "exact"},
		{DocumentID: "b", Vector: []float32{0.9, 0.1, 0}, Title: "close"},
		{DocumentID: "c", Vector: []float32{0, 1, 0}, Title: "orthogonal"},
	}
	for _, e := range entries {
		if err := idx.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) error: %v", e.DocumentID, err)
		}
	}

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	got := make([]string, len(matches))
	for i, m := range matches {
		got[i] = m.DocumentID
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Query() order = %v, want %v", got, want)
		}
	}

	if matches[0].Score <= matches[1].Score {
		t.Errorf("scores not descending: %v", matches)
	}
}

func TestMemory_UpsertIdempotent(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	e := Entry{DocumentID: "a", Vector: []float32{1, 0}, Title: "doc"}
	if err := idx.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}
	if err := idx.Upsert(ctx, e); err != nil {
		t.Fatalf("second Upsert() error: %v", err)
	}

	if idx.Len() != 1 {
		t.Errorf("Len() = %d after double upsert, want 1", idx.Len())
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(matches) != 1 || matches[0].DocumentID != "a" {
		t.Errorf("Query() = %v, want single match for a", matches)
	}
}

func TestMemory_UpsertReplaces(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	_ = idx.Upsert(ctx, Entry{DocumentID: "a", Vector: []float32{1, 0}, Title: "old"})
	_ = idx.Upsert(ctx, Entry{DocumentID: "a", Vector: []float32{0, 1}, Title: "new"})

	matches, err := idx.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if matches[0].Title != "new" {
		t.Errorf("Upsert did not replace entry: %+v", matches[0])
	}
	if matches[0].Score < 0.99 {
		t.Errorf("replaced vector not used: score = %f", matches[0].Score)
	}
}

func TestMemory_RemoveExcludesFromQuery(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()

	_ = idx.Upsert(ctx, Entry{DocumentID: "a", Vector: []float32{1, 0}})
	_ = idx.Upsert(ctx, Entry{DocumentID: "b", Vector: []float32{1, 0}})

	if err := idx.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	for _, m := range matches {
		if m.DocumentID == "a" {
			t.Error("removed entry still returned by Query")
		}
	}
}

func TestMemory_RemoveAbsentIsNoop(t *testing.T) {
	idx := NewMemory()
	if err := idx.Remove(context.Background(), "ghost"); err != nil {
		t.Errorf("Remove(absent) error: %v", err)
	}
}

func TestMemory_QueryInvalidK(t *testing.T) {
	idx := NewMemory()

	for _, k := range []int{0, -1} {
		if _, err := idx.Query(context.Background(), []float32{1}, k); err == nil {
			t.Errorf("Query(k=%d) expected error", k)
		}
	}
}

func TestMemory_TieBreakDeterministic(t *testing.T) {
	ctx := context.Background()

	// Identical vectors: most recent upsert wins, repeatably.
	for range 5 {
		idx := NewMemory()
		_ = idx.Upsert(ctx, Entry{DocumentID: "first", Vector: []float32{1, 0}})
		_ = idx.Upsert(ctx, Entry{DocumentID: "second", Vector: []float32{1, 0}})

		matches, err := idx.Query(ctx, []float32{1, 0}, 2)
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if matches[0].DocumentID != "second" {
			t.Fatalf("tie-break order = %v, want most recent first", matches)
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosine(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
