package vectorindex_test

import (
	"context"
	"testing"

	"github.com/docstack-ai/docstack/internal/testutil"
	"github.com/docstack-ai/docstack/internal/vectorindex"
)

func testVector(dim int, hot ...int) []float32 {
	v := make([]float32, dim)
	for _, i := range hot {
		v[i] = 1
	}
	return v
}

func TestPostgresIndexIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	index, err := vectorindex.NewPostgres(db.Pool, testutil.QuietLogger())
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}

	owner := testutil.CreateTestUser(t, db.Pool)
	const dim = 1536

	near := testutil.CreateTestDocument(t, db.Pool, owner, "Near")
	far := testutil.CreateTestDocument(t, db.Pool, owner, "Far")

	upsert := func(id string, title string, v []float32) {
		t.Helper()
		if err := index.Upsert(ctx, vectorindex.Entry{DocumentID: id, Vector: v, Title: title}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", title, err)
		}
	}

	upsert(near.String(), "Near", testVector(dim, 0))
	upsert(far.String(), "Far", testVector(dim, 1))

	t.Run("query orders by similarity", func(t *testing.T) {
		matches, err := index.Query(ctx, testVector(dim, 0), 10)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].DocumentID != near.String() {
			t.Errorf("best match = %s, want the aligned vector", matches[0].DocumentID)
		}
		if matches[0].Score <= matches[1].Score {
			t.Errorf("scores not descending: %f then %f", matches[0].Score, matches[1].Score)
		}
		if matches[0].Title != "Near" {
			t.Errorf("match title = %q", matches[0].Title)
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		// Move "far" on top of the query vector; it must win now.
		upsert(far.String(), "Far moved", testVector(dim, 0))

		matches, err := index.Query(ctx, testVector(dim, 0), 1)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if matches[0].DocumentID != far.String() {
			t.Errorf("best match = %s, want the re-upserted entry (recency tie-break)", matches[0].DocumentID)
		}

		// Restore for later subtests.
		upsert(far.String(), "Far", testVector(dim, 1))
	})

	t.Run("remove", func(t *testing.T) {
		if err := index.Remove(ctx, far.String()); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		matches, err := index.Query(ctx, testVector(dim, 1), 10)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		for _, m := range matches {
			if m.DocumentID == far.String() {
				t.Errorf("removed entry still returned")
			}
		}

		// Removing again is a no-op.
		if err := index.Remove(ctx, far.String()); err != nil {
			t.Errorf("Remove(absent) error = %v, want nil", err)
		}
	})

	t.Run("document delete cascades index entry", func(t *testing.T) {
		doomed := testutil.CreateTestDocument(t, db.Pool, owner, "Doomed")
		upsert(doomed.String(), "Doomed", testVector(dim, 2))

		if _, err := db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, doomed); err != nil {
			t.Fatalf("deleting document: %v", err)
		}

		matches, err := index.Query(ctx, testVector(dim, 2), 10)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		for _, m := range matches {
			if m.DocumentID == doomed.String() {
				t.Errorf("index entry survived document delete")
			}
		}
	})

	t.Run("invalid k", func(t *testing.T) {
		if _, err := index.Query(ctx, testVector(dim, 0), 0); err == nil {
			t.Errorf("Query(k=0) error = nil, want ErrInvalidK")
		}
	})
}
