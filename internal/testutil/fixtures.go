package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateTestUser inserts a user row and returns its id. User rows are
// normally provisioned by the upstream auth system, so tests have to seed
// them explicitly.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
		id, "user-"+id.String()[:8], id.String()[:8]+"@test.local")
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return id
}

// CreateTestDocument inserts a bare document row and returns its id. Used
// by tests that need a valid FK target without going through the service.
func CreateTestDocument(t *testing.T, pool *pgxpool.Pool, ownerID uuid.UUID, title string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO documents (owner_id, title, content) VALUES ($1, $2, $3) RETURNING id`,
		ownerID, title, "content of "+title).Scan(&id)
	if err != nil {
		t.Fatalf("creating test document: %v", err)
	}
	return id
}
