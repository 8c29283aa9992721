package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestOpenRequiresConnString(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error")
	}
}

func TestAttributesRoundTrip(t *testing.T) {
	connString := os.Getenv("SKILL_POSTGRES_URL")
	if connString == "" {
		t.Skip("SKILL_POSTGRES_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, connString)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	userID := "test-" + uuid.NewString()
	if err := store.SaveAttributes(ctx, userID, map[string]any{"lastAccessedIntent": "Cancel or Stop Intent"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetAttributes(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["lastAccessedIntent"] != "Cancel or Stop Intent" {
		t.Fatalf("unexpected attributes %v", got)
	}
}
