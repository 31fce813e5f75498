package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

func TestIdempotencyReserveUsesCallerClock(t *testing.T) {
	repos := NewRepositories()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	if err := repos.Idempotency.Reserve(context.Background(), "k1", "h1", base, base.Add(time.Hour)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	err := repos.Idempotency.Reserve(context.Background(), "k1", "h2", base.Add(30*time.Minute), base.Add(90*time.Minute))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on a live reservation, got %v", err)
	}
	if err := repos.Idempotency.Reserve(context.Background(), "k1", "h3", base.Add(2*time.Hour), base.Add(3*time.Hour)); err != nil {
		t.Fatalf("Reserve after expiry: %v", err)
	}

	rec, err := repos.Idempotency.Get(context.Background(), "k1", base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.RequestHash != "h3" {
		t.Fatalf("record = %+v, want the reclaimed reservation h3", rec)
	}
}

func TestIdempotencyGetDropsExpiredRecord(t *testing.T) {
	repos := NewRepositories()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	if err := repos.Idempotency.Reserve(context.Background(), "k2", "h1", base, base.Add(time.Minute)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	rec, err := repos.Idempotency.Get(context.Background(), "k2", base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("record = %+v, want nil past expiry", rec)
	}
}
