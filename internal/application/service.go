package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

func (s *Service) requireActor(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.ErrIdempotencyRequired
	}
	return nil
}

// getIdempotent returns the cached response for a replayed request. A reused
// key with a different request hash is a hard conflict.
func getIdempotent[T any](ctx context.Context, s *Service, actor Actor, requestHash string) (T, bool, error) {
	var zero T
	if s.idempotency == nil || strings.TrimSpace(actor.IdempotencyKey) == "" {
		return zero, false, nil
	}
	rec, err := s.idempotency.Get(ctx, actor.IdempotencyKey, s.nowFn())
	if err != nil || rec == nil {
		return zero, false, err
	}
	if rec.RequestHash != requestHash {
		return zero, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return zero, false, nil
	}
	var out T
	if err := json.Unmarshal(rec.ResponseBody, &out); err != nil {
		return zero, false, nil
	}
	return out, true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil {
		return nil
	}
	now := s.nowFn()
	err := s.idempotency.Reserve(ctx, key, requestHash, now, now.Add(s.cfg.IdempotencyTTL))
	if err == domain.ErrConflict {
		return domain.ErrIdempotencyConflict
	}
	return err
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, key string, code int, payload any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	b, _ := json.Marshal(payload)
	return s.idempotency.Complete(ctx, key, code, b, s.nowFn())
}

func hashJSON(v any) string {
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func newID() string { return uuid.NewString() }

// ResolveComponent looks a well-known component name up in the shared
// registry. Purely a read: registration is administrative and lives outside
// this service.
func (s *Service) ResolveComponent(ctx context.Context, actor Actor, component string) (string, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return "", domain.ErrUnauthorized
	}
	component = strings.TrimSpace(component)
	if component == "" {
		return "", domain.ErrInvalidInput
	}
	if s.registry == nil {
		return "", domain.ErrNotFound
	}
	return s.registry.Resolve(ctx, component)
}
