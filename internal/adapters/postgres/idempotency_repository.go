package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
	"gorm.io/gorm"
)

type IdempotencyRepository struct {
	db *gorm.DB
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	var model idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if now.After(model.ExpiresAt) {
		_ = r.db.WithContext(ctx).Where("idempotency_key = ?", key).Delete(&idempotencyModel{}).Error
		return nil, nil
	}
	return &ports.IdempotencyRecord{
		Key:          model.IdempotencyKey,
		RequestHash:  model.RequestHash,
		ResponseCode: model.ResponseCode,
		ResponseBody: append([]byte(nil), model.ResponseBody...),
		ExpiresAt:    model.ExpiresAt,
	}, nil
}

func (r *IdempotencyRepository) Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error {
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND expires_at <= ?", key, now).
		Delete(&idempotencyModel{}).Error; err != nil {
		return err
	}
	model := idempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		ExpiresAt:      expiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&idempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"response_code": responseCode,
			"response_body": responseBody,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type EventDedupRepository struct {
	db *gorm.DB
}

func (r *EventDedupRepository) IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error) {
	var model eventDedupModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if now.After(model.ExpiresAt) {
		_ = r.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&eventDedupModel{}).Error
		return false, nil
	}
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error {
	model := eventDedupModel{EventID: eventID, EventType: eventType, ExpiresAt: expiresAt}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}
