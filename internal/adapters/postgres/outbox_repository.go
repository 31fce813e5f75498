package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/contracts"
	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func (r *OutboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	envelope, err := json.Marshal(record.Envelope)
	if err != nil {
		return err
	}
	model := outboxModel{
		RecordID:   record.RecordID,
		EventClass: record.EventClass,
		Envelope:   string(envelope),
		CreatedAt:  record.CreatedAt,
		SentAt:     record.SentAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []outboxModel
	if err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(models))
	for _, m := range models {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal([]byte(m.Envelope), &envelope); err != nil {
			return nil, err
		}
		out = append(out, ports.OutboxRecord{
			RecordID:   m.RecordID,
			EventClass: m.EventClass,
			Envelope:   envelope,
			CreatedAt:  m.CreatedAt,
			SentAt:     m.SentAt,
		})
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("record_id = ?", recordID).
		Update("sent_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
