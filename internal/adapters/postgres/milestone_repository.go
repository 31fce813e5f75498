package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"gorm.io/gorm"
)

type MilestoneRepository struct {
	db *gorm.DB
}

func (r *MilestoneRepository) Create(ctx context.Context, row domain.Milestone) error {
	model := toMilestoneModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *MilestoneRepository) Update(ctx context.Context, row domain.Milestone) error {
	model := toMilestoneModel(row)
	res := r.db.WithContext(ctx).
		Model(&milestoneModel{}).
		Where("project_key = ? AND sequence = ?", row.ProjectKey, row.Sequence).
		Updates(map[string]any{
			"adjusted_duration_ns": model.AdjustedDuration,
			"delivery_time":        model.DeliveryTime,
			"status":               model.Status,
			"funds_blocked":        model.FundsBlocked,
			"updated_at":           model.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MilestoneRepository) Get(ctx context.Context, projectKey string, sequence int) (domain.Milestone, error) {
	var model milestoneModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ? AND sequence = ?", strings.TrimSpace(projectKey), sequence).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Milestone{}, domain.ErrNotFound
		}
		return domain.Milestone{}, err
	}
	return fromMilestoneModel(model), nil
}

func (r *MilestoneRepository) GetLatest(ctx context.Context, projectKey string) (domain.Milestone, error) {
	var model milestoneModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ?", strings.TrimSpace(projectKey)).
		Order("sequence DESC").
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Milestone{}, domain.ErrNotFound
		}
		return domain.Milestone{}, err
	}
	return fromMilestoneModel(model), nil
}

func (r *MilestoneRepository) ListByProjectKey(ctx context.Context, projectKey string) ([]domain.Milestone, error) {
	var models []milestoneModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ?", strings.TrimSpace(projectKey)).
		Order("sequence ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Milestone, 0, len(models))
	for _, m := range models {
		out = append(out, fromMilestoneModel(m))
	}
	return out, nil
}

func toMilestoneModel(row domain.Milestone) milestoneModel {
	return milestoneModel{
		ProjectKey:       row.ProjectKey,
		Sequence:         row.Sequence,
		DepositAmount:    row.DepositAmount,
		Currency:         row.Currency,
		Duration:         int64(row.Duration),
		AdjustedDuration: int64(row.AdjustedDuration),
		StartTime:        row.StartTime,
		DeliveryTime:     row.DeliveryTime,
		Status:           row.Status,
		FundsBlocked:     row.FundsBlocked,
		UpdatedAt:        row.UpdatedAt,
	}
}

func fromMilestoneModel(model milestoneModel) domain.Milestone {
	return domain.Milestone{
		ProjectKey:       model.ProjectKey,
		Sequence:         model.Sequence,
		DepositAmount:    model.DepositAmount,
		Currency:         model.Currency,
		Duration:         time.Duration(model.Duration),
		AdjustedDuration: time.Duration(model.AdjustedDuration),
		StartTime:        model.StartTime,
		DeliveryTime:     model.DeliveryTime,
		Status:           model.Status,
		FundsBlocked:     model.FundsBlocked,
		UpdatedAt:        model.UpdatedAt,
	}
}
