package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectRepository struct {
	db *gorm.DB
}

func (r *ProjectRepository) Create(ctx context.Context, row domain.Project) error {
	model := toProjectModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ProjectRepository) GetByKey(ctx context.Context, projectKey string) (domain.Project, error) {
	var model projectModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ?", strings.TrimSpace(projectKey)).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, err
	}
	return fromProjectModel(model), nil
}

func (r *ProjectRepository) Update(ctx context.Context, row domain.Project) error {
	model := toProjectModel(row)
	res := r.db.WithContext(ctx).
		Model(&projectModel{}).
		Where("project_key = ?", row.ProjectKey).
		Updates(map[string]any{
			"end_time":      model.EndTime,
			"client_rating": model.ClientRating,
			"maker_rating":  model.MakerRating,
			"updated_at":    model.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) ListKeysByParty(ctx context.Context, partyID string) ([]string, error) {
	id := strings.TrimSpace(partyID)
	var keys []string
	if err := r.db.WithContext(ctx).
		Model(&projectModel{}).
		Where("client = ? OR maker = ? OR arbiter = ?", id, id, id).
		Order("project_key ASC").
		Pluck("project_key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func toProjectModel(row domain.Project) projectModel {
	return projectModel{
		ProjectKey:           row.ProjectKey,
		Client:               row.Client,
		Maker:                row.Maker,
		Arbiter:              row.Arbiter,
		EscrowID:             row.EscrowID,
		StartTime:            row.StartTime,
		EndTime:              row.EndTime,
		MilestoneStartWindow: int64(row.MilestoneStartWindow),
		FeedbackWindow:       int64(row.FeedbackWindow),
		MilestonesCount:      row.MilestonesCount,
		ClientRating:         row.ClientRating,
		MakerRating:          row.MakerRating,
		ArbiterFixedFee:      row.ArbiterFixedFee,
		ArbiterShareFee:      row.ArbiterShareFee,
		Encrypted:            row.Encrypted,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func fromProjectModel(model projectModel) domain.Project {
	return domain.Project{
		ProjectKey:           model.ProjectKey,
		Client:               model.Client,
		Maker:                model.Maker,
		Arbiter:              model.Arbiter,
		EscrowID:             model.EscrowID,
		StartTime:            model.StartTime,
		EndTime:              model.EndTime,
		MilestoneStartWindow: time.Duration(model.MilestoneStartWindow),
		FeedbackWindow:       time.Duration(model.FeedbackWindow),
		MilestonesCount:      model.MilestonesCount,
		ClientRating:         model.ClientRating,
		MakerRating:          model.MakerRating,
		ArbiterFixedFee:      model.ArbiterFixedFee,
		ArbiterShareFee:      model.ArbiterShareFee,
		Encrypted:            model.Encrypted,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}
}

type RatingRepository struct {
	db *gorm.DB
}

func (r *RatingRepository) Get(ctx context.Context, partyID string) (domain.RatingAggregate, error) {
	var model ratingAggregateModel
	if err := r.db.WithContext(ctx).
		Where("party_id = ?", strings.TrimSpace(partyID)).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RatingAggregate{}, domain.ErrNotFound
		}
		return domain.RatingAggregate{}, err
	}
	return domain.RatingAggregate{PartyID: model.PartyID, Sum: model.Sum, Count: model.Count, UpdatedAt: model.UpdatedAt}, nil
}

func (r *RatingRepository) Apply(ctx context.Context, partyID string, rating int, at time.Time) (domain.RatingAggregate, error) {
	id := strings.TrimSpace(partyID)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "party_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"rating_sum":   gorm.Expr("rating_aggregates.rating_sum + ?", int64(rating)),
			"rating_count": gorm.Expr("rating_aggregates.rating_count + 1"),
			"updated_at":   at,
		}),
	}).Create(&ratingAggregateModel{
		PartyID:   id,
		Sum:       int64(rating),
		Count:     1,
		UpdatedAt: at,
	}).Error; err != nil {
		return domain.RatingAggregate{}, err
	}
	return r.Get(ctx, id)
}

type FeeScheduleRepository struct {
	db *gorm.DB
}

func (r *FeeScheduleRepository) Get(ctx context.Context, arbiterID string) (domain.FeeSchedule, error) {
	var model feeScheduleModel
	if err := r.db.WithContext(ctx).
		Where("arbiter_id = ?", strings.TrimSpace(arbiterID)).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.FeeSchedule{}, domain.ErrNotFound
		}
		return domain.FeeSchedule{}, err
	}
	return domain.FeeSchedule{
		ArbiterID:       model.ArbiterID,
		FixedFee:        model.FixedFee,
		ShareFeePercent: model.ShareFeePercent,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}

func (r *FeeScheduleRepository) Upsert(ctx context.Context, row domain.FeeSchedule) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "arbiter_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"fixed_fee":         row.FixedFee,
			"share_fee_percent": row.ShareFeePercent,
			"updated_at":        row.UpdatedAt,
		}),
	}).Create(&feeScheduleModel{
		ArbiterID:       row.ArbiterID,
		FixedFee:        row.FixedFee,
		ShareFeePercent: row.ShareFeePercent,
		UpdatedAt:       row.UpdatedAt,
	}).Error
}
