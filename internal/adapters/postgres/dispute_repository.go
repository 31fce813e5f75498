package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"gorm.io/gorm"
)

type DisputeRepository struct {
	db *gorm.DB
}

func (r *DisputeRepository) Create(ctx context.Context, row domain.Dispute) error {
	model := toDisputeModel(row)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DisputeRepository) Update(ctx context.Context, row domain.Dispute) error {
	model := toDisputeModel(row)
	res := r.db.WithContext(ctx).
		Model(&disputeModel{}).
		Where("dispute_id = ?", row.DisputeID).
		Updates(map[string]any{
			"respondent_share_proposal": model.RespondentShareProposal,
			"settled_time":              model.SettledTime,
			"respondent_share":          model.RespondentShare,
			"initiator_share":           model.InitiatorShare,
			"updated_at":                model.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DisputeRepository) GetOpenByProjectKey(ctx context.Context, projectKey string) (domain.Dispute, error) {
	var model disputeModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ? AND settled_time IS NULL", strings.TrimSpace(projectKey)).
		Order("start_time DESC").
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Dispute{}, domain.ErrNotFound
		}
		return domain.Dispute{}, err
	}
	return fromDisputeModel(model), nil
}

func (r *DisputeRepository) ListByProjectKey(ctx context.Context, projectKey string) ([]domain.Dispute, error) {
	var models []disputeModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ?", strings.TrimSpace(projectKey)).
		Order("start_time ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Dispute, 0, len(models))
	for _, m := range models {
		out = append(out, fromDisputeModel(m))
	}
	return out, nil
}

func toDisputeModel(row domain.Dispute) disputeModel {
	return disputeModel{
		DisputeID:               row.DisputeID,
		ProjectKey:              row.ProjectKey,
		Initiator:               row.Initiator,
		Respondent:              row.Respondent,
		RespondentShareProposal: row.RespondentShareProposal,
		StartTime:               row.StartTime,
		ReplyDeadline:           row.ReplyDeadline,
		SettledTime:             row.SettledTime,
		RespondentShare:         row.RespondentShare,
		InitiatorShare:          row.InitiatorShare,
		UpdatedAt:               row.UpdatedAt,
	}
}

func fromDisputeModel(model disputeModel) domain.Dispute {
	return domain.Dispute{
		DisputeID:               model.DisputeID,
		ProjectKey:              model.ProjectKey,
		Initiator:               model.Initiator,
		Respondent:              model.Respondent,
		RespondentShareProposal: model.RespondentShareProposal,
		StartTime:               model.StartTime,
		ReplyDeadline:           model.ReplyDeadline,
		SettledTime:             model.SettledTime,
		RespondentShare:         model.RespondentShare,
		InitiatorShare:          model.InitiatorShare,
		UpdatedAt:               model.UpdatedAt,
	}
}
