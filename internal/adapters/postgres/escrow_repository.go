package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"gorm.io/gorm"
)

type EscrowAccountRepository struct {
	db *gorm.DB
}

func (r *EscrowAccountRepository) Create(ctx context.Context, row domain.EscrowAccount) error {
	model, err := toEscrowAccountModel(row)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *EscrowAccountRepository) GetByID(ctx context.Context, escrowID string) (domain.EscrowAccount, error) {
	var model escrowAccountModel
	if err := r.db.WithContext(ctx).
		Where("escrow_id = ?", strings.TrimSpace(escrowID)).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EscrowAccount{}, domain.ErrNotFound
		}
		return domain.EscrowAccount{}, err
	}
	return fromEscrowAccountModel(model)
}

func (r *EscrowAccountRepository) GetByProjectKey(ctx context.Context, projectKey string) (domain.EscrowAccount, error) {
	var model escrowAccountModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ?", strings.TrimSpace(projectKey)).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EscrowAccount{}, domain.ErrNotFound
		}
		return domain.EscrowAccount{}, err
	}
	return fromEscrowAccountModel(model)
}

func (r *EscrowAccountRepository) Update(ctx context.Context, row domain.EscrowAccount) error {
	model, err := toEscrowAccountModel(row)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&escrowAccountModel{}).
		Where("escrow_id = ?", row.EscrowID).
		Updates(map[string]any{
			"owner":       model.Owner,
			"operator":    model.Operator,
			"initialized": model.Initialized,
			"available":   model.Available,
			"blocked":     model.Blocked,
			"allowances":  model.Allowances,
			"updated_at":  model.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toEscrowAccountModel(row domain.EscrowAccount) (escrowAccountModel, error) {
	available, err := json.Marshal(row.Available)
	if err != nil {
		return escrowAccountModel{}, err
	}
	blocked, err := json.Marshal(row.Blocked)
	if err != nil {
		return escrowAccountModel{}, err
	}
	allowances, err := json.Marshal(row.Allowances)
	if err != nil {
		return escrowAccountModel{}, err
	}
	return escrowAccountModel{
		EscrowID:    row.EscrowID,
		ProjectKey:  row.ProjectKey,
		Owner:       row.Owner,
		Operator:    row.Operator,
		Initialized: row.Initialized,
		Available:   string(available),
		Blocked:     string(blocked),
		Allowances:  string(allowances),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func fromEscrowAccountModel(model escrowAccountModel) (domain.EscrowAccount, error) {
	out := domain.EscrowAccount{
		EscrowID:    model.EscrowID,
		ProjectKey:  model.ProjectKey,
		Owner:       model.Owner,
		Operator:    model.Operator,
		Initialized: model.Initialized,
		Available:   map[string]int64{},
		Blocked:     map[string]int64{},
		Allowances:  map[string]map[string]int64{},
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.Available != "" {
		if err := json.Unmarshal([]byte(model.Available), &out.Available); err != nil {
			return domain.EscrowAccount{}, err
		}
	}
	if model.Blocked != "" {
		if err := json.Unmarshal([]byte(model.Blocked), &out.Blocked); err != nil {
			return domain.EscrowAccount{}, err
		}
	}
	if model.Allowances != "" {
		if err := json.Unmarshal([]byte(model.Allowances), &out.Allowances); err != nil {
			return domain.EscrowAccount{}, err
		}
	}
	return out, nil
}

type MovementRepository struct {
	db *gorm.DB
}

func (r *MovementRepository) Append(ctx context.Context, row domain.Movement) error {
	model := movementModel{
		MovementID: row.MovementID,
		EscrowID:   row.EscrowID,
		ProjectKey: row.ProjectKey,
		Kind:       row.Kind,
		Sender:     row.Sender,
		Target:     row.Target,
		Amount:     row.Amount,
		Currency:   row.Currency,
		OccurredAt: row.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *MovementRepository) ListByProjectKey(ctx context.Context, projectKey string) ([]domain.Movement, error) {
	var models []movementModel
	if err := r.db.WithContext(ctx).
		Where("project_key = ?", strings.TrimSpace(projectKey)).
		Order("occurred_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Movement, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Movement{
			MovementID: m.MovementID,
			EscrowID:   m.EscrowID,
			ProjectKey: m.ProjectKey,
			Kind:       m.Kind,
			Sender:     m.Sender,
			Target:     m.Target,
			Amount:     m.Amount,
			Currency:   m.Currency,
			OccurredAt: m.OccurredAt,
		})
	}
	return out, nil
}
