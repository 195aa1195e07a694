package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"dealflow/internal/models"
	"dealflow/internal/ordering"
	"dealflow/internal/repository"
)

func (s *Store) CreateDealTx(ctx context.Context, tx *gorm.DB, item *models.Deal) error {
	if item == nil {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Create(item).Error)
}

func (s *Store) GetDealTx(ctx context.Context, tx *gorm.DB, id string) (*models.Deal, error) {
	var item models.Deal
	err := s.conn(ctx, tx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ClassifyError(err)
	}
	return &item, nil
}

func (s *Store) ListDealsByStageTx(ctx context.Context, tx *gorm.DB, stageID string) ([]models.Deal, error) {
	var items []models.Deal
	err := s.conn(ctx, tx).
		Where("stage_id = ?", stageID).
		Order("sort_order asc").
		Find(&items).Error
	if err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) ListDeals(ctx context.Context, params repository.ListDealsParams) ([]models.Deal, error) {
	query := s.db.WithContext(ctx).Model(&models.Deal{})
	if params.PipelineID != "" {
		query = query.Where("pipeline_id = ?", params.PipelineID)
	}
	if params.StageID != nil && *params.StageID != "" {
		query = query.Where("stage_id = ?", *params.StageID)
	}
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.OwnerID != nil && *params.OwnerID != "" {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	query = query.Order("stage_id asc, sort_order asc")
	if params.Limit > 0 {
		query = query.Limit(params.Limit).Offset(params.Offset)
	}
	var items []models.Deal
	if err := query.Find(&items).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) ListOpenDeals(ctx context.Context, pipelineID string) ([]models.Deal, error) {
	query := s.db.WithContext(ctx).Where("status = ?", models.DealStatusOpen)
	if pipelineID != "" {
		query = query.Where("pipeline_id = ?", pipelineID)
	}
	var items []models.Deal
	if err := query.Find(&items).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) CountDealsTx(ctx context.Context, tx *gorm.DB, stageID string) (int64, error) {
	var n int64
	err := s.conn(ctx, tx).Model(&models.Deal{}).
		Where("stage_id = ?", stageID).
		Count(&n).Error
	if err != nil {
		return 0, ClassifyError(err)
	}
	return n, nil
}

func (s *Store) UpdateDealFieldsTx(ctx context.Context, tx *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Model(&models.Deal{}).
		Where("id = ?", id).
		Updates(fields).Error)
}

func (s *Store) ShiftDealRanksTx(ctx context.Context, tx *gorm.DB, stageID string, w ordering.Window) error {
	if w.Empty() {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Model(&models.Deal{}).
		Where("stage_id = ? AND sort_order BETWEEN ? AND ?", stageID, w.Lo, w.Hi).
		UpdateColumn("sort_order", gorm.Expr("sort_order + ?", w.Delta)).Error)
}

func (s *Store) SoftDeleteDealTx(ctx context.Context, tx *gorm.DB, id string) error {
	return ClassifyError(s.conn(ctx, tx).Delete(&models.Deal{}, "id = ?", id).Error)
}

func (s *Store) InsertDealMoveTx(ctx context.Context, tx *gorm.DB, item *models.DealMove) error {
	if item == nil {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Create(item).Error)
}

func (s *Store) ListDealMoves(ctx context.Context, dealID string, limit, offset int) ([]models.DealMove, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.DealMove
	err := s.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("id desc").
		Limit(limit).Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) InsertChangeEventTx(ctx context.Context, tx *gorm.DB, item *models.ChangeEvent) error {
	if item == nil {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Create(item).Error)
}

func (s *Store) ListChangeEventsAfter(ctx context.Context, partition string, afterSeq uint64, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	query := s.db.WithContext(ctx).Where("seq > ?", afterSeq)
	if partition != "" {
		query = query.Where("partition = ?", partition)
	}
	var items []models.ChangeEvent
	if err := query.Order("seq asc").Limit(limit).Find(&items).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) DeleteChangeEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.ChangeEvent{})
	return res.RowsAffected, ClassifyError(res.Error)
}
