package gormrepository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dealflow/internal/models"
	"dealflow/internal/ordering"
)

func (s *Store) CreatePipeline(ctx context.Context, item *models.Pipeline) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return ClassifyError(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	var item models.Pipeline
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ClassifyError(err)
	}
	return &item, nil
}

func (s *Store) GetPipelineByName(ctx context.Context, name string) (*models.Pipeline, error) {
	var item models.Pipeline
	err := s.db.WithContext(ctx).First(&item, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ClassifyError(err)
	}
	return &item, nil
}

func (s *Store) CreateStageTx(ctx context.Context, tx *gorm.DB, item *models.Stage) error {
	if item == nil {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Create(item).Error)
}

func (s *Store) GetStageTx(ctx context.Context, tx *gorm.DB, id string) (*models.Stage, error) {
	var item models.Stage
	err := s.conn(ctx, tx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ClassifyError(err)
	}
	return &item, nil
}

// LockStagesTx locks stage rows FOR UPDATE in ascending id order. The fixed
// acquisition order keeps two overlapping moves from deadlocking on each
// other's partitions.
func (s *Store) LockStagesTx(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Stage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var items []models.Stage
	err := s.conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

// LockPipelineStagesTx locks every live stage of a pipeline. Rows are
// acquired in id order to match LockStagesTx, then returned in rank order.
func (s *Store) LockPipelineStagesTx(ctx context.Context, tx *gorm.DB, pipelineID string) ([]models.Stage, error) {
	var items []models.Stage
	err := s.conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pipeline_id = ?", pipelineID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, ClassifyError(err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
	return items, nil
}

func (s *Store) ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error) {
	var items []models.Stage
	query := s.db.WithContext(ctx).Model(&models.Stage{})
	if pipelineID != "" {
		query = query.Where("pipeline_id = ?", pipelineID)
	}
	if err := query.Order("sort_order asc").Find(&items).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) ListStagesByIDs(ctx context.Context, ids []string) ([]models.Stage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Stage
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return items, nil
}

func (s *Store) CountStagesTx(ctx context.Context, tx *gorm.DB, pipelineID string) (int64, error) {
	var n int64
	err := s.conn(ctx, tx).Model(&models.Stage{}).
		Where("pipeline_id = ?", pipelineID).
		Count(&n).Error
	if err != nil {
		return 0, ClassifyError(err)
	}
	return n, nil
}

func (s *Store) FindTerminalStageTx(ctx context.Context, tx *gorm.DB, pipelineID string, won bool, excludeID string) (*models.Stage, error) {
	query := s.conn(ctx, tx).Model(&models.Stage{}).Where("pipeline_id = ?", pipelineID)
	if won {
		query = query.Where("is_won")
	} else {
		query = query.Where("is_lost")
	}
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var item models.Stage
	err := query.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, ClassifyError(err)
	}
	return &item, nil
}

func (s *Store) UpdateStageFieldsTx(ctx context.Context, tx *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Model(&models.Stage{}).
		Where("id = ?", id).
		Updates(fields).Error)
}

func (s *Store) SetStageRankTx(ctx context.Context, tx *gorm.DB, id string, rank int) error {
	return ClassifyError(s.conn(ctx, tx).Model(&models.Stage{}).
		Where("id = ?", id).
		UpdateColumn("sort_order", rank).Error)
}

func (s *Store) ShiftStageRanksTx(ctx context.Context, tx *gorm.DB, pipelineID string, w ordering.Window) error {
	if w.Empty() {
		return nil
	}
	return ClassifyError(s.conn(ctx, tx).Model(&models.Stage{}).
		Where("pipeline_id = ? AND sort_order BETWEEN ? AND ?", pipelineID, w.Lo, w.Hi).
		UpdateColumn("sort_order", gorm.Expr("sort_order + ?", w.Delta)).Error)
}

func (s *Store) SoftDeleteStageTx(ctx context.Context, tx *gorm.DB, id string) error {
	return ClassifyError(s.conn(ctx, tx).Delete(&models.Stage{}, "id = ?", id).Error)
}
