package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dealflow/internal/models"
	"dealflow/internal/ordering"
)

type ListDealsParams struct {
	PipelineID string
	StageID    *string
	Status     *string
	OwnerID    *string
	Limit      int
	Offset     int
}

// Repository is the persistence surface for the pipeline core. Methods with
// a Tx suffix run against the given transaction when non-nil and the base
// connection otherwise, so the same code path serves both transactional and
// standalone reads.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Pipelines.
	CreatePipeline(ctx context.Context, item *models.Pipeline) error
	GetPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	GetPipelineByName(ctx context.Context, name string) (*models.Pipeline, error)

	// Stages.
	CreateStageTx(ctx context.Context, tx *gorm.DB, item *models.Stage) error
	GetStageTx(ctx context.Context, tx *gorm.DB, id string) (*models.Stage, error)
	// LockStagesTx acquires FOR UPDATE row locks on the given stages in
	// ascending id order. This is the partition-scoped lock serializing
	// concurrent moves and reorders.
	LockStagesTx(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Stage, error)
	LockPipelineStagesTx(ctx context.Context, tx *gorm.DB, pipelineID string) ([]models.Stage, error)
	ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error)
	ListStagesByIDs(ctx context.Context, ids []string) ([]models.Stage, error)
	CountStagesTx(ctx context.Context, tx *gorm.DB, pipelineID string) (int64, error)
	FindTerminalStageTx(ctx context.Context, tx *gorm.DB, pipelineID string, won bool, excludeID string) (*models.Stage, error)
	UpdateStageFieldsTx(ctx context.Context, tx *gorm.DB, id string, fields map[string]any) error
	SetStageRankTx(ctx context.Context, tx *gorm.DB, id string, rank int) error
	ShiftStageRanksTx(ctx context.Context, tx *gorm.DB, pipelineID string, w ordering.Window) error
	SoftDeleteStageTx(ctx context.Context, tx *gorm.DB, id string) error

	// Deals.
	CreateDealTx(ctx context.Context, tx *gorm.DB, item *models.Deal) error
	GetDealTx(ctx context.Context, tx *gorm.DB, id string) (*models.Deal, error)
	ListDealsByStageTx(ctx context.Context, tx *gorm.DB, stageID string) ([]models.Deal, error)
	ListDeals(ctx context.Context, params ListDealsParams) ([]models.Deal, error)
	ListOpenDeals(ctx context.Context, pipelineID string) ([]models.Deal, error)
	CountDealsTx(ctx context.Context, tx *gorm.DB, stageID string) (int64, error)
	UpdateDealFieldsTx(ctx context.Context, tx *gorm.DB, id string, fields map[string]any) error
	ShiftDealRanksTx(ctx context.Context, tx *gorm.DB, stageID string, w ordering.Window) error
	SoftDeleteDealTx(ctx context.Context, tx *gorm.DB, id string) error

	// Move history (append-only).
	InsertDealMoveTx(ctx context.Context, tx *gorm.DB, item *models.DealMove) error
	ListDealMoves(ctx context.Context, dealID string, limit, offset int) ([]models.DealMove, error)

	// Change feed log.
	InsertChangeEventTx(ctx context.Context, tx *gorm.DB, item *models.ChangeEvent) error
	ListChangeEventsAfter(ctx context.Context, partition string, afterSeq uint64, limit int) ([]models.ChangeEvent, error)
	DeleteChangeEventsBefore(ctx context.Context, before time.Time) (int64, error)
}
