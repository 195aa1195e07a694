package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"dealflow/internal/apperr"
	"dealflow/internal/metrics"
	"dealflow/internal/models"
	"dealflow/internal/repository"
)

// MetricsCache is an optional read-model cache. The store remains the
// sole authority; cached entries are invalidated from the change feed.
type MetricsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// BoardService assembles the read model: stages with ordered deals,
// per-deal health, and per-stage metrics, all computed from current state.
type BoardService struct {
	Repo     repository.Repository
	Cache    MetricsCache
	CacheTTL time.Duration
	Logger   *zap.Logger
	Metrics  metrics.Config
}

type BoardParams struct {
	PipelineID string
	Status     *string
	OwnerID    *string
}

type DealView struct {
	models.Deal
	Health metrics.DealHealth `json:"health"`
}

type StageColumn struct {
	Stage   models.Stage         `json:"stage"`
	Metrics metrics.StageMetrics `json:"metrics"`
	Deals   []DealView           `json:"deals"`
}

type Board struct {
	PipelineID string        `json:"pipeline_id"`
	Stages     []StageColumn `json:"stages"`
}

func (s *BoardService) GetBoard(ctx context.Context, params BoardParams) (*Board, error) {
	stages, err := s.Repo.ListStages(ctx, params.PipelineID)
	if err != nil {
		return nil, err
	}
	// Unfiltered fetch: filters narrow the listed deals below, but
	// per-stage metrics always describe the stage's full contents.
	deals, err := s.Repo.ListDeals(ctx, repository.ListDealsParams{
		PipelineID: params.PipelineID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	byStage := map[string][]models.Deal{}
	for _, d := range deals {
		byStage[d.StageID] = append(byStage[d.StageID], d)
	}

	visible := func(d models.Deal) bool {
		if params.Status != nil && d.Status != *params.Status {
			return false
		}
		if params.OwnerID != nil && d.OwnerID != *params.OwnerID {
			return false
		}
		return true
	}

	board := &Board{PipelineID: params.PipelineID, Stages: make([]StageColumn, 0, len(stages))}
	for _, stage := range stages {
		column := StageColumn{
			Stage:   stage,
			Metrics: metrics.ForStage(stage, byStage[stage.ID]),
			Deals:   make([]DealView, 0, len(byStage[stage.ID])),
		}
		for _, d := range byStage[stage.ID] {
			if !visible(d) {
				continue
			}
			column.Deals = append(column.Deals, DealView{
				Deal:   d,
				Health: metrics.ForDeal(d, stage, now, s.Metrics),
			})
		}
		board.Stages = append(board.Stages, column)
	}
	return board, nil
}

func (s *BoardService) GetStageMetrics(ctx context.Context, stageID string) (metrics.StageMetrics, error) {
	key := MetricsCacheKey(stageID)
	if s.Cache != nil {
		if raw, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			var cached metrics.StageMetrics
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if err != nil && s.Logger != nil {
			s.Logger.Warn("metrics cache read failed", zap.Error(err))
		}
	}

	stage, err := s.Repo.GetStageTx(ctx, nil, stageID)
	if err != nil {
		return metrics.StageMetrics{}, err
	}
	if stage == nil {
		return metrics.StageMetrics{}, apperr.NotFound("stage", stageID)
	}
	deals, err := s.Repo.ListDealsByStageTx(ctx, nil, stageID)
	if err != nil {
		return metrics.StageMetrics{}, err
	}
	m := metrics.ForStage(*stage, deals)

	if s.Cache != nil {
		if raw, err := json.Marshal(m); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.CacheTTL); err != nil && s.Logger != nil {
				s.Logger.Warn("metrics cache write failed", zap.Error(err))
			}
		}
	}
	return m, nil
}

// MetricsCacheKey is the cache key for one stage's metrics; the feed
// invalidator deletes it whenever the stage's partition changes.
func MetricsCacheKey(stageID string) string {
	return "dealflow:metrics:" + stageID
}
