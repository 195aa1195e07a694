package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dealflow/internal/feed"
	"dealflow/internal/metrics"
	"dealflow/internal/models"
	"dealflow/internal/repository"
)

// SweepService hosts the periodic jobs: change-feed retention and rotten
// detection. The rotten sweep only publishes notices; deal rows are never
// mutated, so read-time metrics stay the single source of truth.
type SweepService struct {
	Repo      repository.Repository
	Hub       *feed.Hub
	Logger    *zap.Logger
	Metrics   metrics.Config
	Retention time.Duration

	mu       sync.Mutex
	notified map[string]time.Time // deal id -> stage_entered_at already notified
}

func (s *SweepService) SweepFeedRetention(ctx context.Context) {
	if s.Retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-s.Retention)
	n, err := s.Repo.DeleteChangeEventsBefore(ctx, cutoff)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("feed retention sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 && s.Logger != nil {
		s.Logger.Info("feed retention sweep", zap.Int64("deleted", n))
	}
}

// SweepRotten publishes one deal.rotten notice per (deal, stage entry).
// Moving the deal resets stage_entered_at, so it becomes eligible again
// after the next threshold crossing.
func (s *SweepService) SweepRotten(ctx context.Context) {
	deals, err := s.Repo.ListOpenDeals(ctx, "")
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("rotten sweep failed", zap.Error(err))
		}
		return
	}
	if len(deals) == 0 {
		return
	}

	stageIDs := make([]string, 0, 8)
	seen := map[string]bool{}
	for _, d := range deals {
		if !seen[d.StageID] {
			seen[d.StageID] = true
			stageIDs = append(stageIDs, d.StageID)
		}
	}
	stages, err := s.Repo.ListStagesByIDs(ctx, stageIDs)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("rotten sweep failed", zap.Error(err))
		}
		return
	}
	stageByID := map[string]models.Stage{}
	for _, st := range stages {
		stageByID[st.ID] = st
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if s.notified == nil {
		s.notified = map[string]time.Time{}
	}
	s.mu.Unlock()

	for _, d := range deals {
		stage, ok := stageByID[d.StageID]
		if !ok {
			continue
		}
		if !metrics.ForDeal(d, stage, now, s.Metrics).Rotten {
			continue
		}
		s.mu.Lock()
		already := s.notified[d.ID].Equal(d.StageEnteredAt)
		if !already {
			s.notified[d.ID] = d.StageEnteredAt
		}
		s.mu.Unlock()
		if already {
			continue
		}

		ev, err := feed.NewEventModel(d.StageID, models.ChangeDealRotten, d.ID, "", feed.RowSet{Deals: []models.Deal{d}})
		if err != nil {
			continue
		}
		if err := s.Repo.InsertChangeEventTx(ctx, nil, ev); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("rotten notice insert failed", zap.String("deal_id", d.ID), zap.Error(err))
			}
			continue
		}
		if s.Hub != nil {
			s.Hub.Publish(feed.FromModel(*ev))
		}
	}
}
