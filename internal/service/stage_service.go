package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dealflow/internal/apperr"
	"dealflow/internal/feed"
	"dealflow/internal/models"
	"dealflow/internal/ordering"
	"dealflow/internal/repository"
)

// StageService owns stage lifecycle and ordering. A pipeline allows at
// most one is_won and one is_lost stage; conflicting flags are rejected
// at create/update time rather than left ambiguous.
type StageService struct {
	Repo   repository.Repository
	Hub    *feed.Hub
	Logger *zap.Logger
}

type CreateStageRequest struct {
	PipelineID  string
	Name        string
	Color       string
	Probability int
	RottenDays  int
	IsWon       bool
	IsLost      bool
	ActorID     string
}

type StagePatch struct {
	Name        *string
	Color       *string
	Probability *int
	RottenDays  *int
	IsWon       *bool
	IsLost      *bool
}

func (s *StageService) CreateStage(ctx context.Context, req CreateStageRequest) (*models.Stage, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "stage name is required")
	}
	if req.Probability < 0 || req.Probability > 100 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "probability must be between 0 and 100")
	}
	if req.IsWon && req.IsLost {
		return nil, apperr.New(apperr.CodeInvalidArgument, "stage cannot be both won and lost")
	}

	stage := &models.Stage{
		ID:          uuid.NewString(),
		PipelineID:  req.PipelineID,
		Name:        strings.TrimSpace(req.Name),
		Color:       req.Color,
		Probability: req.Probability,
		RottenDays:  req.RottenDays,
		IsWon:       req.IsWon,
		IsLost:      req.IsLost,
	}
	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		pipeline, err := s.Repo.GetPipeline(ctx, req.PipelineID)
		if err != nil {
			return err
		}
		if pipeline == nil {
			return apperr.NotFound("pipeline", req.PipelineID)
		}
		existing, err := s.Repo.LockPipelineStagesTx(ctx, tx, req.PipelineID)
		if err != nil {
			return err
		}
		if err := s.checkTerminalExclusive(ctx, tx, req.PipelineID, "", req.IsWon, req.IsLost); err != nil {
			return err
		}
		stage.SortOrder = len(existing)
		if err := s.Repo.CreateStageTx(ctx, tx, stage); err != nil {
			return err
		}
		events, err = s.emitStageEvent(ctx, tx, models.ChangeStageUpdated, stage.ID, req.ActorID, feed.RowSet{Stages: []models.Stage{*stage}})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(events)
	return stage, nil
}

func (s *StageService) UpdateStage(ctx context.Context, id string, patch StagePatch, actorID string) (*models.Stage, error) {
	var updated *models.Stage
	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		stage, err := s.Repo.GetStageTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if stage == nil {
			return apperr.NotFound("stage", id)
		}

		fields := map[string]any{}
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return apperr.New(apperr.CodeInvalidArgument, "stage name is required")
			}
			fields["name"] = strings.TrimSpace(*patch.Name)
		}
		if patch.Color != nil {
			fields["color"] = *patch.Color
		}
		if patch.Probability != nil {
			if *patch.Probability < 0 || *patch.Probability > 100 {
				return apperr.New(apperr.CodeInvalidArgument, "probability must be between 0 and 100")
			}
			fields["probability"] = *patch.Probability
		}
		if patch.RottenDays != nil {
			if *patch.RottenDays < 0 {
				return apperr.New(apperr.CodeInvalidArgument, "rotten_days cannot be negative")
			}
			fields["rotten_days"] = *patch.RottenDays
		}

		isWon, isLost := stage.IsWon, stage.IsLost
		if patch.IsWon != nil {
			isWon = *patch.IsWon
			fields["is_won"] = isWon
		}
		if patch.IsLost != nil {
			isLost = *patch.IsLost
			fields["is_lost"] = isLost
		}
		if isWon && isLost {
			return apperr.New(apperr.CodeInvalidArgument, "stage cannot be both won and lost")
		}
		// Terminal-flag changes never retroactively touch deals already
		// sitting in the stage.
		if err := s.checkTerminalExclusive(ctx, tx, stage.PipelineID, stage.ID, isWon && !stage.IsWon, isLost && !stage.IsLost); err != nil {
			return err
		}

		if err := s.Repo.UpdateStageFieldsTx(ctx, tx, id, fields); err != nil {
			return err
		}
		updated, err = s.Repo.GetStageTx(ctx, tx, id)
		if err != nil {
			return err
		}
		events, err = s.emitStageEvent(ctx, tx, models.ChangeStageUpdated, id, actorID, feed.RowSet{Stages: []models.Stage{*updated}})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(events)
	return updated, nil
}

// ReorderStages re-ranks a pipeline's stages to match orderedIDs, which
// must be a permutation of its live stages. All-or-nothing.
func (s *StageService) ReorderStages(ctx context.Context, pipelineID string, orderedIDs []string, actorID string) ([]models.Stage, error) {
	var result []models.Stage
	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		stages, err := s.Repo.LockPipelineStagesTx(ctx, tx, pipelineID)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(stages) {
			return apperr.Newf(apperr.CodeInvalidArgument, "expected %d stage ids, got %d", len(stages), len(orderedIDs))
		}
		byID := make(map[string]*models.Stage, len(stages))
		for i := range stages {
			byID[stages[i].ID] = &stages[i]
		}
		for _, id := range orderedIDs {
			if byID[id] == nil {
				return apperr.Newf(apperr.CodeInvalidArgument, "unknown or duplicate stage id %s", id)
			}
		}
		seen := map[string]bool{}
		for rank, id := range orderedIDs {
			if seen[id] {
				return apperr.Newf(apperr.CodeInvalidArgument, "unknown or duplicate stage id %s", id)
			}
			seen[id] = true
			stage := byID[id]
			if stage.SortOrder != rank {
				if err := s.Repo.SetStageRankTx(ctx, tx, id, rank); err != nil {
					return err
				}
			}
			stage.SortOrder = rank
			result = append(result, *stage)
		}
		events, err = s.emitStageEvent(ctx, tx, models.ChangeStagesReordered, pipelineID, actorID, feed.RowSet{Stages: result})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(events)
	return result, nil
}

// DeleteStage removes a stage. A non-empty stage requires reassignTo:
// its deals are appended to the target stage's tail (with full move
// semantics and history) in the same transaction, then the stage row is
// soft-deleted and the remaining stages compacted.
func (s *StageService) DeleteStage(ctx context.Context, id, reassignTo, actorID string) error {
	now := time.Now().UTC()
	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		stage, err := s.Repo.GetStageTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if stage == nil {
			return apperr.NotFound("stage", id)
		}
		if reassignTo == id {
			return apperr.New(apperr.CodeInvalidArgument, "cannot reassign deals to the deleted stage")
		}

		stages, err := s.Repo.LockPipelineStagesTx(ctx, tx, stage.PipelineID)
		if err != nil {
			return err
		}
		var target *models.Stage
		for i := range stages {
			if stages[i].ID == reassignTo {
				target = &stages[i]
			}
		}
		if reassignTo != "" && target == nil {
			return apperr.NotFound("stage", reassignTo)
		}

		deals, err := s.Repo.ListDealsByStageTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(deals) > 0 && target == nil {
			return apperr.Newf(apperr.CodePreconditionFailed, "stage %s is not empty; supply a reassignment target", id)
		}

		if target != nil && len(deals) > 0 {
			tailBase, err := s.Repo.CountDealsTx(ctx, tx, target.ID)
			if err != nil {
				return err
			}
			for i, deal := range deals {
				toIdx := int(tailBase) + i
				fields := map[string]any{
					"stage_id":         target.ID,
					"sort_order":       toIdx,
					"last_stage_id":    id,
					"stage_entered_at": now,
					"updated_at":       now,
				}
				applyTerminalTransition(fields, target, MoveRequest{}, now)
				if err := s.Repo.UpdateDealFieldsTx(ctx, tx, deal.ID, fields); err != nil {
					return err
				}
				if err := s.Repo.InsertDealMoveTx(ctx, tx, &models.DealMove{
					DealID:      deal.ID,
					FromStageID: id,
					ToStageID:   target.ID,
					FromIndex:   deal.SortOrder,
					ToIndex:     toIdx,
					ActorID:     actorID,
				}); err != nil {
					return err
				}
			}
		}

		if err := s.Repo.SoftDeleteStageTx(ctx, tx, id); err != nil {
			return err
		}
		if err := s.Repo.ShiftStageRanksTx(ctx, tx, stage.PipelineID, ordering.RemovalWindow(stage.SortOrder, len(stages))); err != nil {
			return err
		}

		// Build the event payload from the locked rows: a read on the base
		// connection would not see this transaction's delete or compaction.
		remaining := make([]models.Stage, 0, len(stages)-1)
		for _, st := range stages {
			if st.ID == id {
				continue
			}
			if st.SortOrder > stage.SortOrder {
				st.SortOrder--
			}
			remaining = append(remaining, st)
		}
		events, err = s.emitStageEvent(ctx, tx, models.ChangeStageDeleted, id, actorID, feed.RowSet{
			Stages:          remaining,
			DeletedStageIDs: []string{id},
		})
		if err != nil {
			return err
		}
		if target != nil && len(deals) > 0 {
			targetDeals, err := s.Repo.ListDealsByStageTx(ctx, tx, target.ID)
			if err != nil {
				return err
			}
			ev, err := feed.NewEventModel(target.ID, models.ChangeDealMoved, target.ID, actorID, feed.RowSet{Deals: targetDeals})
			if err != nil {
				return err
			}
			if err := s.Repo.InsertChangeEventTx(ctx, tx, ev); err != nil {
				return err
			}
			events = append(events, feed.FromModel(*ev))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(events)
	return nil
}

// checkTerminalExclusive rejects a second is_won or is_lost stage in the
// same pipeline. Only newly-set flags are checked.
func (s *StageService) checkTerminalExclusive(ctx context.Context, tx *gorm.DB, pipelineID, selfID string, wantWon, wantLost bool) error {
	if wantWon {
		other, err := s.Repo.FindTerminalStageTx(ctx, tx, pipelineID, true, selfID)
		if err != nil {
			return err
		}
		if other != nil {
			return apperr.Newf(apperr.CodeInvalidArgument, "pipeline already has a won stage (%s)", other.Name)
		}
	}
	if wantLost {
		other, err := s.Repo.FindTerminalStageTx(ctx, tx, pipelineID, false, selfID)
		if err != nil {
			return err
		}
		if other != nil {
			return apperr.Newf(apperr.CodeInvalidArgument, "pipeline already has a lost stage (%s)", other.Name)
		}
	}
	return nil
}

func (s *StageService) emitStageEvent(ctx context.Context, tx *gorm.DB, kind, entityID, actorID string, rows feed.RowSet) ([]feed.Event, error) {
	ev, err := feed.NewEventModel(models.PartitionStages, kind, entityID, actorID, rows)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.InsertChangeEventTx(ctx, tx, ev); err != nil {
		return nil, err
	}
	return []feed.Event{feed.FromModel(*ev)}, nil
}

func (s *StageService) publish(events []feed.Event) {
	if s.Hub != nil && len(events) > 0 {
		s.Hub.Publish(events...)
	}
}
