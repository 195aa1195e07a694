package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"dealflow/internal/apperr"
	"dealflow/internal/feed"
	"dealflow/internal/models"
	"dealflow/internal/ordering"
	"dealflow/internal/repository"
)

// MoveService relocates deals between and within stage lists. Each move is
// one transaction holding FOR UPDATE locks on the source and destination
// stage rows; rank maintenance is bounded to the positions between the old
// and new slot. Conflicting concurrent moves serialize on the stage locks;
// serialization failures are retried with the target index re-clamped
// against fresh state.
type MoveService struct {
	Repo       repository.Repository
	Hub        *feed.Hub
	Logger     *zap.Logger
	MaxRetries int
}

type MoveRequest struct {
	DealID        string
	TargetStageID string
	TargetIndex   int
	ActorID       string
	LostReason    string

	// reopen lifts the lock on a closed deal as part of the move.
	reopen bool
}

type MoveResult struct {
	Deal        models.Deal  `json:"deal"`
	FromStageID string       `json:"from_stage_id"`
	FromIndex   int          `json:"from_index"`
	ToStageID   string       `json:"to_stage_id"`
	ToIndex     int          `json:"to_index"`
	NoOp        bool         `json:"no_op"`
	Events      []feed.Event `json:"-"`
}

func (s *MoveService) MoveDeal(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	retries := s.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	var res *MoveResult
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		res, err = s.moveOnce(ctx, req)
		if err == nil || !apperr.Retryable(err) {
			break
		}
		if s.Logger != nil {
			s.Logger.Debug("move conflict, retrying",
				zap.String("deal_id", req.DealID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
	}
	if err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.Publish(res.Events...)
	}
	return res, nil
}

// ReopenDeal moves a closed, locked deal back into a non-terminal stage,
// clearing its terminal state. This is the only path that changes the
// stage of a locked deal.
func (s *MoveService) ReopenDeal(ctx context.Context, dealID, targetStageID, actorID string) (*MoveResult, error) {
	return s.MoveDeal(ctx, MoveRequest{
		DealID:        dealID,
		TargetStageID: targetStageID,
		TargetIndex:   math.MaxInt32,
		ActorID:       actorID,
		reopen:        true,
	})
}

func (s *MoveService) moveOnce(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	now := time.Now().UTC()
	var res MoveResult
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		deal, err := s.Repo.GetDealTx(ctx, tx, req.DealID)
		if err != nil {
			return err
		}
		if deal == nil {
			return apperr.NotFound("deal", req.DealID)
		}

		targetStageID := req.TargetStageID
		if targetStageID == "" {
			targetStageID = deal.StageID
		}
		stages, err := s.Repo.LockStagesTx(ctx, tx, []string{deal.StageID, targetStageID})
		if err != nil {
			return err
		}
		var src, dst *models.Stage
		for i := range stages {
			if stages[i].ID == deal.StageID {
				src = &stages[i]
			}
			if stages[i].ID == targetStageID {
				dst = &stages[i]
			}
		}
		if dst == nil {
			return apperr.NotFound("stage", targetStageID)
		}

		// Re-read under the lock: the deal may have been moved by a
		// transaction that committed between the first read and lock
		// acquisition. If it left the locked partitions, start over.
		deal, err = s.Repo.GetDealTx(ctx, tx, req.DealID)
		if err != nil {
			return err
		}
		if deal == nil {
			return apperr.NotFound("deal", req.DealID)
		}
		if src == nil || deal.StageID != src.ID {
			return apperr.New(apperr.CodeConflict, "deal moved concurrently")
		}

		if deal.IsLocked && !req.reopen {
			return apperr.New(apperr.CodePreconditionFailed, "deal is locked")
		}
		if req.reopen && dst.Terminal() {
			return apperr.New(apperr.CodeInvalidArgument, "cannot reopen into a terminal stage")
		}

		res.Deal = *deal
		res.FromStageID = src.ID
		res.FromIndex = deal.SortOrder
		res.ToStageID = dst.ID

		if src.ID == dst.ID {
			return s.moveWithin(ctx, tx, deal, src, req, now, &res)
		}
		return s.moveAcross(ctx, tx, deal, src, dst, req, now, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *MoveService) moveWithin(ctx context.Context, tx *gorm.DB, deal *models.Deal, stage *models.Stage, req MoveRequest, now time.Time, res *MoveResult) error {
	count, err := s.Repo.CountDealsTx(ctx, tx, stage.ID)
	if err != nil {
		return err
	}
	// Within one stage the deal is removed before insertion, so valid
	// slots are 0..count-1.
	toIdx := ordering.ClampIndex(req.TargetIndex, int(count)-1)
	res.ToIndex = toIdx

	if toIdx == deal.SortOrder {
		// Effective no-op: ranks and stage_entered_at stay untouched,
		// but the move is still recorded.
		res.NoOp = true
		return s.recordMove(ctx, tx, deal, stage.ID, stage.ID, deal.SortOrder, toIdx, req.ActorID, true)
	}

	if err := s.Repo.ShiftDealRanksTx(ctx, tx, stage.ID, ordering.MoveWindow(deal.SortOrder, toIdx)); err != nil {
		return err
	}
	if err := s.Repo.UpdateDealFieldsTx(ctx, tx, deal.ID, map[string]any{
		"sort_order": toIdx,
		"updated_at": now,
	}); err != nil {
		return err
	}
	if err := s.recordMove(ctx, tx, deal, stage.ID, stage.ID, deal.SortOrder, toIdx, req.ActorID, false); err != nil {
		return err
	}
	return s.emitStageRows(ctx, tx, req.ActorID, res, stage.ID)
}

func (s *MoveService) moveAcross(ctx context.Context, tx *gorm.DB, deal *models.Deal, src, dst *models.Stage, req MoveRequest, now time.Time, res *MoveResult) error {
	srcCount, err := s.Repo.CountDealsTx(ctx, tx, src.ID)
	if err != nil {
		return err
	}
	dstCount, err := s.Repo.CountDealsTx(ctx, tx, dst.ID)
	if err != nil {
		return err
	}
	toIdx := ordering.ClampIndex(req.TargetIndex, int(dstCount))
	res.ToIndex = toIdx

	if err := s.Repo.ShiftDealRanksTx(ctx, tx, src.ID, ordering.RemovalWindow(deal.SortOrder, int(srcCount))); err != nil {
		return err
	}
	if err := s.Repo.ShiftDealRanksTx(ctx, tx, dst.ID, ordering.InsertionWindow(toIdx, int(dstCount))); err != nil {
		return err
	}

	fields := map[string]any{
		"stage_id":         dst.ID,
		"sort_order":       toIdx,
		"last_stage_id":    src.ID,
		"stage_entered_at": now,
		"updated_at":       now,
	}
	applyTerminalTransition(fields, dst, req, now)
	if err := s.Repo.UpdateDealFieldsTx(ctx, tx, deal.ID, fields); err != nil {
		return err
	}
	if err := s.recordMove(ctx, tx, deal, src.ID, dst.ID, deal.SortOrder, toIdx, req.ActorID, false); err != nil {
		return err
	}
	return s.emitStageRows(ctx, tx, req.ActorID, res, src.ID, dst.ID)
}

// applyTerminalTransition is the won/lost state machine: deal status is
// derived entirely from the destination stage's terminal flags. Moving
// between two non-terminal stages never touches status or close date.
func applyTerminalTransition(fields map[string]any, dst *models.Stage, req MoveRequest, now time.Time) {
	switch {
	case dst.IsWon:
		fields["status"] = models.DealStatusWon
		fields["actual_close_date"] = now
		fields["is_locked"] = true
	case dst.IsLost:
		fields["status"] = models.DealStatusLost
		fields["actual_close_date"] = now
		fields["is_locked"] = true
		if req.LostReason != "" {
			fields["lost_reason"] = req.LostReason
		}
	case req.reopen:
		fields["status"] = models.DealStatusOpen
		fields["actual_close_date"] = nil
		fields["is_locked"] = false
		fields["lost_reason"] = ""
	}
}

func (s *MoveService) recordMove(ctx context.Context, tx *gorm.DB, deal *models.Deal, fromStage, toStage string, fromIdx, toIdx int, actorID string, noOp bool) error {
	return s.Repo.InsertDealMoveTx(ctx, tx, &models.DealMove{
		DealID:      deal.ID,
		FromStageID: fromStage,
		ToStageID:   toStage,
		FromIndex:   fromIdx,
		ToIndex:     toIdx,
		ActorID:     actorID,
		NoOp:        noOp,
	})
}

// emitStageRows persists one change event per touched partition, each
// carrying the partition's full post-move row set plus the moved deal, so
// a subscriber of either partition alone can reconcile.
func (s *MoveService) emitStageRows(ctx context.Context, tx *gorm.DB, actorID string, res *MoveResult, stageIDs ...string) error {
	moved, err := s.Repo.GetDealTx(ctx, tx, res.Deal.ID)
	if err != nil {
		return err
	}
	if moved != nil {
		res.Deal = *moved
	}
	for _, stageID := range stageIDs {
		deals, err := s.Repo.ListDealsByStageTx(ctx, tx, stageID)
		if err != nil {
			return err
		}
		rows := feed.RowSet{Deals: deals}
		if moved != nil && moved.StageID != stageID {
			rows.Deals = append(rows.Deals, *moved)
		}
		ev, err := feed.NewEventModel(stageID, models.ChangeDealMoved, res.Deal.ID, actorID, rows)
		if err != nil {
			return err
		}
		if err := s.Repo.InsertChangeEventTx(ctx, tx, ev); err != nil {
			return err
		}
		res.Events = append(res.Events, feed.FromModel(*ev))
	}
	return nil
}
