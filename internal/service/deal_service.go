package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dealflow/internal/apperr"
	"dealflow/internal/feed"
	"dealflow/internal/models"
	"dealflow/internal/ordering"
	"dealflow/internal/repository"
)

// DealService owns deal CRUD. Stage and rank changes are unreachable from
// here; those go through MoveService.
type DealService struct {
	Repo            repository.Repository
	Hub             *feed.Hub
	Logger          *zap.Logger
	DefaultCurrency string
}

type CreateDealRequest struct {
	PipelineID        string
	StageID           string
	Title             string
	Value             *decimal.Decimal
	Currency          string
	Probability       *int
	ExpectedCloseDate *time.Time
	PersonID          *string
	OrganizationID    *string
	OwnerID           string
	VisibleTo         string
	CustomFields      map[string]any
	ActorID           string
}

type DealPatch struct {
	Title             *string
	Value             *decimal.Decimal
	Currency          *string
	Probability       *int
	ExpectedCloseDate *time.Time
	LostReason        *string
	PersonID          *string
	OrganizationID    *string
	OwnerID           *string
	VisibleTo         *string
	CustomFields      map[string]any
}

func validVisibleTo(v string) bool {
	switch v {
	case models.VisibleToOwner, models.VisibleToTeam, models.VisibleToEveryone:
		return true
	}
	return false
}

func (s *DealService) CreateDeal(ctx context.Context, req CreateDealRequest) (*models.Deal, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "deal title is required")
	}
	if req.Value != nil && req.Value.IsNegative() {
		return nil, apperr.New(apperr.CodeInvalidArgument, "deal value cannot be negative")
	}
	if req.Probability != nil && (*req.Probability < 0 || *req.Probability > 100) {
		return nil, apperr.New(apperr.CodeInvalidArgument, "probability must be between 0 and 100")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "currency must be a 3-letter code")
	}
	visibleTo := req.VisibleTo
	if visibleTo == "" {
		visibleTo = models.VisibleToEveryone
	}
	if !validVisibleTo(visibleTo) {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "invalid visibility %q", visibleTo)
	}

	now := time.Now().UTC()
	deal := &models.Deal{
		ID:                uuid.NewString(),
		PipelineID:        req.PipelineID,
		StageID:           req.StageID,
		Title:             strings.TrimSpace(req.Title),
		Value:             req.Value,
		Currency:          currency,
		Probability:       req.Probability,
		Status:            models.DealStatusOpen,
		ExpectedCloseDate: req.ExpectedCloseDate,
		StageEnteredAt:    now,
		PersonID:          req.PersonID,
		OrganizationID:    req.OrganizationID,
		OwnerID:           req.OwnerID,
		VisibleTo:         visibleTo,
		CustomFields:      datatypes.JSONMap(req.CustomFields),
	}

	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		stages, err := s.Repo.LockStagesTx(ctx, tx, []string{req.StageID})
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			return apperr.NotFound("stage", req.StageID)
		}
		deal.PipelineID = stages[0].PipelineID
		count, err := s.Repo.CountDealsTx(ctx, tx, req.StageID)
		if err != nil {
			return err
		}
		// New deals always append at the tail.
		deal.SortOrder = int(count)
		if err := s.Repo.CreateDealTx(ctx, tx, deal); err != nil {
			return err
		}
		events, err = s.emitDealEvent(ctx, tx, models.ChangeDealUpdated, req.ActorID, feed.RowSet{Deals: []models.Deal{*deal}}, deal.StageID, deal.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(events)
	return deal, nil
}

func (s *DealService) UpdateDeal(ctx context.Context, id string, patch DealPatch, actorID string) (*models.Deal, error) {
	fields := map[string]any{}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, apperr.New(apperr.CodeInvalidArgument, "deal title is required")
		}
		fields["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Value != nil {
		if patch.Value.IsNegative() {
			return nil, apperr.New(apperr.CodeInvalidArgument, "deal value cannot be negative")
		}
		fields["value"] = *patch.Value
	}
	if patch.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		if len(currency) != 3 {
			return nil, apperr.New(apperr.CodeInvalidArgument, "currency must be a 3-letter code")
		}
		fields["currency"] = currency
	}
	if patch.Probability != nil {
		if *patch.Probability < 0 || *patch.Probability > 100 {
			return nil, apperr.New(apperr.CodeInvalidArgument, "probability must be between 0 and 100")
		}
		fields["probability"] = *patch.Probability
	}
	if patch.ExpectedCloseDate != nil {
		fields["expected_close_date"] = *patch.ExpectedCloseDate
	}
	if patch.LostReason != nil {
		fields["lost_reason"] = *patch.LostReason
	}
	if patch.PersonID != nil {
		fields["person_id"] = *patch.PersonID
	}
	if patch.OrganizationID != nil {
		fields["organization_id"] = *patch.OrganizationID
	}
	if patch.OwnerID != nil {
		fields["owner_id"] = *patch.OwnerID
	}
	if patch.VisibleTo != nil {
		if !validVisibleTo(*patch.VisibleTo) {
			return nil, apperr.Newf(apperr.CodeInvalidArgument, "invalid visibility %q", *patch.VisibleTo)
		}
		fields["visible_to"] = *patch.VisibleTo
	}
	if patch.CustomFields != nil {
		fields["custom_fields"] = datatypes.JSONMap(patch.CustomFields)
	}

	var updated *models.Deal
	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		deal, err := s.Repo.GetDealTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if deal == nil {
			return apperr.NotFound("deal", id)
		}
		if err := s.Repo.UpdateDealFieldsTx(ctx, tx, id, fields); err != nil {
			return err
		}
		updated, err = s.Repo.GetDealTx(ctx, tx, id)
		if err != nil {
			return err
		}
		events, err = s.emitDealEvent(ctx, tx, models.ChangeDealUpdated, actorID, feed.RowSet{Deals: []models.Deal{*updated}}, updated.StageID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(events)
	return updated, nil
}

// DeleteDeal soft-deletes a deal and closes the gap it leaves in its
// stage's ordering.
func (s *DealService) DeleteDeal(ctx context.Context, id, actorID string) error {
	var events []feed.Event
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		deal, err := s.Repo.GetDealTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if deal == nil {
			return apperr.NotFound("deal", id)
		}
		lockedStageID := deal.StageID
		if _, err := s.Repo.LockStagesTx(ctx, tx, []string{lockedStageID}); err != nil {
			return err
		}
		// Re-read under the lock: a move committed while we waited would
		// leave the first read's stage and rank stale, and compacting from
		// them would corrupt ordering in two partitions.
		deal, err = s.Repo.GetDealTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if deal == nil {
			return apperr.NotFound("deal", id)
		}
		if deal.StageID != lockedStageID {
			return apperr.New(apperr.CodeConflict, "deal moved concurrently")
		}
		count, err := s.Repo.CountDealsTx(ctx, tx, deal.StageID)
		if err != nil {
			return err
		}
		if err := s.Repo.SoftDeleteDealTx(ctx, tx, id); err != nil {
			return err
		}
		if err := s.Repo.ShiftDealRanksTx(ctx, tx, deal.StageID, ordering.RemovalWindow(deal.SortOrder, int(count))); err != nil {
			return err
		}
		remaining, err := s.Repo.ListDealsByStageTx(ctx, tx, deal.StageID)
		if err != nil {
			return err
		}
		events, err = s.emitDealEvent(ctx, tx, models.ChangeDealDeleted, actorID, feed.RowSet{
			Deals:          remaining,
			DeletedDealIDs: []string{id},
		}, deal.StageID, id)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(events)
	return nil
}

func (s *DealService) GetDeal(ctx context.Context, id string) (*models.Deal, error) {
	deal, err := s.Repo.GetDealTx(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, apperr.NotFound("deal", id)
	}
	return deal, nil
}

func (s *DealService) emitDealEvent(ctx context.Context, tx *gorm.DB, kind, actorID string, rows feed.RowSet, partition, entityID string) ([]feed.Event, error) {
	ev, err := feed.NewEventModel(partition, kind, entityID, actorID, rows)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.InsertChangeEventTx(ctx, tx, ev); err != nil {
		return nil, err
	}
	return []feed.Event{feed.FromModel(*ev)}, nil
}

func (s *DealService) publish(events []feed.Event) {
	if s.Hub != nil && len(events) > 0 {
		s.Hub.Publish(events...)
	}
}
