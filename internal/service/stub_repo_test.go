package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dealflow/internal/models"
	"dealflow/internal/ordering"
	"dealflow/internal/repository"
)

// stubRepo is an in-memory Repository for exercising service logic without
// a database. Transactions are a pass-through; txErrs injects failures to
// drive the retry path.
type stubRepo struct {
	pipelines map[string]models.Pipeline
	stages    map[string]models.Stage
	deals     map[string]models.Deal
	moves     []models.DealMove
	events    []models.ChangeEvent
	nextSeq   uint64

	txErrs []error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		pipelines: map[string]models.Pipeline{},
		stages:    map[string]models.Stage{},
		deals:     map[string]models.Deal{},
	}
}

func (r *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if len(r.txErrs) > 0 {
		err := r.txErrs[0]
		r.txErrs = r.txErrs[1:]
		if err != nil {
			return err
		}
	}
	return fn(nil)
}

func (r *stubRepo) CreatePipeline(ctx context.Context, item *models.Pipeline) error {
	r.pipelines[item.ID] = *item
	return nil
}

func (r *stubRepo) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	if p, ok := r.pipelines[id]; ok {
		out := p
		return &out, nil
	}
	return nil, nil
}

func (r *stubRepo) GetPipelineByName(ctx context.Context, name string) (*models.Pipeline, error) {
	for _, p := range r.pipelines {
		if p.Name == name {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) CreateStageTx(ctx context.Context, tx *gorm.DB, item *models.Stage) error {
	r.stages[item.ID] = *item
	return nil
}

func (r *stubRepo) GetStageTx(ctx context.Context, tx *gorm.DB, id string) (*models.Stage, error) {
	if s, ok := r.stages[id]; ok {
		out := s
		return &out, nil
	}
	return nil, nil
}

func (r *stubRepo) LockStagesTx(ctx context.Context, tx *gorm.DB, ids []string) ([]models.Stage, error) {
	seen := map[string]bool{}
	var out []models.Stage
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := r.stages[id]; ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubRepo) LockPipelineStagesTx(ctx context.Context, tx *gorm.DB, pipelineID string) ([]models.Stage, error) {
	return r.ListStages(ctx, pipelineID)
}

func (r *stubRepo) ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error) {
	var out []models.Stage
	for _, s := range r.stages {
		if pipelineID == "" || s.PipelineID == pipelineID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *stubRepo) ListStagesByIDs(ctx context.Context, ids []string) ([]models.Stage, error) {
	var out []models.Stage
	for _, id := range ids {
		if s, ok := r.stages[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) CountStagesTx(ctx context.Context, tx *gorm.DB, pipelineID string) (int64, error) {
	stages, _ := r.ListStages(ctx, pipelineID)
	return int64(len(stages)), nil
}

func (r *stubRepo) FindTerminalStageTx(ctx context.Context, tx *gorm.DB, pipelineID string, won bool, excludeID string) (*models.Stage, error) {
	for _, s := range r.stages {
		if s.PipelineID != pipelineID || s.ID == excludeID {
			continue
		}
		if (won && s.IsWon) || (!won && s.IsLost) {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) UpdateStageFieldsTx(ctx context.Context, tx *gorm.DB, id string, fields map[string]any) error {
	s, ok := r.stages[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			s.Name = v.(string)
		case "color":
			s.Color = v.(string)
		case "probability":
			s.Probability = v.(int)
		case "rotten_days":
			s.RottenDays = v.(int)
		case "is_won":
			s.IsWon = v.(bool)
		case "is_lost":
			s.IsLost = v.(bool)
		}
	}
	r.stages[id] = s
	return nil
}

func (r *stubRepo) SetStageRankTx(ctx context.Context, tx *gorm.DB, id string, rank int) error {
	s, ok := r.stages[id]
	if !ok {
		return nil
	}
	s.SortOrder = rank
	r.stages[id] = s
	return nil
}

func (r *stubRepo) ShiftStageRanksTx(ctx context.Context, tx *gorm.DB, pipelineID string, w ordering.Window) error {
	if w.Empty() {
		return nil
	}
	for id, s := range r.stages {
		if s.PipelineID == pipelineID && s.SortOrder >= w.Lo && s.SortOrder <= w.Hi {
			s.SortOrder += w.Delta
			r.stages[id] = s
		}
	}
	return nil
}

func (r *stubRepo) SoftDeleteStageTx(ctx context.Context, tx *gorm.DB, id string) error {
	delete(r.stages, id)
	return nil
}

func (r *stubRepo) CreateDealTx(ctx context.Context, tx *gorm.DB, item *models.Deal) error {
	r.deals[item.ID] = *item
	return nil
}

func (r *stubRepo) GetDealTx(ctx context.Context, tx *gorm.DB, id string) (*models.Deal, error) {
	if d, ok := r.deals[id]; ok {
		out := d
		return &out, nil
	}
	return nil, nil
}

func (r *stubRepo) ListDealsByStageTx(ctx context.Context, tx *gorm.DB, stageID string) ([]models.Deal, error) {
	var out []models.Deal
	for _, d := range r.deals {
		if d.StageID == stageID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *stubRepo) ListDeals(ctx context.Context, params repository.ListDealsParams) ([]models.Deal, error) {
	var out []models.Deal
	for _, d := range r.deals {
		if params.PipelineID != "" && d.PipelineID != params.PipelineID {
			continue
		}
		if params.StageID != nil && d.StageID != *params.StageID {
			continue
		}
		if params.Status != nil && d.Status != *params.Status {
			continue
		}
		if params.OwnerID != nil && d.OwnerID != *params.OwnerID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StageID != out[j].StageID {
			return out[i].StageID < out[j].StageID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (r *stubRepo) ListOpenDeals(ctx context.Context, pipelineID string) ([]models.Deal, error) {
	var out []models.Deal
	for _, d := range r.deals {
		if d.Status != models.DealStatusOpen {
			continue
		}
		if pipelineID != "" && d.PipelineID != pipelineID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *stubRepo) CountDealsTx(ctx context.Context, tx *gorm.DB, stageID string) (int64, error) {
	var n int64
	for _, d := range r.deals {
		if d.StageID == stageID {
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) UpdateDealFieldsTx(ctx context.Context, tx *gorm.DB, id string, fields map[string]any) error {
	d, ok := r.deals[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "title":
			d.Title = v.(string)
		case "value":
			val := v.(decimal.Decimal)
			d.Value = &val
		case "currency":
			d.Currency = v.(string)
		case "probability":
			p := v.(int)
			d.Probability = &p
		case "expected_close_date":
			ts := v.(time.Time)
			d.ExpectedCloseDate = &ts
		case "lost_reason":
			d.LostReason = v.(string)
		case "person_id":
			pid := v.(string)
			d.PersonID = &pid
		case "organization_id":
			oid := v.(string)
			d.OrganizationID = &oid
		case "owner_id":
			d.OwnerID = v.(string)
		case "visible_to":
			d.VisibleTo = v.(string)
		case "custom_fields":
			d.CustomFields = v.(datatypes.JSONMap)
		case "stage_id":
			d.StageID = v.(string)
		case "sort_order":
			d.SortOrder = v.(int)
		case "last_stage_id":
			last := v.(string)
			d.LastStageID = &last
		case "stage_entered_at":
			d.StageEnteredAt = v.(time.Time)
		case "updated_at":
			d.UpdatedAt = v.(time.Time)
		case "status":
			d.Status = v.(string)
		case "actual_close_date":
			if v == nil {
				d.ActualCloseDate = nil
			} else {
				ts := v.(time.Time)
				d.ActualCloseDate = &ts
			}
		case "is_locked":
			d.IsLocked = v.(bool)
		}
	}
	r.deals[id] = d
	return nil
}

func (r *stubRepo) ShiftDealRanksTx(ctx context.Context, tx *gorm.DB, stageID string, w ordering.Window) error {
	if w.Empty() {
		return nil
	}
	for id, d := range r.deals {
		if d.StageID == stageID && d.SortOrder >= w.Lo && d.SortOrder <= w.Hi {
			d.SortOrder += w.Delta
			r.deals[id] = d
		}
	}
	return nil
}

func (r *stubRepo) SoftDeleteDealTx(ctx context.Context, tx *gorm.DB, id string) error {
	delete(r.deals, id)
	return nil
}

func (r *stubRepo) InsertDealMoveTx(ctx context.Context, tx *gorm.DB, item *models.DealMove) error {
	r.moves = append(r.moves, *item)
	return nil
}

func (r *stubRepo) ListDealMoves(ctx context.Context, dealID string, limit, offset int) ([]models.DealMove, error) {
	var out []models.DealMove
	for _, m := range r.moves {
		if m.DealID == dealID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubRepo) InsertChangeEventTx(ctx context.Context, tx *gorm.DB, item *models.ChangeEvent) error {
	r.nextSeq++
	item.Seq = r.nextSeq
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, *item)
	return nil
}

func (r *stubRepo) ListChangeEventsAfter(ctx context.Context, partition string, afterSeq uint64, limit int) ([]models.ChangeEvent, error) {
	var out []models.ChangeEvent
	for _, ev := range r.events {
		if ev.Seq <= afterSeq {
			continue
		}
		if partition != "" && ev.Partition != partition {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *stubRepo) DeleteChangeEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	var kept []models.ChangeEvent
	var n int64
	for _, ev := range r.events {
		if ev.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	r.events = kept
	return n, nil
}

// eventsFor filters recorded change events by partition.
func (r *stubRepo) eventsFor(partition string) []models.ChangeEvent {
	var out []models.ChangeEvent
	for _, ev := range r.events {
		if ev.Partition == partition {
			out = append(out, ev)
		}
	}
	return out
}

// stageRanks returns the sort orders of a stage's deals in rank order.
func (r *stubRepo) stageRanks(stageID string) []int {
	deals, _ := r.ListDealsByStageTx(context.Background(), nil, stageID)
	out := make([]int, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.SortOrder)
	}
	return out
}
