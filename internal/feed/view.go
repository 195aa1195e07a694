package feed

import (
	"sort"
	"sync"

	"dealflow/internal/models"
)

// BoardView is a client-local copy of the board, reconciled from
// change-feed deltas. The store is the sole authority: every row in an
// applied event replaces the local copy wholesale (last committed wins),
// and stale or replayed events are skipped by per-partition sequence.
type BoardView struct {
	mu      sync.RWMutex
	stages  map[string]models.Stage
	deals   map[string]models.Deal
	lastSeq map[string]uint64
}

func NewBoardView() *BoardView {
	return &BoardView{
		stages:  map[string]models.Stage{},
		deals:   map[string]models.Deal{},
		lastSeq: map[string]uint64{},
	}
}

// Load primes the view from a full board read.
func (v *BoardView) Load(stages []models.Stage, deals []models.Deal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range stages {
		v.stages[s.ID] = s
	}
	for _, d := range deals {
		v.deals[d.ID] = d
	}
}

// Apply merges one committed delta. Events at or below the partition's
// last applied sequence are ignored, so replay overlap is harmless.
func (v *BoardView) Apply(ev Event) error {
	rows, err := ev.Rows()
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if ev.Seq != 0 && ev.Seq <= v.lastSeq[ev.Partition] {
		return nil
	}
	for _, s := range rows.Stages {
		v.stages[s.ID] = s
	}
	for _, d := range rows.Deals {
		v.deals[d.ID] = d
	}
	for _, id := range rows.DeletedStageIDs {
		delete(v.stages, id)
	}
	for _, id := range rows.DeletedDealIDs {
		delete(v.deals, id)
	}
	if ev.Seq != 0 {
		v.lastSeq[ev.Partition] = ev.Seq
	}
	return nil
}

// Stages returns the stages in rank order.
func (v *BoardView) Stages() []models.Stage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Stage, 0, len(v.stages))
	for _, s := range v.stages {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// StageDeals returns a stage's deals in rank order.
func (v *BoardView) StageDeals(stageID string) []models.Deal {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Deal, 0, 8)
	for _, d := range v.deals {
		if d.StageID == stageID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// Deal returns the local copy of one deal.
func (v *BoardView) Deal(id string) (models.Deal, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.deals[id]
	return d, ok
}

// DealCount is the total number of deals in the view.
func (v *BoardView) DealCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.deals)
}
