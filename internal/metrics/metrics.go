// Package metrics computes derived per-stage and per-deal health
// indicators from current state at read time. Nothing here is persisted;
// the store stays the single source of truth.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"dealflow/internal/models"
)

// DefaultRottenAfter is the staleness threshold applied when neither the
// stage nor the configuration overrides it.
const DefaultRottenAfter = 30 * 24 * time.Hour

type Config struct {
	RottenAfter time.Duration
}

type StageMetrics struct {
	StageID       string          `json:"stage_id"`
	Count         int             `json:"count"`
	TotalValue    decimal.Decimal `json:"total_value"`
	WeightedValue decimal.Decimal `json:"weighted_value"`
}

type DealHealth struct {
	Overdue     bool `json:"overdue"`
	Rotten      bool `json:"rotten"`
	DaysInStage int  `json:"days_in_stage"`
}

// EffectiveProbability is the deal override when present, else the stage
// default.
func EffectiveProbability(d models.Deal, s models.Stage) int {
	if d.Probability != nil {
		return *d.Probability
	}
	return s.Probability
}

// ForStage totals the stage's deals. Lost deals are excluded from both
// totals; open and won deals count.
func ForStage(s models.Stage, deals []models.Deal) StageMetrics {
	m := StageMetrics{StageID: s.ID, TotalValue: decimal.Zero, WeightedValue: decimal.Zero}
	hundred := decimal.NewFromInt(100)
	for _, d := range deals {
		if d.StageID != s.ID {
			continue
		}
		m.Count++
		if d.Status == models.DealStatusLost || d.Value == nil {
			continue
		}
		m.TotalValue = m.TotalValue.Add(*d.Value)
		p := decimal.NewFromInt(int64(EffectiveProbability(d, s)))
		m.WeightedValue = m.WeightedValue.Add(d.Value.Mul(p).Div(hundred))
	}
	return m
}

// RottenThreshold resolves the staleness threshold for a stage: the stage
// override wins, then the configured default, then DefaultRottenAfter.
func RottenThreshold(s models.Stage, cfg Config) time.Duration {
	if s.RottenDays > 0 {
		return time.Duration(s.RottenDays) * 24 * time.Hour
	}
	if cfg.RottenAfter > 0 {
		return cfg.RottenAfter
	}
	return DefaultRottenAfter
}

// ForDeal computes overdue/rotten flags. Both are independent of the
// deal's rank, so same-stage reordering never changes them.
func ForDeal(d models.Deal, s models.Stage, now time.Time, cfg Config) DealHealth {
	h := DealHealth{}
	if !d.StageEnteredAt.IsZero() {
		h.DaysInStage = int(now.Sub(d.StageEnteredAt) / (24 * time.Hour))
	}
	if d.ExpectedCloseDate != nil && d.ExpectedCloseDate.Before(now) && d.ActualCloseDate == nil {
		h.Overdue = true
	}
	if d.Status == models.DealStatusOpen && now.Sub(d.StageEnteredAt) > RottenThreshold(s, cfg) {
		h.Rotten = true
	}
	return h
}
