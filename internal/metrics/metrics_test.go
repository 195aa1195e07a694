package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dealflow/internal/models"
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestEffectiveProbability(t *testing.T) {
	stage := models.Stage{Probability: 40}
	if got := EffectiveProbability(models.Deal{}, stage); got != 40 {
		t.Fatalf("got %d, want stage default 40", got)
	}
	p := 75
	if got := EffectiveProbability(models.Deal{Probability: &p}, stage); got != 75 {
		t.Fatalf("got %d, want deal override 75", got)
	}
}

func TestForStageWeightedValue(t *testing.T) {
	stage := models.Stage{ID: "s1", Probability: 50}
	deals := []models.Deal{
		{ID: "d1", StageID: "s1", Status: models.DealStatusOpen, Value: dec(100)},
		{ID: "d2", StageID: "s1", Status: models.DealStatusOpen, Value: dec(200)},
		{ID: "d3", StageID: "other", Status: models.DealStatusOpen, Value: dec(999)},
	}

	m := ForStage(stage, deals)
	if m.Count != 2 {
		t.Fatalf("count = %d, want 2", m.Count)
	}
	if !m.TotalValue.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("total = %s, want 300", m.TotalValue)
	}
	if !m.WeightedValue.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("weighted = %s, want 150", m.WeightedValue)
	}
}

func TestForStageDealOverrideWins(t *testing.T) {
	stage := models.Stage{ID: "s1", Probability: 50}
	p := 10
	deals := []models.Deal{
		{ID: "d1", StageID: "s1", Status: models.DealStatusOpen, Value: dec(100), Probability: &p},
	}
	m := ForStage(stage, deals)
	if !m.WeightedValue.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("weighted = %s, want 10", m.WeightedValue)
	}
}

func TestForStageExcludesLostFromTotals(t *testing.T) {
	stage := models.Stage{ID: "s1", Probability: 100}
	deals := []models.Deal{
		{ID: "d1", StageID: "s1", Status: models.DealStatusWon, Value: dec(100)},
		{ID: "d2", StageID: "s1", Status: models.DealStatusLost, Value: dec(500)},
		{ID: "d3", StageID: "s1", Status: models.DealStatusOpen},
	}
	m := ForStage(stage, deals)
	if m.Count != 3 {
		t.Fatalf("count = %d, want 3 (lost still counted)", m.Count)
	}
	if !m.TotalValue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s, want 100 (lost and nil values excluded)", m.TotalValue)
	}
}

func TestRottenThreshold(t *testing.T) {
	if got := RottenThreshold(models.Stage{}, Config{}); got != DefaultRottenAfter {
		t.Fatalf("got %v, want default %v", got, DefaultRottenAfter)
	}
	if got := RottenThreshold(models.Stage{}, Config{RottenAfter: 48 * time.Hour}); got != 48*time.Hour {
		t.Fatalf("got %v, want configured 48h", got)
	}
	// Stage override beats configuration.
	if got := RottenThreshold(models.Stage{RottenDays: 7}, Config{RottenAfter: 48 * time.Hour}); got != 7*24*time.Hour {
		t.Fatalf("got %v, want stage override 168h", got)
	}
}

func TestForDealRotten(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	stage := models.Stage{ID: "s1"}
	cfg := Config{RottenAfter: 10 * 24 * time.Hour}

	stale := models.Deal{
		StageID:        "s1",
		Status:         models.DealStatusOpen,
		StageEnteredAt: now.Add(-11 * 24 * time.Hour),
	}
	h := ForDeal(stale, stage, now, cfg)
	if !h.Rotten {
		t.Fatalf("deal 11 days in stage should be rotten at 10-day threshold")
	}
	if h.DaysInStage != 11 {
		t.Fatalf("days in stage = %d, want 11", h.DaysInStage)
	}

	// Entering a new stage resets the clock.
	fresh := stale
	fresh.StageEnteredAt = now.Add(-time.Hour)
	if h := ForDeal(fresh, stage, now, cfg); h.Rotten {
		t.Fatalf("freshly moved deal should not be rotten")
	}

	// Closed deals never rot.
	won := stale
	won.Status = models.DealStatusWon
	if h := ForDeal(won, stage, now, cfg); h.Rotten {
		t.Fatalf("won deal should not be rotten")
	}
}

func TestForDealOverdue(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	d := models.Deal{Status: models.DealStatusOpen, StageEnteredAt: now, ExpectedCloseDate: &past}
	if h := ForDeal(d, models.Stage{}, now, Config{}); !h.Overdue {
		t.Fatalf("deal past expected close should be overdue")
	}

	d.ExpectedCloseDate = &future
	if h := ForDeal(d, models.Stage{}, now, Config{}); h.Overdue {
		t.Fatalf("deal before expected close should not be overdue")
	}

	// A closed deal is never overdue.
	d.ExpectedCloseDate = &past
	d.ActualCloseDate = &now
	if h := ForDeal(d, models.Stage{}, now, Config{}); h.Overdue {
		t.Fatalf("closed deal should not be overdue")
	}

	// No expected close date means nothing to be overdue against.
	d.ExpectedCloseDate = nil
	d.ActualCloseDate = nil
	if h := ForDeal(d, models.Stage{}, now, Config{}); h.Overdue {
		t.Fatalf("deal without expected close should not be overdue")
	}
}
