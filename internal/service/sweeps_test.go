package service

import (
	"context"
	"testing"
	"time"

	"dealflow/internal/metrics"
	"dealflow/internal/models"
)

func TestSweepFeedRetention(t *testing.T) {
	repo := newStubRepo()
	old := time.Now().UTC().Add(-48 * time.Hour)
	repo.events = []models.ChangeEvent{
		{Seq: 1, Partition: "s1", CreatedAt: old},
		{Seq: 2, Partition: "s1", CreatedAt: time.Now().UTC()},
	}
	repo.nextSeq = 2

	svc := &SweepService{Repo: repo, Retention: 24 * time.Hour}
	svc.SweepFeedRetention(context.Background())

	if len(repo.events) != 1 || repo.events[0].Seq != 2 {
		t.Fatalf("unexpected events after sweep: %+v", repo.events)
	}

	// Zero retention disables the sweep entirely.
	svc.Retention = 0
	svc.SweepFeedRetention(context.Background())
	if len(repo.events) != 1 {
		t.Fatalf("disabled sweep deleted events")
	}
}

func TestSweepRottenNotifiesOncePerStageEntry(t *testing.T) {
	repo := newStubRepo()
	seedBoard(repo)

	// a0 has been sitting in its stage past the threshold.
	d := repo.deals["a0"]
	d.StageEnteredAt = time.Now().UTC().Add(-72 * time.Hour)
	repo.deals["a0"] = d

	svc := &SweepService{Repo: repo, Metrics: metrics.Config{RottenAfter: 24 * time.Hour}}

	svc.SweepRotten(context.Background())
	events := repo.eventsFor("sa")
	if len(events) != 1 || events[0].Kind != models.ChangeDealRotten || events[0].EntityID != "a0" {
		t.Fatalf("unexpected events %+v", events)
	}

	// A second sweep over unchanged state stays quiet.
	svc.SweepRotten(context.Background())
	if len(repo.eventsFor("sa")) != 1 {
		t.Fatalf("duplicate rotten notice emitted")
	}

	// Re-entering the stage resets eligibility.
	d = repo.deals["a0"]
	d.StageEnteredAt = time.Now().UTC().Add(-100 * time.Hour)
	repo.deals["a0"] = d
	svc.SweepRotten(context.Background())
	if len(repo.eventsFor("sa")) != 2 {
		t.Fatalf("notice not re-emitted after stage entry changed")
	}
}

func TestSweepRottenSkipsClosedDeals(t *testing.T) {
	repo := newStubRepo()
	seedBoard(repo)

	d := repo.deals["a0"]
	d.StageEnteredAt = time.Now().UTC().Add(-72 * time.Hour)
	d.Status = models.DealStatusWon
	repo.deals["a0"] = d

	svc := &SweepService{Repo: repo, Metrics: metrics.Config{RottenAfter: 24 * time.Hour}}
	svc.SweepRotten(context.Background())
	if len(repo.events) != 0 {
		t.Fatalf("closed deal produced a rotten notice: %+v", repo.events)
	}
}
