package cache

import (
	"encoding/json"
	"testing"

	"dealflow/internal/feed"
	"dealflow/internal/models"
)

func TestInvalidationTargetsDealPartition(t *testing.T) {
	keyFor := func(p string) string { return "metrics:" + p }

	got := invalidationTargets(feed.Event{Partition: "s1", Kind: models.ChangeDealMoved}, keyFor)
	if len(got) != 1 || got[0] != "metrics:s1" {
		t.Fatalf("got %v, want [metrics:s1]", got)
	}
}

func TestInvalidationTargetsStagePartition(t *testing.T) {
	keyFor := func(p string) string { return "metrics:" + p }

	// A probability or terminal-flag edit carries the touched stage rows;
	// a deletion also carries the removed ids. Every one of them has a
	// metrics key that is now stale.
	payload, err := json.Marshal(feed.RowSet{
		Stages:          []models.Stage{{ID: "s1"}, {ID: "s2"}},
		DeletedStageIDs: []string{"s3"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := invalidationTargets(feed.Event{
		Partition: models.PartitionStages,
		Kind:      models.ChangeStageUpdated,
		Payload:   payload,
	}, keyFor)
	want := []string{"metrics:s1", "metrics:s2", "metrics:s3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestInvalidationTargetsBadPayload(t *testing.T) {
	keyFor := func(p string) string { return "metrics:" + p }

	got := invalidationTargets(feed.Event{
		Partition: models.PartitionStages,
		Kind:      models.ChangeStageUpdated,
		Payload:   json.RawMessage(`{`),
	}, keyFor)
	if got != nil {
		t.Fatalf("got %v, want nil for undecodable payload", got)
	}
}
