package feed

import (
	"context"
	"testing"

	"dealflow/internal/models"
)

type stubLog struct {
	rows []models.ChangeEvent
}

func (s *stubLog) ListChangeEventsAfter(ctx context.Context, partition string, afterSeq uint64, limit int) ([]models.ChangeEvent, error) {
	var out []models.ChangeEvent
	for _, r := range s.rows {
		if r.Seq <= afterSeq {
			continue
		}
		if partition != "" && r.Partition != partition {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func TestHubFanout(t *testing.T) {
	h := NewHub(nil, nil, 8)

	s1, cancel1 := h.Subscribe("s1")
	defer cancel1()
	s2, cancel2 := h.Subscribe("s2")
	defer cancel2()
	all, cancelAll := h.Subscribe(PartitionAll)
	defer cancelAll()

	h.Publish(Event{Seq: 1, Partition: "s1", Kind: models.ChangeDealMoved})

	select {
	case ev := <-s1:
		if ev.Seq != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("s1 subscriber got nothing")
	}
	select {
	case ev := <-s2:
		t.Fatalf("s2 subscriber should see nothing, got %+v", ev)
	default:
	}
	select {
	case ev := <-all:
		if ev.Partition != "s1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("wildcard subscriber got nothing")
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	h := NewHub(nil, nil, 8)
	ch, cancel := h.Subscribe("s1")
	cancel()

	h.Publish(Event{Seq: 1, Partition: "s1"})
	select {
	case ev := <-ch:
		t.Fatalf("cancelled subscriber got %+v", ev)
	default:
	}
}

// A full subscriber buffer must never block the publisher; the overflow is
// dropped and the client converges through Replay.
func TestHubSlowConsumerDrops(t *testing.T) {
	h := NewHub(nil, nil, 1)
	ch, cancel := h.Subscribe("s1")
	defer cancel()

	h.Publish(
		Event{Seq: 1, Partition: "s1"},
		Event{Seq: 2, Partition: "s1"},
		Event{Seq: 3, Partition: "s1"},
	)

	ev := <-ch
	if ev.Seq != 1 {
		t.Fatalf("first event seq = %d, want 1", ev.Seq)
	}
	select {
	case ev := <-ch:
		t.Fatalf("buffer of 1 should hold one event, got second %+v", ev)
	default:
	}
}

func TestHubReplay(t *testing.T) {
	log := &stubLog{rows: []models.ChangeEvent{
		{Seq: 1, Partition: "s1", Kind: models.ChangeDealMoved},
		{Seq: 2, Partition: "s2", Kind: models.ChangeDealMoved},
		{Seq: 3, Partition: "s1", Kind: models.ChangeDealUpdated},
	}}
	h := NewHub(log, nil, 8)

	got, err := h.Replay(context.Background(), "s1", 1, 100)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != 1 || got[0].Seq != 3 {
		t.Fatalf("unexpected replay %+v", got)
	}

	got, err = h.Replay(context.Background(), PartitionAll, 0, 100)
	if err != nil {
		t.Fatalf("replay all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("replay all returned %d events, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Fatalf("replay out of order: %+v", got)
		}
	}
}
