// Package feed propagates committed mutations to connected observers.
// Events are persisted in the committing transaction (the change_events
// log), published to in-process subscribers after commit, and replayable
// from any sequence number, so a reconnecting client can converge without
// missing or duplicating state.
package feed

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"dealflow/internal/models"
)

// RowSet is an event payload: every row whose sort_order or stage_id
// changed in the committing transaction. Client reconciliation depends on
// this being complete, not just the primary entity.
type RowSet struct {
	Stages          []models.Stage `json:"stages,omitempty"`
	Deals           []models.Deal  `json:"deals,omitempty"`
	DeletedStageIDs []string       `json:"deleted_stage_ids,omitempty"`
	DeletedDealIDs  []string       `json:"deleted_deal_ids,omitempty"`
}

type Event struct {
	Seq       uint64          `json:"seq"`
	Partition string          `json:"partition"`
	Kind      string          `json:"kind"`
	EntityID  string          `json:"entity_id"`
	ActorID   string          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

func (e Event) Rows() (RowSet, error) {
	var rows RowSet
	if len(e.Payload) == 0 {
		return rows, nil
	}
	err := json.Unmarshal(e.Payload, &rows)
	return rows, err
}

func FromModel(m models.ChangeEvent) Event {
	return Event{
		Seq:       m.Seq,
		Partition: m.Partition,
		Kind:      m.Kind,
		EntityID:  m.EntityID,
		ActorID:   m.ActorID,
		Payload:   json.RawMessage(m.Payload),
		At:        m.CreatedAt,
	}
}

// NewEventModel builds the persistable form of an event. Seq is assigned
// by the database on insert.
func NewEventModel(partition, kind, entityID, actorID string, rows RowSet) (*models.ChangeEvent, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	return &models.ChangeEvent{
		Partition: partition,
		Kind:      kind,
		EntityID:  entityID,
		ActorID:   actorID,
		Payload:   datatypes.JSON(payload),
	}, nil
}
