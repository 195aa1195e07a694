package models

import (
	"time"

	"gorm.io/datatypes"
)

// PartitionStages is the change-feed partition carrying stage-level
// mutations; deal-level mutations are partitioned by stage id.
const PartitionStages = "stages"

const (
	ChangeDealMoved   = "deal.moved"
	ChangeDealUpdated = "deal.updated"
	ChangeDealDeleted = "deal.deleted"
	ChangeDealRotten  = "deal.rotten"

	ChangeStageUpdated    = "stage.updated"
	ChangeStageDeleted    = "stage.deleted"
	ChangeStagesReordered = "stages.reordered"
)

// ChangeEvent is one committed delta in the change feed. Seq is assigned
// inside the committing transaction, so per-partition sequence order matches
// commit order. Payload carries the full set of rows whose sort_order or
// stage_id changed, not just the primary entity.
type ChangeEvent struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement" json:"seq"`
	Partition string `gorm:"type:varchar(64);not null;index:idx_change_events_part,priority:1" json:"partition"`
	Kind      string `gorm:"type:varchar(32);not null" json:"kind"`
	EntityID  string `gorm:"type:uuid;not null" json:"entity_id"`

	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ActorID string         `gorm:"type:varchar(100)" json:"actor_id"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (ChangeEvent) TableName() string {
	return "change_events"
}
