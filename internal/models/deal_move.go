package models

import (
	"time"
)

// DealMove is the append-only history record written by every move,
// including effective no-ops. Consumed by audit/timeline features.
type DealMove struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	DealID string `gorm:"type:uuid;not null;index" json:"deal_id"`

	FromStageID string `gorm:"type:uuid;not null" json:"from_stage_id"`
	ToStageID   string `gorm:"type:uuid;not null" json:"to_stage_id"`
	FromIndex   int    `gorm:"not null" json:"from_index"`
	ToIndex     int    `gorm:"not null" json:"to_index"`

	ActorID string `gorm:"type:varchar(100)" json:"actor_id"`
	NoOp    bool   `gorm:"not null;default:false" json:"no_op"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (DealMove) TableName() string {
	return "deal_moves"
}
