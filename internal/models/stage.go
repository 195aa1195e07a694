package models

import (
	"time"

	"gorm.io/gorm"
)

// Stage is an ordered bucket deals pass through. SortOrder is dense and
// unique across the live stages of a pipeline (0..n-1).
type Stage struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	PipelineID string `gorm:"type:uuid;not null;index:idx_stages_rank,priority:1" json:"pipeline_id"`

	Name  string `gorm:"type:varchar(200);not null" json:"name"`
	Color string `gorm:"type:varchar(20)" json:"color,omitempty"`

	SortOrder   int  `gorm:"not null;index:idx_stages_rank,priority:2" json:"sort_order"`
	Probability int  `gorm:"not null;default:0" json:"probability"`
	IsWon       bool `gorm:"not null;default:false" json:"is_won"`
	IsLost      bool `gorm:"not null;default:false" json:"is_lost"`

	// RottenDays overrides the board-wide staleness threshold; 0 means
	// use the configured default.
	RottenDays int `gorm:"not null;default:0" json:"rotten_days"`

	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"type:timestamptz;index" json:"-"`
}

func (Stage) TableName() string {
	return "pipeline_stages"
}

// Terminal reports whether entering this stage closes a deal.
func (s Stage) Terminal() bool {
	return s.IsWon || s.IsLost
}
