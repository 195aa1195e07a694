package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DealStatusOpen = "open"
	DealStatusWon  = "won"
	DealStatusLost = "lost"
)

const (
	VisibleToOwner    = "owner"
	VisibleToTeam     = "team"
	VisibleToEveryone = "everyone"
)

// Deal is the unit of work tracked through stages. SortOrder is dense and
// unique within its stage (0..count-1).
type Deal struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	PipelineID string `gorm:"type:uuid;not null;index" json:"pipeline_id"`
	StageID    string `gorm:"type:uuid;not null;index:idx_deals_rank,priority:1" json:"stage_id"`

	Title     string           `gorm:"type:varchar(500);not null" json:"title"`
	Value     *decimal.Decimal `gorm:"type:numeric(20,4)" json:"value,omitempty"`
	Currency  string           `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	SortOrder int              `gorm:"not null;index:idx_deals_rank,priority:2" json:"sort_order"`

	// Probability overrides the stage default when set.
	Probability *int `gorm:"" json:"probability,omitempty"`

	Status            string     `gorm:"type:varchar(10);not null;default:'open';index" json:"status"`
	ExpectedCloseDate *time.Time `gorm:"type:timestamptz" json:"expected_close_date,omitempty"`
	ActualCloseDate   *time.Time `gorm:"type:timestamptz" json:"actual_close_date,omitempty"`
	LostReason        string     `gorm:"type:varchar(500)" json:"lost_reason,omitempty"`

	StageEnteredAt time.Time `gorm:"type:timestamptz;not null" json:"stage_entered_at"`
	LastStageID    *string   `gorm:"type:uuid" json:"last_stage_id,omitempty"`
	IsLocked       bool      `gorm:"not null;default:false" json:"is_locked"`

	// Opaque references into the contact/company directory.
	PersonID       *string `gorm:"type:uuid" json:"person_id,omitempty"`
	OrganizationID *string `gorm:"type:uuid" json:"organization_id,omitempty"`

	OwnerID      string            `gorm:"type:varchar(100);index" json:"owner_id,omitempty"`
	VisibleTo    string            `gorm:"type:varchar(10);not null;default:'everyone'" json:"visible_to"`
	CustomFields datatypes.JSONMap `gorm:"type:jsonb" json:"custom_fields,omitempty"`

	CreatedAt time.Time      `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"type:timestamptz;index" json:"-"`
}

func (Deal) TableName() string {
	return "deals"
}

func (d Deal) Open() bool {
	return d.Status == DealStatusOpen
}
