package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Priority enum constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Application is the central entity: one student application moving through
// the five-stage pipeline. CurrentStage only ever increases; CurrentStatus is
// always a catalog member for CurrentStage. Version guards concurrent writers
// (compare-and-swap on update).
type Application struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StudentName    string    `gorm:"type:varchar(255);not null" json:"student_name"`
	StudentEmail   string    `gorm:"type:varchar(255)" json:"student_email"`
	UniversityName string    `gorm:"type:varchar(255);not null" json:"university_name"`
	Program        string    `gorm:"type:varchar(255)" json:"program"`
	IntakeSeason   string    `gorm:"type:varchar(50)" json:"intake_season"`

	PartnerID *uuid.UUID `gorm:"type:uuid;index" json:"partner_id"`
	Partner   *User      `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`

	CurrentStage  int    `gorm:"not null;default:1;index" json:"current_stage"`
	CurrentStatus string `gorm:"type:varchar(50);not null;index" json:"current_status"`
	NextAction    string `gorm:"type:varchar(255)" json:"next_action"`
	NextActor     string `gorm:"type:varchar(20)" json:"next_actor"`
	Priority      string `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`

	// Snapshot used only by hold/resume; cleared once consumed.
	PreviousStatus *string `gorm:"type:varchar(50)" json:"previous_status,omitempty"`

	// JSON array of document types the partner must upload for stage 1.
	DocumentsRequired string `gorm:"type:jsonb" json:"documents_required"`

	CommissionAmount decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"commission_amount"`
	RejectionReason  string          `gorm:"type:text" json:"rejection_reason,omitempty"`

	// Hold / cancel / resume annotation groups; populated only by the
	// corresponding administrative action.
	HoldReason   string     `gorm:"type:text" json:"hold_reason,omitempty"`
	HeldBy       *uuid.UUID `gorm:"type:uuid" json:"held_by,omitempty"`
	HeldAt       *time.Time `json:"held_at,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledBy  *uuid.UUID `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	ResumeReason string     `gorm:"type:text" json:"resume_reason,omitempty"`
	ResumedBy    *uuid.UUID `gorm:"type:uuid" json:"resumed_by,omitempty"`
	ResumedAt    *time.Time `json:"resumed_at,omitempty"`

	// Optimistic concurrency: every update must carry the version it read.
	Version int `gorm:"not null;default:0" json:"version"`

	StageHistory []StageHistoryEntry `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"stage_history,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// StageHistoryEntry is one row of the append-only audit trail. Rows are only
// ever inserted; no repository exposes an update or delete for them.
type StageHistoryEntry struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index" json:"application_id"`
	Stage         int       `gorm:"not null" json:"stage"`
	Status        string    `gorm:"type:varchar(50);not null" json:"status"`
	Actor         string    `gorm:"type:varchar(20);not null" json:"actor"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}
