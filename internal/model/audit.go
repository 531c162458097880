package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	// Human-initiated workflow actions
	ActionCreateApplication     = "CREATE_APPLICATION"
	ActionSubmitApplication     = "SUBMIT_APPLICATION"
	ActionUpdateApplication     = "UPDATE_APPLICATION"
	ActionUpdateStatus          = "UPDATE_APPLICATION_STATUS"
	ActionHoldApplication       = "HOLD_APPLICATION"
	ActionResumeApplication     = "RESUME_APPLICATION"
	ActionCancelApplication     = "CANCEL_APPLICATION"
	ActionSettleCommission      = "SETTLE_COMMISSION"
	ActionUploadDocument        = "UPLOAD_DOCUMENT"
	ActionReviewDocument        = "REVIEW_DOCUMENT"
	ActionCreateDocumentRequest = "CREATE_DOCUMENT_REQUEST"

	// System-triggered transitions
	ActionSystemTransition = "SYSTEM_TRANSITION"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for System-triggered actions
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	ActorRole  string     `gorm:"type:varchar(20)" json:"actor_role"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
