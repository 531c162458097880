package model

import (
	"time"

	"github.com/google/uuid"
)

// Document status enum constants
const (
	DocStatusPending      = "pending"
	DocStatusUploaded     = "uploaded"
	DocStatusApproved     = "approved"
	DocStatusRejected     = "rejected"
	DocStatusResubmission = "resubmission_required"
)

// Common document type constants. Types are free-form strings; these cover
// the ones the workflow engine cares about.
const (
	DocTypePassport    = "passport"
	DocTypeTranscript  = "transcript"
	DocTypeOfferLetter = "offer_letter"
)

// DocumentRequest status enum constants
const (
	DocRequestPending       = "pending"
	DocRequestPartiallyDone = "partially_completed"
	DocRequestCompleted     = "completed"
	DocRequestCancelled     = "cancelled"
	DocRequestOverdue       = "overdue"
)

// Document belongs to exactly one application. Version is monotonic per
// (application, type); the latest version is the current one.
type Document struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	Type          string     `gorm:"type:varchar(50);not null;index" json:"type"`
	Status        string     `gorm:"type:varchar(30);not null;default:'uploaded'" json:"status"`
	Version       int        `gorm:"not null;default:1" json:"version"`
	Stage         int        `gorm:"not null" json:"stage"` // application stage at upload time
	FileName      string     `gorm:"type:varchar(255)" json:"file_name"`
	UploadedBy    *uuid.UUID `gorm:"type:uuid" json:"uploaded_by,omitempty"`
	ReviewNotes   string     `gorm:"type:text" json:"review_notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DocumentRequest is an admin-issued checklist of required document types for
// an application at a given stage. Status summarizes the child requirements.
type DocumentRequest struct {
	ID            uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationID uuid.UUID             `gorm:"type:uuid;not null;index" json:"application_id"`
	Stage         int                   `gorm:"not null" json:"stage"`
	Status        string                `gorm:"type:varchar(30);not null;default:'pending'" json:"status"`
	DueDate       *time.Time            `json:"due_date,omitempty"`
	RequestedBy   *uuid.UUID            `gorm:"type:uuid" json:"requested_by,omitempty"`
	Requirements  []DocumentRequirement `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"requirements"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// DocumentRequirement is one required document type inside a request. Its
// Status mirrors the reviewed status of the latest matching document.
type DocumentRequirement struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	DocType   string    `gorm:"type:varchar(50);not null" json:"doc_type"`
	Mandatory bool      `gorm:"default:true" json:"mandatory"`
	Status    string    `gorm:"type:varchar(30);not null;default:'pending'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
