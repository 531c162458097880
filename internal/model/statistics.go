package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StageCount is one row of the pipeline overview: how many applications
// currently sit in a stage.
type StageCount struct {
	Stage int    `json:"stage"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// StatusCount is one row of the per-status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// PartnerRanking ranks partners by applications created in the queried range.
type PartnerRanking struct {
	PartnerID    uuid.UUID       `json:"partner_id"`
	PartnerName  string          `json:"partner_name"`
	Applications int64           `json:"applications"`
	Commission   decimal.Decimal `json:"commission"`
}

// StatisticsResponse aggregates pipeline distribution, commission totals and
// partner rankings for the dashboard, bounded by a time range.
type StatisticsResponse struct {
	TimeRangeStartDate time.Time `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time `json:"time_range_end_date"`

	TotalApplications  int64 `json:"total_applications"`
	ActiveApplications int64 `json:"active_applications"`
	OnHoldApplications int64 `json:"on_hold_applications"`

	ByStage  []StageCount  `json:"by_stage"`
	ByStatus []StatusCount `json:"by_status"`

	CommissionPaid        decimal.Decimal `json:"commission_paid"`
	CommissionOutstanding decimal.Decimal `json:"commission_outstanding"`

	TopPartners []PartnerRanking `json:"top_partners"`
}
