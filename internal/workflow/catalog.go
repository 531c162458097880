package workflow

import "errors"

// Role enum constants; who acts on an application status
type Role string

const (
	RoleAdmin       Role = "Admin"
	RolePartner     Role = "Partner"
	RoleUniversity  Role = "University"
	RoleImmigration Role = "Immigration"
	RoleSystem      Role = "System"
)

// Pipeline stages
const (
	StageApplicationReview    = 1
	StageUniversityProcessing = 2
	StageVisaProcessing       = 3
	StageArrival              = 4
	StageCommission           = 5
)

// Stage 1: application review
const (
	StatusDraft                  = "draft"
	StatusNewApplication         = "new_application"
	StatusUnderReviewAdmin       = "under_review_admin"
	StatusCorrectionRequested    = "correction_requested_admin"
	StatusDocsPartiallySubmitted = "documents_partially_submitted"
	StatusDocsSubmitted          = "documents_submitted"
	StatusDocsUnderReview        = "documents_under_review"
	StatusDocsResubmission       = "documents_resubmission_required"
	StatusDocsRejected           = "documents_rejected"
	StatusDocsApproved           = "documents_approved"
	StatusApprovedStage1         = "approved_stage1"
	StatusRejectedStage1         = "rejected_stage1"
)

// Stage 2: university processing
const (
	StatusSentToUniversity      = "sent_to_university"
	StatusUniversityUnderReview = "university_under_review"
	StatusCorrectionUniversity  = "correction_requested_university"
	StatusUniversityApproved    = "university_approved"
	StatusUniversityRejected    = "university_rejected"
	StatusOfferLetterIssued     = "offer_letter_issued"
)

// Stage 3: visa processing
const (
	StatusWaitingVisaPayment   = "waiting_visa_payment"
	StatusPaymentReceived      = "payment_received"
	StatusVisaAppSubmitted     = "visa_application_submitted"
	StatusVisaUnderProcess     = "visa_under_process"
	StatusVisaIssued           = "visa_issued"
	StatusVisaRejected         = "visa_rejected"
)

// Stage 4: arrival & enrollment
const (
	StatusArrivalDatePlanned  = "arrival_date_planned"
	StatusArrivalConfirmed    = "arrival_confirmed"
	StatusEnrollmentConfirmed = "enrollment_confirmed"
)

// Stage 5: commission settlement
const (
	StatusCommissionPending  = "commission_pending"
	StatusCommissionInvoiced = "commission_invoiced"
	StatusCommissionPaid     = "commission_paid"
)

// Orthogonal to the stage pipeline
const (
	StatusOnHold    = "application_on_hold"
	StatusCancelled = "application_cancelled"
)

// ErrStatusNotFound is returned when a (stage, status) pair is not registered
// in the catalog. Callers must treat it as a hard failure, never proceed.
var ErrStatusNotFound = errors.New("status not found in catalog")

// StatusInfo describes a single catalog entry: display data, the role expected
// to act while the application sits in this status, and the designated next
// status on a success/failure decision (empty when not applicable).
type StatusInfo struct {
	Stage       int
	Label       string
	Description string // doubles as the application's next_action text
	ActingRole  Role
	OnSuccess   string
	OnFailure   string
}

// catalog is the single source of truth for all valid (stage, status) pairs.
var catalog = map[string]StatusInfo{
	// Stage 1
	StatusDraft:                  {Stage: 1, Label: "Draft", Description: "Partner completes and submits the application", ActingRole: RolePartner, OnSuccess: StatusNewApplication},
	StatusNewApplication:         {Stage: 1, Label: "New Application", Description: "Admin reviews the new application", ActingRole: RoleAdmin, OnSuccess: StatusUnderReviewAdmin, OnFailure: StatusRejectedStage1},
	StatusUnderReviewAdmin:       {Stage: 1, Label: "Under Review (Admin)", Description: "Admin checks application details and requests documents", ActingRole: RoleAdmin, OnSuccess: StatusDocsUnderReview, OnFailure: StatusRejectedStage1},
	StatusCorrectionRequested:    {Stage: 1, Label: "Correction Requested", Description: "Partner uploads corrected documents", ActingRole: RolePartner, OnSuccess: StatusDocsSubmitted},
	StatusDocsPartiallySubmitted: {Stage: 1, Label: "Documents Partially Submitted", Description: "Partner uploads the remaining required documents", ActingRole: RolePartner, OnSuccess: StatusDocsSubmitted},
	StatusDocsSubmitted:          {Stage: 1, Label: "Documents Submitted", Description: "Admin starts reviewing the submitted documents", ActingRole: RoleAdmin, OnSuccess: StatusDocsUnderReview},
	StatusDocsUnderReview:        {Stage: 1, Label: "Documents Under Review", Description: "Admin approves or rejects the submitted documents", ActingRole: RoleAdmin, OnSuccess: StatusDocsApproved, OnFailure: StatusDocsRejected},
	StatusDocsResubmission:       {Stage: 1, Label: "Resubmission Required", Description: "Partner re-uploads the rejected documents", ActingRole: RolePartner, OnSuccess: StatusDocsSubmitted},
	StatusDocsRejected:           {Stage: 1, Label: "Documents Rejected", Description: "Admin decides between resubmission and final rejection", ActingRole: RoleAdmin, OnSuccess: StatusDocsResubmission, OnFailure: StatusRejectedStage1},
	StatusDocsApproved:           {Stage: 1, Label: "Documents Approved", Description: "Admin gives final stage 1 approval", ActingRole: RoleAdmin, OnSuccess: StatusApprovedStage1},
	StatusApprovedStage1:         {Stage: 1, Label: "Approved (Stage 1)", Description: "Admin forwards the application to the university", ActingRole: RoleAdmin, OnSuccess: StatusSentToUniversity},
	StatusRejectedStage1:         {Stage: 1, Label: "Rejected (Stage 1)", Description: "No further action; application rejected", ActingRole: RoleSystem},

	// Stage 2
	StatusSentToUniversity:      {Stage: 2, Label: "Sent to University", Description: "University picks up the application for review", ActingRole: RoleUniversity, OnSuccess: StatusUniversityUnderReview},
	StatusUniversityUnderReview: {Stage: 2, Label: "University Under Review", Description: "University approves or rejects the application", ActingRole: RoleUniversity, OnSuccess: StatusUniversityApproved, OnFailure: StatusUniversityRejected},
	StatusCorrectionUniversity:  {Stage: 2, Label: "Correction Requested (University)", Description: "Partner provides the corrections requested by the university", ActingRole: RolePartner, OnSuccess: StatusUniversityUnderReview},
	StatusUniversityApproved:    {Stage: 2, Label: "University Approved", Description: "University issues the offer letter", ActingRole: RoleUniversity, OnSuccess: StatusOfferLetterIssued},
	StatusUniversityRejected:    {Stage: 2, Label: "University Rejected", Description: "No further action; rejected by university", ActingRole: RoleSystem},
	StatusOfferLetterIssued:     {Stage: 2, Label: "Offer Letter Issued", Description: "Partner proceeds with visa payment", ActingRole: RolePartner, OnSuccess: StatusWaitingVisaPayment},

	// Stage 3
	StatusWaitingVisaPayment: {Stage: 3, Label: "Waiting Visa Payment", Description: "Partner completes the visa processing payment", ActingRole: RolePartner, OnSuccess: StatusPaymentReceived},
	StatusPaymentReceived:    {Stage: 3, Label: "Payment Received", Description: "Admin prepares and submits the visa application", ActingRole: RoleAdmin, OnSuccess: StatusVisaAppSubmitted},
	StatusVisaAppSubmitted:   {Stage: 3, Label: "Visa Application Submitted", Description: "Immigration processes the visa application", ActingRole: RoleImmigration, OnSuccess: StatusVisaUnderProcess},
	StatusVisaUnderProcess:   {Stage: 3, Label: "Visa Under Process", Description: "Immigration issues or refuses the visa", ActingRole: RoleImmigration, OnSuccess: StatusVisaIssued, OnFailure: StatusVisaRejected},
	StatusVisaIssued:         {Stage: 3, Label: "Visa Issued", Description: "Admin plans the arrival date with the student", ActingRole: RoleAdmin, OnSuccess: StatusArrivalDatePlanned},
	StatusVisaRejected:       {Stage: 3, Label: "Visa Rejected", Description: "No further action; visa refused", ActingRole: RoleSystem},

	// Stage 4
	StatusArrivalDatePlanned:  {Stage: 4, Label: "Arrival Date Planned", Description: "Partner confirms the student's arrival", ActingRole: RolePartner, OnSuccess: StatusArrivalConfirmed},
	StatusArrivalConfirmed:    {Stage: 4, Label: "Arrival Confirmed", Description: "University confirms the student's enrollment", ActingRole: RoleUniversity, OnSuccess: StatusEnrollmentConfirmed},
	StatusEnrollmentConfirmed: {Stage: 4, Label: "Enrollment Confirmed", Description: "Admin opens the commission settlement", ActingRole: RoleAdmin, OnSuccess: StatusCommissionPending},

	// Stage 5
	StatusCommissionPending:  {Stage: 5, Label: "Commission Pending", Description: "Admin raises the commission invoice", ActingRole: RoleAdmin, OnSuccess: StatusCommissionInvoiced},
	StatusCommissionInvoiced: {Stage: 5, Label: "Commission Invoiced", Description: "Admin records the commission payment", ActingRole: RoleAdmin, OnSuccess: StatusCommissionPaid},
	StatusCommissionPaid:     {Stage: 5, Label: "Commission Paid", Description: "No further action; application completed", ActingRole: RoleSystem},

	// Orthogonal statuses keep the stage they were entered from, so Stage 0
	// here means "any"; Lookup special-cases them.
	StatusOnHold:    {Stage: 0, Label: "On Hold", Description: "Admin resumes or cancels the application", ActingRole: RoleAdmin},
	StatusCancelled: {Stage: 0, Label: "Cancelled", Description: "No further action; application cancelled", ActingRole: RoleSystem},
}

// terminal statuses absorb the application; no outgoing transitions
var terminalStatuses = map[string]bool{
	StatusRejectedStage1:     true,
	StatusUniversityRejected: true,
	StatusVisaRejected:       true,
	StatusCommissionPaid:     true,
	StatusCancelled:          true,
}

// Lookup returns the catalog entry for a (stage, status) pair.
// Orthogonal statuses (hold/cancel) match any stage.
func Lookup(stage int, status string) (StatusInfo, error) {
	info, ok := catalog[status]
	if !ok {
		return StatusInfo{}, ErrStatusNotFound
	}
	if info.Stage != 0 && info.Stage != stage {
		return StatusInfo{}, ErrStatusNotFound
	}
	return info, nil
}

// KnownStatus reports whether a status exists in the catalog at all,
// regardless of stage.
func KnownStatus(status string) bool {
	_, ok := catalog[status]
	return ok
}

// IsTerminal reports whether a status absorbs the application permanently.
func IsTerminal(status string) bool {
	return terminalStatuses[status]
}

// StageOf returns the pipeline stage a status belongs to, or 0 for
// orthogonal/unknown statuses.
func StageOf(status string) int {
	return catalog[status].Stage
}

// StatusesForStage returns every catalog status belonging to the given stage.
func StatusesForStage(stage int) []string {
	var out []string
	for status, info := range catalog {
		if info.Stage == stage {
			out = append(out, status)
		}
	}
	return out
}
