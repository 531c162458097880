package workflow

// authorityMatrix lists, per status, the roles allowed to move the application
// out of that status. Any (status, role) pair not listed here is denied.
var authorityMatrix = map[string]map[Role]bool{
	// Stage 1
	StatusDraft:                  {RolePartner: true},
	StatusNewApplication:         {RoleAdmin: true},
	StatusUnderReviewAdmin:       {RoleAdmin: true},
	StatusCorrectionRequested:    {RolePartner: true, RoleAdmin: true},
	StatusDocsPartiallySubmitted: {RolePartner: true, RoleAdmin: true},
	StatusDocsSubmitted:          {RoleAdmin: true},
	StatusDocsUnderReview:        {RoleAdmin: true},
	StatusDocsResubmission:       {RolePartner: true, RoleAdmin: true},
	StatusDocsRejected:           {RoleAdmin: true},
	StatusDocsApproved:           {RoleAdmin: true},
	StatusApprovedStage1:         {RoleAdmin: true},

	// Stage 2
	StatusSentToUniversity:      {RoleUniversity: true, RoleAdmin: true},
	StatusUniversityUnderReview: {RoleUniversity: true, RoleAdmin: true},
	StatusCorrectionUniversity:  {RolePartner: true, RoleAdmin: true},
	StatusUniversityApproved:    {RoleUniversity: true, RoleAdmin: true},
	StatusOfferLetterIssued:     {RolePartner: true, RoleAdmin: true},

	// Stage 3
	StatusWaitingVisaPayment: {RolePartner: true, RoleAdmin: true},
	StatusPaymentReceived:    {RoleAdmin: true},
	StatusVisaAppSubmitted:   {RoleImmigration: true, RoleAdmin: true},
	StatusVisaUnderProcess:   {RoleImmigration: true, RoleAdmin: true},
	StatusVisaIssued:         {RoleAdmin: true},

	// Stage 4
	StatusArrivalDatePlanned:  {RolePartner: true, RoleAdmin: true},
	StatusArrivalConfirmed:    {RoleUniversity: true, RoleAdmin: true},
	StatusEnrollmentConfirmed: {RoleAdmin: true},

	// Stage 5
	StatusCommissionPending:  {RoleAdmin: true},
	StatusCommissionInvoiced: {RoleAdmin: true},

	// Held applications can only be acted on by admins (resume/cancel).
	// Terminal statuses are intentionally absent: nobody may act on them.
	StatusOnHold: {RoleAdmin: true},
}

// CanActorUpdate reports whether a role may change an application currently in
// the given status. Deny-by-default: unknown statuses and unlisted roles
// return false. System is a privileged synthetic actor and always passes,
// except on terminal statuses which absorb the application.
func CanActorUpdate(status string, actor Role) bool {
	if IsTerminal(status) {
		return false
	}
	if actor == RoleSystem {
		return true
	}
	allowed, ok := authorityMatrix[status]
	if !ok {
		return false
	}
	return allowed[actor]
}
