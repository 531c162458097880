package workflow

import "strings"

// transitions maps each status to the statuses reachable from it in one step.
// Stage-crossing entries (e.g. approved_stage1 -> sent_to_university) always
// advance the stage by exactly one. Terminal statuses have no entry.
var transitions = map[string][]string{
	// Stage 1
	StatusDraft:                  {StatusNewApplication},
	StatusNewApplication:         {StatusUnderReviewAdmin, StatusRejectedStage1},
	StatusUnderReviewAdmin:       {StatusCorrectionRequested, StatusDocsUnderReview, StatusRejectedStage1},
	StatusCorrectionRequested:    {StatusDocsPartiallySubmitted, StatusDocsSubmitted},
	StatusDocsPartiallySubmitted: {StatusDocsSubmitted},
	StatusDocsSubmitted:          {StatusDocsUnderReview},
	StatusDocsUnderReview:        {StatusDocsApproved, StatusDocsRejected, StatusDocsResubmission, StatusRejectedStage1},
	StatusDocsResubmission:       {StatusDocsPartiallySubmitted, StatusDocsSubmitted},
	StatusDocsRejected:           {StatusDocsResubmission, StatusRejectedStage1},
	StatusDocsApproved:           {StatusApprovedStage1},
	StatusApprovedStage1:         {StatusSentToUniversity},

	// Stage 2
	StatusSentToUniversity:      {StatusUniversityUnderReview},
	StatusUniversityUnderReview: {StatusUniversityApproved, StatusCorrectionUniversity, StatusUniversityRejected},
	StatusCorrectionUniversity:  {StatusUniversityUnderReview},
	StatusUniversityApproved:    {StatusOfferLetterIssued},
	StatusOfferLetterIssued:     {StatusWaitingVisaPayment},

	// Stage 3
	StatusWaitingVisaPayment: {StatusPaymentReceived},
	StatusPaymentReceived:    {StatusVisaAppSubmitted},
	StatusVisaAppSubmitted:   {StatusVisaUnderProcess},
	StatusVisaUnderProcess:   {StatusVisaIssued, StatusVisaRejected},
	StatusVisaIssued:         {StatusArrivalDatePlanned},

	// Stage 4
	StatusArrivalDatePlanned:  {StatusArrivalConfirmed},
	StatusArrivalConfirmed:    {StatusEnrollmentConfirmed},
	StatusEnrollmentConfirmed: {StatusCommissionPending},

	// Stage 5
	StatusCommissionPending:  {StatusCommissionInvoiced},
	StatusCommissionInvoiced: {StatusCommissionPaid},
}

// AvailableTransitions returns the statuses reachable from (stage, status) in
// one step. An empty result means the state is terminal or unknown. Hold and
// cancel are administrative side-flows and are not listed here.
func AvailableTransitions(stage int, status string) []string {
	if _, err := Lookup(stage, status); err != nil {
		return nil
	}
	next, ok := transitions[status]
	if !ok {
		return nil
	}
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether `to` is a legal one-step move from
// (stage, from).
func CanTransition(stage int, from, to string) bool {
	for _, s := range AvailableTransitions(stage, from) {
		if s == to {
			return true
		}
	}
	return false
}

// NextActor returns the role expected to act on an application sitting in the
// given (stage, status). Unknown states fall back to Admin so the UI always
// has someone to show.
func NextActor(stage int, status string) Role {
	info, err := Lookup(stage, status)
	if err != nil {
		return RoleAdmin
	}
	return info.ActingRole
}

// StatusDisplayName returns the catalog label for a status, falling back to a
// humanized version of the raw string (underscores to spaces, title case).
// The fallback never fails; unknown statuses still render.
func StatusDisplayName(stage int, status string) string {
	if info, err := Lookup(stage, status); err == nil {
		return info.Label
	}
	return humanize(status)
}

func humanize(status string) string {
	words := strings.Split(status, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
