package service

import (
	"context"
	"encoding/json"
	"testing"

	"backend/internal/model"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnApplicationSubmitted(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusDraft)

	result := f.triggers.OnApplicationSubmitted(context.Background(), id, "partner-1")

	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusDraft, result.PreviousStatus)
	assert.Equal(t, workflow.StatusNewApplication, result.NewStatus)

	app := f.application(id)
	assert.Equal(t, workflow.StatusNewApplication, app.CurrentStatus)
	assert.Equal(t, string(workflow.RoleAdmin), app.NextActor)

	history := f.apps.historyFor(id)
	require.Len(t, history, 1)
	assert.Equal(t, string(workflow.RoleSystem), history[0].Actor)

	events := f.bus.all()
	require.Len(t, events, 1)
	assert.Equal(t, workflow.StatusNewApplication, events[0].NewStatus)
}

func TestOnApplicationSubmittedFromWrongStatus(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)

	result := f.triggers.OnApplicationSubmitted(context.Background(), id, "partner-1")

	require.False(t, result.Success)
	assert.Equal(t, workflow.StatusUnderReviewAdmin, result.PreviousStatus)
	assert.Equal(t, workflow.StatusUnderReviewAdmin, result.NewStatus)
	assert.Equal(t, workflow.StatusUnderReviewAdmin, f.application(id).CurrentStatus)
	assert.Empty(t, f.apps.historyFor(id))
	assert.Empty(t, f.bus.all())
}

func TestOnApplicationSubmittedMissingApplication(t *testing.T) {
	f := newFixture()

	result := f.triggers.OnApplicationSubmitted(context.Background(), uuid.New(), "partner-1")

	require.False(t, result.Success)
	assert.Contains(t, result.Message, "not found")
}

func TestOfferLetterUploadCascade(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageUniversityProcessing, workflow.StatusUniversityApproved)

	result := f.triggers.OnOfferLetterUpload(context.Background(), id, "uni-1")

	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusUniversityApproved, result.PreviousStatus)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, result.NewStatus)

	app := f.application(id)
	assert.Equal(t, workflow.StageVisaProcessing, app.CurrentStage)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, app.CurrentStatus)

	// The intermediate offer_letter_issued hop leaves its own history entry.
	history := f.apps.historyFor(id)
	require.Len(t, history, 2)
	assert.Equal(t, workflow.StatusOfferLetterIssued, history[0].Status)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, history[1].Status)

	events := f.bus.all()
	require.Len(t, events, 2)
	assert.Equal(t, workflow.StatusOfferLetterIssued, events[0].NewStatus)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, events[1].NewStatus)
}

func TestOfferLetterUploadIdempotent(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageUniversityProcessing, workflow.StatusUniversityApproved)

	first := f.triggers.OnOfferLetterUpload(context.Background(), id, "uni-1")
	require.True(t, first.Success)

	// Duplicate delivery after the application reached stage 3.
	second := f.triggers.OnOfferLetterUpload(context.Background(), id, "uni-1")
	require.True(t, second.Success)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, second.NewStatus)

	assert.Len(t, f.apps.historyFor(id), 2)
	assert.Len(t, f.bus.all(), 2)
}

func TestStage1FinalRejection(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusDocsUnderReview)

	result := f.triggers.OnStage1FinalRejection(context.Background(), id, "admin-1", "incomplete transcript")

	require.True(t, result.Success)
	app := f.application(id)
	assert.Equal(t, workflow.StatusRejectedStage1, app.CurrentStatus)
	assert.Equal(t, "incomplete transcript", app.RejectionReason)
	assert.True(t, workflow.IsTerminal(app.CurrentStatus))
}

func TestStage1FinalRejectionNotAllowedAfterApproval(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusApprovedStage1)

	result := f.triggers.OnStage1FinalRejection(context.Background(), id, "admin-1", "too late")

	require.False(t, result.Success)
	app := f.application(id)
	assert.Equal(t, workflow.StatusApprovedStage1, app.CurrentStatus)
	assert.Empty(t, app.RejectionReason)
}

func TestOnUniversityApprovedDirect(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageUniversityProcessing, workflow.StatusUniversityApproved)

	result := f.triggers.OnUniversityApprovedDirect(context.Background(), id, "admin-1")

	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, result.NewStatus)

	// A synthetic approved offer letter document must exist.
	docs, err := f.docs.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.DocTypeOfferLetter, docs[0].Type)
	assert.Equal(t, model.DocStatusApproved, docs[0].Status)
	assert.Equal(t, 1, docs[0].Version)

	// Single hop: no offer_letter_issued entry.
	history := f.apps.historyFor(id)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, history[0].Status)
}

func TestOnDocumentUploadPartialThenComplete(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusCorrectionRequested)

	required, _ := json.Marshal([]string{model.DocTypePassport, model.DocTypeTranscript})
	app := f.application(id)
	app.DocumentsRequired = string(required)
	require.NoError(t, f.apps.Update(context.Background(), app))

	// Nothing uploaded yet.
	result := f.triggers.OnDocumentUpload(context.Background(), id, "partner-1")
	require.False(t, result.Success)

	// One of two required documents present.
	require.NoError(t, f.docs.Create(context.Background(), &model.Document{
		ApplicationID: id, Type: model.DocTypePassport, Status: model.DocStatusUploaded, Version: 1,
	}))
	result = f.triggers.OnDocumentUpload(context.Background(), id, "partner-1")
	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusDocsPartiallySubmitted, result.NewStatus)

	// Both present.
	require.NoError(t, f.docs.Create(context.Background(), &model.Document{
		ApplicationID: id, Type: model.DocTypeTranscript, Status: model.DocStatusUploaded, Version: 1,
	}))
	result = f.triggers.OnDocumentUpload(context.Background(), id, "partner-1")
	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusDocsSubmitted, result.NewStatus)
}

func TestOnDocumentUploadIgnoresRejectedDocuments(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusCorrectionRequested)

	required, _ := json.Marshal([]string{model.DocTypePassport})
	app := f.application(id)
	app.DocumentsRequired = string(required)
	require.NoError(t, f.apps.Update(context.Background(), app))

	require.NoError(t, f.docs.Create(context.Background(), &model.Document{
		ApplicationID: id, Type: model.DocTypePassport, Status: model.DocStatusRejected, Version: 1,
	}))

	result := f.triggers.OnDocumentUpload(context.Background(), id, "partner-1")
	require.False(t, result.Success)
	assert.Equal(t, workflow.StatusCorrectionRequested, f.application(id).CurrentStatus)
}

func TestOnAllDocumentsUploadedDuplicateDelivery(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusDocsSubmitted)

	result := f.triggers.OnAllDocumentsUploaded(context.Background(), id, "partner-1")

	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusDocsSubmitted, result.NewStatus)
	assert.Empty(t, f.apps.historyFor(id))
	assert.Empty(t, f.bus.all())
}

func TestOnDocumentUploadStage2RoutesOfferLetter(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageUniversityProcessing, workflow.StatusUniversityApproved)

	result := f.triggers.OnDocumentUploadStage2(context.Background(), id, model.DocTypeOfferLetter, "uni-1")

	require.True(t, result.Success)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, result.NewStatus)
	assert.Equal(t, workflow.StageVisaProcessing, f.application(id).CurrentStage)
}

func TestStageCompletionTriggers(t *testing.T) {
	tests := []struct {
		name       string
		fromStage  int
		fromStatus string
		run        func(f *fixture, id uuid.UUID) TriggerResult
		wantStatus string
		wantStage  int
	}{
		{
			name:       "visa issued opens arrival stage",
			fromStage:  workflow.StageVisaProcessing,
			fromStatus: workflow.StatusVisaIssued,
			run: func(f *fixture, id uuid.UUID) TriggerResult {
				return f.triggers.OnStage3Complete(context.Background(), id, "system")
			},
			wantStatus: workflow.StatusArrivalDatePlanned,
			wantStage:  workflow.StageArrival,
		},
		{
			name:       "enrollment confirmed opens commission stage",
			fromStage:  workflow.StageArrival,
			fromStatus: workflow.StatusEnrollmentConfirmed,
			run: func(f *fixture, id uuid.UUID) TriggerResult {
				return f.triggers.OnStage4Complete(context.Background(), id, "system")
			},
			wantStatus: workflow.StatusCommissionPending,
			wantStage:  workflow.StageCommission,
		},
		{
			name:       "stage 1 approval",
			fromStage:  workflow.StageApplicationReview,
			fromStatus: workflow.StatusDocsApproved,
			run: func(f *fixture, id uuid.UUID) TriggerResult {
				return f.triggers.OnStage1FinalApproval(context.Background(), id, "admin-1")
			},
			wantStatus: workflow.StatusApprovedStage1,
			wantStage:  workflow.StageApplicationReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			id := f.seedApplication(tt.fromStage, tt.fromStatus)

			result := tt.run(f, id)

			require.True(t, result.Success, result.Message)
			app := f.application(id)
			assert.Equal(t, tt.wantStatus, app.CurrentStatus)
			assert.Equal(t, tt.wantStage, app.CurrentStage)
		})
	}
}
