package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDocumentVersioning(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusCorrectionRequested)
	userID := uuid.New().String()

	first, err := f.docSvc.UploadDocument(context.Background(), userID, UploadDocumentRequest{
		ApplicationID: id.String(),
		Type:          model.DocTypePassport,
		FileName:      "passport_v1.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Document.Version)
	assert.Equal(t, workflow.StageApplicationReview, first.Document.Stage)
	assert.Equal(t, model.DocStatusUploaded, first.Document.Status)

	second, err := f.docSvc.UploadDocument(context.Background(), userID, UploadDocumentRequest{
		ApplicationID: id.String(),
		Type:          model.DocTypePassport,
		FileName:      "passport_v2.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Document.Version)

	// Versions are independent per document type.
	transcript, err := f.docSvc.UploadDocument(context.Background(), userID, UploadDocumentRequest{
		ApplicationID: id.String(),
		Type:          model.DocTypeTranscript,
		FileName:      "transcript.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, transcript.Document.Version)
}

func TestUploadDocumentRefusedOnHoldAndTerminal(t *testing.T) {
	f := newFixture()
	userID := uuid.New().String()

	held := f.seedApplication(workflow.StageApplicationReview, workflow.StatusOnHold)
	_, err := f.docSvc.UploadDocument(context.Background(), userID, UploadDocumentRequest{
		ApplicationID: held.String(), Type: model.DocTypePassport, FileName: "p.pdf",
	})
	require.Error(t, err)

	rejected := f.seedApplication(workflow.StageApplicationReview, workflow.StatusRejectedStage1)
	_, err = f.docSvc.UploadDocument(context.Background(), userID, UploadDocumentRequest{
		ApplicationID: rejected.String(), Type: model.DocTypePassport, FileName: "p.pdf",
	})
	require.Error(t, err)
}

func TestUploadDocumentFiresUploadTriggers(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()

	_, err := f.docSvc.CreateDocumentRequest(context.Background(), adminID, CreateDocumentRequestDTO{
		ApplicationID: id.String(),
		DocTypes:      []string{model.DocTypePassport, model.DocTypeTranscript},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCorrectionRequested, f.application(id).CurrentStatus)

	partnerID := uuid.New().String()
	result, err := f.docSvc.UploadDocument(context.Background(), partnerID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypePassport, FileName: "passport.pdf",
	})
	require.NoError(t, err)
	require.True(t, result.Trigger.Success)
	assert.Equal(t, workflow.StatusDocsPartiallySubmitted, result.Trigger.NewStatus)

	result, err = f.docSvc.UploadDocument(context.Background(), partnerID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypeTranscript, FileName: "transcript.pdf",
	})
	require.NoError(t, err)
	require.True(t, result.Trigger.Success)
	assert.Equal(t, workflow.StatusDocsSubmitted, result.Trigger.NewStatus)
}

func TestUploadOfferLetterAtStage2Cascades(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageUniversityProcessing, workflow.StatusUniversityApproved)

	result, err := f.docSvc.UploadDocument(context.Background(), uuid.New().String(), UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypeOfferLetter, FileName: "offer.pdf",
	})

	require.NoError(t, err)
	require.True(t, result.Trigger.Success)
	assert.Equal(t, workflow.StatusWaitingVisaPayment, result.Trigger.NewStatus)
	assert.Equal(t, workflow.StageVisaProcessing, f.application(id).CurrentStage)
}

func TestReviewDocumentsDrivesStage1Statuses(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()
	partnerID := uuid.New().String()

	_, err := f.docSvc.CreateDocumentRequest(context.Background(), adminID, CreateDocumentRequestDTO{
		ApplicationID: id.String(),
		DocTypes:      []string{model.DocTypePassport, model.DocTypeTranscript},
	})
	require.NoError(t, err)

	passport, err := f.docSvc.UploadDocument(context.Background(), partnerID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypePassport, FileName: "passport.pdf",
	})
	require.NoError(t, err)
	transcript, err := f.docSvc.UploadDocument(context.Background(), partnerID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypeTranscript, FileName: "transcript.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDocsSubmitted, f.application(id).CurrentStatus)

	// First approval starts the review and leaves the checklist partial.
	review, err := f.docSvc.ReviewDocument(context.Background(), adminID, passport.Document.ID, ReviewDocumentRequest{
		Decision: model.DocStatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocRequestPartiallyDone, review.RequestStatus)
	assert.Equal(t, workflow.StatusDocsUnderReview, review.Application)

	// Second approval completes the checklist and approves the documents.
	review, err = f.docSvc.ReviewDocument(context.Background(), adminID, transcript.Document.ID, ReviewDocumentRequest{
		Decision: model.DocStatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocRequestCompleted, review.RequestStatus)
	assert.Equal(t, workflow.StatusDocsApproved, review.Application)
}

func TestReviewRejectionCancelsChecklist(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()

	_, err := f.docSvc.CreateDocumentRequest(context.Background(), adminID, CreateDocumentRequestDTO{
		ApplicationID: id.String(),
		DocTypes:      []string{model.DocTypePassport},
	})
	require.NoError(t, err)

	upload, err := f.docSvc.UploadDocument(context.Background(), adminID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypePassport, FileName: "passport.pdf",
	})
	require.NoError(t, err)

	review, err := f.docSvc.ReviewDocument(context.Background(), adminID, upload.Document.ID, ReviewDocumentRequest{
		Decision: model.DocStatusRejected,
		Notes:    "expired passport",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DocRequestCancelled, review.RequestStatus)
	assert.Equal(t, workflow.StatusDocsRejected, review.Application)
	assert.Equal(t, "expired passport", review.Document.ReviewNotes)
}

func TestReviewResubmissionRequired(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()

	_, err := f.docSvc.CreateDocumentRequest(context.Background(), adminID, CreateDocumentRequestDTO{
		ApplicationID: id.String(),
		DocTypes:      []string{model.DocTypePassport, model.DocTypeTranscript},
	})
	require.NoError(t, err)

	upload, err := f.docSvc.UploadDocument(context.Background(), adminID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypePassport, FileName: "passport.pdf",
	})
	require.NoError(t, err)
	_, err = f.docSvc.UploadDocument(context.Background(), adminID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: model.DocTypeTranscript, FileName: "transcript.pdf",
	})
	require.NoError(t, err)

	review, err := f.docSvc.ReviewDocument(context.Background(), adminID, upload.Document.ID, ReviewDocumentRequest{
		Decision: model.DocStatusResubmission,
		Notes:    "photo page unreadable",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDocsResubmission, review.Application)
}

func TestApprovedDocumentAtWaitingVisaPaymentAdvances(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageVisaProcessing, workflow.StatusWaitingVisaPayment)
	adminID := uuid.New().String()

	// The document type is irrelevant at this status; any approval counts as
	// payment evidence.
	upload, err := f.docSvc.UploadDocument(context.Background(), adminID, UploadDocumentRequest{
		ApplicationID: id.String(), Type: "payment_receipt", FileName: "receipt.pdf",
	})
	require.NoError(t, err)
	// The generic upload trigger has nothing to do here.
	assert.False(t, upload.Trigger.Success)

	review, err := f.docSvc.ReviewDocument(context.Background(), adminID, upload.Document.ID, ReviewDocumentRequest{
		Decision: model.DocStatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPaymentReceived, review.Application)
	assert.Equal(t, workflow.StageVisaProcessing, f.application(id).CurrentStage)
}

func TestCreateDocumentRequestReplacesRequiredList(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()

	resp, err := f.docSvc.CreateDocumentRequest(context.Background(), adminID, CreateDocumentRequestDTO{
		ApplicationID: id.String(),
		DocTypes:      []string{model.DocTypePassport, model.DocTypeTranscript},
	})

	require.NoError(t, err)
	assert.Equal(t, model.DocRequestPending, resp.Status)
	assert.Equal(t, []string{model.DocTypePassport, model.DocTypeTranscript}, resp.DocTypes)

	app := f.application(id)
	assert.Equal(t, workflow.StatusCorrectionRequested, app.CurrentStatus)
	assert.JSONEq(t, `["passport","transcript"]`, app.DocumentsRequired)
}

func TestAggregateRequestStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all pending", []string{model.DocStatusPending, model.DocStatusPending}, model.DocRequestPending},
		{"some uploaded", []string{model.DocStatusUploaded, model.DocStatusPending}, model.DocRequestPartiallyDone},
		{"approved and pending", []string{model.DocStatusApproved, model.DocStatusPending}, model.DocRequestPartiallyDone},
		{"all approved", []string{model.DocStatusApproved, model.DocStatusApproved}, model.DocRequestCompleted},
		{"any rejected wins", []string{model.DocStatusApproved, model.DocStatusRejected}, model.DocRequestCancelled},
		{"resubmission keeps partial", []string{model.DocStatusApproved, model.DocStatusResubmission}, model.DocRequestPartiallyDone},
		{"empty checklist", nil, model.DocRequestPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requirements []model.DocumentRequirement
			for _, s := range tt.statuses {
				requirements = append(requirements, model.DocumentRequirement{Mandatory: true, Status: s})
			}
			assert.Equal(t, tt.want, aggregateRequestStatus(requirements))
		})
	}
}
