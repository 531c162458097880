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

func TestCreateApplicationDraft(t *testing.T) {
	f := newFixture()
	partnerID := uuid.New().String()

	resp, err := f.appSvc.CreateApplication(context.Background(), partnerID, CreateApplicationRequest{
		StudentName:       "Minh Nguyen",
		StudentEmail:      "minh@example.com",
		UniversityName:    "TU Munich",
		Program:           "Mechanical Engineering",
		DocumentsRequired: []string{model.DocTypePassport, model.DocTypeTranscript},
	})

	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDraft, resp.CurrentStatus)
	assert.Equal(t, workflow.StageApplicationReview, resp.CurrentStage)
	assert.Equal(t, model.PriorityMedium, resp.Priority)
	assert.Equal(t, []string{model.DocTypePassport, model.DocTypeTranscript}, resp.DocumentsRequired)
	require.NotNil(t, resp.PartnerID)
	assert.Equal(t, partnerID, *resp.PartnerID)
}

func TestCreateApplicationSubmitImmediately(t *testing.T) {
	f := newFixture()

	resp, err := f.appSvc.CreateApplication(context.Background(), uuid.New().String(), CreateApplicationRequest{
		StudentName:       "Minh Nguyen",
		UniversityName:    "TU Munich",
		SubmitImmediately: true,
	})

	require.NoError(t, err)
	assert.Equal(t, workflow.StatusNewApplication, resp.CurrentStatus)
	require.Len(t, resp.StageHistory, 1)
	assert.Equal(t, string(workflow.RoleSystem), resp.StageHistory[0].Actor)
}

func TestUpdateStatusHappyPath(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusNewApplication)
	adminID := uuid.New().String()

	resp, err := f.appSvc.UpdateStatus(context.Background(), id.String(), adminID, model.RoleAdmin, UpdateStatusRequest{
		NewStatus: workflow.StatusUnderReviewAdmin,
		Notes:     "starting review",
	})

	require.NoError(t, err)
	assert.Equal(t, workflow.StatusUnderReviewAdmin, resp.CurrentStatus)
	assert.Equal(t, 1, resp.Version)

	history := f.apps.historyFor(id)
	require.Len(t, history, 1)
	assert.Equal(t, string(workflow.RoleAdmin), history[0].Actor)
	assert.Equal(t, "starting review", history[0].Notes)

	events := f.bus.all()
	require.Len(t, events, 1)
	assert.Equal(t, workflow.StatusNewApplication, events[0].PreviousStatus)
}

func TestUpdateStatusDeniedByAuthority(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusNewApplication)

	// new_application belongs to the admin; a partner may not act on it.
	_, err := f.appSvc.UpdateStatus(context.Background(), id.String(), uuid.New().String(), model.RolePartner, UpdateStatusRequest{
		NewStatus: workflow.StatusUnderReviewAdmin,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "may not update")
	assert.Equal(t, workflow.StatusNewApplication, f.application(id).CurrentStatus)
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusNewApplication)

	_, err := f.appSvc.UpdateStatus(context.Background(), id.String(), uuid.New().String(), model.RoleAdmin, UpdateStatusRequest{
		NewStatus: workflow.StatusVisaIssued,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal transition")
}

func TestAvailableTransitionsFilteredByRole(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusNewApplication)

	adminTransitions, err := f.appSvc.AvailableTransitions(context.Background(), id.String(), model.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, adminTransitions)

	partnerTransitions, err := f.appSvc.AvailableTransitions(context.Background(), id.String(), model.RolePartner)
	require.NoError(t, err)
	assert.Empty(t, partnerTransitions)
}

func TestHoldResumeRoundTrip(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()

	held, err := f.appSvc.HoldApplication(context.Background(), id.String(), adminID, HoldRequest{Reason: "student unreachable"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusOnHold, held.CurrentStatus)
	require.NotNil(t, held.PreviousStatus)
	assert.Equal(t, workflow.StatusUnderReviewAdmin, *held.PreviousStatus)
	assert.Equal(t, "student unreachable", held.HoldReason)

	// Stage is untouched by holding.
	assert.Equal(t, workflow.StageApplicationReview, held.CurrentStage)

	resumed, err := f.appSvc.ResumeApplication(context.Background(), id.String(), adminID, ResumeRequest{Reason: "student reachable again"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusUnderReviewAdmin, resumed.CurrentStatus)
	assert.Nil(t, resumed.PreviousStatus)
	assert.Empty(t, resumed.HoldReason)

	app := f.application(id)
	assert.Nil(t, app.HeldBy)
	assert.Nil(t, app.HeldAt)
	require.NotNil(t, app.ResumedAt)
	assert.Equal(t, "student reachable again", app.ResumeReason)
}

func TestHoldIsIdempotent(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusUnderReviewAdmin)
	adminID := uuid.New().String()

	_, err := f.appSvc.HoldApplication(context.Background(), id.String(), adminID, HoldRequest{Reason: "first"})
	require.NoError(t, err)

	resp, err := f.appSvc.HoldApplication(context.Background(), id.String(), adminID, HoldRequest{Reason: "second"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusOnHold, resp.CurrentStatus)
	assert.Equal(t, "first", resp.HoldReason)
	assert.Len(t, f.apps.historyFor(id), 1)
}

func TestResumeWithoutPreviousStatus(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageApplicationReview, workflow.StatusOnHold)

	_, err := f.appSvc.ResumeApplication(context.Background(), id.String(), uuid.New().String(), ResumeRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no previous status recorded")
}

func TestCancelIsAbsorbing(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageVisaProcessing, workflow.StatusVisaUnderProcess)
	adminID := uuid.New().String()

	cancelled, err := f.appSvc.CancelApplication(context.Background(), id.String(), adminID, CancelRequest{Reason: "student withdrew"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, cancelled.CurrentStatus)

	// No admin action works on a cancelled application.
	_, err = f.appSvc.CancelApplication(context.Background(), id.String(), adminID, CancelRequest{Reason: "again"})
	require.Error(t, err)

	_, err = f.appSvc.HoldApplication(context.Background(), id.String(), adminID, HoldRequest{Reason: "hold it"})
	require.Error(t, err)

	_, err = f.appSvc.UpdateStatus(context.Background(), id.String(), adminID, model.RoleAdmin, UpdateStatusRequest{
		NewStatus: workflow.StatusVisaIssued,
	})
	require.Error(t, err)
}

func TestCancelRefusedOnTerminalStatus(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageCommission, workflow.StatusCommissionPaid)

	_, err := f.appSvc.CancelApplication(context.Background(), id.String(), uuid.New().String(), CancelRequest{Reason: "late"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestSettleCommissionWalk(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageCommission, workflow.StatusCommissionPending)
	adminID := uuid.New().String()

	invoiced, err := f.appSvc.SettleCommission(context.Background(), id.String(), adminID, SettleCommissionRequest{Amount: "2500.00"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCommissionInvoiced, invoiced.CurrentStatus)
	assert.Equal(t, "2500.00", invoiced.CommissionAmount)

	paid, err := f.appSvc.SettleCommission(context.Background(), id.String(), adminID, SettleCommissionRequest{Amount: "2500.00"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCommissionPaid, paid.CurrentStatus)
	assert.True(t, workflow.IsTerminal(paid.CurrentStatus))

	// Paid is terminal; a third call fails.
	_, err = f.appSvc.SettleCommission(context.Background(), id.String(), adminID, SettleCommissionRequest{Amount: "2500.00"})
	require.Error(t, err)
}

func TestSettleCommissionRejectsBadAmounts(t *testing.T) {
	f := newFixture()
	id := f.seedApplication(workflow.StageCommission, workflow.StatusCommissionPending)

	_, err := f.appSvc.SettleCommission(context.Background(), id.String(), uuid.New().String(), SettleCommissionRequest{Amount: "-1"})
	require.Error(t, err)

	_, err = f.appSvc.SettleCommission(context.Background(), id.String(), uuid.New().String(), SettleCommissionRequest{Amount: "abc"})
	require.Error(t, err)

	assert.Equal(t, workflow.StatusCommissionPending, f.application(id).CurrentStatus)
}
