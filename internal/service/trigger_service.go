package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
)

// TriggerResult describes the outcome of a system-initiated transition.
// Triggers never return Go errors for expected failure modes (missing
// application, illegal source status); callers branch on Success.
type TriggerResult struct {
	Success        bool      `json:"success"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Message        string    `json:"message"`
	TriggeredAt    time.Time `json:"triggered_at"`
}

// TriggerService is the system trigger engine: automatic, non-human
// transitions fired in response to domain events. Every trigger re-reads the
// application at the start of its own execution, validates its fixed
// precondition set, and leaves state untouched on any failed check.
type TriggerService interface {
	OnApplicationSubmitted(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnPartialDocumentsUploaded(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnAllDocumentsUploaded(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnStage1FinalApproval(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnStage1FinalRejection(ctx context.Context, applicationID uuid.UUID, triggeredBy, reason string) TriggerResult
	OnOfferLetterUpload(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnUniversityApprovedDirect(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnStage3Complete(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnStage4Complete(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnDocumentUpload(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult
	OnDocumentUploadStage2(ctx context.Context, applicationID uuid.UUID, docType, triggeredBy string) TriggerResult
}

type triggerService struct {
	appRepo   repository.ApplicationRepository
	docRepo   repository.DocumentRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	publisher events.Publisher
	now       func() time.Time
}

func NewTriggerService(
	appRepo repository.ApplicationRepository,
	docRepo repository.DocumentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
) TriggerService {
	return &triggerService{
		appRepo:   appRepo,
		docRepo:   docRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		publisher: publisher,
		now:       time.Now,
	}
}

// --- shared plumbing ---

func (s *triggerService) fail(previous, message string) TriggerResult {
	return TriggerResult{
		Success:        false,
		PreviousStatus: previous,
		NewStatus:      previous,
		Message:        message,
		TriggeredAt:    s.now(),
	}
}

func (s *triggerService) ok(previous, current, message string) TriggerResult {
	return TriggerResult{
		Success:        true,
		PreviousStatus: previous,
		NewStatus:      current,
		Message:        message,
		TriggeredAt:    s.now(),
	}
}

func statusIn(status string, allowed []string) bool {
	for _, a := range allowed {
		if status == a {
			return true
		}
	}
	return false
}

// hop describes a single applied transition within one trigger execution.
type hop struct {
	toStatus string
	toStage  int
	notes    string
}

// advance applies one transition hop inside the current transaction: status
// and stage move, next action/actor are recomputed from the catalog, exactly
// one history entry with actor System is appended, and an audit record is
// written. The caller publishes events only after the transaction commits.
func (s *triggerService) advance(ctx context.Context, app *model.Application, h hop) error {
	info, err := workflow.Lookup(h.toStage, h.toStatus)
	if err != nil {
		return fmt.Errorf("target state (%d, %s): %w", h.toStage, h.toStatus, err)
	}

	previous := app.CurrentStatus
	app.CurrentStatus = h.toStatus
	app.CurrentStage = h.toStage
	app.NextAction = info.Description
	app.NextActor = string(info.ActingRole)

	if err := s.appRepo.Update(ctx, app); err != nil {
		return fmt.Errorf("failed to persist transition: %w", err)
	}

	entry := &model.StageHistoryEntry{
		ApplicationID: app.ID,
		Stage:         h.toStage,
		Status:        h.toStatus,
		Actor:         string(workflow.RoleSystem),
		Notes:         h.notes,
	}
	if err := s.appRepo.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append stage history: %w", err)
	}

	details, _ := json.Marshal(map[string]interface{}{
		"previous_status": previous,
		"new_status":      h.toStatus,
		"stage":           h.toStage,
		"notes":           h.notes,
	})
	audit := &model.AuditLog{
		Action:     model.ActionSystemTransition,
		ActorRole:  string(workflow.RoleSystem),
		EntityID:   app.ID.String(),
		EntityName: app.StudentName,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

// run is the shared trigger body: load, validate precondition, apply hops
// atomically, publish one event per hop after commit. mutate (optional) edits
// the freshly loaded record before the first hop is applied.
func (s *triggerService) run(ctx context.Context, applicationID uuid.UUID, validFrom []string, mutate func(*model.Application), hops []hop, message string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}

	if !statusIn(app.CurrentStatus, validFrom) {
		return s.fail(app.CurrentStatus, fmt.Sprintf(
			"transition not allowed from status %q", app.CurrentStatus))
	}

	if mutate != nil {
		mutate(app)
	}

	previous := app.CurrentStatus
	published := make([]events.TransitionEvent, 0, len(hops))

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, h := range hops {
			from := app.CurrentStatus
			if err := s.advance(txCtx, app, h); err != nil {
				return err
			}
			published = append(published, events.TransitionEvent{
				ApplicationID:  app.ID,
				PreviousStatus: from,
				NewStatus:      h.toStatus,
				Stage:          h.toStage,
				Actor:          string(workflow.RoleSystem),
				Timestamp:      s.now(),
			})
		}
		return nil
	})
	if err != nil {
		return s.fail(previous, err.Error())
	}

	for _, ev := range published {
		s.publisher.PublishTransition(ev)
	}

	return s.ok(previous, app.CurrentStatus, message)
}

// --- triggers ---

// OnApplicationSubmitted moves a freshly created application out of draft.
func (s *triggerService) OnApplicationSubmitted(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	return s.run(ctx, applicationID,
		[]string{workflow.StatusDraft, ""},
		nil,
		[]hop{{toStatus: workflow.StatusNewApplication, toStage: workflow.StageApplicationReview, notes: "Application submitted by " + triggeredBy}},
		"application submitted for review")
}

var partialUploadValidFrom = []string{
	workflow.StatusCorrectionRequested,
	workflow.StatusDocsResubmission,
}

// OnPartialDocumentsUploaded fires when some but not all required documents
// are present.
func (s *triggerService) OnPartialDocumentsUploaded(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}
	// Duplicate event delivery: already partially submitted is a no-op.
	if app.CurrentStatus == workflow.StatusDocsPartiallySubmitted {
		return s.ok(app.CurrentStatus, app.CurrentStatus, "documents already partially submitted")
	}
	return s.run(ctx, applicationID, partialUploadValidFrom, nil,
		[]hop{{toStatus: workflow.StatusDocsPartiallySubmitted, toStage: workflow.StageApplicationReview, notes: "Partial documents uploaded by " + triggeredBy}},
		"partial documents received")
}

// OnAllDocumentsUploaded fires when every required document is present.
func (s *triggerService) OnAllDocumentsUploaded(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}
	if app.CurrentStatus == workflow.StatusDocsSubmitted {
		return s.ok(app.CurrentStatus, app.CurrentStatus, "documents already submitted")
	}
	validFrom := append(append([]string{}, partialUploadValidFrom...), workflow.StatusDocsPartiallySubmitted)
	return s.run(ctx, applicationID, validFrom, nil,
		[]hop{{toStatus: workflow.StatusDocsSubmitted, toStage: workflow.StageApplicationReview, notes: "All required documents uploaded by " + triggeredBy}},
		"all required documents received")
}

// OnStage1FinalApproval records the admin's final stage 1 decision.
func (s *triggerService) OnStage1FinalApproval(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	return s.run(ctx, applicationID,
		[]string{workflow.StatusDocsApproved},
		nil,
		[]hop{{toStatus: workflow.StatusApprovedStage1, toStage: workflow.StageApplicationReview, notes: "Stage 1 approval recorded by " + triggeredBy}},
		"application approved for university submission")
}

// OnStage1FinalRejection terminates the application at stage 1.
func (s *triggerService) OnStage1FinalRejection(ctx context.Context, applicationID uuid.UUID, triggeredBy, reason string) TriggerResult {
	validFrom := []string{
		workflow.StatusNewApplication,
		workflow.StatusUnderReviewAdmin,
		workflow.StatusDocsUnderReview,
		workflow.StatusDocsRejected,
	}
	return s.run(ctx, applicationID, validFrom,
		func(app *model.Application) { app.RejectionReason = reason },
		[]hop{{toStatus: workflow.StatusRejectedStage1, toStage: workflow.StageApplicationReview, notes: reason}},
		"application rejected at stage 1")
}

// OnOfferLetterUpload is the two-hop cascade fired when the university's
// offer letter document arrives: offer_letter_issued, then immediately
// waiting_visa_payment at stage 3. Idempotent: re-delivery of the upload
// event after the application reached stage 3 is a successful no-op.
func (s *triggerService) OnOfferLetterUpload(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}
	if app.CurrentStage >= workflow.StageVisaProcessing {
		return s.ok(app.CurrentStatus, app.CurrentStatus, "offer letter already processed")
	}
	return s.run(ctx, applicationID,
		[]string{workflow.StatusUniversityApproved},
		nil,
		[]hop{
			{toStatus: workflow.StatusOfferLetterIssued, toStage: workflow.StageUniversityProcessing, notes: "Offer letter uploaded by " + triggeredBy},
			{toStatus: workflow.StatusWaitingVisaPayment, toStage: workflow.StageVisaProcessing, notes: "Advanced to visa processing"},
		},
		"offer letter processed, application moved to visa stage")
}

// OnUniversityApprovedDirect is the single-hop shortcut: the system records a
// synthetic approved offer letter document and jumps straight to stage 3,
// skipping the intermediate offer_letter_issued status.
func (s *triggerService) OnUniversityApprovedDirect(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}
	if app.CurrentStage >= workflow.StageVisaProcessing {
		return s.ok(app.CurrentStatus, app.CurrentStatus, "application already at visa stage")
	}
	if app.CurrentStatus != workflow.StatusUniversityApproved {
		return s.fail(app.CurrentStatus, fmt.Sprintf(
			"transition not allowed from status %q", app.CurrentStatus))
	}

	version, err := s.docRepo.LatestVersion(ctx, app.ID, model.DocTypeOfferLetter)
	if err != nil {
		return s.fail(app.CurrentStatus, fmt.Sprintf("failed to check offer letter versions: %v", err))
	}
	doc := &model.Document{
		ApplicationID: app.ID,
		Type:          model.DocTypeOfferLetter,
		Status:        model.DocStatusApproved,
		Version:       version + 1,
		Stage:         app.CurrentStage,
		FileName:      "offer_letter_auto.pdf",
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return s.fail(app.CurrentStatus, fmt.Sprintf("failed to record offer letter: %v", err))
	}

	return s.run(ctx, applicationID,
		[]string{workflow.StatusUniversityApproved},
		nil,
		[]hop{{toStatus: workflow.StatusWaitingVisaPayment, toStage: workflow.StageVisaProcessing, notes: "University approval processed directly by " + triggeredBy}},
		"university approval processed, application moved to visa stage")
}

// OnStage3Complete moves a visa-issued application into the arrival stage.
func (s *triggerService) OnStage3Complete(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	return s.run(ctx, applicationID,
		[]string{workflow.StatusVisaIssued},
		nil,
		[]hop{{toStatus: workflow.StatusArrivalDatePlanned, toStage: workflow.StageArrival, notes: "Visa stage completed, arrival planning started"}},
		"application moved to arrival stage")
}

// OnStage4Complete moves an enrolled application into commission settlement.
func (s *triggerService) OnStage4Complete(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	return s.run(ctx, applicationID,
		[]string{workflow.StatusEnrollmentConfirmed},
		nil,
		[]hop{{toStatus: workflow.StatusCommissionPending, toStage: workflow.StageCommission, notes: "Enrollment confirmed, commission settlement opened"}},
		"application moved to commission stage")
}

// OnDocumentUpload is the generic dispatcher: it inspects which of the
// application's required documents are present and delegates to the
// all/partial trigger accordingly.
func (s *triggerService) OnDocumentUpload(ctx context.Context, applicationID uuid.UUID, triggeredBy string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}

	var required []string
	if app.DocumentsRequired != "" {
		if err := json.Unmarshal([]byte(app.DocumentsRequired), &required); err != nil {
			return s.fail(app.CurrentStatus, fmt.Sprintf("invalid documents_required list: %v", err))
		}
	}
	if len(required) == 0 {
		// Nothing was requested; any upload counts as a complete set.
		return s.OnAllDocumentsUploaded(ctx, applicationID, triggeredBy)
	}

	docs, err := s.docRepo.ListByApplication(ctx, applicationID)
	if err != nil {
		return s.fail(app.CurrentStatus, fmt.Sprintf("failed to load documents: %v", err))
	}

	present := make(map[string]bool)
	for _, d := range docs {
		if d.Status != model.DocStatusRejected {
			present[d.Type] = true
		}
	}

	uploaded := 0
	for _, docType := range required {
		if present[docType] {
			uploaded++
		}
	}

	switch {
	case uploaded == 0:
		return s.fail(app.CurrentStatus, "none of the required documents have been uploaded")
	case uploaded < len(required):
		return s.OnPartialDocumentsUploaded(ctx, applicationID, triggeredBy)
	default:
		return s.OnAllDocumentsUploaded(ctx, applicationID, triggeredBy)
	}
}

// OnDocumentUploadStage2 routes offer letter uploads into the stage 2
// cascade; anything else falls back to the generic dispatcher.
func (s *triggerService) OnDocumentUploadStage2(ctx context.Context, applicationID uuid.UUID, docType, triggeredBy string) TriggerResult {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return s.fail("", fmt.Sprintf("application %s not found", applicationID))
	}
	if docType == model.DocTypeOfferLetter &&
		(app.CurrentStatus == workflow.StatusUniversityApproved || app.CurrentStage >= workflow.StageVisaProcessing) {
		return s.OnOfferLetterUpload(ctx, applicationID, triggeredBy)
	}
	return s.OnDocumentUpload(ctx, applicationID, triggeredBy)
}
