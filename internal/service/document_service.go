package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/events"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
)

// --- DTOs ---

type UploadDocumentRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
	Type          string `json:"type" binding:"required"`
	FileName      string `json:"file_name" binding:"required"`
}

type ReviewDocumentRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected resubmission_required"`
	Notes    string `json:"notes"`
}

type CreateDocumentRequestDTO struct {
	ApplicationID string     `json:"application_id" binding:"required"`
	DocTypes      []string   `json:"doc_types" binding:"required,min=1"`
	DueDate       *time.Time `json:"due_date"`
}

type DocumentResponse struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Version       int    `json:"version"`
	Stage         int    `json:"stage"`
	FileName      string `json:"file_name"`
	ReviewNotes   string `json:"review_notes,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type UploadResult struct {
	Document DocumentResponse `json:"document"`
	Trigger  TriggerResult    `json:"trigger"`
}

type ReviewResult struct {
	Document      DocumentResponse `json:"document"`
	RequestStatus string           `json:"request_status,omitempty"`
	Application   string           `json:"application_status"`
}

type DocumentRequestResponse struct {
	ID            string   `json:"id"`
	ApplicationID string   `json:"application_id"`
	Stage         int      `json:"stage"`
	Status        string   `json:"status"`
	DocTypes      []string `json:"doc_types"`
	DueDate       *string  `json:"due_date,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// --- Interface ---

type DocumentService interface {
	UploadDocument(ctx context.Context, userID string, req UploadDocumentRequest) (UploadResult, error)
	ReviewDocument(ctx context.Context, userID, documentID string, req ReviewDocumentRequest) (ReviewResult, error)
	ListDocuments(ctx context.Context, applicationID string) ([]DocumentResponse, error)
	CreateDocumentRequest(ctx context.Context, userID string, req CreateDocumentRequestDTO) (DocumentRequestResponse, error)
}

type documentService struct {
	docRepo    repository.DocumentRepository
	docReqRepo repository.DocumentRequestRepository
	appRepo    repository.ApplicationRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	publisher  events.Publisher
	triggers   TriggerService
	now        func() time.Time
}

func NewDocumentService(
	docRepo repository.DocumentRepository,
	docReqRepo repository.DocumentRequestRepository,
	appRepo repository.ApplicationRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
	triggers TriggerService,
) DocumentService {
	return &documentService{
		docRepo:    docRepo,
		docReqRepo: docReqRepo,
		appRepo:    appRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		publisher:  publisher,
		triggers:   triggers,
		now:        time.Now,
	}
}

// --- Implementation ---

// UploadDocument records the document metadata (the binary itself lives
// elsewhere) and fires the stage-aware upload trigger as a side effect.
func (s *documentService) UploadDocument(ctx context.Context, userID string, req UploadDocumentRequest) (UploadResult, error) {
	appID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("application not found: %w", err)
	}
	if workflow.IsTerminal(app.CurrentStatus) {
		return UploadResult{}, fmt.Errorf("cannot upload documents to an application in terminal status %q", app.CurrentStatus)
	}
	if app.CurrentStatus == workflow.StatusOnHold {
		return UploadResult{}, errors.New("application is on hold; resume it before uploading documents")
	}

	version, err := s.docRepo.LatestVersion(ctx, appID, req.Type)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to check document versions: %w", err)
	}

	uid := parseUserID(userID)
	doc := model.Document{
		ApplicationID: appID,
		Type:          req.Type,
		Status:        model.DocStatusUploaded,
		Version:       version + 1,
		Stage:         app.CurrentStage,
		FileName:      req.FileName,
		UploadedBy:    uid,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.docRepo.Create(txCtx, &doc); createErr != nil {
			return fmt.Errorf("failed to record document: %w", createErr)
		}
		if reqErr := s.markRequirementStatus(txCtx, appID, app.CurrentStage, req.Type, model.DocStatusUploaded); reqErr != nil {
			return reqErr
		}

		details, _ := json.Marshal(map[string]interface{}{
			"type":      req.Type,
			"file_name": req.FileName,
			"version":   doc.Version,
		})
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionUploadDocument,
			EntityID:   doc.ID.String(),
			EntityName: req.Type,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return UploadResult{}, err
	}

	// Upload triggers run outside the upload transaction: a failed automatic
	// transition must not roll back the stored document.
	var trigger TriggerResult
	if app.CurrentStage == workflow.StageUniversityProcessing {
		trigger = s.triggers.OnDocumentUploadStage2(ctx, appID, req.Type, userID)
	} else {
		trigger = s.triggers.OnDocumentUpload(ctx, appID, userID)
	}

	return UploadResult{Document: toDocumentResponse(doc), Trigger: trigger}, nil
}

// ReviewDocument records the admin decision on one document, recomputes the
// aggregate checklist status, and maps that aggregate onto the application's
// workflow state.
func (s *documentService) ReviewDocument(ctx context.Context, userID, documentID string, req ReviewDocumentRequest) (ReviewResult, error) {
	docID, err := uuid.Parse(documentID)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("invalid document id: %w", err)
	}
	doc, err := s.docRepo.FindByID(ctx, docID)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("document not found: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, doc.ApplicationID)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("application not found: %w", err)
	}
	if app.CurrentStatus == workflow.StatusOnHold {
		return ReviewResult{}, errors.New("application is on hold; resume it before reviewing documents")
	}
	if workflow.IsTerminal(app.CurrentStatus) {
		return ReviewResult{}, fmt.Errorf("cannot review documents of an application in terminal status %q", app.CurrentStatus)
	}

	doc.Status = req.Decision
	doc.ReviewNotes = req.Notes

	uid := parseUserID(userID)
	var aggregate string

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.docRepo.Update(txCtx, doc); updateErr != nil {
			return fmt.Errorf("failed to update document: %w", updateErr)
		}
		if reqErr := s.markRequirementStatus(txCtx, app.ID, doc.Stage, doc.Type, req.Decision); reqErr != nil {
			return reqErr
		}

		request, reqErr := s.docReqRepo.ActiveByApplication(txCtx, app.ID, doc.Stage)
		if reqErr != nil {
			return fmt.Errorf("failed to load document request: %w", reqErr)
		}
		if request != nil {
			aggregate = aggregateRequestStatus(request.Requirements)
			if aggregate != request.Status {
				request.Status = aggregate
				if saveErr := s.docReqRepo.Update(txCtx, request); saveErr != nil {
					return fmt.Errorf("failed to update document request: %w", saveErr)
				}
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"type":     doc.Type,
			"decision": req.Decision,
			"notes":    req.Notes,
		})
		audit := &model.AuditLog{
			UserID:     uid,
			ActorRole:  string(workflow.RoleAdmin),
			Action:     model.ActionReviewDocument,
			EntityID:   doc.ID.String(),
			EntityName: doc.Type,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return s.applyReviewOutcome(txCtx, app, doc, req.Decision, aggregate, uid)
	})
	if err != nil {
		return ReviewResult{}, err
	}

	return ReviewResult{
		Document:      toDocumentResponse(*doc),
		RequestStatus: aggregate,
		Application:   app.CurrentStatus,
	}, nil
}

func (s *documentService) ListDocuments(ctx context.Context, applicationID string) ([]DocumentResponse, error) {
	appID, err := uuid.Parse(applicationID)
	if err != nil {
		return nil, fmt.Errorf("invalid application id: %w", err)
	}
	docs, err := s.docRepo.ListByApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	result := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		result = append(result, toDocumentResponse(d))
	}
	return result, nil
}

// CreateDocumentRequest issues an admin checklist. The application's required
// document list is replaced by the checklist's types, and an application
// sitting in admin review moves to correction_requested_admin so the partner
// knows documents are expected.
func (s *documentService) CreateDocumentRequest(ctx context.Context, userID string, req CreateDocumentRequestDTO) (DocumentRequestResponse, error) {
	appID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		return DocumentRequestResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return DocumentRequestResponse{}, fmt.Errorf("application not found: %w", err)
	}
	if workflow.IsTerminal(app.CurrentStatus) || app.CurrentStatus == workflow.StatusOnHold {
		return DocumentRequestResponse{}, fmt.Errorf("cannot request documents in status %q", app.CurrentStatus)
	}

	uid := parseUserID(userID)
	request := model.DocumentRequest{
		ApplicationID: appID,
		Stage:         app.CurrentStage,
		Status:        model.DocRequestPending,
		DueDate:       req.DueDate,
		RequestedBy:   uid,
	}
	for _, docType := range req.DocTypes {
		request.Requirements = append(request.Requirements, model.DocumentRequirement{
			DocType:   docType,
			Mandatory: true,
			Status:    model.DocStatusPending,
		})
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.docReqRepo.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create document request: %w", createErr)
		}

		required, _ := json.Marshal(req.DocTypes)
		app.DocumentsRequired = string(required)

		if app.CurrentStatus == workflow.StatusUnderReviewAdmin {
			if err := s.transition(txCtx, app, workflow.StatusCorrectionRequested, "Documents requested", uid); err != nil {
				return err
			}
		} else {
			if updateErr := s.appRepo.Update(txCtx, app); updateErr != nil {
				return fmt.Errorf("failed to update application: %w", updateErr)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{"doc_types": req.DocTypes})
		audit := &model.AuditLog{
			UserID:     uid,
			ActorRole:  string(workflow.RoleAdmin),
			Action:     model.ActionCreateDocumentRequest,
			EntityID:   request.ID.String(),
			EntityName: app.StudentName,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return DocumentRequestResponse{}, err
	}

	return toDocumentRequestResponse(request), nil
}

// --- review outcome mapping ---

// applyReviewOutcome maps a document decision plus the aggregate checklist
// status onto the application's workflow state. The mapping is
// stage-sensitive; stage 3 goes through the permissive payment policy.
func (s *documentService) applyReviewOutcome(ctx context.Context, app *model.Application, doc *model.Document, decision, aggregate string, uid *uuid.UUID) error {
	if target, ok := visaPaymentFallbackTarget(app, decision); ok {
		return s.transition(ctx, app, target, "Payment evidence approved", uid)
	}

	// Stage 1 document review drives the admin review statuses.
	if app.CurrentStage != workflow.StageApplicationReview {
		return nil
	}
	reviewable := app.CurrentStatus == workflow.StatusDocsSubmitted ||
		app.CurrentStatus == workflow.StatusDocsUnderReview
	if !reviewable {
		return nil
	}

	// Make sure review happens from documents_under_review so the history
	// reflects that the admin started the review.
	if app.CurrentStatus == workflow.StatusDocsSubmitted {
		if err := s.transition(ctx, app, workflow.StatusDocsUnderReview, "Document review started", uid); err != nil {
			return err
		}
	}

	switch aggregate {
	case model.DocRequestCompleted:
		return s.transition(ctx, app, workflow.StatusDocsApproved, "All required documents approved", uid)
	case model.DocRequestCancelled:
		return s.transition(ctx, app, workflow.StatusDocsRejected, "A required document was rejected", uid)
	case model.DocRequestPartiallyDone:
		if decision == model.DocStatusResubmission {
			return s.transition(ctx, app, workflow.StatusDocsResubmission, "Resubmission required for "+doc.Type, uid)
		}
	}
	return nil
}

// visaPaymentFallbackTarget isolates a deliberately permissive rule inherited
// from the original workflow: at stage 3 in waiting_visa_payment, ANY
// approved document advances the application to payment_received, regardless
// of the document's type. Possibly a workaround for unreliable type tagging
// upstream; revisit here before changing trigger logic.
func visaPaymentFallbackTarget(app *model.Application, decision string) (string, bool) {
	if app.CurrentStage == workflow.StageVisaProcessing &&
		app.CurrentStatus == workflow.StatusWaitingVisaPayment &&
		decision == model.DocStatusApproved {
		return workflow.StatusPaymentReceived, true
	}
	return "", false
}

// transition applies one admin-attributed status change inside the current
// transaction and publishes the event immediately.
func (s *documentService) transition(ctx context.Context, app *model.Application, toStatus, notes string, uid *uuid.UUID) error {
	stage := workflow.StageOf(toStatus)
	info, err := workflow.Lookup(stage, toStatus)
	if err != nil {
		return err
	}

	previous := app.CurrentStatus
	app.CurrentStatus = toStatus
	app.CurrentStage = stage
	app.NextAction = info.Description
	app.NextActor = string(info.ActingRole)

	if err := s.appRepo.Update(ctx, app); err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	entry := &model.StageHistoryEntry{
		ApplicationID: app.ID,
		Stage:         stage,
		Status:        toStatus,
		Actor:         string(workflow.RoleAdmin),
		Notes:         notes,
	}
	if err := s.appRepo.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("failed to append stage history: %w", err)
	}

	s.publisher.PublishTransition(events.TransitionEvent{
		ApplicationID:  app.ID,
		PreviousStatus: previous,
		NewStatus:      toStatus,
		Stage:          stage,
		Actor:          string(workflow.RoleAdmin),
		Timestamp:      s.now(),
	})
	return nil
}

// markRequirementStatus mirrors a document's status onto the matching
// requirement of the active checklist, when one exists.
func (s *documentService) markRequirementStatus(ctx context.Context, appID uuid.UUID, stage int, docType, status string) error {
	request, err := s.docReqRepo.ActiveByApplication(ctx, appID, stage)
	if err != nil {
		return fmt.Errorf("failed to load document request: %w", err)
	}
	if request == nil {
		return nil
	}
	for i := range request.Requirements {
		if request.Requirements[i].DocType != docType {
			continue
		}
		request.Requirements[i].Status = status
		if err := s.docReqRepo.UpdateRequirement(ctx, &request.Requirements[i]); err != nil {
			return fmt.Errorf("failed to update requirement: %w", err)
		}
	}
	return nil
}

// aggregateRequestStatus summarizes requirement statuses:
// completed when every mandatory requirement is approved, cancelled when any
// mandatory requirement is permanently rejected, partially_completed when at
// least one requirement progressed, pending otherwise.
func aggregateRequestStatus(requirements []model.DocumentRequirement) string {
	if len(requirements) == 0 {
		return model.DocRequestPending
	}

	allApproved := true
	anyProgress := false
	for _, r := range requirements {
		if !r.Mandatory {
			continue
		}
		switch r.Status {
		case model.DocStatusApproved:
			anyProgress = true
		case model.DocStatusRejected:
			return model.DocRequestCancelled
		case model.DocStatusUploaded, model.DocStatusResubmission:
			allApproved = false
			anyProgress = true
		default:
			allApproved = false
		}
	}

	if allApproved {
		return model.DocRequestCompleted
	}
	if anyProgress {
		return model.DocRequestPartiallyDone
	}
	return model.DocRequestPending
}

// --- Helpers ---

func toDocumentResponse(d model.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID.String(),
		ApplicationID: d.ApplicationID.String(),
		Type:          d.Type,
		Status:        d.Status,
		Version:       d.Version,
		Stage:         d.Stage,
		FileName:      d.FileName,
		ReviewNotes:   d.ReviewNotes,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}

func toDocumentRequestResponse(r model.DocumentRequest) DocumentRequestResponse {
	resp := DocumentRequestResponse{
		ID:            r.ID.String(),
		ApplicationID: r.ApplicationID.String(),
		Stage:         r.Stage,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	for _, req := range r.Requirements {
		resp.DocTypes = append(resp.DocTypes, req.DocType)
	}
	if r.DueDate != nil {
		s := r.DueDate.Format(time.RFC3339)
		resp.DueDate = &s
	}
	return resp
}
