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
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateApplicationRequest struct {
	StudentName       string   `json:"student_name" binding:"required"`
	StudentEmail      string   `json:"student_email" binding:"omitempty,email"`
	UniversityName    string   `json:"university_name" binding:"required"`
	Program           string   `json:"program"`
	IntakeSeason      string   `json:"intake_season"`
	Priority          string   `json:"priority" binding:"omitempty,oneof=low medium high"`
	DocumentsRequired []string `json:"documents_required"`
	SubmitImmediately bool     `json:"submit_immediately"`
}

type UpdateStatusRequest struct {
	NewStatus string `json:"new_status" binding:"required"`
	Notes     string `json:"notes"`
}

type HoldRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ResumeRequest struct {
	Reason string `json:"reason"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type SettleCommissionRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type ApplicationResponse struct {
	ID                string             `json:"id"`
	StudentName       string             `json:"student_name"`
	StudentEmail      string             `json:"student_email"`
	UniversityName    string             `json:"university_name"`
	Program           string             `json:"program"`
	IntakeSeason      string             `json:"intake_season"`
	PartnerID         *string            `json:"partner_id"`
	PartnerName       string             `json:"partner_name,omitempty"`
	CurrentStage      int                `json:"current_stage"`
	CurrentStatus     string             `json:"current_status"`
	StatusLabel       string             `json:"status_label"`
	NextAction        string             `json:"next_action"`
	NextActor         string             `json:"next_actor"`
	Priority          string             `json:"priority"`
	PreviousStatus    *string            `json:"previous_status,omitempty"`
	DocumentsRequired []string           `json:"documents_required"`
	CommissionAmount  string             `json:"commission_amount"`
	RejectionReason   string             `json:"rejection_reason,omitempty"`
	HoldReason        string             `json:"hold_reason,omitempty"`
	CancelReason      string             `json:"cancel_reason,omitempty"`
	Version           int                `json:"version"`
	StageHistory      []StageHistoryItem `json:"stage_history,omitempty"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
}

type StageHistoryItem struct {
	Stage     int    `json:"stage"`
	Status    string `json:"status"`
	Actor     string `json:"actor"`
	Notes     string `json:"notes,omitempty"`
	Timestamp string `json:"timestamp"`
}

type ApplicationListFilter struct {
	Stage    int
	Status   string
	Priority string
	Partner  string
	Page     int
	Limit    int
}

// --- Interface ---

type ApplicationService interface {
	CreateApplication(ctx context.Context, partnerID string, req CreateApplicationRequest) (ApplicationResponse, error)
	GetApplication(ctx context.Context, id string) (ApplicationResponse, error)
	ListApplications(ctx context.Context, filter ApplicationListFilter) ([]ApplicationResponse, int64, error)
	SubmitApplication(ctx context.Context, id, userID string) (TriggerResult, error)
	AvailableTransitions(ctx context.Context, id string, role string) ([]string, error)
	UpdateStatus(ctx context.Context, id, userID, role string, req UpdateStatusRequest) (ApplicationResponse, error)
	HoldApplication(ctx context.Context, id, userID string, req HoldRequest) (ApplicationResponse, error)
	ResumeApplication(ctx context.Context, id, userID string, req ResumeRequest) (ApplicationResponse, error)
	CancelApplication(ctx context.Context, id, userID string, req CancelRequest) (ApplicationResponse, error)
	SettleCommission(ctx context.Context, id, userID string, req SettleCommissionRequest) (ApplicationResponse, error)
}

type applicationService struct {
	appRepo   repository.ApplicationRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	publisher events.Publisher
	triggers  TriggerService
	now       func() time.Time
}

func NewApplicationService(
	appRepo repository.ApplicationRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
	triggers TriggerService,
) ApplicationService {
	return &applicationService{
		appRepo:   appRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		publisher: publisher,
		triggers:  triggers,
		now:       time.Now,
	}
}

// --- Implementation ---

func (s *applicationService) CreateApplication(ctx context.Context, partnerID string, req CreateApplicationRequest) (ApplicationResponse, error) {
	var pid *uuid.UUID
	if partnerID != "" {
		parsed, err := uuid.Parse(partnerID)
		if err != nil {
			return ApplicationResponse{}, fmt.Errorf("invalid partner id: %w", err)
		}
		pid = &parsed
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	required, _ := json.Marshal(req.DocumentsRequired)

	draftInfo, err := workflow.Lookup(workflow.StageApplicationReview, workflow.StatusDraft)
	if err != nil {
		return ApplicationResponse{}, err
	}

	app := model.Application{
		StudentName:       req.StudentName,
		StudentEmail:      req.StudentEmail,
		UniversityName:    req.UniversityName,
		Program:           req.Program,
		IntakeSeason:      req.IntakeSeason,
		PartnerID:         pid,
		CurrentStage:      workflow.StageApplicationReview,
		CurrentStatus:     workflow.StatusDraft,
		NextAction:        draftInfo.Description,
		NextActor:         string(draftInfo.ActingRole),
		Priority:          priority,
		DocumentsRequired: string(required),
		CommissionAmount:  decimal.Zero,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.appRepo.Create(txCtx, &app); createErr != nil {
			return fmt.Errorf("failed to create application: %w", createErr)
		}
		return s.audit(txCtx, pid, model.ActionCreateApplication, "", &app, map[string]interface{}{
			"student_name": req.StudentName,
			"university":   req.UniversityName,
		})
	})
	if err != nil {
		return ApplicationResponse{}, err
	}

	// Mirror the record-store contract: adding an application in draft state
	// fires the submission trigger when the caller asked for it.
	if req.SubmitImmediately {
		result := s.triggers.OnApplicationSubmitted(ctx, app.ID, partnerID)
		if !result.Success {
			return ApplicationResponse{}, errors.New(result.Message)
		}
	}

	return s.GetApplication(ctx, app.ID.String())
}

func (s *applicationService) GetApplication(ctx context.Context, id string) (ApplicationResponse, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByIDWithHistory(ctx, appID)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("application not found: %w", err)
	}
	return toApplicationResponse(app), nil
}

func (s *applicationService) ListApplications(ctx context.Context, filter ApplicationListFilter) ([]ApplicationResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.ApplicationFilter{
		Stage:    filter.Stage,
		Status:   filter.Status,
		Priority: filter.Priority,
		Page:     filter.Page,
		Limit:    filter.Limit,
	}
	if filter.Partner != "" {
		pid, err := uuid.Parse(filter.Partner)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid partner id: %w", err)
		}
		repoFilter.PartnerID = &pid
	}

	apps, total, err := s.appRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}

	result := make([]ApplicationResponse, 0, len(apps))
	for i := range apps {
		result = append(result, toApplicationResponse(&apps[i]))
	}
	return result, total, nil
}

func (s *applicationService) SubmitApplication(ctx context.Context, id, userID string) (TriggerResult, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("invalid application id: %w", err)
	}
	return s.triggers.OnApplicationSubmitted(ctx, appID, userID), nil
}

// AvailableTransitions returns the legal next statuses from the application's
// current state, filtered down to what the given role may initiate.
func (s *applicationService) AvailableTransitions(ctx context.Context, id string, role string) ([]string, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("application not found: %w", err)
	}

	if !workflow.CanActorUpdate(app.CurrentStatus, roleFromString(role)) {
		return []string{}, nil
	}
	return workflow.AvailableTransitions(app.CurrentStage, app.CurrentStatus), nil
}

// UpdateStatus performs a human-initiated transition. The authority matrix is
// re-validated here; the handler's role gate is not trusted on its own.
func (s *applicationService) UpdateStatus(ctx context.Context, id, userID, role string, req UpdateStatusRequest) (ApplicationResponse, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("application not found: %w", err)
	}

	actorRole := roleFromString(role)
	if !workflow.CanActorUpdate(app.CurrentStatus, actorRole) {
		return ApplicationResponse{}, fmt.Errorf("role %s may not update an application in status %q", role, app.CurrentStatus)
	}
	if app.CurrentStatus == workflow.StatusOnHold {
		return ApplicationResponse{}, errors.New("application is on hold; resume it before changing status")
	}
	if !workflow.CanTransition(app.CurrentStage, app.CurrentStatus, req.NewStatus) {
		return ApplicationResponse{}, fmt.Errorf("illegal transition from %q to %q", app.CurrentStatus, req.NewStatus)
	}

	targetStage := workflow.StageOf(req.NewStatus)
	info, err := workflow.Lookup(targetStage, req.NewStatus)
	if err != nil {
		return ApplicationResponse{}, err
	}

	previous := app.CurrentStatus
	app.CurrentStatus = req.NewStatus
	app.CurrentStage = targetStage
	app.NextAction = info.Description
	app.NextActor = string(info.ActingRole)

	uid := parseUserID(userID)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.appRepo.Update(txCtx, app); updateErr != nil {
			return fmt.Errorf("failed to update application: %w", updateErr)
		}
		entry := &model.StageHistoryEntry{
			ApplicationID: app.ID,
			Stage:         app.CurrentStage,
			Status:        app.CurrentStatus,
			Actor:         string(actorRole),
			Notes:         req.Notes,
		}
		if histErr := s.appRepo.AppendHistory(txCtx, entry); histErr != nil {
			return fmt.Errorf("failed to append stage history: %w", histErr)
		}
		return s.audit(txCtx, uid, model.ActionUpdateStatus, role, app, map[string]interface{}{
			"previous_status": previous,
			"new_status":      req.NewStatus,
			"notes":           req.Notes,
		})
	})
	if err != nil {
		return ApplicationResponse{}, err
	}

	s.publisher.PublishTransition(events.TransitionEvent{
		ApplicationID:  app.ID,
		PreviousStatus: previous,
		NewStatus:      app.CurrentStatus,
		Stage:          app.CurrentStage,
		Actor:          string(actorRole),
		Timestamp:      s.now(),
	})

	return s.GetApplication(ctx, id)
}

// HoldApplication parks an active application. Re-holding is a no-op with a
// user-visible notice rather than an error.
func (s *applicationService) HoldApplication(ctx context.Context, id, userID string, req HoldRequest) (ApplicationResponse, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("application not found: %w", err)
	}

	if app.CurrentStatus == workflow.StatusOnHold {
		// Idempotent guard; report current state without touching it.
		return toApplicationResponse(app), nil
	}
	if workflow.IsTerminal(app.CurrentStatus) {
		return ApplicationResponse{}, fmt.Errorf("cannot hold an application in terminal status %q", app.CurrentStatus)
	}

	previous := app.CurrentStatus
	now := s.now()
	uid := parseUserID(userID)

	app.PreviousStatus = &previous
	app.CurrentStatus = workflow.StatusOnHold
	app.HoldReason = req.Reason
	app.HeldBy = uid
	app.HeldAt = &now
	holdInfo, _ := workflow.Lookup(0, workflow.StatusOnHold)
	app.NextAction = holdInfo.Description
	app.NextActor = string(holdInfo.ActingRole)

	err = s.applyAdminAction(ctx, app, uid, model.ActionHoldApplication, string(workflow.RoleAdmin), previous, req.Reason)
	if err != nil {
		return ApplicationResponse{}, err
	}
	return s.GetApplication(ctx, id)
}

// ResumeApplication restores the exact status the application was holding
// from and clears the hold annotations.
func (s *applicationService) ResumeApplication(ctx context.Context, id, userID string, req ResumeRequest) (ApplicationResponse, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("application not found: %w", err)
	}

	if app.CurrentStatus != workflow.StatusOnHold {
		return ApplicationResponse{}, errors.New("application is not on hold")
	}
	if app.PreviousStatus == nil || *app.PreviousStatus == "" {
		return ApplicationResponse{}, errors.New("no previous status recorded; update the status manually")
	}

	previous := app.CurrentStatus
	now := s.now()
	uid := parseUserID(userID)

	restored := *app.PreviousStatus
	app.CurrentStatus = restored
	app.PreviousStatus = nil
	app.HoldReason = ""
	app.HeldBy = nil
	app.HeldAt = nil
	app.ResumeReason = req.Reason
	app.ResumedBy = uid
	app.ResumedAt = &now
	if info, lookupErr := workflow.Lookup(app.CurrentStage, restored); lookupErr == nil {
		app.NextAction = info.Description
		app.NextActor = string(info.ActingRole)
	}

	err = s.applyAdminAction(ctx, app, uid, model.ActionResumeApplication, string(workflow.RoleAdmin), previous, req.Reason)
	if err != nil {
		return ApplicationResponse{}, err
	}
	return s.GetApplication(ctx, id)
}

// CancelApplication moves the application into its absorbing terminal state.
func (s *applicationService) CancelApplication(ctx context.Context, id, userID string, req CancelRequest) (ApplicationResponse, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("application not found: %w", err)
	}

	if workflow.IsTerminal(app.CurrentStatus) {
		return ApplicationResponse{}, fmt.Errorf("application is already in terminal status %q", app.CurrentStatus)
	}

	previous := app.CurrentStatus
	now := s.now()
	uid := parseUserID(userID)

	app.CurrentStatus = workflow.StatusCancelled
	app.PreviousStatus = nil
	app.CancelReason = req.Reason
	app.CancelledBy = uid
	app.CancelledAt = &now
	cancelInfo, _ := workflow.Lookup(0, workflow.StatusCancelled)
	app.NextAction = cancelInfo.Description
	app.NextActor = string(cancelInfo.ActingRole)

	err = s.applyAdminAction(ctx, app, uid, model.ActionCancelApplication, string(workflow.RoleAdmin), previous, req.Reason)
	if err != nil {
		return ApplicationResponse{}, err
	}
	return s.GetApplication(ctx, id)
}

// SettleCommission records the commission amount and walks the application
// through the stage 5 settlement statuses one step at a time.
func (s *applicationService) SettleCommission(ctx context.Context, id, userID string, req SettleCommissionRequest) (ApplicationResponse, error) {
	appID, err := uuid.Parse(id)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid application id: %w", err)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("invalid commission amount: %w", err)
	}
	if amount.IsNegative() {
		return ApplicationResponse{}, errors.New("commission amount must not be negative")
	}

	app, err := s.appRepo.FindByID(ctx, appID)
	if err != nil {
		return ApplicationResponse{}, fmt.Errorf("application not found: %w", err)
	}

	var next string
	switch app.CurrentStatus {
	case workflow.StatusCommissionPending:
		next = workflow.StatusCommissionInvoiced
	case workflow.StatusCommissionInvoiced:
		next = workflow.StatusCommissionPaid
	default:
		return ApplicationResponse{}, fmt.Errorf("commission settlement not available in status %q", app.CurrentStatus)
	}

	app.CommissionAmount = amount
	previous := app.CurrentStatus
	info, err := workflow.Lookup(workflow.StageCommission, next)
	if err != nil {
		return ApplicationResponse{}, err
	}
	app.CurrentStatus = next
	app.NextAction = info.Description
	app.NextActor = string(info.ActingRole)

	uid := parseUserID(userID)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.appRepo.Update(txCtx, app); updateErr != nil {
			return fmt.Errorf("failed to update application: %w", updateErr)
		}
		entry := &model.StageHistoryEntry{
			ApplicationID: app.ID,
			Stage:         workflow.StageCommission,
			Status:        next,
			Actor:         string(workflow.RoleAdmin),
			Notes:         "Commission amount " + amount.StringFixed(2),
		}
		if histErr := s.appRepo.AppendHistory(txCtx, entry); histErr != nil {
			return fmt.Errorf("failed to append stage history: %w", histErr)
		}
		return s.audit(txCtx, uid, model.ActionSettleCommission, string(workflow.RoleAdmin), app, map[string]interface{}{
			"previous_status": previous,
			"new_status":      next,
			"amount":          amount.StringFixed(2),
		})
	})
	if err != nil {
		return ApplicationResponse{}, err
	}

	s.publisher.PublishTransition(events.TransitionEvent{
		ApplicationID:  app.ID,
		PreviousStatus: previous,
		NewStatus:      next,
		Stage:          workflow.StageCommission,
		Actor:          string(workflow.RoleAdmin),
		Timestamp:      s.now(),
	})

	return s.GetApplication(ctx, id)
}

// --- Helpers ---

// applyAdminAction persists an administrative side-flow change (hold, resume,
// cancel): one update, one history entry, one audit record, one event.
func (s *applicationService) applyAdminAction(ctx context.Context, app *model.Application, uid *uuid.UUID, action, role, previous, reason string) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.appRepo.Update(txCtx, app); updateErr != nil {
			return fmt.Errorf("failed to update application: %w", updateErr)
		}
		entry := &model.StageHistoryEntry{
			ApplicationID: app.ID,
			Stage:         app.CurrentStage,
			Status:        app.CurrentStatus,
			Actor:         role,
			Notes:         reason,
		}
		if histErr := s.appRepo.AppendHistory(txCtx, entry); histErr != nil {
			return fmt.Errorf("failed to append stage history: %w", histErr)
		}
		return s.audit(txCtx, uid, action, role, app, map[string]interface{}{
			"previous_status": previous,
			"new_status":      app.CurrentStatus,
			"reason":          reason,
		})
	})
	if err != nil {
		return err
	}

	s.publisher.PublishTransition(events.TransitionEvent{
		ApplicationID:  app.ID,
		PreviousStatus: previous,
		NewStatus:      app.CurrentStatus,
		Stage:          app.CurrentStage,
		Actor:          role,
		Timestamp:      s.now(),
		Force:          true,
	})
	return nil
}

func (s *applicationService) audit(ctx context.Context, uid *uuid.UUID, action, role string, app *model.Application, payload map[string]interface{}) error {
	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		ActorRole:  role,
		EntityID:   app.ID.String(),
		EntityName: app.StudentName,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func parseUserID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

func roleFromString(role string) workflow.Role {
	switch role {
	case model.RoleAdmin:
		return workflow.RoleAdmin
	case model.RolePartner:
		return workflow.RolePartner
	case model.RoleUniversity:
		return workflow.RoleUniversity
	case model.RoleImmigration:
		return workflow.RoleImmigration
	default:
		return workflow.Role(role)
	}
}

func toApplicationResponse(app *model.Application) ApplicationResponse {
	resp := ApplicationResponse{
		ID:               app.ID.String(),
		StudentName:      app.StudentName,
		StudentEmail:     app.StudentEmail,
		UniversityName:   app.UniversityName,
		Program:          app.Program,
		IntakeSeason:     app.IntakeSeason,
		CurrentStage:     app.CurrentStage,
		CurrentStatus:    app.CurrentStatus,
		StatusLabel:      workflow.StatusDisplayName(app.CurrentStage, app.CurrentStatus),
		NextAction:       app.NextAction,
		NextActor:        app.NextActor,
		Priority:         app.Priority,
		PreviousStatus:   app.PreviousStatus,
		CommissionAmount: app.CommissionAmount.StringFixed(2),
		RejectionReason:  app.RejectionReason,
		HoldReason:       app.HoldReason,
		CancelReason:     app.CancelReason,
		Version:          app.Version,
		CreatedAt:        app.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        app.UpdatedAt.Format(time.RFC3339),
	}

	if app.PartnerID != nil {
		s := app.PartnerID.String()
		resp.PartnerID = &s
	}
	if app.Partner != nil {
		resp.PartnerName = app.Partner.Username
	}
	if app.DocumentsRequired != "" {
		_ = json.Unmarshal([]byte(app.DocumentsRequired), &resp.DocumentsRequired)
	}
	for _, h := range app.StageHistory {
		resp.StageHistory = append(resp.StageHistory, StageHistoryItem{
			Stage:     h.Stage,
			Status:    h.Status,
			Actor:     h.Actor,
			Notes:     h.Notes,
			Timestamp: h.CreatedAt.Format(time.RFC3339),
		})
	}

	return resp
}

// IsConflict reports whether err stems from a concurrent update losing the
// optimistic version check. Handlers map it to HTTP 409.
func IsConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict)
}
