package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/config"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/notification"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/jwt"
)

// ApprovalServiceImpl implements the ApprovalService interface.
type ApprovalServiceImpl struct {
	approval.ApprovalRepository
	attendance.AttendanceRepository
	user.UserRepository

	cfg                 config.AttendanceConfig
	notificationService notification.Service
}

func NewApprovalService(
	cfg config.AttendanceConfig,
	approvalRepo approval.ApprovalRepository,
	attendanceRepo attendance.AttendanceRepository,
	userRepo user.UserRepository,
	notificationService notification.Service,
) approval.ApprovalService {
	return &ApprovalServiceImpl{
		ApprovalRepository:   approvalRepo,
		AttendanceRepository: attendanceRepo,
		UserRepository:       userRepo,
		cfg:                  cfg,
		notificationService:  notificationService,
	}
}

// RequestApproval opens a request for one of the caller's completed records.
// Managers and admins are resolved to approved on submission when the
// auto-approval policy is on; the request is still stored for the audit trail.
func (a *ApprovalServiceImpl) RequestApproval(ctx context.Context, req approval.CreateApprovalRequest) (approval.ApprovalResponse, error) {
	if err := req.Validate(); err != nil {
		return approval.ApprovalResponse{}, err
	}

	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}

	usr, err := a.UserRepository.GetByID(ctx, identity.UserID)
	if err != nil {
		return approval.ApprovalResponse{}, fmt.Errorf("failed to get user: %w", err)
	}
	if !usr.Active {
		return approval.ApprovalResponse{}, user.ErrUserInactive
	}

	rec, err := a.AttendanceRepository.GetByID(ctx, req.RecordID)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}
	if rec.UserID != identity.UserID {
		return approval.ApprovalResponse{}, approval.ErrNotRecordOwner
	}
	if rec.Status != attendance.StatusCompleted {
		return approval.ApprovalResponse{}, approval.ErrRecordStillOpen
	}

	now := time.Now().UTC()
	reason := req.Reason
	request := approval.ApprovalRequest{
		RecordID:    rec.ID,
		RequesterID: identity.UserID,
		WorkplaceID: rec.WorkplaceID,
		Type:        approval.Type(req.Type),
		Reasons:     rec.ApprovalReasons,
		Note:        &reason,
		Status:      approval.StatusPending,
		SubmittedAt: now,
	}

	if a.cfg.AutoApproveManagers && identity.Role.IsManager() {
		resolvedBy := identity.UserID
		request.Status = approval.StatusApproved
		request.AutoApproved = true
		request.ResolvedBy = &resolvedBy
		request.ResolvedAt = &now
	}

	created, err := a.ApprovalRepository.Create(ctx, request)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}
	created.RequesterName = &usr.Name

	if !created.AutoApproved {
		a.notifyApprovers(ctx, created, notification.TypeApprovalRequested,
			"Approval requested",
			fmt.Sprintf("%s submitted a %s request.", usr.Name, created.Type))
	}

	return a.mapRequestToResponse(created, now), nil
}

// Resolve approves or rejects a pending request. The repository update is a
// compare-and-set from pending, so exactly one of two racing approvers wins.
// A resolved request never mutates the attendance record; the request itself
// is the authority on the outcome.
func (a *ApprovalServiceImpl) Resolve(ctx context.Context, req approval.ResolveApprovalRequest) (approval.ApprovalResponse, error) {
	if err := req.Validate(); err != nil {
		return approval.ApprovalResponse{}, err
	}

	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}
	if !identity.Role.CanResolveApprovals() {
		return approval.ApprovalResponse{}, user.ErrPermissionDenied
	}

	target, err := a.ApprovalRepository.GetByID(ctx, req.ID)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}
	if target.WorkplaceID != identity.WorkplaceID {
		return approval.ApprovalResponse{}, approval.ErrRequestNotFound
	}
	if target.RequesterID == identity.UserID {
		return approval.ApprovalResponse{}, approval.ErrSelfApproval
	}

	status := approval.StatusApproved
	eventType := notification.TypeApprovalApproved
	title := "Request approved"
	if req.Decision == string(approval.DecisionReject) {
		status = approval.StatusRejected
		eventType = notification.TypeApprovalRejected
		title = "Request rejected"
	}

	now := time.Now().UTC()
	resolved, err := a.ApprovalRepository.Resolve(ctx, req.ID, status, identity.UserID, req.Note, now)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}
	resolved.RequesterName = target.RequesterName

	senderID := identity.UserID
	if err := a.notificationService.QueueNotification(ctx, notification.CreateNotificationRequest{
		WorkplaceID: resolved.WorkplaceID,
		RecipientID: resolved.RequesterID,
		SenderID:    &senderID,
		Type:        eventType,
		Title:       title,
		Message:     fmt.Sprintf("Your %s request has been %s.", resolved.Type, resolved.Status),
		Data: map[string]interface{}{
			"request_id": resolved.ID,
			"record_id":  resolved.RecordID,
		},
	}); err != nil {
		slog.Error("failed to queue resolution notification",
			"request_id", resolved.ID, "error", err)
	}

	return a.mapRequestToResponse(resolved, now), nil
}

// GetRequest implements approval.ApprovalService.
func (a *ApprovalServiceImpl) GetRequest(ctx context.Context, id string) (approval.ApprovalResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}

	req, err := a.ApprovalRepository.GetByID(ctx, id)
	if err != nil {
		return approval.ApprovalResponse{}, err
	}

	// Requesters see their own requests; managers see their workplace's.
	if req.RequesterID != identity.UserID {
		if !identity.Role.IsManager() || req.WorkplaceID != identity.WorkplaceID {
			return approval.ApprovalResponse{}, approval.ErrRequestNotFound
		}
	}

	return a.mapRequestToResponse(req, time.Now().UTC()), nil
}

// PendingForWorkplace retrieves the caller's workplace queue. Without an
// explicit status filter it returns the pending requests, which is what a
// manager works through.
func (a *ApprovalServiceImpl) PendingForWorkplace(ctx context.Context, filter approval.ApprovalFilter) (approval.ListApprovalsResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return approval.ListApprovalsResponse{}, err
	}
	if !identity.Role.CanResolveApprovals() {
		return approval.ListApprovalsResponse{}, user.ErrPermissionDenied
	}

	if filter.Status == nil {
		pending := string(approval.StatusPending)
		filter.Status = &pending
	}
	if err := filter.Validate(); err != nil {
		return approval.ListApprovalsResponse{}, err
	}

	requests, total, err := a.ApprovalRepository.ListByWorkplace(ctx, identity.WorkplaceID, filter)
	if err != nil {
		return approval.ListApprovalsResponse{}, err
	}

	return a.buildListResponse(requests, total, filter), nil
}

// MyRequests implements approval.ApprovalService.
func (a *ApprovalServiceImpl) MyRequests(ctx context.Context, filter approval.ApprovalFilter) (approval.ListApprovalsResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return approval.ListApprovalsResponse{}, err
	}

	if err := filter.Validate(); err != nil {
		return approval.ListApprovalsResponse{}, err
	}

	requests, total, err := a.ApprovalRepository.ListByRequester(ctx, identity.UserID, filter)
	if err != nil {
		return approval.ListApprovalsResponse{}, err
	}

	return a.buildListResponse(requests, total, filter), nil
}

// OpenForRecord opens a request on the record owner's behalf after a flagged
// record completes. An already-pending request for the record stands as-is.
func (a *ApprovalServiceImpl) OpenForRecord(ctx context.Context, recordID, requesterID, workplaceID string, reasons []string) error {
	request := approval.ApprovalRequest{
		RecordID:    recordID,
		RequesterID: requesterID,
		WorkplaceID: workplaceID,
		Type:        deriveType(reasons),
		Reasons:     reasons,
		Status:      approval.StatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	created, err := a.ApprovalRepository.Create(ctx, request)
	if err != nil {
		if errors.Is(err, approval.ErrRequestAlreadyOpen) {
			return nil
		}
		return fmt.Errorf("failed to open approval request: %w", err)
	}

	requesterName := requesterID
	if usr, err := a.UserRepository.GetByID(ctx, requesterID); err == nil {
		requesterName = usr.Name
	}
	a.notifyApprovers(ctx, created, notification.TypeApprovalRequested,
		"Attendance needs review",
		fmt.Sprintf("%s's attendance was flagged: %s.", requesterName, strings.Join(reasons, ", ")))

	return nil
}

// EscalateOverdue notifies approvers about requests pending past the limit.
// The requests themselves are untouched, so every sweep re-notifies until
// someone resolves them.
func (a *ApprovalServiceImpl) EscalateOverdue(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	overdue, err := a.ApprovalRepository.ListPendingOlderThan(ctx, now.Add(-a.cfg.ApprovalEscalationAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue requests: %w", err)
	}

	for _, req := range overdue {
		age := now.Sub(req.SubmittedAt).Round(time.Hour)
		a.notifyApprovers(ctx, req, notification.TypeApprovalOverdue,
			"Approval overdue",
			fmt.Sprintf("A %s request has been pending for %s.", req.Type, age))
	}

	return len(overdue), nil
}

// notifyApprovers fans the event out to the workplace's managers and admins,
// minus the requester. Fire-and-forget: failures are logged, never returned.
func (a *ApprovalServiceImpl) notifyApprovers(ctx context.Context, req approval.ApprovalRequest, eventType notification.NotificationType, title, message string) {
	var recipients []user.User
	for _, role := range []user.Role{user.RoleManager, user.RoleAdmin} {
		users, err := a.UserRepository.ListByWorkplaceAndRole(ctx, req.WorkplaceID, role)
		if err != nil {
			slog.Error("failed to list approvers to notify",
				"workplace_id", req.WorkplaceID, "role", string(role), "error", err)
			continue
		}
		recipients = append(recipients, users...)
	}

	notifications := make([]notification.CreateNotificationRequest, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient.ID == req.RequesterID {
			continue
		}
		notifications = append(notifications, notification.CreateNotificationRequest{
			WorkplaceID: req.WorkplaceID,
			RecipientID: recipient.ID,
			Type:        eventType,
			Title:       title,
			Message:     message,
			Data: map[string]interface{}{
				"request_id": req.ID,
				"record_id":  req.RecordID,
			},
		})
	}
	if len(notifications) == 0 {
		return
	}

	if err := a.notificationService.QueueBulkNotification(ctx, notifications); err != nil {
		slog.Error("failed to queue approver notifications",
			"request_id", req.ID, "error", err)
	}
}

// deriveType picks the request type for a ledger-opened request from the
// record's flag reasons. First reason with a dedicated type wins; anything
// else is a plain verification request.
func deriveType(reasons []string) approval.Type {
	for _, reason := range reasons {
		switch reason {
		case attendance.ReasonOvertime:
			return approval.TypeOvertime
		case attendance.ReasonLateArrival:
			return approval.TypeLate
		case attendance.ReasonEarlyLeave:
			return approval.TypeEarlyLeave
		case attendance.ReasonBreakCapExceeded:
			return approval.TypeBreakExtension
		}
	}
	return approval.TypeVerification
}

func (a *ApprovalServiceImpl) buildListResponse(requests []approval.ApprovalRequest, total int64, filter approval.ApprovalFilter) approval.ListApprovalsResponse {
	now := time.Now().UTC()
	responses := make([]approval.ApprovalResponse, 0, len(requests))
	for _, req := range requests {
		responses = append(responses, a.mapRequestToResponse(req, now))
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))

	showing := "0 of 0"
	if total > 0 && len(requests) > 0 {
		start := (filter.Page-1)*filter.Limit + 1
		end := start + len(requests) - 1
		showing = fmt.Sprintf("%d-%d of %d", start, end, total)
	}

	return approval.ListApprovalsResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Requests:   responses,
	}
}

func (a *ApprovalServiceImpl) mapRequestToResponse(req approval.ApprovalRequest, now time.Time) approval.ApprovalResponse {
	return approval.ApprovalResponse{
		ID:             req.ID,
		RecordID:       req.RecordID,
		RequesterID:    req.RequesterID,
		RequesterName:  req.RequesterName,
		WorkplaceID:    req.WorkplaceID,
		Type:           string(req.Type),
		Reasons:        req.Reasons,
		Note:           req.Note,
		Status:         string(req.Status),
		ResolvedBy:     req.ResolvedBy,
		ResolvedAt:     formatTimePtr(req.ResolvedAt),
		ResolutionNote: req.ResolutionNote,
		AutoApproved:   req.AutoApproved,
		Overdue:        req.OverdueAt(now, a.cfg.ApprovalEscalationAfter),
		SubmittedAt:    formatTime(req.SubmittedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}
