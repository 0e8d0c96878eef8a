package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
)

// AttendanceJobs holds the background sweeps over the attendance ledger:
// auto-closing stale open sessions and escalating overdue approvals.
type AttendanceJobs struct {
	attendanceService attendance.AttendanceService
	approvalService   approval.ApprovalService
}

func NewAttendanceJobs(
	attendanceService attendance.AttendanceService,
	approvalService approval.ApprovalService,
) *AttendanceJobs {
	return &AttendanceJobs{
		attendanceService: attendanceService,
		approvalService:   approvalService,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("auto_close_stale_sessions", 15*time.Minute, j.AutoCloseStaleSessions)
	// Escalation re-notifies managers about everything still pending past the
	// limit, so the interval is the nag cadence.
	scheduler.AddJob("escalate_overdue_approvals", 6*time.Hour, j.EscalateOverdueApprovals)
}

// AutoCloseStaleSessions closes sessions left open well past their expected
// end. The service settles each one as a system punch-out, flags it for
// review, and notifies the employee and the workplace's managers.
func (j *AttendanceJobs) AutoCloseStaleSessions(ctx context.Context) error {
	closed, err := j.attendanceService.AutoCloseStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to auto-close stale sessions: %w", err)
	}

	if closed > 0 {
		slog.Info("auto-closed stale attendance sessions", "count", closed)
	}
	return nil
}

// EscalateOverdueApprovals nudges approvers about requests pending past the
// configured limit. Requests stay pending; only notifications go out.
func (j *AttendanceJobs) EscalateOverdueApprovals(ctx context.Context) error {
	escalated, err := j.approvalService.EscalateOverdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to escalate overdue approvals: %w", err)
	}

	if escalated > 0 {
		slog.Info("escalated overdue approval requests", "count", escalated)
	}
	return nil
}
