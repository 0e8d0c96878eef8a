package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/config"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/notification"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/presence"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/geo"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/jwt"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/keylock"
	"github.com/kerjalabs/attendance-backend-go/internal/repository/postgresql"
	"github.com/kerjalabs/attendance-backend-go/internal/service/file"
)

// AttendanceServiceImpl implements attendance.AttendanceService
type AttendanceServiceImpl struct {
	attendance.AttendanceRepository
	workplace.WorkplaceRepository
	user.UserRepository

	db                  postgresql.TxBeginner
	cfg                 config.AttendanceConfig
	fileService         file.FileService
	approvalService     approval.ApprovalService
	presenceService     presence.PresenceService
	notificationService notification.Service
	locks               *keylock.Keyed
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(
	db postgresql.TxBeginner,
	cfg config.AttendanceConfig,
	attendanceRepo attendance.AttendanceRepository,
	workplaceRepo workplace.WorkplaceRepository,
	userRepo user.UserRepository,
	fileService file.FileService,
	approvalService approval.ApprovalService,
	presenceService presence.PresenceService,
	notificationService notification.Service,
	locks *keylock.Keyed,
) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		AttendanceRepository: attendanceRepo,
		WorkplaceRepository:  workplaceRepo,
		UserRepository:       userRepo,
		db:                   db,
		cfg:                  cfg,
		fileService:          fileService,
		approvalService:      approvalService,
		presenceService:      presenceService,
		notificationService:  notificationService,
		locks:                locks,
	}
}

// PunchIn opens a new attendance session for the authenticated user. The
// geofence and plausibility checks run before the per-user lock is taken;
// they only read. The insert itself runs under the lock, and the partial
// unique index on open records backs the lock up against races.
func (a *AttendanceServiceImpl) PunchIn(ctx context.Context, req attendance.PunchRequest) (attendance.RecordResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}

	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	point := geo.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := point.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}

	usr, err := a.UserRepository.GetByID(ctx, identity.UserID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if !usr.Active {
		return attendance.RecordResponse{}, user.ErrUserInactive
	}

	// Fail fast before uploading the photo; the unique index still covers
	// the race between this check and the insert.
	if _, err := a.AttendanceRepository.GetOpenByUser(ctx, usr.ID); err == nil {
		return attendance.RecordResponse{}, attendance.ErrDuplicatePunchIn
	} else if !errors.Is(err, attendance.ErrNoOpenRecord) {
		return attendance.RecordResponse{}, err
	}

	workplaceID := usr.WorkplaceID
	if req.WorkplaceID != nil {
		workplaceID = *req.WorkplaceID
	}
	wp, err := a.WorkplaceRepository.GetByID(ctx, workplaceID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	now := time.Now().UTC()

	record := attendance.Record{
		UserID:             usr.ID,
		WorkplaceID:        wp.ID,
		ShiftID:            usr.ShiftID,
		Status:             attendance.StatusActive,
		PunchInAt:          now,
		PunchInLatitude:    req.Latitude,
		PunchInLongitude:   req.Longitude,
		PunchInAccuracy:    req.AccuracyMeters,
		VerificationStatus: attendance.VerificationPending,
	}

	zoneID, geofenceReason, err := a.checkGeofence(ctx, wp, point)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	record.PunchInZoneID = zoneID
	if geofenceReason != "" {
		record.AddApprovalReason(geofenceReason)
	}

	reading := punchPoint{Coordinate: point, At: now}
	if reason := detectSpoofing(reading, req.AccuracyMeters, a.previousPunch(ctx, usr.ID), a.cfg.MinPlausibleAccuracyMeters, a.cfg.MaxPunchSpeedMPS); reason != "" {
		record.AddApprovalReason(reason)
	}

	sh, err := a.resolveShift(ctx, usr.ShiftID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if sh != nil {
		late, _ := shiftDeviation(*sh, workplaceLocation(wp), now, nil)
		record.LateMinutes = &late
		if late > 0 {
			record.AddApprovalReason(attendance.ReasonLateArrival)
		}
	}

	if req.File != nil && req.FileHeader != nil {
		url, err := a.fileService.UploadPunchPhoto(ctx, usr.ID, now, req.File, req.FileHeader.Filename, "in")
		if err != nil {
			return attendance.RecordResponse{}, err
		}
		record.PunchInPhotoURL = &url
	} else if req.PhotoURL != nil {
		record.PunchInPhotoURL = req.PhotoURL
	}

	release, err := a.lockUser(ctx, usr.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	created, err := a.AttendanceRepository.Create(ctx, record)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	created.UserName = &usr.Name

	recordID := created.ID
	a.presenceService.Apply(presence.Change{
		WorkplaceID: created.WorkplaceID,
		UserID:      created.UserID,
		UserName:    usr.Name,
		Status:      presence.StatusActive,
		Since:       created.PunchInAt,
		RecordID:    &recordID,
	})

	return mapRecordToResponse(created, nil), nil
}

// PunchOut closes the open session and settles its worked-time figures. An
// open break ends implicitly at the punch-out timestamp. The settlement runs
// in one transaction under the per-user lock; the location checks and the
// photo upload happen before either.
func (a *AttendanceServiceImpl) PunchOut(ctx context.Context, req attendance.PunchRequest) (attendance.RecordResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}

	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	point := geo.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := point.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}

	usr, err := a.UserRepository.GetByID(ctx, identity.UserID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if !usr.Active {
		return attendance.RecordResponse{}, user.ErrUserInactive
	}

	// Peek at the open record to learn the site. The authoritative read
	// happens again under the lock; this one only feeds the location checks.
	open, err := a.AttendanceRepository.GetOpenByUser(ctx, usr.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	wp, err := a.WorkplaceRepository.GetByID(ctx, open.WorkplaceID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	now := time.Now().UTC()

	zoneID, geofenceReason, err := a.checkGeofence(ctx, wp, point)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	prev := &punchPoint{
		Coordinate: geo.Coordinate{Latitude: open.PunchInLatitude, Longitude: open.PunchInLongitude},
		At:         open.PunchInAt,
	}
	spoofReason := detectSpoofing(punchPoint{Coordinate: point, At: now}, req.AccuracyMeters, prev, a.cfg.MinPlausibleAccuracyMeters, a.cfg.MaxPunchSpeedMPS)

	var photoURL *string
	if req.File != nil && req.FileHeader != nil {
		url, err := a.fileService.UploadPunchPhoto(ctx, usr.ID, now, req.File, req.FileHeader.Filename, "out")
		if err != nil {
			return attendance.RecordResponse{}, err
		}
		photoURL = &url
	} else if req.PhotoURL != nil {
		photoURL = req.PhotoURL
	}

	release, err := a.lockUser(ctx, usr.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	var record attendance.Record
	var breaks []attendance.Break

	err = postgresql.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		rec, err := a.AttendanceRepository.GetOpenByUser(txCtx, usr.ID)
		if err != nil {
			return err
		}

		implicitClose := false
		if rec.Status == attendance.StatusOnBreak {
			if err := a.closeOpenBreak(txCtx, rec.ID, now); err != nil {
				if !errors.Is(err, attendance.ErrNoOpenBreak) {
					return err
				}
			} else {
				implicitClose = true
			}
		}

		bs, err := a.AttendanceRepository.ListBreaks(txCtx, rec.ID)
		if err != nil {
			return err
		}

		sh, err := a.resolveShift(txCtx, rec.ShiftID)
		if err != nil {
			return err
		}

		totals, err := settleTotals(rec.PunchInAt, now, closedBreakMinutes(bs), a.standardMinutes(sh))
		if err != nil {
			return err
		}

		rec.Status = attendance.StatusCompleted
		rec.PunchOutAt = &now
		rec.PunchOutLatitude = &req.Latitude
		rec.PunchOutLongitude = &req.Longitude
		rec.PunchOutAccuracy = &req.AccuracyMeters
		rec.PunchOutZoneID = zoneID
		rec.PunchOutPhotoURL = photoURL
		rec.GrossMinutes = &totals.GrossMinutes
		rec.BreakMinutes = &totals.BreakMinutes
		rec.NetMinutes = &totals.NetMinutes
		rec.OvertimeMinutes = &totals.OvertimeMinutes

		if geofenceReason != "" {
			rec.AddApprovalReason(geofenceReason)
		}
		if spoofReason != "" {
			rec.AddApprovalReason(spoofReason)
		}
		if implicitClose {
			total, err := a.dayBreakMinutes(txCtx, rec, workplaceLocation(wp))
			if err != nil {
				return err
			}
			if total > a.cfg.BreakDailyCapMinutes {
				rec.AddApprovalReason(attendance.ReasonBreakCapExceeded)
			}
		}
		if totals.GrossMinutes < a.cfg.MinSessionMinutes {
			rec.AddApprovalReason(attendance.ReasonSessionTooShort)
		}
		if totals.GrossMinutes > a.cfg.MaxSessionMinutes {
			rec.AddApprovalReason(attendance.ReasonSessionTooLong)
		}
		if totals.OvertimeMinutes > 0 {
			rec.AddApprovalReason(attendance.ReasonOvertime)
		}
		if sh != nil {
			_, earlyLeave := shiftDeviation(*sh, workplaceLocation(wp), rec.PunchInAt, &now)
			rec.EarlyLeaveMinutes = &earlyLeave
			if earlyLeave > 0 {
				rec.AddApprovalReason(attendance.ReasonEarlyLeave)
			}
		}

		// A pending record with no flag fired settles to verified here.
		if rec.VerificationStatus == attendance.VerificationPending {
			rec.VerificationStatus = attendance.VerificationVerified
		}

		if err := a.AttendanceRepository.Update(txCtx, rec); err != nil {
			return err
		}

		record = rec
		breaks = bs
		return nil
	})
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	record.UserName = &usr.Name

	// The approval request opens after the record is committed, so a failed
	// insert cannot take the punch-out down with it.
	if record.RequiresApproval {
		if err := a.approvalService.OpenForRecord(ctx, record.ID, record.UserID, record.WorkplaceID, record.ApprovalReasons); err != nil {
			slog.Error("failed to open approval request for flagged record",
				"record_id", record.ID, "error", err)
		}
	}

	a.presenceService.Apply(presence.Change{
		WorkplaceID: record.WorkplaceID,
		UserID:      record.UserID,
		UserName:    usr.Name,
		Status:      presence.StatusAbsent,
		Since:       now,
	})

	return mapRecordToResponse(record, breaks), nil
}

// StartBreak moves the open session from active to on_break.
func (a *AttendanceServiceImpl) StartBreak(ctx context.Context, req attendance.StartBreakRequest) (attendance.RecordResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}

	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	usr, err := a.UserRepository.GetByID(ctx, identity.UserID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if !usr.Active {
		return attendance.RecordResponse{}, user.ErrUserInactive
	}

	release, err := a.lockUser(ctx, usr.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	now := time.Now().UTC()

	var record attendance.Record
	var breaks []attendance.Break

	err = postgresql.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		rec, err := a.AttendanceRepository.GetOpenByUser(txCtx, usr.ID)
		if err != nil {
			return err
		}
		if rec.Status == attendance.StatusOnBreak {
			return attendance.ErrBreakAlreadyOpen
		}

		if _, err := a.AttendanceRepository.CreateBreak(txCtx, attendance.Break{
			RecordID:  rec.ID,
			Type:      req.Type,
			StartedAt: now,
		}); err != nil {
			return err
		}

		rec.Status = attendance.StatusOnBreak
		if err := a.AttendanceRepository.Update(txCtx, rec); err != nil {
			return err
		}

		bs, err := a.AttendanceRepository.ListBreaks(txCtx, rec.ID)
		if err != nil {
			return err
		}

		record = rec
		breaks = bs
		return nil
	})
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	record.UserName = &usr.Name

	recordID := record.ID
	breakType := req.Type
	a.presenceService.Apply(presence.Change{
		WorkplaceID: record.WorkplaceID,
		UserID:      record.UserID,
		UserName:    usr.Name,
		Status:      presence.StatusOnBreak,
		Since:       now,
		BreakType:   &breakType,
		RecordID:    &recordID,
	})

	return mapRecordToResponse(record, breaks), nil
}

// EndBreak closes the open break and returns the session to active. Closing
// is the moment the daily break cap is checked: the day's closed minutes are
// summed in the workplace's timezone and the record is flagged when they
// exceed the cap.
func (a *AttendanceServiceImpl) EndBreak(ctx context.Context) (attendance.RecordResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	usr, err := a.UserRepository.GetByID(ctx, identity.UserID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if !usr.Active {
		return attendance.RecordResponse{}, user.ErrUserInactive
	}

	release, err := a.lockUser(ctx, usr.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	now := time.Now().UTC()

	var record attendance.Record
	var breaks []attendance.Break

	err = postgresql.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		rec, err := a.AttendanceRepository.GetOpenByUser(txCtx, usr.ID)
		if err != nil {
			return err
		}
		if rec.Status != attendance.StatusOnBreak {
			return attendance.ErrNoOpenBreak
		}

		if err := a.closeOpenBreak(txCtx, rec.ID, now); err != nil {
			return err
		}

		wp, err := a.WorkplaceRepository.GetByID(txCtx, rec.WorkplaceID)
		if err != nil {
			return err
		}
		total, err := a.dayBreakMinutes(txCtx, rec, workplaceLocation(wp))
		if err != nil {
			return err
		}
		if total > a.cfg.BreakDailyCapMinutes {
			rec.AddApprovalReason(attendance.ReasonBreakCapExceeded)
		}

		rec.Status = attendance.StatusActive
		if err := a.AttendanceRepository.Update(txCtx, rec); err != nil {
			return err
		}

		bs, err := a.AttendanceRepository.ListBreaks(txCtx, rec.ID)
		if err != nil {
			return err
		}

		record = rec
		breaks = bs
		return nil
	})
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	record.UserName = &usr.Name

	recordID := record.ID
	a.presenceService.Apply(presence.Change{
		WorkplaceID: record.WorkplaceID,
		UserID:      record.UserID,
		UserName:    usr.Name,
		Status:      presence.StatusActive,
		Since:       now,
		RecordID:    &recordID,
	})

	return mapRecordToResponse(record, breaks), nil
}

// CurrentStatus reports the authenticated user's live state.
func (a *AttendanceServiceImpl) CurrentStatus(ctx context.Context) (attendance.CurrentStatusResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.CurrentStatusResponse{}, err
	}

	rec, err := a.AttendanceRepository.GetOpenByUser(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, attendance.ErrNoOpenRecord) {
			return attendance.CurrentStatusResponse{Status: "none"}, nil
		}
		return attendance.CurrentStatusResponse{}, err
	}

	breaks, err := a.AttendanceRepository.ListBreaks(ctx, rec.ID)
	if err != nil {
		return attendance.CurrentStatusResponse{}, err
	}

	recordResp := mapRecordToResponse(rec, breaks)

	resp := attendance.CurrentStatusResponse{
		Status: rec.Status,
		Record: &recordResp,
	}
	if rec.Status == attendance.StatusOnBreak {
		for i := range recordResp.Breaks {
			if recordResp.Breaks[i].EndedAt == nil {
				resp.CurrentBreak = &recordResp.Breaks[i]
				break
			}
		}
	}

	return resp, nil
}

// GetRecord retrieves a single record with its breaks. Employees can read
// their own records; managers and admins any record of their workplace.
// Records outside that scope come back as not found.
func (a *AttendanceServiceImpl) GetRecord(ctx context.Context, id string) (attendance.RecordResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	rec, err := a.AttendanceRepository.GetByID(ctx, id)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	if rec.UserID != identity.UserID {
		if !identity.Role.IsManager() || rec.WorkplaceID != identity.WorkplaceID {
			return attendance.RecordResponse{}, attendance.ErrRecordNotFound
		}
	}

	breaks, err := a.AttendanceRepository.ListBreaks(ctx, rec.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	return mapRecordToResponse(rec, breaks), nil
}

// ListRecords implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ListRecords(ctx context.Context, filter attendance.RecordFilter) (attendance.ListRecordsResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	if err := filter.Validate(); err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	records, total, err := a.AttendanceRepository.List(ctx, identity.WorkplaceID, filter)
	if err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	return buildListResponse(records, total, filter), nil
}

// MyRecords implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) MyRecords(ctx context.Context, filter attendance.RecordFilter) (attendance.ListRecordsResponse, error) {
	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	if err := filter.Validate(); err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	// The caller's identity overrides whatever user filter came in.
	filter.UserID = &identity.UserID

	records, total, err := a.AttendanceRepository.List(ctx, identity.WorkplaceID, filter)
	if err != nil {
		return attendance.ListRecordsResponse{}, err
	}

	return buildListResponse(records, total, filter), nil
}

// CancelRecord voids an open record. Completed and cancelled records are
// immutable; corrections to those go through the approval flow instead.
func (a *AttendanceServiceImpl) CancelRecord(ctx context.Context, req attendance.CancelRecordRequest) (attendance.RecordResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RecordResponse{}, err
	}

	identity, err := jwt.FromContext(ctx)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if !identity.Role.IsAdmin() {
		return attendance.RecordResponse{}, user.ErrPermissionDenied
	}

	target, err := a.AttendanceRepository.GetByID(ctx, req.ID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	if target.WorkplaceID != identity.WorkplaceID {
		return attendance.RecordResponse{}, attendance.ErrRecordNotFound
	}

	// The lock is the record owner's, not the caller's; cancellation races
	// against the owner's own punch-out.
	release, err := a.lockUser(ctx, target.UserID)
	if err != nil {
		return attendance.RecordResponse{}, err
	}
	defer release()

	now := time.Now().UTC()

	var record attendance.Record
	var breaks []attendance.Break

	err = postgresql.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		rec, err := a.AttendanceRepository.GetByID(txCtx, req.ID)
		if err != nil {
			return err
		}
		if !rec.IsOpen() {
			return attendance.ErrRecordImmutable
		}

		if rec.Status == attendance.StatusOnBreak {
			if err := a.closeOpenBreak(txCtx, rec.ID, now); err != nil && !errors.Is(err, attendance.ErrNoOpenBreak) {
				return err
			}
		}

		rec.Status = attendance.StatusCancelled
		rec.CancelledBy = &identity.UserID
		rec.CancelledAt = &now
		rec.CancelReason = &req.Reason
		if err := a.AttendanceRepository.Update(txCtx, rec); err != nil {
			return err
		}

		bs, err := a.AttendanceRepository.ListBreaks(txCtx, rec.ID)
		if err != nil {
			return err
		}

		record = rec
		breaks = bs
		return nil
	})
	if err != nil {
		return attendance.RecordResponse{}, err
	}

	a.presenceService.Apply(presence.Change{
		WorkplaceID: record.WorkplaceID,
		UserID:      record.UserID,
		UserName:    derefString(record.UserName),
		Status:      presence.StatusAbsent,
		Since:       now,
	})

	if err := a.notificationService.QueueNotification(ctx, notification.CreateNotificationRequest{
		WorkplaceID: record.WorkplaceID,
		RecipientID: record.UserID,
		SenderID:    &identity.UserID,
		Type:        notification.TypeSessionCancelled,
		Title:       "Attendance session cancelled",
		Message:     fmt.Sprintf("Your attendance session was cancelled: %s", req.Reason),
		Data:        map[string]interface{}{"record_id": record.ID},
	}); err != nil {
		slog.Error("failed to queue cancellation notification",
			"record_id", record.ID, "error", err)
	}

	return mapRecordToResponse(record, breaks), nil
}

// AutoCloseStale completes sessions still open well past their expected end.
// The expected end is the shift end on the punch-in day when that lies after
// the punch-in, punch-in plus the standard shift length otherwise; the
// configured slack is added on top. Each record closes under its owner's
// lock, and a lock that cannot be taken is skipped for the next sweep.
func (a *AttendanceServiceImpl) AutoCloseStale(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	// Records younger than the slack itself cannot be stale yet.
	candidates, err := a.AttendanceRepository.ListOpenBefore(ctx, now.Add(-a.cfg.AutoCloseAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale candidates: %w", err)
	}

	closed := 0
	for _, candidate := range candidates {
		ok, err := a.autoCloseRecord(ctx, candidate, now)
		if err != nil {
			slog.Error("failed to auto-close record",
				"record_id", candidate.ID, "user_id", candidate.UserID, "error", err)
			continue
		}
		if ok {
			closed++
		}
	}

	return closed, nil
}

func (a *AttendanceServiceImpl) autoCloseRecord(ctx context.Context, candidate attendance.Record, now time.Time) (bool, error) {
	wp, err := a.WorkplaceRepository.GetByID(ctx, candidate.WorkplaceID)
	if err != nil {
		return false, err
	}
	loc := workplaceLocation(wp)

	sh, err := a.resolveShift(ctx, candidate.ShiftID)
	if err != nil {
		return false, err
	}

	expectedEnd := candidate.PunchInAt.Add(time.Duration(a.standardMinutes(sh)) * time.Minute)
	if sh != nil {
		if shiftEnd := sh.EndOn(candidate.PunchInAt.In(loc), loc); shiftEnd.After(candidate.PunchInAt) {
			expectedEnd = shiftEnd
		}
	}
	closeAt := expectedEnd.Add(a.cfg.AutoCloseAfter)
	if now.Before(closeAt) {
		return false, nil
	}

	release, err := a.lockUser(ctx, candidate.UserID)
	if err != nil {
		// Owner activity wins; the next sweep retries.
		return false, nil
	}
	defer release()

	var record attendance.Record
	didClose := false

	err = postgresql.WithTransaction(ctx, a.db, func(txCtx context.Context) error {
		rec, err := a.AttendanceRepository.GetByID(txCtx, candidate.ID)
		if err != nil {
			return err
		}
		if !rec.IsOpen() {
			return nil
		}

		if rec.Status == attendance.StatusOnBreak {
			if err := a.closeOpenBreak(txCtx, rec.ID, closeAt); err != nil && !errors.Is(err, attendance.ErrNoOpenBreak) {
				return err
			}
		}

		bs, err := a.AttendanceRepository.ListBreaks(txCtx, rec.ID)
		if err != nil {
			return err
		}

		totals, err := settleTotals(rec.PunchInAt, closeAt, closedBreakMinutes(bs), a.standardMinutes(sh))
		if err != nil {
			return err
		}

		rec.Status = attendance.StatusCompleted
		rec.PunchOutAt = &closeAt
		rec.GrossMinutes = &totals.GrossMinutes
		rec.BreakMinutes = &totals.BreakMinutes
		rec.NetMinutes = &totals.NetMinutes
		rec.OvertimeMinutes = &totals.OvertimeMinutes
		rec.AddApprovalReason(attendance.ReasonAutoClosed)

		if err := a.AttendanceRepository.Update(txCtx, rec); err != nil {
			return err
		}

		record = rec
		didClose = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !didClose {
		return false, nil
	}

	if record.RequiresApproval {
		if err := a.approvalService.OpenForRecord(ctx, record.ID, record.UserID, record.WorkplaceID, record.ApprovalReasons); err != nil {
			slog.Error("failed to open approval request for auto-closed record",
				"record_id", record.ID, "error", err)
		}
	}

	a.presenceService.Apply(presence.Change{
		WorkplaceID: record.WorkplaceID,
		UserID:      record.UserID,
		UserName:    derefString(record.UserName),
		Status:      presence.StatusAbsent,
		Since:       closeAt,
	})

	if err := a.notificationService.QueueNotification(ctx, notification.CreateNotificationRequest{
		WorkplaceID: record.WorkplaceID,
		RecipientID: record.UserID,
		Type:        notification.TypeSessionAutoClosed,
		Title:       "Attendance session auto-closed",
		Message:     "Your attendance session was closed automatically because no punch-out was recorded.",
		Data:        map[string]interface{}{"record_id": record.ID},
	}); err != nil {
		slog.Error("failed to queue auto-close notification",
			"record_id", record.ID, "error", err)
	}

	return true, nil
}

// lockUser takes the per-user lock with the configured bounded wait. A wait
// that times out surfaces as ErrBusy.
func (a *AttendanceServiceImpl) lockUser(ctx context.Context, userID string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.LockWait)
	defer cancel()

	release, err := a.locks.Acquire(waitCtx, userID)
	if err != nil {
		return nil, attendance.ErrBusy
	}
	return release, nil
}

// checkGeofence matches the point against the workplace's active zones.
// Returns the matched zone ID when inside, ErrOutOfGeofence when outside and
// enforcement is on for the workplace or globally, and a flag reason when
// outside with enforcement off. A workplace with no zones skips the check.
func (a *AttendanceServiceImpl) checkGeofence(ctx context.Context, wp workplace.Workplace, point geo.Coordinate) (*string, string, error) {
	zones, err := a.WorkplaceRepository.ListActiveZones(ctx, wp.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list geofence zones: %w", err)
	}
	if len(zones) == 0 {
		return nil, "", nil
	}

	match, err := matchZones(point, zones)
	if err != nil {
		return nil, "", err
	}
	if match.Inside {
		zoneID := match.Zone.ID
		return &zoneID, "", nil
	}

	if wp.EnforceGeofence || a.cfg.EnforceGeofence {
		return nil, "", attendance.ErrOutOfGeofence
	}
	return nil, attendance.ReasonOutOfGeofence, nil
}

// previousPunch returns the user's last recorded position, preferring the
// punch-out reading when the latest record has one. Nil when there is no
// history; the speed rule then has nothing to compare against.
func (a *AttendanceServiceImpl) previousPunch(ctx context.Context, userID string) *punchPoint {
	latest, err := a.AttendanceRepository.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil
	}

	if latest.PunchOutAt != nil && latest.PunchOutLatitude != nil && latest.PunchOutLongitude != nil {
		return &punchPoint{
			Coordinate: geo.Coordinate{Latitude: *latest.PunchOutLatitude, Longitude: *latest.PunchOutLongitude},
			At:         *latest.PunchOutAt,
		}
	}
	return &punchPoint{
		Coordinate: geo.Coordinate{Latitude: latest.PunchInLatitude, Longitude: latest.PunchInLongitude},
		At:         latest.PunchInAt,
	}
}

// resolveShift loads the record's shift when one is assigned. A dangling
// shift reference degrades to no shift instead of failing the punch.
func (a *AttendanceServiceImpl) resolveShift(ctx context.Context, shiftID *string) (*workplace.Shift, error) {
	if shiftID == nil {
		return nil, nil
	}
	sh, err := a.WorkplaceRepository.GetShift(ctx, *shiftID)
	if err != nil {
		if errors.Is(err, workplace.ErrShiftNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &sh, nil
}

// standardMinutes is the overtime threshold for a session: the shift's own
// figure when one is assigned, the configured default otherwise.
func (a *AttendanceServiceImpl) standardMinutes(sh *workplace.Shift) int {
	if sh != nil && sh.StandardMinutes > 0 {
		return sh.StandardMinutes
	}
	return a.cfg.StandardShiftMinutes
}

// closeOpenBreak ends the record's open break at the given time and settles
// its minutes.
func (a *AttendanceServiceImpl) closeOpenBreak(ctx context.Context, recordID string, at time.Time) error {
	b, err := a.AttendanceRepository.GetOpenBreak(ctx, recordID)
	if err != nil {
		return err
	}

	minutes := int(at.Sub(b.StartedAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	b.EndedAt = &at
	b.Minutes = &minutes

	return a.AttendanceRepository.UpdateBreak(ctx, b)
}

// dayBreakMinutes sums the user's closed break minutes over the record's
// punch-in day in the workplace's timezone.
func (a *AttendanceServiceImpl) dayBreakMinutes(ctx context.Context, rec attendance.Record, loc *time.Location) (int, error) {
	day := rec.PunchInAt.In(loc)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return a.AttendanceRepository.BreakMinutesBetween(ctx, rec.UserID, from, from.Add(24*time.Hour))
}

// workplaceLocation resolves the workplace's IANA timezone, falling back to
// UTC when the stored name does not load.
func workplaceLocation(wp workplace.Workplace) *time.Location {
	loc, err := time.LoadLocation(wp.Timezone)
	if err != nil {
		slog.Warn("invalid workplace timezone, falling back to UTC",
			"workplace_id", wp.ID, "timezone", wp.Timezone)
		return time.UTC
	}
	return loc
}

func buildListResponse(records []attendance.Record, total int64, filter attendance.RecordFilter) attendance.ListRecordsResponse {
	responses := make([]attendance.RecordResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, mapRecordToResponse(rec, nil))
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))

	showing := "0 of 0"
	if total > 0 && len(records) > 0 {
		start := (filter.Page-1)*filter.Limit + 1
		end := start + len(records) - 1
		showing = fmt.Sprintf("%d-%d of %d", start, end, total)
	}

	return attendance.ListRecordsResponse{
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
		Records:    responses,
	}
}

func mapRecordToResponse(rec attendance.Record, breaks []attendance.Break) attendance.RecordResponse {
	resp := attendance.RecordResponse{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		UserName:           rec.UserName,
		WorkplaceID:        rec.WorkplaceID,
		ShiftID:            rec.ShiftID,
		Status:             rec.Status,
		PunchInAt:          formatTime(rec.PunchInAt),
		PunchOutAt:         formatTimePtr(rec.PunchOutAt),
		PunchInLatitude:    rec.PunchInLatitude,
		PunchInLongitude:   rec.PunchInLongitude,
		PunchInAccuracy:    rec.PunchInAccuracy,
		PunchOutLatitude:   rec.PunchOutLatitude,
		PunchOutLongitude:  rec.PunchOutLongitude,
		PunchOutAccuracy:   rec.PunchOutAccuracy,
		PunchInZoneID:      rec.PunchInZoneID,
		PunchOutZoneID:     rec.PunchOutZoneID,
		PunchInPhotoURL:    rec.PunchInPhotoURL,
		PunchOutPhotoURL:   rec.PunchOutPhotoURL,
		VerificationStatus: rec.VerificationStatus,
		RequiresApproval:   rec.RequiresApproval,
		ApprovalReasons:    rec.ApprovalReasons,
		GrossMinutes:       rec.GrossMinutes,
		BreakMinutes:       rec.BreakMinutes,
		NetMinutes:         rec.NetMinutes,
		OvertimeMinutes:    rec.OvertimeMinutes,
		LateMinutes:        rec.LateMinutes,
		EarlyLeaveMinutes:  rec.EarlyLeaveMinutes,
		CreatedAt:          formatTime(rec.CreatedAt),
		UpdatedAt:          formatTime(rec.UpdatedAt),
	}

	for _, b := range breaks {
		resp.Breaks = append(resp.Breaks, mapBreakToResponse(b))
	}

	return resp
}

func mapBreakToResponse(b attendance.Break) attendance.BreakResponse {
	return attendance.BreakResponse{
		ID:        b.ID,
		Type:      b.Type,
		StartedAt: formatTime(b.StartedAt),
		EndedAt:   formatTimePtr(b.EndedAt),
		Minutes:   b.Minutes,
	}
}

// formatTime renders timestamps as RFC3339 UTC for API responses.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
