package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/database"
)

const uniqueViolationCode = "23505"

const recordColumns = `
	a.id, a.user_id, a.workplace_id, a.shift_id, a.status,
	a.punch_in_at, a.punch_out_at,
	a.punch_in_latitude, a.punch_in_longitude, a.punch_in_accuracy,
	a.punch_out_latitude, a.punch_out_longitude, a.punch_out_accuracy,
	a.punch_in_zone_id, a.punch_out_zone_id,
	a.punch_in_photo_url, a.punch_out_photo_url,
	a.verification_status, a.requires_approval, a.approval_reasons,
	a.gross_minutes, a.break_minutes, a.net_minutes, a.overtime_minutes,
	a.late_minutes, a.early_leave_minutes,
	a.cancelled_by, a.cancelled_at, a.cancel_reason,
	a.created_at, a.updated_at,
	u.name AS user_name`

type attendanceRepository struct {
	db database.Querier
}

func NewAttendanceRepository(db database.Querier) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.WorkplaceID, &rec.ShiftID, &rec.Status,
		&rec.PunchInAt, &rec.PunchOutAt,
		&rec.PunchInLatitude, &rec.PunchInLongitude, &rec.PunchInAccuracy,
		&rec.PunchOutLatitude, &rec.PunchOutLongitude, &rec.PunchOutAccuracy,
		&rec.PunchInZoneID, &rec.PunchOutZoneID,
		&rec.PunchInPhotoURL, &rec.PunchOutPhotoURL,
		&rec.VerificationStatus, &rec.RequiresApproval, &rec.ApprovalReasons,
		&rec.GrossMinutes, &rec.BreakMinutes, &rec.NetMinutes, &rec.OvertimeMinutes,
		&rec.LateMinutes, &rec.EarlyLeaveMinutes,
		&rec.CancelledBy, &rec.CancelledAt, &rec.CancelReason,
		&rec.CreatedAt, &rec.UpdatedAt,
		&rec.UserName,
	)
	if err != nil {
		return attendance.Record{}, err
	}
	return rec, nil
}

func scanBreak(row pgx.Row) (attendance.Break, error) {
	var b attendance.Break
	err := row.Scan(
		&b.ID, &b.RecordID, &b.Type, &b.StartedAt, &b.EndedAt, &b.Minutes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return attendance.Break{}, err
	}
	return b, nil
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_records (
			user_id, workplace_id, shift_id, status, punch_in_at,
			punch_in_latitude, punch_in_longitude, punch_in_accuracy,
			punch_in_zone_id, punch_in_photo_url,
			verification_status, requires_approval, approval_reasons
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		record.UserID,
		record.WorkplaceID,
		record.ShiftID,
		record.Status,
		record.PunchInAt,
		record.PunchInLatitude,
		record.PunchInLongitude,
		record.PunchInAccuracy,
		record.PunchInZoneID,
		record.PunchInPhotoURL,
		record.VerificationStatus,
		record.RequiresApproval,
		record.ApprovalReasons,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		// The partial unique index on open records rejects a second punch-in.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return attendance.Record{}, attendance.ErrDuplicatePunchIn
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	return record, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.id = $1
	`

	rec, err := scanRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get attendance record: %w", err)
	}

	return rec, nil
}

// GetOpenByUser implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenByUser(ctx context.Context, userID string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		  AND a.status IN ('active', 'on_break')
		ORDER BY a.punch_in_at DESC
		LIMIT 1
	`

	rec, err := scanRecord(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNoOpenRecord
		}
		return attendance.Record{}, fmt.Errorf("failed to get open attendance record: %w", err)
	}

	return rec, nil
}

// GetLatestByUser implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetLatestByUser(ctx context.Context, userID string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		ORDER BY a.punch_in_at DESC
		LIMIT 1
	`

	rec, err := scanRecord(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrRecordNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get latest attendance record: %w", err)
	}

	return rec, nil
}

// Update implements attendance.AttendanceRepository.
func (a *attendanceRepository) Update(ctx context.Context, record attendance.Record) error {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_records SET
			status = $1,
			punch_out_at = $2,
			punch_out_latitude = $3,
			punch_out_longitude = $4,
			punch_out_accuracy = $5,
			punch_out_zone_id = $6,
			punch_out_photo_url = $7,
			verification_status = $8,
			requires_approval = $9,
			approval_reasons = $10,
			gross_minutes = $11,
			break_minutes = $12,
			net_minutes = $13,
			overtime_minutes = $14,
			late_minutes = $15,
			early_leave_minutes = $16,
			cancelled_by = $17,
			cancelled_at = $18,
			cancel_reason = $19,
			updated_at = $20
		WHERE id = $21
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query,
		record.Status,
		record.PunchOutAt,
		record.PunchOutLatitude,
		record.PunchOutLongitude,
		record.PunchOutAccuracy,
		record.PunchOutZoneID,
		record.PunchOutPhotoURL,
		record.VerificationStatus,
		record.RequiresApproval,
		record.ApprovalReasons,
		record.GrossMinutes,
		record.BreakMinutes,
		record.NetMinutes,
		record.OvertimeMinutes,
		record.LateMinutes,
		record.EarlyLeaveMinutes,
		record.CancelledBy,
		record.CancelledAt,
		record.CancelReason,
		time.Now(),
		record.ID,
	).Scan(&updatedID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.ErrRecordNotFound
		}
		return fmt.Errorf("failed to update attendance record: %w", err)
	}

	return nil
}

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, workplaceID string, filter attendance.RecordFilter) ([]attendance.Record, int64, error) {
	q := GetQuerier(ctx, a.db)

	// Build WHERE clause
	baseWhere := "a.workplace_id = $1"
	args := []interface{}{workplaceID}
	argIdx := 2

	if filter.UserID != nil && *filter.UserID != "" {
		baseWhere += fmt.Sprintf(" AND a.user_id = $%d", argIdx)
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND a.punch_in_at >= $%d::date", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND a.punch_in_at < $%d::date + interval '1 day'", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND a.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Flagged != nil {
		baseWhere += fmt.Sprintf(" AND a.requires_approval = $%d", argIdx)
		args = append(args, *filter.Flagged)
		argIdx++
	}

	// Count total
	countQuery := "SELECT COUNT(*) FROM attendance_records a WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance records: %w", err)
	}

	// Build ORDER BY
	orderByField := "a.punch_in_at"
	switch filter.SortBy {
	case "punch_out_at":
		orderByField = "a.punch_out_at"
	case "status":
		orderByField = "a.status"
	case "user_name":
		orderByField = "u.name"
	}
	sortOrder := "DESC"
	if strings.ToLower(filter.SortOrder) == "asc" {
		sortOrder = "ASC"
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, recordColumns, baseWhere, orderByField, sortOrder, argIdx, argIdx+1)

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	offset := (filter.Page - 1) * limit
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, rec)
	}

	return records, total, nil
}

// ListOpenByWorkplace implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListOpenByWorkplace(ctx context.Context, workplaceID string) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.workplace_id = $1
		  AND a.status IN ('active', 'on_break')
		ORDER BY a.punch_in_at ASC
	`

	rows, err := q.Query(ctx, query, workplaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// ListOpenBefore implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListOpenBefore(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.status IN ('active', 'on_break')
		  AND a.punch_in_at < $1
		ORDER BY a.punch_in_at ASC
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale attendance records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// CreateBreak implements attendance.AttendanceRepository.
func (a *attendanceRepository) CreateBreak(ctx context.Context, b attendance.Break) (attendance.Break, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_breaks (record_id, break_type, started_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query, b.RecordID, b.Type, b.StartedAt).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		// The partial unique index on open breaks rejects a second start.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return attendance.Break{}, attendance.ErrBreakAlreadyOpen
		}
		return attendance.Break{}, fmt.Errorf("failed to create break: %w", err)
	}

	return b, nil
}

// GetOpenBreak implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenBreak(ctx context.Context, recordID string) (attendance.Break, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, record_id, break_type, started_at, ended_at, minutes, created_at, updated_at
		FROM attendance_breaks
		WHERE record_id = $1
		  AND ended_at IS NULL
		LIMIT 1
	`

	b, err := scanBreak(q.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Break{}, attendance.ErrNoOpenBreak
		}
		return attendance.Break{}, fmt.Errorf("failed to get open break: %w", err)
	}

	return b, nil
}

// UpdateBreak implements attendance.AttendanceRepository.
func (a *attendanceRepository) UpdateBreak(ctx context.Context, b attendance.Break) error {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_breaks SET
			ended_at = $1,
			minutes = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, b.EndedAt, b.Minutes, time.Now(), b.ID).Scan(&updatedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.ErrNoOpenBreak
		}
		return fmt.Errorf("failed to update break: %w", err)
	}

	return nil
}

// ListBreaks implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListBreaks(ctx context.Context, recordID string) ([]attendance.Break, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, record_id, break_type, started_at, ended_at, minutes, created_at, updated_at
		FROM attendance_breaks
		WHERE record_id = $1
		ORDER BY started_at ASC
	`

	rows, err := q.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaks: %w", err)
	}
	defer rows.Close()

	var breaks []attendance.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan break: %w", err)
		}
		breaks = append(breaks, b)
	}

	return breaks, nil
}

// BreakMinutesBetween implements attendance.AttendanceRepository.
func (a *attendanceRepository) BreakMinutesBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT COALESCE(SUM(b.minutes), 0)
		FROM attendance_breaks b
		JOIN attendance_records a ON a.id = b.record_id
		WHERE a.user_id = $1
		  AND b.started_at >= $2
		  AND b.started_at < $3
		  AND b.minutes IS NOT NULL
	`

	var total int
	if err := q.QueryRow(ctx, query, userID, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum break minutes: %w", err)
	}

	return total, nil
}
