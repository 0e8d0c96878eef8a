package postgresql

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
)

var recordColumnNames = []string{
	"id", "user_id", "workplace_id", "shift_id", "status",
	"punch_in_at", "punch_out_at",
	"punch_in_latitude", "punch_in_longitude", "punch_in_accuracy",
	"punch_out_latitude", "punch_out_longitude", "punch_out_accuracy",
	"punch_in_zone_id", "punch_out_zone_id",
	"punch_in_photo_url", "punch_out_photo_url",
	"verification_status", "requires_approval", "approval_reasons",
	"gross_minutes", "break_minutes", "net_minutes", "overtime_minutes",
	"late_minutes", "early_leave_minutes",
	"cancelled_by", "cancelled_at", "cancel_reason",
	"created_at", "updated_at",
	"user_name",
}

func strPtr(s string) *string { return &s }

// openRecordRow builds a full result row for an open session. Nullable
// columns carry typed pointers because the mock assigns values to scan
// destinations directly.
func openRecordRow(id, userID string, punchInAt time.Time) []any {
	return []any{
		id, userID, "wp-1", (*string)(nil), attendance.StatusActive,
		punchInAt, (*time.Time)(nil),
		-6.2001, 106.8001, 12.5,
		(*float64)(nil), (*float64)(nil), (*float64)(nil),
		strPtr("zone-1"), (*string)(nil),
		(*string)(nil), (*string)(nil),
		attendance.VerificationPending, false, []string(nil),
		(*int)(nil), (*int)(nil), (*int)(nil), (*int)(nil),
		(*int)(nil), (*int)(nil),
		(*string)(nil), (*time.Time)(nil), (*string)(nil),
		punchInAt, punchInAt,
		strPtr("Sari Dewi"),
	}
}

func newAttendanceMock(t *testing.T) (pgxmock.PgxPoolIface, attendance.AttendanceRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return mock, NewAttendanceRepository(mock)
}

func TestAttendanceRepository_Create_ReturnsGeneratedFields(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO attendance_records`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("rec-1", now, now))

	created, err := repo.Create(context.Background(), attendance.Record{
		UserID:      "user-1",
		WorkplaceID: "wp-1",
		Status:      attendance.StatusActive,
		PunchInAt:   now,
	})
	require.NoError(t, err)

	assert.Equal(t, "rec-1", created.ID)
	assert.Equal(t, now, created.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_Create_MapsUniqueViolation(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)

	mock.ExpectQuery(`INSERT INTO attendance_records`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err := repo.Create(context.Background(), attendance.Record{UserID: "user-1"})
	assert.ErrorIs(t, err, attendance.ErrDuplicatePunchIn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_GetByID_ScansFullRecord(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)
	punchInAt := time.Now().Add(-2 * time.Hour)

	mock.ExpectQuery(`WHERE a\.id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow(openRecordRow("rec-1", "user-1", punchInAt)...))

	rec, err := repo.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)

	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, attendance.StatusActive, rec.Status)
	assert.Nil(t, rec.ShiftID)
	assert.Nil(t, rec.PunchOutAt)
	require.NotNil(t, rec.PunchInZoneID)
	assert.Equal(t, "zone-1", *rec.PunchInZoneID)
	require.NotNil(t, rec.UserName)
	assert.Equal(t, "Sari Dewi", *rec.UserName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)

	mock.ExpectQuery(`WHERE a\.id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestAttendanceRepository_GetOpenByUser_NotFound(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)

	mock.ExpectQuery(`WHERE a\.user_id = \$1`).
		WithArgs("user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetOpenByUser(context.Background(), "user-1")
	assert.ErrorIs(t, err, attendance.ErrNoOpenRecord)
}

func TestAttendanceRepository_List_AppliesFiltersAndPaging(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)
	punchInAt := time.Now().Add(-3 * time.Hour)
	status := "active"
	flagged := true

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_records`).
		WithArgs("wp-1", status, flagged).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	mock.ExpectQuery(`LEFT JOIN users u ON u\.id = a\.user_id`).
		WithArgs("wp-1", status, flagged, 20, 0).
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow(openRecordRow("rec-1", "user-1", punchInAt)...))

	records, total, err := repo.List(context.Background(), "wp-1", attendance.RecordFilter{
		Status:  &status,
		Flagged: &flagged,
		Page:    1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_CreateBreak_MapsUniqueViolation(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)

	mock.ExpectQuery(`INSERT INTO attendance_breaks`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err := repo.CreateBreak(context.Background(), attendance.Break{
		RecordID:  "rec-1",
		Type:      attendance.BreakTypeLunch,
		StartedAt: time.Now(),
	})
	assert.ErrorIs(t, err, attendance.ErrBreakAlreadyOpen)
}

func TestAttendanceRepository_UpdateBreak_NotFound(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)

	mock.ExpectQuery(`UPDATE attendance_breaks SET`).
		WillReturnError(pgx.ErrNoRows)

	err := repo.UpdateBreak(context.Background(), attendance.Break{ID: "break-1"})
	assert.ErrorIs(t, err, attendance.ErrNoOpenBreak)
}

func TestAttendanceRepository_BreakMinutesBetween_SumsClosedBreaks(t *testing.T) {
	t.Parallel()

	mock, repo := newAttendanceMock(t)
	from := time.Now().Add(-8 * time.Hour)
	to := time.Now()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(b\.minutes\), 0\)`).
		WithArgs("user-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(75))

	total, err := repo.BreakMinutesBetween(context.Background(), "user-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 75, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
