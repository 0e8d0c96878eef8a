package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/config"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/notification"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/presence"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/keylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc       attendance.AttendanceService
	repo      *fakeAttendanceRepo
	workplace *fakeWorkplaceRepo
	users     *fakeUserRepo
	approvals *fakeApprovalService
	presence  *fakePresenceService
	notifier  *fakeNotificationService
	locks     *keylock.Keyed
	cfg       config.AttendanceConfig
}

func testAttendanceConfig() config.AttendanceConfig {
	return config.AttendanceConfig{
		StandardShiftMinutes:       480,
		BreakDailyCapMinutes:       90,
		MinSessionMinutes:          5,
		MaxSessionMinutes:          960,
		MaxPunchSpeedMPS:           50,
		MinPlausibleAccuracyMeters: 1,
		LockWait:                   200 * time.Millisecond,
		AutoCloseAfter:             2 * time.Hour,
		ApprovalEscalationAfter:    48 * time.Hour,
		AutoApproveManagers:        true,
	}
}

// newServiceFixture wires the service against in-memory collaborators with
// one workplace, a single geofence zone around (40, -73), and one active
// employee without a shift.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:      newFakeAttendanceRepo(),
		workplace: newFakeWorkplaceRepo(),
		users:     newFakeUserRepo(),
		approvals: &fakeApprovalService{},
		presence:  &fakePresenceService{},
		notifier:  &fakeNotificationService{},
		locks:     keylock.NewKeyed(),
		cfg:       testAttendanceConfig(),
	}

	f.workplace.workplaces["wp-1"] = workplace.Workplace{ID: "wp-1", Name: "HQ", Timezone: "UTC"}
	f.workplace.zones["wp-1"] = []workplace.GeofenceZone{
		{ID: "zone-main", WorkplaceID: "wp-1", Name: "main", Latitude: 40.0, Longitude: -73.0, RadiusMeters: 100, Active: true},
	}
	f.users.users["user-1"] = user.User{
		ID: "user-1", WorkplaceID: "wp-1", Name: "Ayu Lestari",
		Email: "ayu@example.com", Role: user.RoleEmployee, Active: true,
	}

	f.svc = NewAttendanceService(
		nil, f.cfg, f.repo, f.workplace, f.users,
		nil, f.approvals, f.presence, f.notifier, f.locks,
	)
	return f
}

func employeeCtx(t *testing.T) context.Context {
	return authedContext(t, "user-1", "wp-1", user.RoleEmployee)
}

func insideZone() attendance.PunchRequest {
	return attendance.PunchRequest{Latitude: 40.0, Longitude: -73.0, AccuracyMeters: 10}
}

func TestPunchIn_Success(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	resp, err := f.svc.PunchIn(employeeCtx(t), insideZone())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusActive, resp.Status)
	assert.Equal(t, attendance.VerificationPending, resp.VerificationStatus)
	assert.False(t, resp.RequiresApproval)
	require.NotNil(t, resp.PunchInZoneID)
	assert.Equal(t, "zone-main", *resp.PunchInZoneID)
	require.NotNil(t, resp.UserName)
	assert.Equal(t, "Ayu Lestari", *resp.UserName)

	change, ok := f.presence.lastChange()
	require.True(t, ok)
	assert.Equal(t, presence.StatusActive, change.Status)
	assert.Equal(t, "user-1", change.UserID)
	require.NotNil(t, change.RecordID)
	assert.Equal(t, resp.ID, *change.RecordID)
}

func TestPunchIn_SecondPunchRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := employeeCtx(t)

	_, err := f.svc.PunchIn(ctx, insideZone())
	require.NoError(t, err)

	_, err = f.svc.PunchIn(ctx, insideZone())
	assert.ErrorIs(t, err, attendance.ErrDuplicatePunchIn)
}

func TestPunchIn_OutsideZonesFlagged(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	resp, err := f.svc.PunchIn(employeeCtx(t), attendance.PunchRequest{
		Latitude: 41.0, Longitude: -73.0, AccuracyMeters: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusActive, resp.Status)
	assert.True(t, resp.RequiresApproval)
	assert.Equal(t, attendance.VerificationFlagged, resp.VerificationStatus)
	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonOutOfGeofence)
	assert.Nil(t, resp.PunchInZoneID)
}

func TestPunchIn_OutsideZonesEnforced(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	wp := f.workplace.workplaces["wp-1"]
	wp.EnforceGeofence = true
	f.workplace.workplaces["wp-1"] = wp

	_, err := f.svc.PunchIn(employeeCtx(t), attendance.PunchRequest{
		Latitude: 41.0, Longitude: -73.0, AccuracyMeters: 10,
	})
	assert.ErrorIs(t, err, attendance.ErrOutOfGeofence)

	_, err = f.repo.GetOpenByUser(context.Background(), "user-1")
	assert.ErrorIs(t, err, attendance.ErrNoOpenRecord)
}

func TestPunchIn_GlobalEnforcementApplies(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.cfg.EnforceGeofence = true
	f.svc = NewAttendanceService(
		nil, f.cfg, f.repo, f.workplace, f.users,
		nil, f.approvals, f.presence, f.notifier, f.locks,
	)

	_, err := f.svc.PunchIn(employeeCtx(t), attendance.PunchRequest{
		Latitude: 41.0, Longitude: -73.0, AccuracyMeters: 10,
	})
	assert.ErrorIs(t, err, attendance.ErrOutOfGeofence)
}

func TestPunchIn_ImplausibleAccuracyFlagged(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	resp, err := f.svc.PunchIn(employeeCtx(t), attendance.PunchRequest{
		Latitude: 40.0, Longitude: -73.0, AccuracyMeters: 0.4,
	})
	require.NoError(t, err)

	assert.True(t, resp.RequiresApproval)
	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonImplausibleAccuracy)
}

func TestPunchIn_ImplausibleSpeedAgainstPreviousPunchOut(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	// Previous session punched out ~55km away one minute ago.
	outAt := time.Now().UTC().Add(-time.Minute)
	outLat, outLon, outAcc := 40.5, -73.0, 8.0
	f.repo.seed(attendance.Record{
		ID: "rec-prev", UserID: "user-1", WorkplaceID: "wp-1",
		Status:    attendance.StatusCompleted,
		PunchInAt: outAt.Add(-8 * time.Hour),
		PunchOutAt: &outAt, PunchOutLatitude: &outLat,
		PunchOutLongitude: &outLon, PunchOutAccuracy: &outAcc,
		VerificationStatus: attendance.VerificationVerified,
	})

	resp, err := f.svc.PunchIn(employeeCtx(t), insideZone())
	require.NoError(t, err)

	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonImplausibleMovement)
}

func TestPunchIn_TargetWorkplaceOverridesHome(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	branchID := "0d7aafd2-4b6a-4f0a-9a0e-3a5f0f1c2d4e"
	f.workplace.workplaces[branchID] = workplace.Workplace{ID: branchID, Name: "Branch", Timezone: "UTC"}

	resp, err := f.svc.PunchIn(employeeCtx(t), attendance.PunchRequest{
		Latitude: 40.0, Longitude: -73.0, AccuracyMeters: 10, WorkplaceID: &branchID,
	})
	require.NoError(t, err)

	// The branch has no zones configured, so geofencing is skipped.
	assert.Equal(t, branchID, resp.WorkplaceID)
	assert.Nil(t, resp.PunchInZoneID)
	assert.False(t, resp.RequiresApproval)
}

func TestPunchIn_UnknownTargetWorkplace(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	target := "3f1f0c72-52be-4bd5-9106-9cfbb19b38f5"
	_, err := f.svc.PunchIn(employeeCtx(t), attendance.PunchRequest{
		Latitude: 40.0, Longitude: -73.0, AccuracyMeters: 10, WorkplaceID: &target,
	})
	assert.ErrorIs(t, err, workplace.ErrWorkplaceNotFound)
}

func TestPunchIn_InactiveUser(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	u := f.users.users["user-1"]
	u.Active = false
	f.users.users["user-1"] = u

	_, err := f.svc.PunchIn(employeeCtx(t), insideZone())
	assert.ErrorIs(t, err, user.ErrUserInactive)
}

func TestPunchIn_BusyWhileLockHeld(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	release, err := f.locks.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	defer release()

	_, err = f.svc.PunchIn(employeeCtx(t), insideZone())
	assert.ErrorIs(t, err, attendance.ErrBusy)
}

func TestConcurrentPunchIn_ExactlyOneWins(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := employeeCtx(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.PunchIn(ctx, insideZone())
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, attendance.ErrDuplicatePunchIn) && !errors.Is(err, attendance.ErrBusy) {
			t.Fatalf("unexpected error from losing punch-in: %v", err)
		}
	}
	assert.Equal(t, 1, successes)

	rec, err := f.repo.GetOpenByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusActive, rec.Status)
}

func TestPunchOut_SettlesCleanSession(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-6 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	resp, err := f.svc.PunchOut(employeeCtx(t), insideZone())
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusCompleted, resp.Status)
	assert.Equal(t, attendance.VerificationVerified, resp.VerificationStatus)
	assert.False(t, resp.RequiresApproval)
	require.NotNil(t, resp.GrossMinutes)
	assert.Equal(t, 360, *resp.GrossMinutes)
	assert.Equal(t, 0, *resp.BreakMinutes)
	assert.Equal(t, 360, *resp.NetMinutes)
	assert.Equal(t, 0, *resp.OvertimeMinutes)

	assert.Empty(t, f.approvals.openCalls())

	change, ok := f.presence.lastChange()
	require.True(t, ok)
	assert.Equal(t, presence.StatusAbsent, change.Status)
}

func TestPunchOut_OvertimeOpensApproval(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-9 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	resp, err := f.svc.PunchOut(employeeCtx(t), insideZone())
	require.NoError(t, err)

	require.NotNil(t, resp.OvertimeMinutes)
	assert.Equal(t, 60, *resp.OvertimeMinutes)
	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonOvertime)
	assert.Equal(t, attendance.VerificationFlagged, resp.VerificationStatus)

	calls := f.approvals.openCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, resp.ID, calls[0].RecordID)
	assert.Equal(t, "user-1", calls[0].RequesterID)
	assert.Contains(t, calls[0].Reasons, attendance.ReasonOvertime)
}

func TestPunchOut_ClosesOpenBreakImplicitly(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusOnBreak,
		PunchInAt:       time.Now().UTC().Add(-6 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})
	f.repo.seedBreak(attendance.Break{
		ID: "brk-1", RecordID: "rec-1", Type: attendance.BreakTypeLunch,
		StartedAt: time.Now().UTC().Add(-30 * time.Minute),
	})

	resp, err := f.svc.PunchOut(employeeCtx(t), insideZone())
	require.NoError(t, err)

	require.Len(t, resp.Breaks, 1)
	require.NotNil(t, resp.Breaks[0].EndedAt)
	require.NotNil(t, resp.Breaks[0].Minutes)
	assert.InDelta(t, 30, *resp.Breaks[0].Minutes, 1)

	require.NotNil(t, resp.GrossMinutes)
	assert.Equal(t, *resp.GrossMinutes, *resp.NetMinutes+*resp.BreakMinutes)
}

func TestPunchOut_TooShortSessionFlagged(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-time.Minute),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	resp, err := f.svc.PunchOut(employeeCtx(t), insideZone())
	require.NoError(t, err)

	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonSessionTooShort)
	assert.True(t, resp.RequiresApproval)
}

func TestPunchOut_BreakCapCheckedOnImplicitClose(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	punchIn := time.Now().UTC().Add(-7 * time.Hour)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusOnBreak,
		PunchInAt:       punchIn,
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})
	// A closed break already over the daily cap on its own. Anchored to the
	// punch-in instant so it always lands inside the punch-in day window.
	hundred := 100
	endedAt := punchIn.Add(100 * time.Minute)
	f.repo.seedBreak(attendance.Break{
		ID: "brk-1", RecordID: "rec-1", Type: attendance.BreakTypeLunch,
		StartedAt: punchIn, EndedAt: &endedAt, Minutes: &hundred,
	})
	f.repo.seedBreak(attendance.Break{
		ID: "brk-2", RecordID: "rec-1", Type: attendance.BreakTypeCoffee,
		StartedAt: time.Now().UTC().Add(-10 * time.Minute),
	})

	resp, err := f.svc.PunchOut(employeeCtx(t), insideZone())
	require.NoError(t, err)

	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonBreakCapExceeded)
}

func TestPunchOut_NoOpenSession(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	_, err := f.svc.PunchOut(employeeCtx(t), insideZone())
	assert.ErrorIs(t, err, attendance.ErrNoOpenRecord)
}

func TestStartBreak_MovesSessionOnBreak(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-2 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	resp, err := f.svc.StartBreak(employeeCtx(t), attendance.StartBreakRequest{Type: attendance.BreakTypeLunch})
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusOnBreak, resp.Status)
	require.Len(t, resp.Breaks, 1)
	assert.Equal(t, attendance.BreakTypeLunch, resp.Breaks[0].Type)
	assert.Nil(t, resp.Breaks[0].EndedAt)

	change, ok := f.presence.lastChange()
	require.True(t, ok)
	assert.Equal(t, presence.StatusOnBreak, change.Status)
	require.NotNil(t, change.BreakType)
	assert.Equal(t, attendance.BreakTypeLunch, *change.BreakType)
}

func TestStartBreak_SecondBreakRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusOnBreak,
		PunchInAt:       time.Now().UTC().Add(-2 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	_, err := f.svc.StartBreak(employeeCtx(t), attendance.StartBreakRequest{Type: attendance.BreakTypeCoffee})
	assert.ErrorIs(t, err, attendance.ErrBreakAlreadyOpen)
}

func TestStartBreak_InvalidType(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)

	_, err := f.svc.StartBreak(employeeCtx(t), attendance.StartBreakRequest{Type: "siesta"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, attendance.ErrNoOpenRecord)
}

func TestEndBreak_ReturnsSessionToActive(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusOnBreak,
		PunchInAt:       time.Now().UTC().Add(-3 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})
	f.repo.seedBreak(attendance.Break{
		ID: "brk-1", RecordID: "rec-1", Type: attendance.BreakTypeRest,
		StartedAt: time.Now().UTC().Add(-2 * time.Minute),
	})

	resp, err := f.svc.EndBreak(employeeCtx(t))
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusActive, resp.Status)
	require.Len(t, resp.Breaks, 1)
	require.NotNil(t, resp.Breaks[0].EndedAt)
	require.NotNil(t, resp.Breaks[0].Minutes)
	assert.False(t, resp.RequiresApproval)

	change, ok := f.presence.lastChange()
	require.True(t, ok)
	assert.Equal(t, presence.StatusActive, change.Status)
}

func TestEndBreak_DailyCapExceededFlags(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	punchIn := time.Now().UTC().Add(-5 * time.Hour)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusOnBreak,
		PunchInAt:       punchIn,
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})
	hundred := 100
	endedAt := punchIn.Add(100 * time.Minute)
	f.repo.seedBreak(attendance.Break{
		ID: "brk-1", RecordID: "rec-1", Type: attendance.BreakTypeLunch,
		StartedAt: punchIn, EndedAt: &endedAt, Minutes: &hundred,
	})
	f.repo.seedBreak(attendance.Break{
		ID: "brk-2", RecordID: "rec-1", Type: attendance.BreakTypeCoffee,
		StartedAt: time.Now().UTC().Add(-5 * time.Minute),
	})

	resp, err := f.svc.EndBreak(employeeCtx(t))
	require.NoError(t, err)

	assert.Contains(t, resp.ApprovalReasons, attendance.ReasonBreakCapExceeded)
	assert.Equal(t, attendance.VerificationFlagged, resp.VerificationStatus)
}

func TestEndBreak_NotOnBreak(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	_, err := f.svc.EndBreak(employeeCtx(t))
	assert.ErrorIs(t, err, attendance.ErrNoOpenBreak)
}

func TestCurrentStatus_States(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := employeeCtx(t)

	status, err := f.svc.CurrentStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "none", status.Status)
	assert.Nil(t, status.Record)

	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusOnBreak,
		PunchInAt:       time.Now().UTC().Add(-time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})
	f.repo.seedBreak(attendance.Break{
		ID: "brk-1", RecordID: "rec-1", Type: attendance.BreakTypeLunch,
		StartedAt: time.Now().UTC().Add(-10 * time.Minute),
	})

	status, err = f.svc.CurrentStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOnBreak, status.Status)
	require.NotNil(t, status.Record)
	require.NotNil(t, status.CurrentBreak)
	assert.Equal(t, attendance.BreakTypeLunch, status.CurrentBreak.Type)
}

func TestGetRecord_Scope(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-1", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	// The owner reads their own record.
	_, err := f.svc.GetRecord(employeeCtx(t), "rec-1")
	require.NoError(t, err)

	// Another employee gets not-found rather than a permission hint.
	_, err = f.svc.GetRecord(authedContext(t, "user-2", "wp-1", user.RoleEmployee), "rec-1")
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)

	// A manager of the same workplace can read it.
	_, err = f.svc.GetRecord(authedContext(t, "mgr-1", "wp-1", user.RoleManager), "rec-1")
	require.NoError(t, err)

	// A manager of another workplace cannot.
	_, err = f.svc.GetRecord(authedContext(t, "mgr-2", "wp-2", user.RoleManager), "rec-1")
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestMyRecords_ScopedToCaller(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	base := time.Now().UTC().Add(-48 * time.Hour)
	for i := 0; i < 3; i++ {
		f.repo.seed(attendance.Record{
			ID: "", UserID: "user-1", WorkplaceID: "wp-1",
			Status:    attendance.StatusCompleted,
			PunchInAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	f.repo.seed(attendance.Record{
		UserID: "user-2", WorkplaceID: "wp-1",
		Status:    attendance.StatusCompleted,
		PunchInAt: base,
	})

	mine, err := f.svc.MyRecords(employeeCtx(t), attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.TotalCount)
	assert.Equal(t, "1-3 of 3", mine.Showing)
	for _, rec := range mine.Records {
		assert.Equal(t, "user-1", rec.UserID)
	}

	all, err := f.svc.ListRecords(authedContext(t, "mgr-1", "wp-1", user.RoleManager), attendance.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalCount)
}

// Cancellation validates the record id as a UUID before anything else.
const cancelTargetID = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"

func TestCancelRecord_AdminVoidsOpenSession(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	name := "Ayu Lestari"
	f.repo.seed(attendance.Record{
		ID: cancelTargetID, UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
		UserName:           &name,
	})

	resp, err := f.svc.CancelRecord(
		authedContext(t, "admin-1", "wp-1", user.RoleAdmin),
		attendance.CancelRecordRequest{ID: cancelTargetID, Reason: "punched in by mistake"},
	)
	require.NoError(t, err)

	assert.Equal(t, attendance.StatusCancelled, resp.Status)

	stored := f.repo.get(cancelTargetID)
	assert.Equal(t, attendance.StatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, "admin-1", *stored.CancelledBy)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, "punched in by mistake", *stored.CancelReason)

	queued := f.notifier.queuedRequests()
	require.Len(t, queued, 1)
	assert.Equal(t, notification.TypeSessionCancelled, queued[0].Type)
	assert.Equal(t, "user-1", queued[0].RecipientID)

	change, ok := f.presence.lastChange()
	require.True(t, ok)
	assert.Equal(t, presence.StatusAbsent, change.Status)
	assert.Equal(t, "user-1", change.UserID)
}

func TestCancelRecord_RequiresAdmin(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: cancelTargetID, UserID: "user-1", WorkplaceID: "wp-1",
		Status:    attendance.StatusActive,
		PunchInAt: time.Now().UTC().Add(-time.Hour),
	})

	_, err := f.svc.CancelRecord(
		authedContext(t, "mgr-1", "wp-1", user.RoleManager),
		attendance.CancelRecordRequest{ID: cancelTargetID, Reason: "nope"},
	)
	assert.ErrorIs(t, err, user.ErrPermissionDenied)
}

func TestCancelRecord_CompletedIsImmutable(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	outAt := time.Now().UTC().Add(-time.Hour)
	f.repo.seed(attendance.Record{
		ID: cancelTargetID, UserID: "user-1", WorkplaceID: "wp-1",
		Status:     attendance.StatusCompleted,
		PunchInAt:  outAt.Add(-8 * time.Hour),
		PunchOutAt: &outAt,
	})

	_, err := f.svc.CancelRecord(
		authedContext(t, "admin-1", "wp-1", user.RoleAdmin),
		attendance.CancelRecordRequest{ID: cancelTargetID, Reason: "too late"},
	)
	assert.ErrorIs(t, err, attendance.ErrRecordImmutable)
}

func TestAutoCloseStale_ClosesPastExpectedEnd(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	name := "Ayu Lestari"
	staleIn := time.Now().UTC().Add(-12 * time.Hour)
	f.repo.seed(attendance.Record{
		ID: "rec-stale", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       staleIn,
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
		UserName:           &name,
	})
	// Open but not yet past its expected end plus slack.
	f.users.users["user-2"] = user.User{ID: "user-2", WorkplaceID: "wp-1", Name: "Budi", Role: user.RoleEmployee, Active: true}
	f.repo.seed(attendance.Record{
		ID: "rec-fresh", UserID: "user-2", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-150 * time.Minute),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	closed, err := f.svc.AutoCloseStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stale := f.repo.get("rec-stale")
	assert.Equal(t, attendance.StatusCompleted, stale.Status)
	assert.Contains(t, stale.ApprovalReasons, attendance.ReasonAutoClosed)
	require.NotNil(t, stale.PunchOutAt)
	assert.Nil(t, stale.PunchOutLatitude)

	// No shift assigned: expected end is punch-in plus the standard shift,
	// the close lands that end plus the slack.
	wantOut := staleIn.Add(8*time.Hour + 2*time.Hour)
	assert.WithinDuration(t, wantOut, *stale.PunchOutAt, time.Second)
	require.NotNil(t, stale.GrossMinutes)
	assert.Equal(t, 600, *stale.GrossMinutes)

	fresh := f.repo.get("rec-fresh")
	assert.Equal(t, attendance.StatusActive, fresh.Status)

	queued := f.notifier.queuedRequests()
	require.Len(t, queued, 1)
	assert.Equal(t, notification.TypeSessionAutoClosed, queued[0].Type)

	calls := f.approvals.openCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "rec-stale", calls[0].RecordID)
}

func TestAutoCloseStale_SkipsLockedUser(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.repo.seed(attendance.Record{
		ID: "rec-stale", UserID: "user-1", WorkplaceID: "wp-1",
		Status:          attendance.StatusActive,
		PunchInAt:       time.Now().UTC().Add(-12 * time.Hour),
		PunchInLatitude: 40.0, PunchInLongitude: -73.0, PunchInAccuracy: 10,
		VerificationStatus: attendance.VerificationPending,
	})

	release, err := f.locks.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	defer release()

	closed, err := f.svc.AutoCloseStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, closed)

	rec := f.repo.get("rec-stale")
	assert.Equal(t, attendance.StatusActive, rec.Status)
}
