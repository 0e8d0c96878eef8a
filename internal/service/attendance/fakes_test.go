package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/notification"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/presence"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/stretchr/testify/require"
)

// authedContext builds a request context the way the verifier middleware
// would, so jwt.FromContext resolves the identity under test.
func authedContext(t *testing.T, userID, workplaceID string, role user.Role) context.Context {
	t.Helper()

	tokenAuth := jwtauth.New("HS256", []byte("test-secret"), nil)
	token, _, err := tokenAuth.Encode(map[string]interface{}{
		"user_id":      userID,
		"workplace_id": workplaceID,
		"role":         string(role),
	})
	require.NoError(t, err)

	return jwtauth.NewContext(context.Background(), token, nil)
}

// fakeAttendanceRepo is an in-memory attendance store enforcing the same
// uniqueness rules as the partial indexes: one open record per user, one
// open break per record.
type fakeAttendanceRepo struct {
	mu      sync.Mutex
	seq     int
	records map[string]attendance.Record
	breaks  map[string][]attendance.Break
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		records: make(map[string]attendance.Record),
		breaks:  make(map[string][]attendance.Break),
	}
}

func (f *fakeAttendanceRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeAttendanceRepo) seed(rec attendance.Record) attendance.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = f.nextID("rec")
	}
	f.records[rec.ID] = rec
	return rec
}

func (f *fakeAttendanceRepo) seedBreak(b attendance.Break) attendance.Break {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = f.nextID("brk")
	}
	f.breaks[b.RecordID] = append(f.breaks[b.RecordID], b)
	return b
}

func (f *fakeAttendanceRepo) get(id string) attendance.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeAttendanceRepo) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.records {
		if existing.UserID == rec.UserID && existing.IsOpen() {
			return attendance.Record{}, attendance.ErrDuplicatePunchIn
		}
	}

	rec.ID = f.nextID("rec")
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeAttendanceRepo) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[id]
	if !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeAttendanceRepo) GetOpenByUser(ctx context.Context, userID string) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rec := range f.records {
		if rec.UserID == userID && rec.IsOpen() {
			return rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrNoOpenRecord
}

func (f *fakeAttendanceRepo) GetLatestByUser(ctx context.Context, userID string) (attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest attendance.Record
	found := false
	for _, rec := range f.records {
		if rec.UserID != userID {
			continue
		}
		if !found || rec.PunchInAt.After(latest.PunchInAt) {
			latest = rec
			found = true
		}
	}
	if !found {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeAttendanceRepo) Update(ctx context.Context, rec attendance.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[rec.ID]; !ok {
		return attendance.ErrRecordNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeAttendanceRepo) List(ctx context.Context, workplaceID string, filter attendance.RecordFilter) ([]attendance.Record, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []attendance.Record
	for _, rec := range f.records {
		if rec.WorkplaceID != workplaceID {
			continue
		}
		if filter.UserID != nil && rec.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.Flagged != nil && rec.RequiresApproval != *filter.Flagged {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PunchInAt.After(matched[j].PunchInAt)
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeAttendanceRepo) ListOpenByWorkplace(ctx context.Context, workplaceID string) ([]attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var open []attendance.Record
	for _, rec := range f.records {
		if rec.WorkplaceID == workplaceID && rec.IsOpen() {
			open = append(open, rec)
		}
	}
	return open, nil
}

func (f *fakeAttendanceRepo) ListOpenBefore(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var open []attendance.Record
	for _, rec := range f.records {
		if rec.IsOpen() && rec.PunchInAt.Before(cutoff) {
			open = append(open, rec)
		}
	}
	return open, nil
}

func (f *fakeAttendanceRepo) CreateBreak(ctx context.Context, b attendance.Break) (attendance.Break, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.breaks[b.RecordID] {
		if existing.EndedAt == nil {
			return attendance.Break{}, attendance.ErrBreakAlreadyOpen
		}
	}

	b.ID = f.nextID("brk")
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	f.breaks[b.RecordID] = append(f.breaks[b.RecordID], b)
	return b, nil
}

func (f *fakeAttendanceRepo) GetOpenBreak(ctx context.Context, recordID string) (attendance.Break, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.breaks[recordID] {
		if b.EndedAt == nil {
			return b, nil
		}
	}
	return attendance.Break{}, attendance.ErrNoOpenBreak
}

func (f *fakeAttendanceRepo) UpdateBreak(ctx context.Context, b attendance.Break) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, existing := range f.breaks[b.RecordID] {
		if existing.ID == b.ID {
			b.UpdatedAt = time.Now().UTC()
			f.breaks[b.RecordID][i] = b
			return nil
		}
	}
	return attendance.ErrNoOpenBreak
}

func (f *fakeAttendanceRepo) ListBreaks(ctx context.Context, recordID string) ([]attendance.Break, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	breaks := make([]attendance.Break, len(f.breaks[recordID]))
	copy(breaks, f.breaks[recordID])
	sort.Slice(breaks, func(i, j int) bool {
		return breaks[i].StartedAt.Before(breaks[j].StartedAt)
	})
	return breaks, nil
}

func (f *fakeAttendanceRepo) BreakMinutesBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for recordID, breaks := range f.breaks {
		rec, ok := f.records[recordID]
		if !ok || rec.UserID != userID {
			continue
		}
		for _, b := range breaks {
			if b.Minutes == nil {
				continue
			}
			if !b.StartedAt.Before(from) && b.StartedAt.Before(to) {
				total += *b.Minutes
			}
		}
	}
	return total, nil
}

type fakeWorkplaceRepo struct {
	workplaces map[string]workplace.Workplace
	zones      map[string][]workplace.GeofenceZone
	shifts     map[string]workplace.Shift
}

func newFakeWorkplaceRepo() *fakeWorkplaceRepo {
	return &fakeWorkplaceRepo{
		workplaces: make(map[string]workplace.Workplace),
		zones:      make(map[string][]workplace.GeofenceZone),
		shifts:     make(map[string]workplace.Shift),
	}
}

func (f *fakeWorkplaceRepo) GetByID(ctx context.Context, id string) (workplace.Workplace, error) {
	wp, ok := f.workplaces[id]
	if !ok {
		return workplace.Workplace{}, workplace.ErrWorkplaceNotFound
	}
	return wp, nil
}

func (f *fakeWorkplaceRepo) ListActiveZones(ctx context.Context, workplaceID string) ([]workplace.GeofenceZone, error) {
	return f.zones[workplaceID], nil
}

func (f *fakeWorkplaceRepo) GetShift(ctx context.Context, id string) (workplace.Shift, error) {
	sh, ok := f.shifts[id]
	if !ok {
		return workplace.Shift{}, workplace.ErrShiftNotFound
	}
	return sh, nil
}

type fakeUserRepo struct {
	users map[string]user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]user.User)}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) ListByWorkplace(ctx context.Context, workplaceID string) ([]user.User, error) {
	var users []user.User
	for _, u := range f.users {
		if u.WorkplaceID == workplaceID && u.Active {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (f *fakeUserRepo) ListByWorkplaceAndRole(ctx context.Context, workplaceID string, role user.Role) ([]user.User, error) {
	var users []user.User
	for _, u := range f.users {
		if u.WorkplaceID == workplaceID && u.Role == role && u.Active {
			users = append(users, u)
		}
	}
	return users, nil
}

// openedRequest captures an OpenForRecord call.
type openedRequest struct {
	RecordID    string
	RequesterID string
	WorkplaceID string
	Reasons     []string
}

type fakeApprovalService struct {
	mu     sync.Mutex
	opened []openedRequest
}

func (f *fakeApprovalService) openCalls() []openedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]openedRequest, len(f.opened))
	copy(calls, f.opened)
	return calls
}

func (f *fakeApprovalService) RequestApproval(ctx context.Context, req approval.CreateApprovalRequest) (approval.ApprovalResponse, error) {
	return approval.ApprovalResponse{}, nil
}

func (f *fakeApprovalService) Resolve(ctx context.Context, req approval.ResolveApprovalRequest) (approval.ApprovalResponse, error) {
	return approval.ApprovalResponse{}, nil
}

func (f *fakeApprovalService) GetRequest(ctx context.Context, id string) (approval.ApprovalResponse, error) {
	return approval.ApprovalResponse{}, nil
}

func (f *fakeApprovalService) PendingForWorkplace(ctx context.Context, filter approval.ApprovalFilter) (approval.ListApprovalsResponse, error) {
	return approval.ListApprovalsResponse{}, nil
}

func (f *fakeApprovalService) MyRequests(ctx context.Context, filter approval.ApprovalFilter) (approval.ListApprovalsResponse, error) {
	return approval.ListApprovalsResponse{}, nil
}

func (f *fakeApprovalService) OpenForRecord(ctx context.Context, recordID, requesterID, workplaceID string, reasons []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, openedRequest{
		RecordID:    recordID,
		RequesterID: requesterID,
		WorkplaceID: workplaceID,
		Reasons:     reasons,
	})
	return nil
}

func (f *fakeApprovalService) EscalateOverdue(ctx context.Context) (int, error) {
	return 0, nil
}

type fakePresenceService struct {
	mu      sync.Mutex
	changes []presence.Change
}

func (f *fakePresenceService) Apply(change presence.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, change)
}

func (f *fakePresenceService) applied() []presence.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	changes := make([]presence.Change, len(f.changes))
	copy(changes, f.changes)
	return changes
}

func (f *fakePresenceService) lastChange() (presence.Change, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.changes) == 0 {
		return presence.Change{}, false
	}
	return f.changes[len(f.changes)-1], true
}

func (f *fakePresenceService) TeamStatus(ctx context.Context, workplaceID string) (presence.TeamStatusResponse, error) {
	return presence.TeamStatusResponse{}, nil
}

func (f *fakePresenceService) Subscribe(workplaceID string) (<-chan presence.Event, func()) {
	ch := make(chan presence.Event)
	return ch, func() { close(ch) }
}

func (f *fakePresenceService) Warm(ctx context.Context) error { return nil }

func (f *fakePresenceService) Stop() {}

type fakeNotificationService struct {
	mu     sync.Mutex
	queued []notification.CreateNotificationRequest
}

func (f *fakeNotificationService) queuedRequests() []notification.CreateNotificationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	queued := make([]notification.CreateNotificationRequest, len(f.queued))
	copy(queued, f.queued)
	return queued
}

func (f *fakeNotificationService) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, req)
	return nil
}

func (f *fakeNotificationService) QueueBulkNotification(ctx context.Context, reqs []notification.CreateNotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, reqs...)
	return nil
}

func (f *fakeNotificationService) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	return &notification.NotificationListResponse{}, nil
}

func (f *fakeNotificationService) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (f *fakeNotificationService) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	return nil
}

func (f *fakeNotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	return nil
}

func (f *fakeNotificationService) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch := make(chan notification.SSEEvent)
	return ch, func() { close(ch) }
}

func (f *fakeNotificationService) Stop() {}
