package approval

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/notification"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
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

// fakeApprovalRepo is an in-memory request store enforcing the same
// uniqueness rule as the partial index: one pending request per record.
// Resolve is the same compare-and-set as the SQL update.
type fakeApprovalRepo struct {
	mu       sync.Mutex
	requests map[string]approval.ApprovalRequest
}

func newFakeApprovalRepo() *fakeApprovalRepo {
	return &fakeApprovalRepo{requests: make(map[string]approval.ApprovalRequest)}
}

func (f *fakeApprovalRepo) seed(req approval.ApprovalRequest) approval.ApprovalRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	f.requests[req.ID] = req
	return req
}

func (f *fakeApprovalRepo) get(id string) approval.ApprovalRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id]
}

func (f *fakeApprovalRepo) all() []approval.ApprovalRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	requests := make([]approval.ApprovalRequest, 0, len(f.requests))
	for _, req := range f.requests {
		requests = append(requests, req)
	}
	return requests
}

func (f *fakeApprovalRepo) Create(ctx context.Context, req approval.ApprovalRequest) (approval.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Status == approval.StatusPending {
		for _, existing := range f.requests {
			if existing.RecordID == req.RecordID && existing.Status == approval.StatusPending {
				return approval.ApprovalRequest{}, approval.ErrRequestAlreadyOpen
			}
		}
	}

	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeApprovalRepo) GetByID(ctx context.Context, id string) (approval.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.requests[id]
	if !ok {
		return approval.ApprovalRequest{}, approval.ErrRequestNotFound
	}
	return req, nil
}

func (f *fakeApprovalRepo) Resolve(ctx context.Context, id string, status approval.Status, resolvedBy string, note *string, resolvedAt time.Time) (approval.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.requests[id]
	if !ok {
		return approval.ApprovalRequest{}, approval.ErrRequestNotFound
	}
	if req.Status != approval.StatusPending {
		return approval.ApprovalRequest{}, approval.ErrRequestAlreadyResolved
	}

	req.Status = status
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &resolvedAt
	req.ResolutionNote = note
	req.UpdatedAt = resolvedAt
	f.requests[id] = req
	return req, nil
}

func (f *fakeApprovalRepo) ListByWorkplace(ctx context.Context, workplaceID string, filter approval.ApprovalFilter) ([]approval.ApprovalRequest, int64, error) {
	return f.list(func(req approval.ApprovalRequest) bool {
		return req.WorkplaceID == workplaceID
	}, filter)
}

func (f *fakeApprovalRepo) ListByRequester(ctx context.Context, requesterID string, filter approval.ApprovalFilter) ([]approval.ApprovalRequest, int64, error) {
	return f.list(func(req approval.ApprovalRequest) bool {
		return req.RequesterID == requesterID
	}, filter)
}

func (f *fakeApprovalRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]approval.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var overdue []approval.ApprovalRequest
	for _, req := range f.requests {
		if req.Status == approval.StatusPending && req.SubmittedAt.Before(cutoff) {
			overdue = append(overdue, req)
		}
	}
	return overdue, nil
}

func (f *fakeApprovalRepo) list(match func(approval.ApprovalRequest) bool, filter approval.ApprovalFilter) ([]approval.ApprovalRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []approval.ApprovalRequest
	for _, req := range f.requests {
		if !match(req) {
			continue
		}
		if filter.Status != nil && string(req.Status) != *filter.Status {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
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

// fakeAttendanceRepo serves record lookups. The embedded interface covers the
// methods this package never touches.
type fakeAttendanceRepo struct {
	attendance.AttendanceRepository

	mu      sync.Mutex
	records map[string]attendance.Record
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: make(map[string]attendance.Record)}
}

func (f *fakeAttendanceRepo) seed(rec attendance.Record) attendance.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	f.records[rec.ID] = rec
	return rec
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

type fakeUserRepo struct {
	users map[string]user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]user.User)}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	usr, ok := f.users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return usr, nil
}

func (f *fakeUserRepo) ListByWorkplace(ctx context.Context, workplaceID string) ([]user.User, error) {
	var users []user.User
	for _, usr := range f.users {
		if usr.WorkplaceID == workplaceID && usr.Active {
			users = append(users, usr)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (f *fakeUserRepo) ListByWorkplaceAndRole(ctx context.Context, workplaceID string, role user.Role) ([]user.User, error) {
	var users []user.User
	for _, usr := range f.users {
		if usr.WorkplaceID == workplaceID && usr.Role == role && usr.Active {
			users = append(users, usr)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// fakeNotifier captures queued notifications. The embedded interface covers
// the read and subscription methods this package never touches.
type fakeNotifier struct {
	notification.Service

	mu     sync.Mutex
	queued []notification.CreateNotificationRequest
}

func (f *fakeNotifier) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, req)
	return nil
}

func (f *fakeNotifier) QueueBulkNotification(ctx context.Context, reqs []notification.CreateNotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, reqs...)
	return nil
}

func (f *fakeNotifier) queuedRequests() []notification.CreateNotificationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	queued := make([]notification.CreateNotificationRequest, len(f.queued))
	copy(queued, f.queued)
	return queued
}
