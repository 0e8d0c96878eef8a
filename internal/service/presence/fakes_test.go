package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
)

// fakeAttendanceRepo serves the warm-up reads. The embedded interface covers
// the methods this package never touches.
type fakeAttendanceRepo struct {
	attendance.AttendanceRepository

	mu         sync.Mutex
	open       []attendance.Record
	openBreaks map[string]attendance.Break
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{openBreaks: make(map[string]attendance.Break)}
}

func (f *fakeAttendanceRepo) seedOpen(rec attendance.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = append(f.open, rec)
}

func (f *fakeAttendanceRepo) seedOpenBreak(b attendance.Break) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openBreaks[b.RecordID] = b
}

func (f *fakeAttendanceRepo) ListOpenBefore(ctx context.Context, cutoff time.Time) ([]attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var records []attendance.Record
	for _, rec := range f.open {
		if rec.PunchInAt.Before(cutoff) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (f *fakeAttendanceRepo) GetOpenBreak(ctx context.Context, recordID string) (attendance.Break, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.openBreaks[recordID]
	if !ok {
		return attendance.Break{}, attendance.ErrNoOpenBreak
	}
	return b, nil
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

// fakeWorkplaceRepo resolves workplace existence checks.
type fakeWorkplaceRepo struct {
	workplace.WorkplaceRepository

	workplaces map[string]workplace.Workplace
}

func newFakeWorkplaceRepo() *fakeWorkplaceRepo {
	return &fakeWorkplaceRepo{workplaces: make(map[string]workplace.Workplace)}
}

func (f *fakeWorkplaceRepo) GetByID(ctx context.Context, id string) (workplace.Workplace, error) {
	wp, ok := f.workplaces[id]
	if !ok {
		return workplace.Workplace{}, workplace.ErrWorkplaceNotFound
	}
	return wp, nil
}
