package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/presence"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/sse"
)

const (
	// queueSize bounds the dispatch queue between the ledger and the hub.
	// A full queue drops the event rather than stalling an attendance write.
	queueSize = 1024
	// subscriberBuffer is the per-subscriber channel depth. A subscriber
	// that falls further behind loses events and sees the gap in Seq.
	subscriberBuffer = 64
)

// PresenceServiceImpl materializes per-workplace presence views and streams
// transitions to hub subscribers through a single dispatch goroutine, keeping
// delivery order aligned with sequence numbers.
type PresenceServiceImpl struct {
	attendance.AttendanceRepository
	user.UserRepository
	workplace.WorkplaceRepository

	hub *sse.Hub

	mu     sync.RWMutex
	views  map[string]map[string]presence.UserPresence
	seqs   map[string]uint64
	closed bool

	queue    chan presence.Event
	done     chan struct{}
	stopOnce sync.Once
}

func NewPresenceService(
	attendanceRepo attendance.AttendanceRepository,
	userRepo user.UserRepository,
	workplaceRepo workplace.WorkplaceRepository,
	hub *sse.Hub,
) presence.PresenceService {
	s := &PresenceServiceImpl{
		AttendanceRepository: attendanceRepo,
		UserRepository:       userRepo,
		WorkplaceRepository:  workplaceRepo,
		hub:                  hub,
		views:                make(map[string]map[string]presence.UserPresence),
		seqs:                 make(map[string]uint64),
		queue:                make(chan presence.Event, queueSize),
		done:                 make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Apply folds a ledger transition into the workplace view and queues the
// event. The enqueue happens under the view mutex so queue order always
// matches sequence order; the send itself never blocks.
func (s *PresenceServiceImpl) Apply(change presence.Change) {
	since := change.Since
	row := presence.UserPresence{
		UserID:    change.UserID,
		UserName:  change.UserName,
		Status:    change.Status,
		Since:     &since,
		BreakType: change.BreakType,
		RecordID:  change.RecordID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	view, ok := s.views[change.WorkplaceID]
	if !ok {
		view = make(map[string]presence.UserPresence)
		s.views[change.WorkplaceID] = view
	}
	view[change.UserID] = row

	s.seqs[change.WorkplaceID]++
	event := presence.Event{
		Seq:         s.seqs[change.WorkplaceID],
		WorkplaceID: change.WorkplaceID,
		UserID:      change.UserID,
		UserName:    change.UserName,
		Status:      change.Status,
		Since:       change.Since,
		BreakType:   change.BreakType,
		RecordID:    change.RecordID,
		EmittedAt:   time.Now().UTC(),
	}

	select {
	case s.queue <- event:
	default:
		slog.Warn("presence queue full, dropping event",
			"workplace_id", change.WorkplaceID, "user_id", change.UserID, "seq", event.Seq)
	}
}

// TeamStatus returns the workplace's live view overlaid on the active
// roster. Members without a presence entry report absent with no since.
func (s *PresenceServiceImpl) TeamStatus(ctx context.Context, workplaceID string) (presence.TeamStatusResponse, error) {
	if _, err := s.WorkplaceRepository.GetByID(ctx, workplaceID); err != nil {
		return presence.TeamStatusResponse{}, err
	}

	roster, err := s.UserRepository.ListByWorkplace(ctx, workplaceID)
	if err != nil {
		return presence.TeamStatusResponse{}, fmt.Errorf("failed to list workplace roster: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	view := s.views[workplaceID]
	team := make([]presence.UserPresence, 0, len(roster))
	var summary presence.Summary
	for _, member := range roster {
		row, ok := view[member.ID]
		if !ok {
			row = presence.UserPresence{
				UserID:   member.ID,
				UserName: member.Name,
				Status:   presence.StatusAbsent,
			}
		}
		if row.UserName == "" {
			row.UserName = member.Name
		}

		switch row.Status {
		case presence.StatusActive:
			summary.Active++
		case presence.StatusOnBreak:
			summary.OnBreak++
		default:
			summary.Absent++
		}
		team = append(team, row)
	}

	return presence.TeamStatusResponse{
		WorkplaceID: workplaceID,
		AsOf:        time.Now().UTC().Format(time.RFC3339),
		Summary:     summary,
		Team:        team,
	}, nil
}

// Subscribe registers a live feed for one workplace. Events arrive in
// sequence order; a slow subscriber loses events instead of stalling the
// dispatcher, and the Seq gap tells it to resync via TeamStatus.
func (s *PresenceServiceImpl) Subscribe(workplaceID string) (<-chan presence.Event, func()) {
	raw, cleanup := s.hub.Subscribe(workplaceID, subscriberBuffer)

	out := make(chan presence.Event, subscriberBuffer)
	go func() {
		defer close(out)
		for ev := range raw {
			event, ok := ev.Data.(presence.Event)
			if !ok {
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()

	return out, cleanup
}

// Warm seeds views from the open records so a restart does not report
// everyone absent. Existing entries win; Warm never overwrites live state.
func (s *PresenceServiceImpl) Warm(ctx context.Context) error {
	records, err := s.AttendanceRepository.ListOpenBefore(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to list open records: %w", err)
	}

	rows := make([]presence.UserPresence, 0, len(records))
	workplaces := make([]string, 0, len(records))
	for _, rec := range records {
		recordID := rec.ID
		since := rec.PunchInAt
		row := presence.UserPresence{
			UserID:   rec.UserID,
			Status:   presence.StatusActive,
			Since:    &since,
			RecordID: &recordID,
		}
		if rec.UserName != nil {
			row.UserName = *rec.UserName
		}
		if rec.Status == attendance.StatusOnBreak {
			row.Status = presence.StatusOnBreak
			if b, err := s.AttendanceRepository.GetOpenBreak(ctx, rec.ID); err == nil {
				breakType := b.Type
				startedAt := b.StartedAt
				row.BreakType = &breakType
				row.Since = &startedAt
			}
		}
		rows = append(rows, row)
		workplaces = append(workplaces, rec.WorkplaceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range rows {
		workplaceID := workplaces[i]
		view, ok := s.views[workplaceID]
		if !ok {
			view = make(map[string]presence.UserPresence)
			s.views[workplaceID] = view
		}
		if _, exists := view[row.UserID]; exists {
			continue
		}
		view[row.UserID] = row
	}

	return nil
}

// Stop refuses further events, drains the queue and waits for the
// dispatcher to exit.
func (s *PresenceServiceImpl) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.queue)
		<-s.done
	})
}

func (s *PresenceServiceImpl) dispatch() {
	defer close(s.done)

	for event := range s.queue {
		_, dropped := s.hub.Publish(event.WorkplaceID, sse.Event{Event: "presence", Data: event})
		if dropped > 0 {
			slog.Warn("dropped presence events for slow subscribers",
				"workplace_id", event.WorkplaceID, "dropped", dropped, "seq", event.Seq)
		}
	}
}
