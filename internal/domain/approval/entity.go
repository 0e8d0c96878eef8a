package approval

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Type classifies what the request asks forgiveness for. Explicit submissions
// pick one; requests opened from a flagged record derive theirs from the
// record's flag reasons.
type Type string

const (
	TypeLate           Type = "late"
	TypeEarlyLeave     Type = "early_leave"
	TypeOvertime       Type = "overtime"
	TypeBreakExtension Type = "break_extension"
	TypeVerification   Type = "verification"
)

// Types lists every accepted request type.
var Types = []Type{TypeLate, TypeEarlyLeave, TypeOvertime, TypeBreakExtension, TypeVerification}

// ApprovalRequest asks a manager to vouch for a flagged attendance record.
// pending is the only mutable state; approved and rejected are terminal.
type ApprovalRequest struct {
	ID             string
	RecordID       string
	RequesterID    string
	WorkplaceID    string
	Type           Type
	Reasons        []string
	Note           *string
	Status         Status
	ResolvedBy     *string
	ResolvedAt     *time.Time
	ResolutionNote *string
	AutoApproved   bool
	SubmittedAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// DTO
	RequesterName *string
}

// IsResolved reports whether the request reached a terminal state.
func (r ApprovalRequest) IsResolved() bool {
	return r.Status != StatusPending
}

// OverdueAt reports whether the request has been pending past the limit.
// Escalation is a derived read: the request itself never changes state.
func (r ApprovalRequest) OverdueAt(now time.Time, limit time.Duration) bool {
	return r.Status == StatusPending && now.Sub(r.SubmittedAt) >= limit
}
