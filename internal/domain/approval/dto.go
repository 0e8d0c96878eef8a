package approval

import (
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/validator"
)

type CreateApprovalRequest struct {
	RecordID string `json:"record_id"`
	Type     string `json:"type"` // late, early_leave, overtime, break_extension
	Reason   string `json:"reason"`
}

func (r *CreateApprovalRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.RecordID) {
		errs = append(errs, validator.ValidationError{
			Field:   "record_id",
			Message: "record_id must be a valid UUID",
		})
	}

	submittableTypes := []string{
		string(TypeLate), string(TypeEarlyLeave), string(TypeOvertime), string(TypeBreakExtension),
	}
	if !validator.IsInSlice(r.Type, submittableTypes) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: late, early_leave, overtime, break_extension",
		})
	}

	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ResolveApprovalRequest struct {
	ID       string  `json:"-"`
	Decision string  `json:"decision"` // approve, reject
	Note     *string `json:"note,omitempty"`
}

func (r *ResolveApprovalRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id must be a valid UUID",
		})
	}

	if r.Decision != string(DecisionApprove) && r.Decision != string(DecisionReject) {
		errs = append(errs, validator.ValidationError{
			Field:   "decision",
			Message: "decision must be one of: approve, reject",
		})
	}

	// A rejection without a note gives the employee nothing to act on.
	if r.Decision == string(DecisionReject) && (r.Note == nil || validator.IsEmpty(*r.Note)) {
		errs = append(errs, validator.ValidationError{
			Field:   "note",
			Message: "note is required when rejecting",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ApprovalResponse struct {
	ID             string   `json:"id"`
	RecordID       string   `json:"record_id"`
	RequesterID    string   `json:"requester_id"`
	RequesterName  *string  `json:"requester_name,omitempty"`
	WorkplaceID    string   `json:"workplace_id"`
	Type           string   `json:"type"`
	Reasons        []string `json:"reasons,omitempty"`
	Note           *string  `json:"note,omitempty"`
	Status         string   `json:"status"`
	ResolvedBy     *string  `json:"resolved_by,omitempty"`
	ResolvedAt     *string  `json:"resolved_at,omitempty"`
	ResolutionNote *string  `json:"resolution_note,omitempty"`
	AutoApproved   bool     `json:"auto_approved"`
	Overdue        bool     `json:"overdue"`
	SubmittedAt    string   `json:"submitted_at"`
}

type ListApprovalsResponse struct {
	TotalCount int64              `json:"total_count"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
	Showing    string             `json:"showing"`
	Requests   []ApprovalResponse `json:"requests"`
}

type ApprovalFilter struct {
	Status *string `json:"status,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *ApprovalFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if f.Page == 0 {
		f.Page = 1 // Default page
	}

	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20 // Default limit
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if f.Status != nil {
		validStatuses := []string{string(StatusPending), string(StatusApproved), string(StatusRejected)}
		if !validator.IsInSlice(*f.Status, validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: pending, approved, rejected",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
