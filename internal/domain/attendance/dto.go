package attendance

import (
	"mime/multipart"
	"strings"

	"github.com/kerjalabs/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// PUNCH DTOs
// ========================================

// PunchRequest carries a reported location reading plus an optional proof
// photo. Punch-in and punch-out share the same shape. WorkplaceID targets a
// site other than the user's home workplace on punch-in; punch-out ignores it
// because the open record already fixes the site.
type PunchRequest struct {
	Latitude       float64               `json:"latitude"`
	Longitude      float64               `json:"longitude"`
	AccuracyMeters float64               `json:"accuracy_meters"`
	WorkplaceID    *string               `json:"workplace_id,omitempty"`
	PhotoURL       *string               `json:"-"`
	File           multipart.File        `json:"-"`
	FileHeader     *multipart.FileHeader `json:"-"`
}

func (r *PunchRequest) Validate() error {
	var errs validator.ValidationErrors

	// Coordinate range and NaN checks are deliberately left to the service so
	// a bad reading surfaces as an invalid-coordinate rejection, not a field error.
	if r.AccuracyMeters <= 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "accuracy_meters",
			Message: "accuracy_meters must be a positive number",
		})
	}

	if r.WorkplaceID != nil && !validator.IsValidUUID(*r.WorkplaceID) {
		errs = append(errs, validator.ValidationError{
			Field:   "workplace_id",
			Message: "workplace_id must be a valid UUID",
		})
	}

	if r.FileHeader != nil {
		filename := r.FileHeader.Filename
		ext := ""
		if idx := strings.LastIndex(filename, "."); idx >= 0 {
			ext = strings.ToLower(filename[idx:])
		}
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			errs = append(errs, validator.ValidationError{
				Field:   "photo",
				Message: "invalid file type: only jpg, jpeg, png allowed",
			})
		} else if r.FileHeader.Size > 10<<20 { // 10MB
			errs = append(errs, validator.ValidationError{
				Field:   "photo",
				Message: "proof photo size must not exceed 10MB",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// BREAK DTOs
// ========================================

type StartBreakRequest struct {
	Type string `json:"type"`
}

func (r *StartBreakRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsInSlice(r.Type, BreakTypes) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: " + strings.Join(BreakTypes, ", "),
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// CancelRecordRequest cancels an open record on an employee's behalf.
type CancelRecordRequest struct {
	ID     string `json:"-"`
	Reason string `json:"reason"`
}

func (r *CancelRecordRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidUUID(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id must be a valid UUID",
		})
	}

	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "cancellation reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// RESPONSES
// ========================================

type BreakResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	Minutes   *int    `json:"minutes,omitempty"`
}

type RecordResponse struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	UserName           *string         `json:"user_name,omitempty"`
	WorkplaceID        string          `json:"workplace_id"`
	ShiftID            *string         `json:"shift_id,omitempty"`
	Status             string          `json:"status"`
	PunchInAt          string          `json:"punch_in_at"`
	PunchOutAt         *string         `json:"punch_out_at,omitempty"`
	PunchInLatitude    float64         `json:"punch_in_latitude"`
	PunchInLongitude   float64         `json:"punch_in_longitude"`
	PunchInAccuracy    float64         `json:"punch_in_accuracy"`
	PunchOutLatitude   *float64        `json:"punch_out_latitude,omitempty"`
	PunchOutLongitude  *float64        `json:"punch_out_longitude,omitempty"`
	PunchOutAccuracy   *float64        `json:"punch_out_accuracy,omitempty"`
	PunchInZoneID      *string         `json:"punch_in_zone_id,omitempty"`
	PunchOutZoneID     *string         `json:"punch_out_zone_id,omitempty"`
	PunchInPhotoURL    *string         `json:"punch_in_photo_url,omitempty"`
	PunchOutPhotoURL   *string         `json:"punch_out_photo_url,omitempty"`
	VerificationStatus string          `json:"verification_status"`
	RequiresApproval   bool            `json:"requires_approval"`
	ApprovalReasons    []string        `json:"approval_reasons,omitempty"`
	GrossMinutes       *int            `json:"gross_minutes,omitempty"`
	BreakMinutes       *int            `json:"break_minutes,omitempty"`
	NetMinutes         *int            `json:"net_minutes,omitempty"`
	OvertimeMinutes    *int            `json:"overtime_minutes,omitempty"`
	LateMinutes        *int            `json:"late_minutes,omitempty"`
	EarlyLeaveMinutes  *int            `json:"early_leave_minutes,omitempty"`
	Breaks             []BreakResponse `json:"breaks,omitempty"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

// CurrentStatusResponse reports the caller's live attendance state.
type CurrentStatusResponse struct {
	Status       string          `json:"status"` // active, on_break, none
	Record       *RecordResponse `json:"record,omitempty"`
	CurrentBreak *BreakResponse  `json:"current_break,omitempty"`
}

type ListRecordsResponse struct {
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
	Showing    string           `json:"showing"`
	Records    []RecordResponse `json:"records"`
}

// ========================================
// FILTERS
// ========================================

type RecordFilter struct {
	// Search & Filter
	UserID    *string `json:"user_id,omitempty"`
	StartDate *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status    *string `json:"status,omitempty"`
	Flagged   *bool   `json:"flagged,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`

	// Sorting
	SortBy    string `json:"sort_by"`    // punch_in_at, punch_out_at, status, user_name
	SortOrder string `json:"sort_order"` // asc, desc
}

func (f *RecordFilter) Validate() error {
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

	if f.UserID != nil && !validator.IsValidUUID(*f.UserID) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_id",
			Message: "user_id must be a valid UUID",
		})
	}

	if f.Status != nil {
		validStatuses := []string{StatusActive, StatusOnBreak, StatusCompleted, StatusCancelled}
		if !validator.IsInSlice(*f.Status, validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: active, on_break, completed, cancelled",
			})
		}
	}

	if f.StartDate != nil && *f.StartDate != "" {
		if _, valid := validator.IsValidDate(*f.StartDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.EndDate != nil && *f.EndDate != "" {
		if _, valid := validator.IsValidDate(*f.EndDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.SortBy != "" {
		validSortFields := []string{"punch_in_at", "punch_out_at", "status", "user_name"}
		if !validator.IsInSlice(f.SortBy, validSortFields) {
			errs = append(errs, validator.ValidationError{
				Field:   "sort_by",
				Message: "sort_by must be one of: punch_in_at, punch_out_at, status, user_name",
			})
		}
	} else {
		f.SortBy = "punch_in_at" // Default sort
	}

	if f.SortOrder != "" {
		validSortOrders := []string{"asc", "desc"}
		if !validator.IsInSlice(strings.ToLower(f.SortOrder), validSortOrders) {
			errs = append(errs, validator.ValidationError{
				Field:   "sort_order",
				Message: "sort_order must be one of: asc, desc",
			})
		}
	} else {
		f.SortOrder = "desc" // Default descending (newest first)
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
