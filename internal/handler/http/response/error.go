package response

import (
	"errors"
	"net/http"

	"github.com/kerjalabs/attendance-backend-go/internal/domain/approval"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/attendance"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/notification"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/workplace"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/geo"
	"github.com/kerjalabs/attendance-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses. Soft conditions never
// reach this path; they ride on the record as flags, not errors.
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Attendance domain errors
	case errors.Is(err, attendance.ErrDuplicatePunchIn):
		Conflict(w, "An attendance session is already open")
	case errors.Is(err, attendance.ErrBreakAlreadyOpen):
		Conflict(w, "A break is already in progress")
	case errors.Is(err, attendance.ErrRecordImmutable):
		Conflict(w, "Attendance record is already closed")
	case errors.Is(err, attendance.ErrNoOpenRecord):
		BadRequest(w, "No open attendance session", nil)
	case errors.Is(err, attendance.ErrNoOpenBreak):
		BadRequest(w, "No break in progress", nil)
	case errors.Is(err, attendance.ErrInvalidTimeRange):
		BadRequest(w, "Punch-out time is before punch-in time", nil)
	case errors.Is(err, attendance.ErrOutOfGeofence):
		Forbidden(w, "Location is outside every workplace geofence")
	case errors.Is(err, attendance.ErrRecordNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, attendance.ErrBusy):
		TooManyRequests(w, "Another attendance operation is in progress, retry shortly")
	case errors.Is(err, geo.ErrInvalidCoordinate):
		BadRequest(w, "Latitude or longitude is not a usable coordinate", nil)

	// Approval domain errors
	case errors.Is(err, approval.ErrRequestNotFound):
		NotFound(w, "Approval request not found")
	case errors.Is(err, approval.ErrRequestAlreadyResolved):
		Conflict(w, "Approval request has already been resolved")
	case errors.Is(err, approval.ErrRequestAlreadyOpen):
		Conflict(w, "An approval request for this record is already pending")
	case errors.Is(err, approval.ErrRecordStillOpen):
		Conflict(w, "Approval can only be requested for a completed record")
	case errors.Is(err, approval.ErrSelfApproval):
		Forbidden(w, "Requests cannot be resolved by their requester")
	case errors.Is(err, approval.ErrNotRecordOwner):
		Forbidden(w, "Approval can only be requested for your own record")

	// Workplace domain errors
	case errors.Is(err, workplace.ErrWorkplaceNotFound):
		NotFound(w, "Workplace not found")
	case errors.Is(err, workplace.ErrShiftNotFound):
		NotFound(w, "No shift assigned for this user")

	// User domain errors
	case errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")
	case errors.Is(err, user.ErrUserInactive):
		Forbidden(w, "User account is deactivated")
	case errors.Is(err, user.ErrPermissionDenied):
		Forbidden(w, "Permission denied")
	case errors.Is(err, user.ErrManagerAccessRequired):
		Forbidden(w, "Manager access required")
	case errors.Is(err, user.ErrAdminAccessRequired):
		Forbidden(w, "Admin access required")

	// Notification domain errors
	case errors.Is(err, notification.ErrNotificationNotFound):
		NotFound(w, "Notification not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
