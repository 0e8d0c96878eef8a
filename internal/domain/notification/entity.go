package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeApprovalRequested NotificationType = "approval_requested"
	TypeApprovalApproved  NotificationType = "approval_approved"
	TypeApprovalRejected  NotificationType = "approval_rejected"
	TypeApprovalOverdue   NotificationType = "approval_overdue"
	TypeSessionAutoClosed NotificationType = "session_auto_closed"
	TypeSessionCancelled  NotificationType = "session_cancelled"
)

// AllNotificationTypes returns all available notification types
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeApprovalRequested,
		TypeApprovalApproved,
		TypeApprovalRejected,
		TypeApprovalOverdue,
		TypeSessionAutoClosed,
		TypeSessionCancelled,
	}
}

// Notification represents a notification entity
type Notification struct {
	ID          string
	WorkplaceID string
	RecipientID string
	SenderID    *string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}
