package user

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserInactive          = errors.New("user account is deactivated")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrManagerAccessRequired = errors.New("manager access required")
	ErrAdminAccessRequired   = errors.New("admin access required")
)
