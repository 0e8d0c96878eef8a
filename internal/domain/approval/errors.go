package approval

import "errors"

var (
	ErrRequestNotFound        = errors.New("approval request not found")
	ErrRequestAlreadyResolved = errors.New("approval request has already been resolved")
	ErrRequestAlreadyOpen     = errors.New("an approval request for this record is already pending")
	ErrSelfApproval           = errors.New("requests cannot be resolved by their requester")
	ErrNotRecordOwner         = errors.New("approval can only be requested for your own record")
	ErrRecordStillOpen        = errors.New("approval can only be requested for a completed record")
)
