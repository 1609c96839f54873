package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Auth: missing, malformed or expired session token.
	ErrInvalidToken = fmt.Errorf("invalid session token")
	ErrTokenExpired = fmt.Errorf("session token expired")

	// Authorization: the caller is not a member of the group.
	ErrNotAMember = fmt.Errorf("not a group member")

	// Validation.
	ErrEmptyContent    = fmt.Errorf("message content is empty")
	ErrUnknownEnvelope = fmt.Errorf("unknown envelope type")

	// Not found.
	ErrGroupNotFound    = fmt.Errorf("group not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrEmployeeNotFound = fmt.Errorf("employee not found")

	ErrGroupExists = fmt.Errorf("group already exists")

	// Permanent push token fault: the provider reported the token
	// invalid or unregistered. Triggers subscription deletion.
	ErrTokenUnregistered = fmt.Errorf("push token unregistered")
)
