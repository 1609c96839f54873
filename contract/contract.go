//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"directory-chat/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself: the supervisor recovers panics
// and decides about restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming on the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is one live transport handle. A user may own several at once
// (multi-device); a Conn never outlives its physical connection.
type Conn interface {
	ID() string
	Ready() bool
	Send(envelope domain.Envelope) error
}

// IRegistry tracks which connections belong to which identity.
// Delivery through it is best-effort and synchronous: no queueing,
// no retries.
type IRegistry interface {
	Register(userID string, conn Conn)
	Remove(conn Conn)
	IsOnline(userID string) bool
	SendTo(userID string, envelope domain.Envelope)
}

// Session is the result of validating a session token.
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

// SessionValidator is the external token-validation collaborator.
type SessionValidator interface {
	Validate(token string) (Session, error)
}

// MembershipStore answers group membership questions. Callers query it
// fresh on every guarded operation; membership can change between two
// operations of the same connection.
type MembershipStore interface {
	IsMember(groupID int64, userID string) (bool, error)
	ListMembers(groupID int64) ([]string, error)
	ListGroups(userID string) ([]int64, error)
}

// EmployeeDirectory resolves user identities to display names.
type EmployeeDirectory interface {
	GetEmployee(userID string) (domain.Employee, error)
}
