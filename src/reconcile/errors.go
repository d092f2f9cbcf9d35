package reconcile

import (
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	// KindFetch means a position query or the prior metrics read failed. Nothing was written.
	KindFetch Kind = "fetch_failure"
	// KindUpsert means the final write failed. The stored row is unchanged.
	KindUpsert Kind = "upsert_failure"
)

// Error is returned by Reconcile for every failure. Callers can retry the whole
// reconciliation.
type Error struct {
	Kind   Kind
	UserID uuid.UUID
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconcile user %s: %s: %v", e.UserID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fetchFailure(userID uuid.UUID, what string, err error) *Error {
	return &Error{Kind: KindFetch, UserID: userID, Err: fmt.Errorf("%s: %w", what, err)}
}

func upsertFailure(userID uuid.UUID, err error) *Error {
	return &Error{Kind: KindUpsert, UserID: userID, Err: err}
}
