package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/fleetbot/internal/application/port"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// CommitRequest carries a completed session to its Finalizer
type CommitRequest struct {
	UserID string
	FlowID domainwf.FlowID
	Fields domainwf.Fields
	Seed   domainwf.Fields
	Now    time.Time
}

// CommitKind is the typed result of a commit
type CommitKind int

const (
	CommitCommitted CommitKind = iota + 1
	CommitDuplicate
	CommitInvalid
	CommitNotFound
	CommitUnavailable
)

var commitKindNames = map[CommitKind]string{
	CommitCommitted:   "committed",
	CommitDuplicate:   "duplicate",
	CommitInvalid:     "invalid",
	CommitNotFound:    "not_found",
	CommitUnavailable: "unavailable",
}

// String returns the kind name
func (k CommitKind) String() string {
	return commitKindNames[k]
}

// CommitResult is returned by a Finalizer
type CommitResult struct {
	Kind     CommitKind
	RecordID int64
	Stats    map[string]string

	// Field names the value to collect again (Duplicate, Invalid)
	Field string

	// Reason is a message key (Invalid, NotFound)
	Reason string

	Err error
}

// Committed reports a persisted record and its derived stats
func Committed(recordID int64, stats map[string]string) CommitResult {
	return CommitResult{Kind: CommitCommitted, RecordID: recordID, Stats: stats}
}

// Duplicate reports a uniqueness conflict on field
func Duplicate(field string) CommitResult {
	return CommitResult{Kind: CommitDuplicate, Field: field, Reason: ReasonDuplicate}
}

// Invalid reports a cross-field check that failed on field
func Invalid(field, reason string) CommitResult {
	return CommitResult{Kind: CommitInvalid, Field: field, Reason: reason}
}

// NotFound reports that a referenced entity vanished
func NotFound(reason string) CommitResult {
	return CommitResult{Kind: CommitNotFound, Reason: reason}
}

// Unavailable reports a transient store failure
func Unavailable(err error) CommitResult {
	return CommitResult{Kind: CommitUnavailable, Reason: ReasonStoreUnavailable, Err: err}
}

// FromError classifies a store error. columns maps "table.column" of a
// violated unique constraint to the flow field that supplied the value; a
// violation on any other column aborts the flow with ReasonDuplicate.
func FromError(err error, columns map[string]string, notFoundReason string) CommitResult {
	var ce *port.ConstraintError
	if errors.As(err, &ce) {
		if field, ok := columns[ce.Table+"."+ce.Column]; ok {
			return Duplicate(field)
		}
		return NotFound(ReasonDuplicate)
	}

	switch domainwf.Classify(err) {
	case domainwf.ClassNotFound:
		return NotFound(notFoundReason)
	default:
		return Unavailable(err)
	}
}

// Finalizer commits a completed field set through the Store
type Finalizer interface {
	Commit(ctx context.Context, req CommitRequest) CommitResult
}

// FinalizerFunc adapts a function to Finalizer
type FinalizerFunc func(ctx context.Context, req CommitRequest) CommitResult

// Commit implements Finalizer
func (f FinalizerFunc) Commit(ctx context.Context, req CommitRequest) CommitResult {
	return f(ctx, req)
}
