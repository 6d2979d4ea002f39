/*
errors.go - Centralized error types for the document engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages and the API layer wrap these with additional context.

ERROR CATEGORIES:
  1. Version conflicts  - Stale expectedVersion on commit/revert
  2. Quantity errors    - Conservation invariant violations
  3. Target errors      - Revert outside [1, current]
  4. Not found          - Missing document/line/snapshot/record

PROPAGATION POLICY:
  All of these are structured failures surfaced to the caller. None are
  retried automatically: a conflict requires discarding local state and
  refetching; a quantity violation requires correcting the request. There
  is no fatal/unrecoverable class inside the engine - infrastructure
  failures belong to the storage/transport layers.

USAGE:
  if errors.Is(err, generic.ErrVersionConflict) {
      // discard staging area, refetch document
  }

SEE ALSO:
  - engine.go: Where commit/fulfillment errors originate
  - revert.go: Where revert errors originate
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrVersionConflict is returned when a commit or revert carries a stale
	// expectedVersion. Recoverable: discard local state and refetch.
	ErrVersionConflict = errors.New("version conflict")

	// ErrQuantityViolation is returned when an operation would break the
	// pending/fulfilled conservation invariant.
	ErrQuantityViolation = errors.New("quantity invariant violation")

	// ErrInvalidTargetVersion is returned when a revert or preview names a
	// version outside [1, current].
	ErrInvalidTargetVersion = errors.New("invalid target version")

	// ErrNotFound is returned when a referenced document, line item,
	// snapshot or derived record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRecordVoided is returned when a status transition is attempted on
	// an already-voided derived record.
	ErrRecordVoided = errors.New("derived record is voided")

	// ErrInvalidTransition is returned for an illegal document or
	// derived-record status transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrItemTypeNotAllowed is returned when an add carries an item type
	// the document kind does not accept.
	ErrItemTypeNotAllowed = errors.New("item type not allowed for document kind")

	// ErrInvalidChange is returned for a malformed change or fulfillment
	// list: empty lists, edits carrying no fields, adds without a
	// specification, unknown actions, duplicate fulfillment entries.
	ErrInvalidChange = errors.New("invalid change list")

	// ErrVersionGap is returned by the snapshot ledger when an append would
	// create a gap or repeat in the version sequence. This indicates an
	// engine bug, not bad input.
	ErrVersionGap = errors.New("snapshot version gap")

	// ErrSessionMode is returned by the edit session for a guarded
	// transition that is not allowed in the current mode.
	ErrSessionMode = errors.New("operation not allowed in current session mode")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// VersionConflictError reports a stale expectedVersion.
type VersionConflictError struct {
	DocumentID DocumentID
	Expected   int64
	Actual     int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected %d, document is at %d",
		e.DocumentID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// QuantityViolationError reports which line and rule an operation broke.
type QuantityViolationError struct {
	LineItemID LineItemID
	Rule       string
	Quantity   Qty
	Pending    Qty
	Fulfilled  Qty
}

func (e *QuantityViolationError) Error() string {
	return fmt.Sprintf("quantity violation on line %d: %s (quantity=%s pending=%s fulfilled=%s)",
		e.LineItemID, e.Rule, e.Quantity, e.Pending, e.Fulfilled)
}

func (e *QuantityViolationError) Unwrap() error { return ErrQuantityViolation }

// InvalidTargetVersionError reports a revert target outside [1, current].
type InvalidTargetVersionError struct {
	DocumentID DocumentID
	Target     int64
	Current    int64
}

func (e *InvalidTargetVersionError) Error() string {
	return fmt.Sprintf("invalid target version %d for %s: valid range is [1, %d]",
		e.Target, e.DocumentID, e.Current)
}

func (e *InvalidTargetVersionError) Unwrap() error { return ErrInvalidTargetVersion }

// NotFoundError reports a missing entity by type and id.
type NotFoundError struct {
	Entity string // "document", "line_item", "snapshot", "derived_record"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransitionError reports an illegal status transition.
type TransitionError struct {
	Kind string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether the error is a recoverable version conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrQuantityViolation) ||
		errors.Is(err, ErrInvalidTargetVersion) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrRecordVoided) ||
		errors.Is(err, ErrItemTypeNotAllowed) ||
		errors.Is(err, ErrInvalidChange)
}

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
