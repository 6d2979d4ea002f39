/*
session.go - Editor session state machine

PURPOSE:
  An EditSession is the client-held state for working on one document:
  an explicit finite-state machine over {view, editing, fulfilling} with
  guarded transitions, rather than scattered booleans. It owns the
  StagedChangeSet (edit mode) or the staged fulfillment entries
  (fulfilling mode) and the expectedVersion captured when the mode was
  entered.

GUARDS:
  - Cannot enter fulfilling while editing with staged changes.
  - Cannot enter editing while fulfilling with staged entries.
  - Discard always returns to view and is purely local: there is nothing
    to roll back server-side.

STALE DETECTION:
  A long-lived session should call ObserveVersion with the live version on
  every refetch. If the document advanced under the session, the local
  state is discarded immediately and the caller is told to notify the
  user, rather than waiting for a rejected commit.
*/
package generic

import "fmt"

// =============================================================================
// SESSION MODE
// =============================================================================

type SessionMode string

const (
	ModeView       SessionMode = "view"
	ModeEditing    SessionMode = "editing"
	ModeFulfilling SessionMode = "fulfilling"
)

// =============================================================================
// EDIT SESSION
// =============================================================================

// EditSession tracks one user's work on one document.
// Not safe for concurrent use; a session belongs to a single user flow.
type EditSession struct {
	documentID      DocumentID
	expectedVersion int64
	mode            SessionMode

	staged       *StagedChangeSet
	fulfillments []FulfillmentEntry
}

// NewEditSession starts in view mode against the given document state.
func NewEditSession(doc *Document) *EditSession {
	return &EditSession{
		documentID:      doc.ID,
		expectedVersion: doc.Version,
		mode:            ModeView,
		staged:          NewStagedChangeSet(),
	}
}

func (s *EditSession) DocumentID() DocumentID { return s.documentID }
func (s *EditSession) Mode() SessionMode      { return s.mode }

// ExpectedVersion is the document version this session's changes are
// staged against; commits and reverts pass it to the engine.
func (s *EditSession) ExpectedVersion() int64 { return s.expectedVersion }

// Staged exposes the change set. Only meaningful in editing mode.
func (s *EditSession) Staged() *StagedChangeSet { return s.staged }

// Fulfillments returns the staged fulfillment entries.
func (s *EditSession) Fulfillments() []FulfillmentEntry { return s.fulfillments }

// =============================================================================
// TRANSITIONS
// =============================================================================

// BeginEditing enters edit mode. Guarded: refused while fulfilling with
// staged entries.
func (s *EditSession) BeginEditing() error {
	if s.mode == ModeFulfilling && len(s.fulfillments) > 0 {
		return fmt.Errorf("%w: fulfilling with %d staged entries", ErrSessionMode, len(s.fulfillments))
	}
	s.mode = ModeEditing
	return nil
}

// BeginFulfilling enters fulfillment-staging mode. Guarded: refused while
// editing with staged changes - the user must commit or discard first.
func (s *EditSession) BeginFulfilling() error {
	if s.mode == ModeEditing && s.staged.HasStagedChanges() {
		return fmt.Errorf("%w: editing with %d staged changes", ErrSessionMode, s.staged.Count())
	}
	s.mode = ModeFulfilling
	return nil
}

// StageFulfillment adds one entry while in fulfilling mode.
func (s *EditSession) StageFulfillment(entry FulfillmentEntry) error {
	if s.mode != ModeFulfilling {
		return fmt.Errorf("%w: staging fulfillment in %s mode", ErrSessionMode, s.mode)
	}
	s.fulfillments = append(s.fulfillments, entry)
	return nil
}

// Discard drops all staged state and returns to view mode.
// Purely local; no server-side effect.
func (s *EditSession) Discard() {
	s.staged.Reset()
	s.fulfillments = nil
	s.mode = ModeView
}

// HasUnsavedWork reports whether leaving now would lose staged state.
func (s *EditSession) HasUnsavedWork() bool {
	return s.staged.HasStagedChanges() || len(s.fulfillments) > 0
}

// ObserveVersion reconciles the session with a freshly fetched document
// version. If the document advanced, staged state is discarded and true
// is returned so the caller can surface a notification instead of letting
// the user run into a rejected commit later.
func (s *EditSession) ObserveVersion(liveVersion int64) (stale bool) {
	if liveVersion == s.expectedVersion {
		return false
	}
	s.Discard()
	s.expectedVersion = liveVersion
	return true
}

// CommitApplied advances the session after a successful commit or
// fulfillment: staged state is cleared and the expected version moves to
// the one the server returned.
func (s *EditSession) CommitApplied(newVersion int64) {
	s.staged.Reset()
	s.fulfillments = nil
	s.expectedVersion = newVersion
	s.mode = ModeView
}
