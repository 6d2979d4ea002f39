package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/document-engine/generic"
)

func sessionDoc() *generic.Document {
	return &generic.Document{
		ID:      "doc-1",
		Kind:    "testdoc",
		Version: 3,
	}
}

func TestSession_StartsInViewMode(t *testing.T) {
	s := generic.NewEditSession(sessionDoc())
	assert.Equal(t, generic.ModeView, s.Mode())
	assert.Equal(t, int64(3), s.ExpectedVersion())
	assert.False(t, s.HasUnsavedWork())
}

func TestSession_EditingBlockedWhileFulfillingWithEntries(t *testing.T) {
	// GIVEN: Fulfilling mode with a staged entry
	// WHEN: Trying to switch to editing
	// THEN: Refused until the entry is discarded

	s := generic.NewEditSession(sessionDoc())
	require.NoError(t, s.BeginFulfilling())
	require.NoError(t, s.StageFulfillment(generic.FulfillmentEntry{LineItemID: 1, Quantity: qty(2)}))

	err := s.BeginEditing()
	assert.ErrorIs(t, err, generic.ErrSessionMode)

	s.Discard()
	assert.NoError(t, s.BeginEditing())
}

func TestSession_FulfillingBlockedWhileEditingWithChanges(t *testing.T) {
	s := generic.NewEditSession(sessionDoc())
	require.NoError(t, s.BeginEditing())
	s.Staged().StageDelete(2)

	err := s.BeginFulfilling()
	assert.ErrorIs(t, err, generic.ErrSessionMode)
}

func TestSession_FulfillingAllowedAfterCleanEditing(t *testing.T) {
	// Editing mode with nothing staged is not worth protecting.
	s := generic.NewEditSession(sessionDoc())
	require.NoError(t, s.BeginEditing())
	assert.NoError(t, s.BeginFulfilling())
}

func TestSession_StageFulfillmentOnlyInFulfillingMode(t *testing.T) {
	s := generic.NewEditSession(sessionDoc())
	err := s.StageFulfillment(generic.FulfillmentEntry{LineItemID: 1, Quantity: qty(1)})
	assert.ErrorIs(t, err, generic.ErrSessionMode)
}

func TestSession_DiscardIsLocalAndTotal(t *testing.T) {
	s := generic.NewEditSession(sessionDoc())
	require.NoError(t, s.BeginEditing())
	s.Staged().StageDelete(2)
	require.True(t, s.HasUnsavedWork())

	s.Discard()
	assert.False(t, s.HasUnsavedWork())
	assert.Equal(t, generic.ModeView, s.Mode())
	assert.Equal(t, int64(3), s.ExpectedVersion(), "discard does not move the expected version")
}

func TestSession_ObserveVersion_StaleDiscardsWork(t *testing.T) {
	// GIVEN: Staged changes against version 3
	// WHEN: A refetch shows the document at version 5
	// THEN: The session reports stale, drops the work and tracks 5

	s := generic.NewEditSession(sessionDoc())
	require.NoError(t, s.BeginEditing())
	s.Staged().StageDelete(2)

	stale := s.ObserveVersion(5)
	assert.True(t, stale)
	assert.False(t, s.HasUnsavedWork())
	assert.Equal(t, int64(5), s.ExpectedVersion())

	assert.False(t, s.ObserveVersion(5), "same version is not stale")
}

func TestSession_CommitApplied_AdvancesVersion(t *testing.T) {
	s := generic.NewEditSession(sessionDoc())
	require.NoError(t, s.BeginEditing())
	s.Staged().StageDelete(2)

	s.CommitApplied(4)
	assert.Equal(t, int64(4), s.ExpectedVersion())
	assert.Equal(t, generic.ModeView, s.Mode())
	assert.False(t, s.HasUnsavedWork())
}
