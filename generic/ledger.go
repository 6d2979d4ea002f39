/*
ledger.go - Append-only snapshot ledger

PURPOSE:
  The SnapshotLedger is the immutable history of a document's line-item
  states, one entry per version. Every commit, fulfillment, status change
  and revert appends exactly one snapshot here. There is no update and no
  delete; a revert does not rewrite history, it appends a new version
  whose content matches an old one.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. CONTIGUOUS: Versions run 1..current with no gaps or repeats.
  3. ORDERED: Reads return snapshots in ascending version order.

WHY APPEND-ONLY?
  - Audit trail: every past shape of the document stays explainable
  - Revert: rolling back needs the exact recorded state, not a diff guess
  - Correctness: no risk of partial updates corrupting history

SEE ALSO:
  - store.go: Low-level persistence interface
  - revert.go: The main consumer of historical snapshots
*/
package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// SNAPSHOT LEDGER
// =============================================================================

// SnapshotLedger provides ordered, contiguity-checked access to a
// document's snapshots over a Store. Construct one per transaction view.
type SnapshotLedger struct {
	Store Store
}

func NewSnapshotLedger(store Store) *SnapshotLedger {
	return &SnapshotLedger{Store: store}
}

// Append writes a snapshot after verifying it extends the sequence by
// exactly one version. A gap or repeat means an engine bug; the append is
// refused so history never silently diverges from the document version.
func (l *SnapshotLedger) Append(ctx context.Context, snap Snapshot) error {
	latest, err := l.Store.LatestSnapshotVersion(ctx, snap.DocumentID)
	if err != nil {
		return err
	}
	if snap.Version != latest+1 {
		return fmt.Errorf("%w: appending version %d after %d on %s",
			ErrVersionGap, snap.Version, latest, snap.DocumentID)
	}
	return l.Store.AppendSnapshot(ctx, snap)
}

// Get returns the snapshot for one version.
func (l *SnapshotLedger) Get(ctx context.Context, docID DocumentID, version int64) (*Snapshot, error) {
	return l.Store.GetSnapshot(ctx, docID, version)
}

// List returns all snapshots for a document in ascending version order.
func (l *SnapshotLedger) List(ctx context.Context, docID DocumentID) ([]Snapshot, error) {
	return l.Store.ListSnapshots(ctx, docID)
}

// VerifyContiguous checks the 1..current invariant. Used by tests and by
// the consistency checks in the demo scenarios.
func (l *SnapshotLedger) VerifyContiguous(ctx context.Context, docID DocumentID, current int64) error {
	snaps, err := l.Store.ListSnapshots(ctx, docID)
	if err != nil {
		return err
	}
	if int64(len(snaps)) != current {
		return fmt.Errorf("%w: %d snapshots for document at version %d",
			ErrVersionGap, len(snaps), current)
	}
	for i, s := range snaps {
		if s.Version != int64(i)+1 {
			return fmt.Errorf("%w: snapshot %d has version %d", ErrVersionGap, i, s.Version)
		}
	}
	return nil
}
