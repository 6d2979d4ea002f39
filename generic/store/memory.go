// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/document-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	documents map[generic.DocumentID]generic.Document
	lines     map[generic.DocumentID][]generic.LineItem
	snapshots map[generic.DocumentID][]generic.Snapshot
	records   map[generic.DocumentID][]generic.DerivedRecord

	nextLineID int64
}

func NewMemory() *Memory {
	return &Memory{
		documents:  make(map[generic.DocumentID]generic.Document),
		lines:      make(map[generic.DocumentID][]generic.LineItem),
		snapshots:  make(map[generic.DocumentID][]generic.Snapshot),
		records:    make(map[generic.DocumentID][]generic.DerivedRecord),
		nextLineID: 1,
	}
}

// --- documents ---

func (m *Memory) CreateDocument(_ context.Context, doc *generic.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	header := *doc
	header.Lines = nil
	m.documents[doc.ID] = header
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id generic.DocumentID) (*generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDocumentLocked(id)
}

func (m *Memory) getDocumentLocked(id generic.DocumentID) (*generic.Document, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "document", ID: string(id)}
	}
	doc.Lines = append([]generic.LineItem(nil), m.lines[id]...)
	return &doc, nil
}

func (m *Memory) UpdateDocumentHeader(_ context.Context, id generic.DocumentID, status generic.Status, version int64, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return &generic.NotFoundError{Entity: "document", ID: string(id)}
	}
	doc.Status = status
	doc.Version = version
	doc.UpdatedAt = updatedAt
	m.documents[id] = doc
	return nil
}

// --- line items ---

func (m *Memory) InsertLineItem(_ context.Context, li *generic.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	li.ID = generic.LineItemID(m.nextLineID)
	m.nextLineID++
	m.lines[li.DocumentID] = append(m.lines[li.DocumentID], *li)
	return nil
}

func (m *Memory) InsertLineItemWithID(_ context.Context, li generic.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.lines[li.DocumentID] {
		if existing.ID == li.ID {
			return fmt.Errorf("line %d already exists on %s", li.ID, li.DocumentID)
		}
	}
	m.lines[li.DocumentID] = append(m.lines[li.DocumentID], li)
	return nil
}

func (m *Memory) UpdateLineItem(_ context.Context, li generic.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.lines[li.DocumentID]
	for i := range items {
		if items[i].ID == li.ID {
			items[i] = li
			return nil
		}
	}
	return &generic.NotFoundError{Entity: "line_item", ID: fmt.Sprint(li.ID)}
}

func (m *Memory) DeleteLineItem(_ context.Context, id generic.LineItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for docID, items := range m.lines {
		for i := range items {
			if items[i].ID == id {
				m.lines[docID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
	}
	return &generic.NotFoundError{Entity: "line_item", ID: fmt.Sprint(id)}
}

// --- snapshots (append-only) ---

func (m *Memory) AppendSnapshot(_ context.Context, snap generic.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.DocumentID] = append(m.snapshots[snap.DocumentID], snap)
	sort.Slice(m.snapshots[snap.DocumentID], func(i, j int) bool {
		s := m.snapshots[snap.DocumentID]
		return s[i].Version < s[j].Version
	})
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, docID generic.DocumentID, version int64) (*generic.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snapshots[docID] {
		if s.Version == version {
			snap := s
			return &snap, nil
		}
	}
	return nil, &generic.NotFoundError{Entity: "snapshot", ID: fmt.Sprintf("%s@%d", docID, version)}
}

func (m *Memory) ListSnapshots(_ context.Context, docID generic.DocumentID) ([]generic.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]generic.Snapshot(nil), m.snapshots[docID]...), nil
}

func (m *Memory) LatestSnapshotVersion(_ context.Context, docID generic.DocumentID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snaps := m.snapshots[docID]
	if len(snaps) == 0 {
		return 0, nil
	}
	return snaps[len(snaps)-1].Version, nil
}

// --- derived records ---

func (m *Memory) InsertDerivedRecord(_ context.Context, rec *generic.DerivedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.DocumentID] = append(m.records[rec.DocumentID], *rec)
	return nil
}

func (m *Memory) GetDerivedRecord(_ context.Context, id generic.DerivedRecordID) (*generic.DerivedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, recs := range m.records {
		for _, rec := range recs {
			if rec.ID == id {
				out := rec
				return &out, nil
			}
		}
	}
	return nil, &generic.NotFoundError{Entity: "derived_record", ID: string(id)}
}

func (m *Memory) ListDerivedRecords(_ context.Context, docID generic.DocumentID) ([]generic.DerivedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]generic.DerivedRecord(nil), m.records[docID]...), nil
}

func (m *Memory) UpdateDerivedRecordStatus(_ context.Context, id generic.DerivedRecordID, status generic.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for docID, recs := range m.records {
		for i := range recs {
			if recs[i].ID == id {
				recs[i].Status = status
				m.records[docID] = recs
				return nil
			}
		}
	}
	return &generic.NotFoundError{Entity: "derived_record", ID: string(id)}
}

func (m *Memory) VoidDerivedRecord(_ context.Context, id generic.DerivedRecordID, at time.Time, by generic.SnapshotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for docID, recs := range m.records {
		for i := range recs {
			if recs[i].ID == id {
				if recs[i].VoidedAt != nil {
					return fmt.Errorf("derived record %s already voided", id)
				}
				t := at
				snapID := by
				recs[i].VoidedAt = &t
				recs[i].VoidedBySnapshotID = &snapID
				m.records[docID] = recs
				return nil
			}
		}
	}
	return &generic.NotFoundError{Entity: "derived_record", ID: string(id)}
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store, this is simulated with a deep snapshot of all
// maps and a restore on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	saved := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(saved)
		return err
	}
	return nil
}

type memorySnapshot struct {
	documents  map[generic.DocumentID]generic.Document
	lines      map[generic.DocumentID][]generic.LineItem
	snapshots  map[generic.DocumentID][]generic.Snapshot
	records    map[generic.DocumentID][]generic.DerivedRecord
	nextLineID int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		documents:  make(map[generic.DocumentID]generic.Document, len(tm.documents)),
		lines:      make(map[generic.DocumentID][]generic.LineItem, len(tm.lines)),
		snapshots:  make(map[generic.DocumentID][]generic.Snapshot, len(tm.snapshots)),
		records:    make(map[generic.DocumentID][]generic.DerivedRecord, len(tm.records)),
		nextLineID: tm.nextLineID,
	}
	for k, v := range tm.documents {
		s.documents[k] = v
	}
	for k, v := range tm.lines {
		s.lines[k] = append([]generic.LineItem(nil), v...)
	}
	for k, v := range tm.snapshots {
		s.snapshots[k] = append([]generic.Snapshot(nil), v...)
	}
	for k, v := range tm.records {
		s.records[k] = append([]generic.DerivedRecord(nil), v...)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.documents = s.documents
	tm.lines = s.lines
	tm.snapshots = s.snapshots
	tm.records = s.records
	tm.nextLineID = s.nextLineID
}

// Compile-time interface checks.
var (
	_ generic.Store   = (*Memory)(nil)
	_ generic.TxStore = (*TxMemory)(nil)
)
