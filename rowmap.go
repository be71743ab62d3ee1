package windowpool

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// RowMap is the concurrent map of active row windows, keyed by record
// position. It is injectable so callers can instrument or share it.
//
// Remove must compare against the expected row: the pool must never drop a
// row that a racing acquirer has just marked in use and re-published.
type RowMap interface {
	// Get returns the row at position, or nil.
	Get(position int64) *PersistenceRow

	// PutIfAbsent publishes row unless a row is already present, in which
	// case the existing row is returned and the argument is not stored.
	PutIfAbsent(position int64, row *PersistenceRow) *PersistenceRow

	// Remove deletes the entry at position only if it still holds expected.
	Remove(position int64, expected *PersistenceRow) bool

	// Clear drops all entries.
	Clear()
}

type xsyncRowMap struct {
	m *xsync.MapOf[int64, *PersistenceRow]
}

// NewRowMap returns the default RowMap implementation.
func NewRowMap() RowMap {
	return &xsyncRowMap{m: xsync.NewMapOf[int64, *PersistenceRow]()}
}

func (rm *xsyncRowMap) Get(position int64) *PersistenceRow {
	row, _ := rm.m.Load(position)
	return row
}

func (rm *xsyncRowMap) PutIfAbsent(position int64, row *PersistenceRow) *PersistenceRow {
	existing, loaded := rm.m.LoadOrStore(position, row)
	if loaded {
		return existing
	}
	return nil
}

func (rm *xsyncRowMap) Remove(position int64, expected *PersistenceRow) bool {
	var removed bool
	rm.m.Compute(position, func(old *PersistenceRow, loaded bool) (*PersistenceRow, bool) {
		if loaded && old == expected {
			removed = true
			return nil, true
		}
		return old, !loaded
	})
	return removed
}

func (rm *xsyncRowMap) Clear() {
	rm.m.Clear()
}
