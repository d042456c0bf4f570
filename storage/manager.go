package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Options configures a Manager.
type Options struct {
	// WALPath is the write-ahead log file. Parent directories are
	// created on open.
	WALPath string

	// SnapshotDir holds snapshot.dat and the transient snapshot.tmp.
	SnapshotDir string

	// SnapshotRecordThreshold is the number of records added since the
	// last snapshot that triggers a snapshot. Table creates and records
	// rejected by validation do not count.
	SnapshotRecordThreshold int

	// SnapshotWALSizeThreshold is the WAL byte size that also triggers
	// a snapshot.
	SnapshotWALSizeThreshold int64

	// Logger receives recovery and snapshot events. nil means no
	// logging.
	Logger *zap.Logger
}

// DefaultOptions returns the documented default configuration.
func DefaultOptions() Options {
	return Options{
		WALPath:                  "data/coleman.wal",
		SnapshotDir:              "data/snapshots",
		SnapshotRecordThreshold:  10_000,
		SnapshotWALSizeThreshold: 10 << 20, // 10 MiB
	}
}

// TableMemoryInfo reports the estimated in-memory footprint of one
// table's column buffers.
type TableMemoryInfo struct {
	TableName string
	RowCount  int
	Bytes     int64
}

// Stats is a point-in-time view of the manager's bookkeeping.
type Stats struct {
	TableCount           int
	RecordsSinceSnapshot int
	WALSize              int64
	WALLastSeq           uint64
}

// Manager owns the tables map, the WAL, and the snapshot store, and
// enforces the engine's concurrency discipline: one reader-writer lock
// over the whole tables map, WAL append before in-memory apply, and a
// snapshot + WAL truncation once enough mutations accumulate.
type Manager struct {
	mu                   sync.RWMutex
	tables               map[string]*Table
	wal                  *WAL
	snapshots            *SnapshotStore
	opts                 Options
	recordsSinceSnapshot int
	fsync                atomic.Bool
	logger               *zap.Logger
}

// Open creates or recovers a Manager: open (or create) the WAL, load
// the latest snapshot if one exists, replay the WAL tail on top of it,
// and reset the snapshot accounting.
func Open(opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(opts.WALPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	wal, err := OpenWAL(opts.WALPath)
	if err != nil {
		return nil, fmt.Errorf("open WAL: %w", err)
	}

	snapshots, err := NewSnapshotStore(opts.SnapshotDir)
	if err != nil {
		wal.Close()
		return nil, err
	}

	m := &Manager{
		tables:    make(map[string]*Table),
		wal:       wal,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger,
	}
	m.fsync.Store(true)
	m.wal.SetFsyncFlag(&m.fsync)

	if snapshots.Exists() {
		if err := snapshots.Load(func(t *Table) error {
			if _, exists := m.tables[t.Name()]; exists {
				return &TableExistsError{Name: t.Name()}
			}
			m.tables[t.Name()] = t
			return nil
		}); err != nil {
			wal.Close()
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		logger.Info("snapshot loaded",
			zap.String("path", snapshots.Path()),
			zap.Int("tables", len(m.tables)))
	}

	handler := &managerReplayHandler{m: m}
	if err := wal.Replay(handler); err != nil {
		wal.Close()
		return nil, fmt.Errorf("replay WAL: %w", err)
	}
	m.recordsSinceSnapshot = 0

	logger.Info("recovery complete",
		zap.Int("tables", len(m.tables)),
		zap.Uint64("wal_entries", handler.applied),
		zap.Uint64("wal_skipped", handler.skipped))
	return m, nil
}

// managerReplayHandler applies WAL entries to the in-memory state
// during recovery. A duplicate create or an add for a missing table is
// fatal; an add that fails row validation is skipped, reproducing the
// rejection the original run returned to its caller.
type managerReplayHandler struct {
	m       *Manager
	applied uint64
	skipped uint64
}

func (h *managerReplayHandler) OnCreateTable(name string, schema *Schema) error {
	if _, exists := h.m.tables[name]; exists {
		return fmt.Errorf("replayed create for existing table %q", name)
	}
	h.m.tables[name] = NewTable(name, schema)
	h.applied++
	return nil
}

func (h *managerReplayHandler) OnAddRecord(table string, values []Value) error {
	t, ok := h.m.tables[table]
	if !ok {
		return fmt.Errorf("replayed record for missing table %q", table)
	}
	if err := t.AppendRecord(values); err != nil {
		var countErr *ColumnCountMismatchError
		var typeErr *TypeMismatchError
		if errors.As(err, &countErr) || errors.As(err, &typeErr) {
			h.skipped++
			h.m.logger.Warn("skipping invalid record during replay",
				zap.String("table", table), zap.Error(err))
			return nil
		}
		return err
	}
	h.applied++
	return nil
}

// Close releases the WAL file handle. In-memory state is discarded;
// the WAL and snapshot recover it on the next Open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wal.Close()
}

// SetFsync toggles WAL fsync at runtime. Disabling it trades the
// durability contract for write throughput.
func (m *Manager) SetFsync(enabled bool) {
	m.fsync.Store(enabled)
}

// CreateTable registers a new table. The create is WAL-logged before
// the in-memory map is touched.
func (m *Manager) CreateTable(name string, schema *Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[name]; exists {
		return &TableExistsError{Name: name}
	}
	if err := m.wal.AppendCreateTable(name, schema); err != nil {
		return fmt.Errorf("WAL: %w", err)
	}
	m.tables[name] = NewTable(name, schema)
	// Creates don't count toward the record threshold, but they do
	// grow the WAL, so the size threshold still applies.
	return m.maybeSnapshot()
}

// DropTable removes a table from the in-memory map. Drops are not
// WAL-logged; a dropped table whose create is still in the WAL or
// snapshot reappears after a restart.
func (m *Manager) DropTable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[name]; !exists {
		return &TableNotFoundError{Name: name}
	}
	delete(m.tables, name)
	return nil
}

// AddRecord appends one row. The record is WAL-logged first; a row
// that then fails validation surfaces the error to the caller while
// the log entry remains, and replay reproduces the same rejection.
func (m *Manager) AddRecord(table string, values []Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.tables[table]
	if !exists {
		return &TableNotFoundError{Name: table}
	}
	if err := m.wal.AppendAddRecord(table, values); err != nil {
		return fmt.Errorf("WAL: %w", err)
	}
	if err := t.AppendRecord(values); err != nil {
		return err
	}
	m.recordsSinceSnapshot++
	return m.maybeSnapshot()
}

// maybeSnapshot saves all tables and truncates the WAL once either
// configured threshold is crossed. Caller holds the write lock. A
// failed save leaves the WAL untouched and surfaces the error; the
// triggering mutation itself has already been applied.
func (m *Manager) maybeSnapshot() error {
	if m.recordsSinceSnapshot < m.opts.SnapshotRecordThreshold &&
		m.wal.Size() < m.opts.SnapshotWALSizeThreshold {
		return nil
	}

	if err := m.snapshots.Save(m.tables); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := m.wal.Truncate(); err != nil {
		return fmt.Errorf("truncate WAL: %w", err)
	}
	m.recordsSinceSnapshot = 0
	m.logger.Info("snapshot written",
		zap.String("path", m.snapshots.Path()),
		zap.Int("tables", len(m.tables)))
	return nil
}

// Scan returns every row of the table in insertion order.
func (m *Manager) Scan(table string) ([][]Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.tables[table]
	if !exists {
		return nil, &TableNotFoundError{Name: table}
	}
	return t.Rows(), nil
}

// Filter returns the rows satisfying every predicate, in insertion
// order.
func (m *Manager) Filter(table string, predicates []Predicate) ([][]Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.tables[table]
	if !exists {
		return nil, &TableNotFoundError{Name: table}
	}
	indices, err := FilterTable(t, predicates)
	if err != nil {
		return nil, err
	}
	rows := make([][]Value, len(indices))
	for i, r := range indices {
		row, err := t.Row(r)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// Aggregate reduces the rows matched by the predicates to one value.
func (m *Manager) Aggregate(table, columnName string, fn AggregateFunc, predicates []Predicate) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.tables[table]
	if !exists {
		return Value{}, &TableNotFoundError{Name: table}
	}
	return AggregateTable(t, columnName, fn, predicates)
}

// Schema returns the schema of the named table.
func (m *Manager) Schema(table string) (*Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.tables[table]
	if !exists {
		return nil, &TableNotFoundError{Name: table}
	}
	return t.Schema(), nil
}

// TableCount returns the number of tables.
func (m *Manager) TableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// TableNames returns all table names in sorted order.
func (m *Manager) TableNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemoryUsage estimates the column-buffer footprint of every table,
// sorted by table name.
func (m *Manager) MemoryUsage() []TableMemoryInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]TableMemoryInfo, 0, len(m.tables))
	for name, t := range m.tables {
		infos = append(infos, TableMemoryInfo{
			TableName: name,
			RowCount:  t.RowCount(),
			Bytes:     t.memoryBytes(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].TableName < infos[j].TableName
	})
	return infos
}

// Stats returns the manager's current bookkeeping counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		TableCount:           len(m.tables),
		RecordsSinceSnapshot: m.recordsSinceSnapshot,
		WALSize:              m.wal.Size(),
		WALLastSeq:           m.wal.LastSeq(),
	}
}
