package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testOptions(dir string) Options {
	opts := DefaultOptions()
	opts.WALPath = filepath.Join(dir, "coleman.wal")
	opts.SnapshotDir = filepath.Join(dir, "snapshots")
	opts.Logger = zap.NewNop()
	return opts
}

func openManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := Open(opts)
	require.NoError(t, err)
	return m
}

func seedUsers(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.CreateTable("users", usersSchema()))
	for _, row := range [][]Value{
		{IntValue(1), StringValue("Alice"), IntValue(30), FloatValue(95.5)},
		{IntValue(2), StringValue("Bob"), IntValue(25), FloatValue(87.3)},
		{IntValue(3), StringValue("Charlie"), IntValue(35), FloatValue(92.1)},
	} {
		require.NoError(t, m.AddRecord("users", row))
	}
}

func TestManager_CreateAndScan(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	rows, err := m.Scan("users")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.True(t, rows[0][1].Equal(StringValue("Alice")))
	require.True(t, rows[1][1].Equal(StringValue("Bob")))
	require.True(t, rows[2][1].Equal(StringValue("Charlie")))
}

func TestManager_Filter(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	rows, err := m.Filter("users", []Predicate{
		{Column: "age", Op: OpGt, Value: pv(IntValue(25))},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0][1].Equal(StringValue("Alice")))
	require.True(t, rows[1][1].Equal(StringValue("Charlie")))
}

func TestManager_Aggregate(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	count, err := m.Aggregate("users", "id", AggCount, []Predicate{
		{Column: "age", Op: OpGt, Value: pv(IntValue(25))},
	})
	require.NoError(t, err)
	require.True(t, count.Equal(IntValue(2)))

	sum, err := m.Aggregate("users", "age", AggSum, nil)
	require.NoError(t, err)
	require.True(t, sum.Equal(IntValue(90)))
}

func TestManager_ErrorKinds(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	err := m.CreateTable("users", usersSchema())
	var existsErr *TableExistsError
	require.ErrorAs(t, err, &existsErr)

	var notFoundErr *TableNotFoundError
	require.ErrorAs(t, m.AddRecord("ghosts", []Value{IntValue(1)}), &notFoundErr)
	_, err = m.Scan("ghosts")
	require.ErrorAs(t, err, &notFoundErr)
	require.ErrorAs(t, m.DropTable("ghosts"), &notFoundErr)
}

func TestManager_DropTable(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)

	seedUsers(t, m)
	require.NoError(t, m.DropTable("users"))
	require.Equal(t, 0, m.TableCount())

	// Drops are not WAL-logged: the table comes back after a restart.
	require.NoError(t, m.Close())
	m2 := openManager(t, opts)
	defer m2.Close()
	require.Equal(t, 1, m2.TableCount())
}

func TestManager_CrashRecoveryFromWAL(t *testing.T) {
	opts := testOptions(t.TempDir())

	m := openManager(t, opts)
	require.NoError(t, m.CreateTable("users", usersSchema()))
	require.NoError(t, m.AddRecord("users", []Value{IntValue(1), StringValue("Alice"), IntValue(30), FloatValue(95.5)}))
	require.NoError(t, m.AddRecord("users", []Value{IntValue(2), StringValue("Bob"), IntValue(25), FloatValue(87.3)}))
	// Simulate a crash: no snapshot was taken, the WAL is the only
	// durable state.
	require.NoError(t, m.Close())

	m2 := openManager(t, opts)
	defer m2.Close()

	rows, err := m2.Scan("users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0][1].Equal(StringValue("Alice")))
	require.True(t, rows[1][1].Equal(StringValue("Bob")))
}

func TestManager_ValidationErrorAfterWALAppend(t *testing.T) {
	opts := testOptions(t.TempDir())

	m := openManager(t, opts)
	require.NoError(t, m.CreateTable("users", usersSchema()))

	// The record hits the WAL before validation rejects it in memory.
	var typeErr *TypeMismatchError
	err := m.AddRecord("users", []Value{
		IntValue(1), StringValue("Alice"), StringValue("oops"), FloatValue(1),
	})
	require.ErrorAs(t, err, &typeErr)

	rows, err := m.Scan("users")
	require.NoError(t, err)
	require.Empty(t, rows)
	require.NoError(t, m.Close())

	// Replay reproduces the rejection: the recovered state matches the
	// pre-crash state, with the bad record skipped.
	m2 := openManager(t, opts)
	defer m2.Close()
	rows, err = m2.Scan("users")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestManager_SnapshotThresholdTruncatesWAL(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.SnapshotRecordThreshold = 5

	m := openManager(t, opts)
	schema := NewSchema([]ColumnDef{{Name: "n", Type: TypeInt64}})
	require.NoError(t, m.CreateTable("nums", schema))
	for i := int64(0); i < 5; i++ {
		require.NoError(t, m.AddRecord("nums", []Value{IntValue(i)}))
	}

	// Threshold crossed: snapshot committed, WAL back to bare header.
	store, err := NewSnapshotStore(opts.SnapshotDir)
	require.NoError(t, err)
	require.True(t, store.Exists())

	info, err := os.Stat(opts.WALPath)
	require.NoError(t, err)
	require.Equal(t, int64(walHeaderSize), info.Size())
	require.Equal(t, 0, m.Stats().RecordsSinceSnapshot)
	require.NoError(t, m.Close())

	// Recovery from snapshot alone reproduces the state.
	m2 := openManager(t, opts)
	defer m2.Close()
	rows, err := m2.Scan("nums")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, row := range rows {
		require.True(t, row[0].Equal(IntValue(int64(i))))
	}
}

func TestManager_SnapshotPlusWALTail(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.SnapshotRecordThreshold = 3

	m := openManager(t, opts)
	schema := NewSchema([]ColumnDef{{Name: "n", Type: TypeInt64}})
	require.NoError(t, m.CreateTable("nums", schema))
	// The third record crosses the threshold; the fourth stays in the
	// WAL tail on top of the snapshot.
	for i := int64(0); i < 4; i++ {
		require.NoError(t, m.AddRecord("nums", []Value{IntValue(i)}))
	}
	require.NoError(t, m.Close())

	m2 := openManager(t, opts)
	defer m2.Close()
	rows, err := m2.Scan("nums")
	require.NoError(t, err)
	require.Len(t, rows, 4)
}

func TestManager_WALSizeThreshold(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.SnapshotWALSizeThreshold = 256 // tiny, triggers quickly

	m := openManager(t, opts)
	defer m.Close()
	schema := NewSchema([]ColumnDef{{Name: "s", Type: TypeString}})
	require.NoError(t, m.CreateTable("blobs", schema))
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddRecord("blobs", []Value{StringValue("0123456789abcdef0123456789abcdef")}))
	}

	store, err := NewSnapshotStore(opts.SnapshotDir)
	require.NoError(t, err)
	require.True(t, store.Exists())

	info, err := os.Stat(opts.WALPath)
	require.NoError(t, err)
	require.Less(t, info.Size(), int64(256))
}

func TestManager_TableNamesSorted(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	schema := NewSchema([]ColumnDef{{Name: "x", Type: TypeInt64}})
	for _, name := range []string{"zebra", "apple", "mango"} {
		require.NoError(t, m.CreateTable(name, schema))
	}
	require.Equal(t, []string{"apple", "mango", "zebra"}, m.TableNames())
	require.Equal(t, 3, m.TableCount())
}

func TestManager_MemoryUsage(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	infos := m.MemoryUsage()
	require.Len(t, infos, 1)
	require.Equal(t, "users", infos[0].TableName)
	require.Equal(t, 3, infos[0].RowCount)
	require.Positive(t, infos[0].Bytes)
}

func TestManager_Stats(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	s := m.Stats()
	require.Equal(t, 1, s.TableCount)
	require.Equal(t, 3, s.RecordsSinceSnapshot)
	require.Equal(t, uint64(4), s.WALLastSeq) // create + 3 records
	require.Greater(t, s.WALSize, int64(walHeaderSize))
}

func TestManager_SchemaLookup(t *testing.T) {
	opts := testOptions(t.TempDir())
	m := openManager(t, opts)
	defer m.Close()

	seedUsers(t, m)

	schema, err := m.Schema("users")
	require.NoError(t, err)
	require.True(t, schema.Equal(usersSchema()))

	var notFoundErr *TableNotFoundError
	_, err = m.Schema("ghosts")
	require.ErrorAs(t, err, &notFoundErr)
}
