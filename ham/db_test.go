package ham

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HamDB/types"
)

func createTestDB(t *testing.T, cfg Config) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ham")
	db, err := Create(path, 0, 0644, cfg)
	require.NoError(t, err)
	return db, path
}

// A thousand keys, closed and reopened: every record must survive.
func TestInsertFindReopen(t *testing.T) {
	db, path := createTestDB(t, Config{PageSize: 1024, KeySize: 16, CacheCapacity: 64})

	for i := 0; i < 1000; i++ {
		key := []byte(fmt.Sprintf("k%04d", i))
		record := make([]byte, 4)
		binary.LittleEndian.PutUint32(record, uint32(i))
		require.NoError(t, db.Insert(key, record, 0))
	}
	require.NoError(t, db.Close())

	db, err := Open(path, 0, Config{CacheCapacity: 64})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1024, db.PageSize())
	assert.Equal(t, 16, db.KeySize())

	for i := 0; i < 1000; i++ {
		record, err := db.Find([]byte(fmt.Sprintf("k%04d", i)), 0)
		require.NoError(t, err)
		require.Len(t, record, 4)
		assert.Equal(t, uint32(i), binary.LittleEndian.Uint32(record))
	}
}

// Every inline size class plus the blob path round-trips.
func TestRecordSizeClasses(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	sizes := []int{0, 1, 3, 7, 8, 9, 100, 10000}
	for _, n := range sizes {
		record := make([]byte, n)
		for i := range record {
			record[i] = byte(i)
		}
		key := []byte(fmt.Sprintf("size-%d", n))
		require.NoError(t, db.Insert(key, record, 0))

		got, err := db.Find(key, 0)
		require.NoError(t, err)
		assert.Equal(t, record, got, "size %d", n)
	}
}

func TestEmptyRecord(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	require.NoError(t, db.Insert([]byte("e"), nil, 0))
	record, err := db.Find([]byte("e"), 0)
	require.NoError(t, err)
	assert.NotNil(t, record)
	assert.Len(t, record, 0)
}

// Erasing a blob record puts its page back on the freelist; the next
// blob allocation reuses it instead of growing the file.
func TestEraseFreesBlobPages(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	require.NoError(t, db.Insert([]byte("x"), []byte("abcdefghij"), 0))
	record, err := db.Find([]byte("x"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdefghij"), record)

	require.NoError(t, db.Erase([]byte("x"), 0))
	_, err = db.Find([]byte("x"), 0)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)

	hits := db.Metrics().FreelistHits
	require.NoError(t, db.Insert([]byte("y"), []byte("0123456789"), 0))
	assert.Greater(t, db.Metrics().FreelistHits, hits)
}

func TestEraseThenNotFound(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	require.NoError(t, db.Insert([]byte("gone"), []byte("v"), 0))
	require.NoError(t, db.Erase([]byte("gone"), 0))
	_, err := db.Find([]byte("gone"), 0)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)

	err = db.Erase([]byte("gone"), 0)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
	assert.ErrorIs(t, db.LastError(), types.ErrKeyNotFound)
}

func TestDuplicateKey(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	require.NoError(t, db.Insert([]byte("one"), []byte("a"), 0))
	err := db.Insert([]byte("one"), []byte("b"), 0)
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	// The original record is untouched.
	record, err := db.Find([]byte("one"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), record)
}

func TestCorruptMagicRejected(t *testing.T) {
	db, path := createTestDB(t, Config{})
	require.NoError(t, db.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{'X', 'X', 'X', 0}, 8)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(path, 0, Config{})
	assert.ErrorIs(t, err, types.ErrInvalidFileHeader)
}

func TestCreateParameterValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := Create(filepath.Join(dir, "a.ham"), 0, 0644, Config{PageSize: 1000})
	assert.ErrorIs(t, err, types.ErrInvalidPageSize)

	_, err = Create(filepath.Join(dir, "b.ham"), 0, 0644, Config{PageSize: 512, KeySize: 200})
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
}

func TestOpenRejectsInMemory(t *testing.T) {
	_, err := Open("nowhere.ham", types.InMemory, Config{})
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestSplitsKeepLeavesLevel(t *testing.T) {
	db, _ := createTestDB(t, Config{PageSize: 512, KeySize: 16, CacheCapacity: 32})
	defer db.Close()

	i := 0
	for db.Metrics().BtreeSplits < 2 {
		key := []byte(fmt.Sprintf("mono-%06d", i))
		require.NoError(t, db.Insert(key, []byte{byte(i)}, 0))
		i++
	}
	// Equal leaf depth is part of the integrity walk.
	require.NoError(t, db.CheckIntegrity())
}

// A freshly created file survives close/reopen with its header page
// byte-identical.
func TestHeaderRoundtrip(t *testing.T) {
	db, path := createTestDB(t, Config{PageSize: 1024, KeySize: 16})
	require.NoError(t, db.Insert([]byte("k"), []byte("v"), 0))
	require.NoError(t, db.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	db, err = Open(path, types.ReadOnly, Config{})
	require.NoError(t, err)
	_, err = db.Find([]byte("k"), 0)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before[:1024], after[:1024])
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	db, path := createTestDB(t, Config{})
	require.NoError(t, db.Insert([]byte("k"), []byte("v"), 0))
	require.NoError(t, db.Close())

	db, err := Open(path, types.ReadOnly, Config{})
	require.NoError(t, err)
	defer db.Close()

	assert.ErrorIs(t, db.Insert([]byte("n"), []byte("v"), 0), types.ErrReadOnly)
	assert.ErrorIs(t, db.Erase([]byte("k"), 0), types.ErrReadOnly)

	record, err := db.Find([]byte("k"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), record)
}

func TestDisableVarKeyLen(t *testing.T) {
	db, _ := createTestDB(t, Config{KeySize: 16})
	defer db.Close()

	long := make([]byte, 100)
	require.NoError(t, db.Insert(long, []byte("v"), 0))

	path := filepath.Join(t.TempDir(), "fixed.ham")
	fixed, err := Create(path, types.DisableVarKeyLen, 0644, Config{KeySize: 16})
	require.NoError(t, err)
	defer fixed.Close()

	assert.ErrorIs(t, fixed.Insert(long, []byte("v"), 0), types.ErrInvalidKeySize)
	require.NoError(t, fixed.Insert(make([]byte, 16), []byte("v"), 0))
}

func TestInMemoryDatabase(t *testing.T) {
	db, err := Create("", types.InMemory, 0, Config{CacheCapacity: 16})
	require.NoError(t, err)

	require.NoError(t, db.Insert([]byte("mem"), []byte("only"), 0))
	record, err := db.Find([]byte("mem"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("only"), record)
	require.NoError(t, db.Close())
}

func TestScanOrdered(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	// Inserted shuffled, visited sorted.
	for _, k := range []string{"pear", "apple", "zebra", "mango", "fig"} {
		require.NoError(t, db.Insert([]byte(k), []byte(k), 0))
	}
	var keys []string
	require.NoError(t, db.Scan(func(key, record []byte) error {
		assert.Equal(t, key, record)
		keys = append(keys, string(key))
		return nil
	}))
	assert.Equal(t, []string{"apple", "fig", "mango", "pear", "zebra"}, keys)
}

func TestCacheCapacityZero(t *testing.T) {
	db, path := createTestDB(t, Config{CacheCapacity: 0})

	for i := 0; i < 50; i++ {
		require.NoError(t, db.Insert([]byte(fmt.Sprintf("k%03d", i)), []byte("value"), 0))
	}
	require.NoError(t, db.Close())

	db, err := Open(path, 0, Config{CacheCapacity: 0})
	require.NoError(t, err)
	defer db.Close()
	for i := 0; i < 50; i++ {
		record, err := db.Find([]byte(fmt.Sprintf("k%03d", i)), 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), record)
	}
}

func TestCursorRegistry(t *testing.T) {
	db, _ := createTestDB(t, Config{})
	defer db.Close()

	c1, err := db.CursorCreate()
	require.NoError(t, err)
	c2, err := c1.Clone()
	require.NoError(t, err)
	assert.Len(t, db.cursors, 2)

	c1.Close()
	c1.Close() // double close is a no-op
	assert.Len(t, db.cursors, 1)
	c2.Close()
	assert.Len(t, db.cursors, 0)
}

func TestFlushAndIntegrity(t *testing.T) {
	db, _ := createTestDB(t, Config{CacheCapacity: 16})
	defer db.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, db.Insert([]byte(fmt.Sprintf("f%03d", i)), []byte("v"), 0))
	}
	require.NoError(t, db.Flush())
	require.NoError(t, db.CheckIntegrity())
}

func TestCustomComparator(t *testing.T) {
	// Reverse order: the scan comes out descending.
	db, _ := createTestDB(t, Config{
		Compare: func(lhs, rhs []byte) int {
			return -bytes.Compare(lhs, rhs)
		},
	})
	defer db.Close()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, db.Insert([]byte(k), []byte(k), 0))
	}
	var keys []string
	require.NoError(t, db.Scan(func(key, record []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	assert.Equal(t, []string{"c", "b", "a"}, keys)
}
