package fdsys

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DescriptorTable_Allocates_Lowest_Free_Descriptor(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	tbl := newDescriptorTable(DefaultReserved, 4)

	for i, name := range []string{"a", "b", "c"} {
		fd, reused, err := tbl.openOrCreate(reg, name, true)
		require.NoError(t, err)
		assert.False(t, reused)
		assert.Equal(t, DefaultReserved+i, fd)
	}

	_, _, err := tbl.close(3)
	require.NoError(t, err)

	fd, _, err := tbl.openOrCreate(reg, "d", true)
	require.NoError(t, err)
	assert.Equal(t, 3, fd, "freed descriptor should be handed out first")

	fd, _, err = tbl.openOrCreate(reg, "e", true)
	require.NoError(t, err)
	assert.Equal(t, 5, fd)
}

func Test_DescriptorTable_Reuses_Descriptor_When_Name_Already_Open(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	tbl := newDescriptorTable(DefaultReserved, 2)

	first, _, err := tbl.openOrCreate(reg, "a", true)
	require.NoError(t, err)

	second, reused, err := tbl.openOrCreate(reg, "a", false)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, first, second)

	e, err := tbl.get(first)
	require.NoError(t, err)
	assert.Equal(t, 2, e.refs)
	assert.Equal(t, 1, e.store.refs, "store refs count entries, not opens")
	assert.Equal(t, 1, tbl.live)
}

func Test_DescriptorTable_Returns_ErrTableFull_When_All_Slots_Used(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	tbl := newDescriptorTable(0, 2)

	_, _, err := tbl.openOrCreate(reg, "a", true)
	require.NoError(t, err)
	_, _, err = tbl.openOrCreate(reg, "b", true)
	require.NoError(t, err)

	fd, _, err := tbl.openOrCreate(reg, "c", true)
	require.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, Failure, fd)

	// The registry mutation done before the capacity check stays.
	_, lookupErr := reg.lookup("c")
	require.NoError(t, lookupErr)

	// An already-open name still resolves on a full table.
	fd, reused, err := tbl.openOrCreate(reg, "a", false)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, 0, fd)
}

func Test_DescriptorTable_Close_Frees_Slot_Only_After_Last_Reference(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	tbl := newDescriptorTable(DefaultReserved, 2)

	fd, _, err := tbl.openOrCreate(reg, "a", true)
	require.NoError(t, err)
	_, _, err = tbl.openOrCreate(reg, "a", false)
	require.NoError(t, err)

	freed, _, err := tbl.close(fd)
	require.NoError(t, err)
	assert.False(t, freed)

	_, err = tbl.get(fd)
	require.NoError(t, err, "descriptor should stay valid while referenced")

	freed, _, err = tbl.close(fd)
	require.NoError(t, err)
	assert.True(t, freed)

	_, err = tbl.get(fd)
	require.ErrorIs(t, err, ErrBadDescriptor)

	_, _, err = tbl.close(fd)
	require.ErrorIs(t, err, ErrBadDescriptor)
}

func Test_DescriptorTable_Get_Returns_ErrBadDescriptor_When_Out_Of_Range(t *testing.T) {
	t.Parallel()

	tbl := newDescriptorTable(DefaultReserved, DefaultCapacity)

	for _, fd := range []int{-1, 0, 1, DefaultReserved + DefaultCapacity, 1 << 20} {
		t.Run(fmt.Sprint(fd), func(t *testing.T) {
			t.Parallel()

			_, err := tbl.get(fd)
			require.ErrorIs(t, err, ErrBadDescriptor)
		})
	}
}

func Test_DescriptorTable_Discards_Store_On_Last_Close_When_Pending_Delete(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	tbl := newDescriptorTable(DefaultReserved, 2)

	fd, _, err := tbl.openOrCreate(reg, "a", true)
	require.NoError(t, err)

	e, err := tbl.get(fd)
	require.NoError(t, err)

	_, err = e.store.write([]byte("payload"))
	require.NoError(t, err)

	deferred, err := reg.unlink("a")
	require.NoError(t, err)
	assert.True(t, deferred)

	tbl.detach("a")

	_, ok := tbl.byNameEntry("a")
	assert.False(t, ok, "detached entry must not be reachable by name")

	freed, discarded, err := tbl.close(fd)
	require.NoError(t, err)
	assert.True(t, freed)
	assert.True(t, discarded)
	assert.True(t, e.store.discarded)
}

func Test_Registry_Create_Truncates_When_Name_Exists(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	s := reg.load("a", []byte("old contents"))

	again := reg.create("a")

	assert.Same(t, s, again)
	assert.Zero(t, again.size())
}

func Test_Registry_Unlink_Discards_Now_When_Unreferenced(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	s := reg.load("a", []byte("bytes"))

	deferred, err := reg.unlink("a")
	require.NoError(t, err)
	assert.False(t, deferred)
	assert.True(t, s.discarded)

	_, err = reg.lookup("a")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.unlink("a")
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_Registry_Names_Are_Sorted(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	reg.create("c")
	reg.create("a")
	reg.create("b")

	assert.Equal(t, []string{"a", "b", "c"}, reg.names())
}
