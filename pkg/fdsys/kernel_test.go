package fdsys_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fdsys/pkg/fdsys"
)

func newKernel(t *testing.T) *fdsys.Kernel {
	t.Helper()

	k, err := fdsys.New(fdsys.DefaultOptions())
	require.NoError(t, err, "New should accept the default options")

	return k
}

func Test_New_Returns_ErrInvalidOptions_When_Options_Out_Of_Range(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		opts fdsys.Options
	}{
		{name: "ZeroCapacity", opts: fdsys.Options{Capacity: 0, Reserved: 2, MaxNameLength: 1}},
		{name: "NegativeReserved", opts: fdsys.Options{Capacity: 1, Reserved: -1, MaxNameLength: 1}},
		{name: "ZeroMaxNameLength", opts: fdsys.Options{Capacity: 1, Reserved: 0, MaxNameLength: 0}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := fdsys.New(testCase.opts)
			require.ErrorIs(t, err, fdsys.ErrInvalidOptions)
		})
	}
}

func Test_Kernel_Create_Returns_First_Descriptor_When_Table_Empty(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Create("a.txt")
	require.NoError(t, err)
	assert.Equal(t, fdsys.DefaultReserved, fd)
	assert.Equal(t, fdsys.DefaultReserved, k.FirstDescriptor())
	assert.Equal(t, fdsys.DefaultCapacity, k.Capacity())
}

func Test_Kernel_Open_Shares_Descriptor_And_Counts_References(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Create("a.txt")
	require.NoError(t, err)

	again, err := k.Open("a.txt")
	require.NoError(t, err)
	require.Equal(t, fd, again)

	want := []fdsys.DescriptorInfo{{FD: fd, Name: "a.txt", Refs: 2}}
	if diff := cmp.Diff(want, k.Descriptors()); diff != "" {
		t.Fatalf("descriptors mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, k.Close(fd))

	want[0].Refs = 1
	if diff := cmp.Diff(want, k.Descriptors()); diff != "" {
		t.Fatalf("descriptors after first close mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, k.Close(fd))
	assert.Empty(t, k.Descriptors())

	err = k.Close(fd)
	require.ErrorIs(t, err, fdsys.ErrBadDescriptor)
}

func Test_Kernel_Create_Does_Not_Truncate_When_Name_Already_Open(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Create("a.txt")
	require.NoError(t, err)

	_, err = k.Write(fd, []byte("keep me"), 20)
	require.NoError(t, err)

	again, err := k.Create("a.txt")
	require.NoError(t, err)
	assert.Equal(t, fd, again)

	data, err := k.Snapshot("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func Test_Kernel_Create_Truncates_When_Name_Exists_But_Closed(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	require.NoError(t, k.Load("a.txt", []byte("old")))

	fd, err := k.Create("a.txt")
	require.NoError(t, err)

	info, err := k.Stat("a.txt")
	require.NoError(t, err)
	assert.Equal(t, fdsys.FileInfo{Name: "a.txt", Size: 0, Open: true}, info)

	n, err := k.Read(fd, make([]byte, 8), 8)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func Test_Kernel_Open_Returns_ErrNotFound_When_Name_Missing(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Open("DNE.txt")
	require.ErrorIs(t, err, fdsys.ErrNotFound)
	assert.Equal(t, fdsys.Failure, fd)
	assert.Empty(t, k.Files(), "failed open must not register the name")
}

func Test_Kernel_Write_Clamps_To_Source_Length(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		src   []byte
		count int
		want  int
		err   error
	}{
		{name: "ShorterSource", src: []byte("hello"), count: 20, want: 5},
		{name: "LongerSource", src: bytes.Repeat([]byte("a"), 57), count: 20, want: 20},
		{name: "EmptySource", src: []byte(""), count: 20, want: 0},
		{name: "ZeroCount", src: []byte("hello"), count: 0, want: 0},
		{name: "NilSource", src: nil, count: 20, want: fdsys.Failure, err: fdsys.ErrInvalidArgument},
		{name: "NegativeCount", src: []byte("hello"), count: -1, want: fdsys.Failure, err: fdsys.ErrInvalidArgument},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			k := newKernel(t)

			fd, err := k.Create("a.txt")
			require.NoError(t, err)

			n, err := k.Write(fd, testCase.src, testCase.count)
			if testCase.err != nil {
				require.ErrorIs(t, err, testCase.err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, testCase.want, n)

			info, err := k.Stat("a.txt")
			require.NoError(t, err)
			assert.Equal(t, max(testCase.want, 0), info.Size)
		})
	}
}

func Test_Kernel_Read_Clamps_To_Remaining_And_Destination(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		bufSize int
		nilBuf  bool
		count   int
		want    int
		cursor  int
		err     error
	}{
		{name: "AllRemaining", bufSize: 50, count: 50, want: 42, cursor: 42},
		{name: "LessThanRemaining", bufSize: 20, count: 20, want: 20, cursor: 20},
		{name: "CountExceedsDestination", bufSize: 20, count: 50, want: 20, cursor: 20},
		{name: "ZeroCount", bufSize: 20, count: 0, want: 0, cursor: 0},
		{name: "NilDestination", nilBuf: true, count: 20, want: fdsys.Failure, cursor: 0, err: fdsys.ErrInvalidArgument},
		{name: "NegativeCount", bufSize: 20, count: -5, want: fdsys.Failure, cursor: 0, err: fdsys.ErrInvalidArgument},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			k := newKernel(t)
			require.NoError(t, k.Load("a.txt", []byte(strings.Repeat("aaaaaaaaaaaaa\n", 3))))

			fd, err := k.Open("a.txt")
			require.NoError(t, err)

			var buf []byte
			if !testCase.nilBuf {
				buf = make([]byte, testCase.bufSize)
			}

			n, err := k.Read(fd, buf, testCase.count)
			if testCase.err != nil {
				require.ErrorIs(t, err, testCase.err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, testCase.want, n)
			assert.Equal(t, testCase.cursor, k.Descriptors()[0].Cursor)
		})
	}
}

func Test_Kernel_Read_And_Write_Return_ErrBadDescriptor_When_Not_Open(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	for _, fd := range []int{-1, 0, 1, 2, 15, 16} {
		_, err := k.Read(fd, make([]byte, 4), 4)
		require.ErrorIs(t, err, fdsys.ErrBadDescriptor, "read fd=%d", fd)

		_, err = k.Write(fd, []byte("x"), 1)
		require.ErrorIs(t, err, fdsys.ErrBadDescriptor, "write fd=%d", fd)
	}
}

func Test_Kernel_Cursor_Resets_When_Reopened_After_Full_Close(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Create("a.txt")
	require.NoError(t, err)

	chunk := []byte("aaaaaaaaaaaaa\n")
	total := 0

	for range 3 {
		n, writeErr := k.Write(fd, chunk, 20)
		require.NoError(t, writeErr)

		total += n
	}

	require.Equal(t, 42, total)
	require.NoError(t, k.Close(fd))

	fd, err = k.Open("a.txt")
	require.NoError(t, err)

	buf := make([]byte, 50)

	n, err := k.Read(fd, buf, 50)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.Equal(t, strings.Repeat(string(chunk), 3), string(buf[:n]))
}

func Test_Kernel_Cursor_Is_Shared_While_Descriptor_Stays_Open(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Create("a.txt")
	require.NoError(t, err)

	_, err = k.Write(fd, []byte("abcdef"), 6)
	require.NoError(t, err)

	// A second open of the same name shares the cursor, which sits at EOF.
	again, err := k.Open("a.txt")
	require.NoError(t, err)
	require.Equal(t, fd, again)

	n, err := k.Read(again, make([]byte, 6), 6)
	require.NoError(t, err)
	assert.Zero(t, n, "cursor must not reset while the descriptor stays open")
}

func Test_Kernel_Create_Returns_ErrTableFull_When_Capacity_Reached(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	sum := 0

	for i := range fdsys.DefaultCapacity {
		fd, err := k.Create(fmt.Sprintf("file%02d.txt", i))
		require.NoError(t, err)

		sum += fd
	}

	assert.Equal(t, 119, sum, "descriptors 2..15 should be handed out in order")

	before := k.Descriptors()

	fd, err := k.Create("overflow.txt")
	require.ErrorIs(t, err, fdsys.ErrTableFull)
	assert.Equal(t, fdsys.Failure, fd)

	if diff := cmp.Diff(before, k.Descriptors()); diff != "" {
		t.Fatalf("failed create disturbed the table (-before +after):\n%s", diff)
	}

	// The name was created even though no descriptor was granted.
	info, err := k.Stat("overflow.txt")
	require.NoError(t, err)
	assert.False(t, info.Open)

	require.NoError(t, k.Close(7))

	fd, err = k.Create("fresh.txt")
	require.NoError(t, err)
	assert.Equal(t, 7, fd)
}

func Test_Kernel_Create_Truncates_Existing_File_When_Table_Full(t *testing.T) {
	t.Parallel()

	opts := fdsys.DefaultOptions()
	opts.Capacity = 1

	k, err := fdsys.New(opts)
	require.NoError(t, err)

	require.NoError(t, k.Load("victim.txt", []byte("precious")))

	_, err = k.Create("holder.txt")
	require.NoError(t, err)

	_, err = k.Create("victim.txt")
	require.ErrorIs(t, err, fdsys.ErrTableFull)

	data, err := k.Snapshot("victim.txt")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func Test_Kernel_Open_Leaves_Contents_When_Table_Full(t *testing.T) {
	t.Parallel()

	opts := fdsys.DefaultOptions()
	opts.Capacity = 1

	k, err := fdsys.New(opts)
	require.NoError(t, err)

	require.NoError(t, k.Load("kept.txt", []byte("precious")))

	_, err = k.Create("holder.txt")
	require.NoError(t, err)

	_, err = k.Open("kept.txt")
	require.ErrorIs(t, err, fdsys.ErrTableFull)

	data, err := k.Snapshot("kept.txt")
	require.NoError(t, err)
	assert.Equal(t, "precious", string(data))
}

func Test_Kernel_Unlink_Defers_Delete_When_Descriptor_Open(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	fd, err := k.Create("a.txt")
	require.NoError(t, err)

	_, err = k.Write(fd, []byte("still here"), 10)
	require.NoError(t, err)

	require.NoError(t, k.Unlink("a.txt"))

	// Name is gone at once.
	_, err = k.Open("a.txt")
	require.ErrorIs(t, err, fdsys.ErrNotFound)
	assert.Empty(t, k.Files())

	// Bytes are still reachable through the descriptor.
	descs := k.Descriptors()
	require.Len(t, descs, 1)
	assert.True(t, descs[0].Unlinked)
	assert.Equal(t, 10, descs[0].Size)

	_, err = k.Write(fd, []byte("!"), 1)
	require.NoError(t, err)

	require.NoError(t, k.Close(fd))
	assert.Empty(t, k.Descriptors())

	_, err = k.Read(fd, make([]byte, 4), 4)
	require.ErrorIs(t, err, fdsys.ErrBadDescriptor)
}

func Test_Kernel_Create_Makes_New_File_When_Name_Unlinked_While_Open(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	oldFD, err := k.Create("a.txt")
	require.NoError(t, err)

	_, err = k.Write(oldFD, []byte("old"), 3)
	require.NoError(t, err)

	require.NoError(t, k.Unlink("a.txt"))

	newFD, err := k.Create("a.txt")
	require.NoError(t, err)
	assert.NotEqual(t, oldFD, newFD)

	_, err = k.Write(newFD, []byte("new!"), 4)
	require.NoError(t, err)

	require.NoError(t, k.Close(oldFD))

	data, err := k.Snapshot("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "new!", string(data), "closing the unlinked descriptor must not touch the new file")

	want := []fdsys.DescriptorInfo{{FD: newFD, Name: "a.txt", Refs: 1, Cursor: 4, Size: 4}}
	if diff := cmp.Diff(want, k.Descriptors()); diff != "" {
		t.Fatalf("descriptors mismatch (-want +got):\n%s", diff)
	}
}

func Test_Kernel_Unlink_Returns_ErrNotFound_When_Name_Missing(t *testing.T) {
	t.Parallel()

	k := newKernel(t)

	err := k.Unlink("missing.txt")
	require.ErrorIs(t, err, fdsys.ErrNotFound)
}

func Test_Kernel_Rejects_Invalid_Names(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	long := strings.Repeat("n", fdsys.DefaultMaxNameLength+1)

	for _, name := range []string{"", long} {
		_, err := k.Create(name)
		require.ErrorIs(t, err, fdsys.ErrInvalidArgument)

		_, err = k.Open(name)
		require.ErrorIs(t, err, fdsys.ErrInvalidArgument)

		err = k.Unlink(name)
		require.ErrorIs(t, err, fdsys.ErrInvalidArgument)

		err = k.Load(name, []byte("x"))
		require.ErrorIs(t, err, fdsys.ErrInvalidArgument)
	}

	assert.Empty(t, k.Files())

	fd, err := k.Create(strings.Repeat("n", fdsys.DefaultMaxNameLength))
	require.NoError(t, err, "a name at the limit is accepted")
	assert.Equal(t, fdsys.DefaultReserved, fd)
}

func Test_Kernel_Files_Lists_Registry_Sorted(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	require.NoError(t, k.Load("b.txt", []byte("bb")))
	require.NoError(t, k.Load("a.txt", []byte("a")))

	_, err := k.Open("b.txt")
	require.NoError(t, err)

	want := []fdsys.FileInfo{
		{Name: "a.txt", Size: 1},
		{Name: "b.txt", Size: 2, Open: true},
	}

	if diff := cmp.Diff(want, k.Files()); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
}

func Test_Kernel_Logs_Failures_At_Debug_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	opts := fdsys.DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	k, err := fdsys.New(opts)
	require.NoError(t, err)

	_, err = k.Open("nope.txt")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "open failed")
	assert.Contains(t, out, "name=nope.txt")
	assert.Contains(t, out, "fdsys: not found")
}
