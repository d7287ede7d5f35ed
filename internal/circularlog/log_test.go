package circularlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendString(l *Log, s string) {
	l.Append(NewEntry([]byte(s)))
}

func TestAppendAndLocate_S1(t *testing.T) {
	l := New(10)
	appendString(l, "hello\n")

	e, off, ok := l.Locate(0)
	require.True(t, ok)
	assert.Equal(t, 0, off)
	assert.Equal(t, "hello\n", string(e.Bytes()))

	_, _, ok = l.Locate(6)
	assert.False(t, ok, "offset at total_size() is EOF, not a hit")
}

func TestWrapAround_S2(t *testing.T) {
	l := New(3)
	appendString(l, "a\n")
	appendString(l, "b\n")
	appendString(l, "c\n")
	appendString(l, "d\n")

	require.Equal(t, 6, l.TotalSize())
	require.True(t, l.full)

	var got []byte
	offset := 0
	for {
		e, b, ok := l.Locate(offset)
		if !ok {
			break
		}
		got = append(got, e.Bytes()[b])
		offset++
	}
	assert.Equal(t, "b\nc\nd\n", string(got))
}

func TestIoctlSeek_S4(t *testing.T) {
	l := New(3)
	appendString(l, "a\n")
	appendString(l, "b\n")
	appendString(l, "c\n")
	appendString(l, "d\n")

	// After S2, cmd=1 (oldest-first logical index) is "c\n".
	off, err := l.CmdToOffset(1)
	require.NoError(t, err)
	assert.Equal(t, 2, off)

	var got []byte
	for o := off; ; o++ {
		e, b, ok := l.Locate(o)
		if !ok {
			break
		}
		got = append(got, e.Bytes()[b])
	}
	assert.Equal(t, "c\nd\n", string(got))
}

func TestPartialAssemblyIsCallerConcern_S3(t *testing.T) {
	// The Log only ever sees committed entries; the framer is responsible
	// for merging "foo" + "bar\n" into one "foobar\n" entry before Append.
	l := New(10)
	appendString(l, "foobar\n")
	assert.Equal(t, 1, l.Count())
	assert.Equal(t, 7, l.TotalSize())
}

func TestCmdToOffsetOutOfRange(t *testing.T) {
	l := New(3)
	_, err := l.CmdToOffset(0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	appendString(l, "a\n")
	_, err = l.CmdToOffset(1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = l.CmdToOffset(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReplaySequenceKeepsLastCAP(t *testing.T) {
	const cap_ = 4
	l := New(cap_)
	inputs := []string{"1\n", "2\n", "3\n", "4\n", "5\n", "6\n", "7\n"}
	for _, s := range inputs {
		appendString(l, s)
	}
	want := inputs[len(inputs)-cap_:]
	var gotSizes []int
	l.ForEach(func(_ int, e *Entry) bool {
		gotSizes = append(gotSizes, e.Size())
		return true
	})
	require.Len(t, gotSizes, cap_)
	for i, s := range want {
		assert.Equal(t, len(s), gotSizes[i])
	}
}

func TestEntryInvariants(t *testing.T) {
	l := New(5)
	appendString(l, "hello\n")
	appendString(l, "world\n")

	l.ForEach(func(_ int, e *Entry) bool {
		b := e.Bytes()
		require.NotEmpty(t, b)
		assert.Equal(t, byte('\n'), b[len(b)-1])
		for _, c := range b[:len(b)-1] {
			assert.NotEqual(t, byte('\n'), c)
		}
		return true
	})
}

func TestTeardownEmpties(t *testing.T) {
	l := New(3)
	appendString(l, "a\n")
	appendString(l, "b\n")
	l.Teardown()
	assert.Equal(t, 0, l.Count())
	assert.Equal(t, 0, l.TotalSize())
	_, _, ok := l.Locate(0)
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	l := New(3)
	appendString(l, "ab\n")
	appendString(l, "cde\n")
	assert.Equal(t, []int{3, 4}, l.Snapshot())
}

func TestEntryAt(t *testing.T) {
	l := New(3)
	appendString(l, "a\n")
	appendString(l, "bb\n")

	e, err := l.EntryAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(e.Bytes()))

	e, err = l.EntryAt(1)
	require.NoError(t, err)
	assert.Equal(t, "bb\n", string(e.Bytes()))

	_, err = l.EntryAt(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
