package framer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aesdlog/aesdlogd/internal/circularlog"
)

func TestPartialAssembly_S3(t *testing.T) {
	log := circularlog.New(10)
	f := New(log, 1024)

	n, _, err := f.Push([]byte("foo"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, log.Count())
	assert.Equal(t, 3, f.Pending())

	n, _, err = f.Push([]byte("bar\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Equal(t, 1, log.Count())
	assert.Equal(t, 0, f.Pending())

	e, err := log.EntryAt(0)
	require.NoError(t, err)
	assert.Equal(t, "foobar\n", string(e.Bytes()))
}

func TestMultiLineSingleCallMatchesThreeCalls(t *testing.T) {
	logA := circularlog.New(10)
	fA := New(logA, 1024)
	_, _, err := fA.Push([]byte("a\nb\nc\n"))
	require.NoError(t, err)

	logB := circularlog.New(10)
	fB := New(logB, 1024)
	for _, s := range []string{"a\n", "b\n", "c\n"} {
		_, _, err := fB.Push([]byte(s))
		require.NoError(t, err)
	}

	require.Equal(t, logA.Count(), logB.Count())
	assert.Equal(t, logA.Snapshot(), logB.Snapshot())
}

func TestNoNewlineDoesNotCommit(t *testing.T) {
	log := circularlog.New(10)
	f := New(log, 1024)
	_, _, err := f.Push([]byte("no newline here"))
	require.NoError(t, err)
	assert.Equal(t, 0, log.Count())
}

func TestFrameTooLargeResetsPending(t *testing.T) {
	log := circularlog.New(10)
	f := New(log, 8)

	_, _, err := f.Push([]byte("1234567"))
	require.NoError(t, err)
	assert.Equal(t, 7, f.Pending())

	_, _, err = f.Push([]byte("8"))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, 0, f.Pending(), "pending frame must be discarded on FrameTooLarge per spec.md OQ2")
	assert.Equal(t, 0, log.Count())
}

func TestAccumulateUpToMaxWriteThenFail(t *testing.T) {
	log := circularlog.New(10)
	f := New(log, 16)
	body := strings.Repeat("x", 16)
	_, _, err := f.Push([]byte(body))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, 0, log.Count())
}

func TestBytesConsumedEqualsInputLengthOnSuccess(t *testing.T) {
	log := circularlog.New(10)
	f := New(log, 1024)
	in := []byte("hello\nworld\n")
	n, _, err := f.Push(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
}

func TestEvictionCountOnFullLog(t *testing.T) {
	log := circularlog.New(2)
	f := New(log, 1024)

	_, evicted, err := f.Push([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, evicted, "log not yet full")

	_, evicted, err = f.Push([]byte("c\nd\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, evicted, "both commits evicted while already full")
}
