package ringq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	q := New[int](8)
	for i := 0; i < 5; i++ {
		rec, err := q.Create()
		require.NoError(t, err)
		*rec = i * 10
	}
	assert.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		rec, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i*10, *rec)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.True(t, q.Empty())
}

func TestFIFOAcrossWrap(t *testing.T) {
	q := New[int](4)
	next := 0
	popped := 0
	// drive the ring over its seam several times
	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			rec, err := q.Create()
			require.NoError(t, err)
			*rec = next
			next++
		}
		for i := 0; i < 3; i++ {
			rec, ok := q.Pop()
			require.True(t, ok)
			require.Equal(t, popped, *rec)
			popped++
		}
	}
	assert.Equal(t, next, popped)
}

func TestFull(t *testing.T) {
	q := New[byte](3)
	for i := 0; i < 3; i++ {
		_, err := q.Create()
		require.NoError(t, err)
	}
	_, err := q.Create()
	assert.ErrorIs(t, err, ErrQueueFull)

	// popping one frees one reservation
	_, ok := q.Pop()
	require.True(t, ok)
	_, err = q.Create()
	assert.NoError(t, err)
}

func TestUndoCreate(t *testing.T) {
	q := New[int](4)
	a, err := q.Create()
	require.NoError(t, err)
	*a = 1

	b, err := q.Create()
	require.NoError(t, err)
	*b = 2

	q.UndoCreate(b)
	assert.Equal(t, 1, q.Len())

	// the rolled back record is not observable
	rec, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, *rec)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestUndoRestoresExactState(t *testing.T) {
	q := New[int](2)
	_, err := q.Create()
	require.NoError(t, err)
	_, err = q.Create()
	require.NoError(t, err)
	// full; undo then create must succeed again exactly once
	_, err = q.Create()
	assert.ErrorIs(t, err, ErrQueueFull)

	_, ok := q.Pop()
	require.True(t, ok)
	r2, err := q.Create()
	require.NoError(t, err)
	q.UndoCreate(r2)
	r3, err := q.Create()
	require.NoError(t, err)
	assert.Same(t, r2, r3, "undo must hand back the same reservation")
}

func TestUndoMisusePanics(t *testing.T) {
	q := New[int](4)
	a, err := q.Create()
	require.NoError(t, err)
	_, err = q.Create()
	require.NoError(t, err)

	assert.Panics(t, func() { q.UndoCreate(a) }, "undo of non-top record")

	q.Clear()
	assert.Panics(t, func() { q.UndoCreate(a) }, "undo on empty queue")
}

func TestUndoAcrossWrapSeam(t *testing.T) {
	q := New[int](3)
	// park the reservation cursor on the last index
	for i := 0; i < 2; i++ {
		_, err := q.Create()
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, ok := q.Pop()
		require.True(t, ok)
	}
	// this create wraps end to 0; undo must step backwards over the seam
	rec, err := q.Create()
	require.NoError(t, err)
	q.UndoCreate(rec)
	assert.True(t, q.Empty())

	rec2, err := q.Create()
	require.NoError(t, err)
	assert.Same(t, rec, rec2)
}

func TestClear(t *testing.T) {
	q := New[string](4)
	rec, err := q.Create()
	require.NoError(t, err)
	*rec = "pending"

	q.Clear()
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestCreateZeroesRecord(t *testing.T) {
	q := New[[]byte](2)
	rec, err := q.Create()
	require.NoError(t, err)
	*rec = []byte("stale")
	_, ok := q.Pop()
	require.True(t, ok)

	_, err = q.Create()
	require.NoError(t, err)
	// this create wraps onto the record that held "stale"
	reused, err := q.Create()
	require.NoError(t, err)
	assert.Same(t, rec, reused)
	assert.Nil(t, *reused)
}

func TestBadCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

func BenchmarkCreatePop(b *testing.B) {
	q := New[[2]int64](1024)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec, _ := q.Create()
		rec[0] = int64(i)
		q.Pop()
	}
}
