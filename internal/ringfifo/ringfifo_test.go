package ringfifo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadRoundTrip(t *testing.T) {
	f := New(8)
	n := f.Write([]byte{1, 2, 3})
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, f.Occupied())

	out := make([]byte, 3)
	n = f.Read(out)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, out)
	assert.Equal(t, 0, f.Occupied())
}

func TestWriteStopsAtCapacity(t *testing.T) {
	f := New(4) // usable capacity is len-1
	n := f.Write([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, f.Space())
}

func TestWrapAround(t *testing.T) {
	f := New(4)
	f.Write([]byte{1, 2, 3})
	out := make([]byte, 2)
	f.Read(out)
	f.Write([]byte{4, 5})
	rest := make([]byte, 3)
	n := f.Read(rest)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{3, 4, 5}, rest[:n])
}

func TestPeekDoesNotConsume(t *testing.T) {
	f := New(8)
	f.Write([]byte{1, 2, 3, 4})
	peeked := make([]byte, 2)
	n := f.Peek(peeked, 1)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{2, 3}, peeked)
	assert.Equal(t, 4, f.Occupied())
}

func TestDiscard(t *testing.T) {
	f := New(8)
	f.Write([]byte{1, 2, 3, 4})
	f.Discard(2)
	out := make([]byte, 2)
	f.Read(out)
	assert.Equal(t, []byte{3, 4}, out)
}
