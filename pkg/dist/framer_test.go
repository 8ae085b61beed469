package dist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramerPartialPrefixUnchanged(t *testing.T) {
	f := NewFramer()

	for _, buf := range [][]byte{{}, {0x00}} {
		packet, rest, ok := f.Consume(buf)
		require.False(t, ok)
		require.Nil(t, packet)
		require.Equal(t, buf, rest)
	}
}

func TestFramerDeclaredLengthExceedsBuffered(t *testing.T) {
	f := NewFramer()
	buf := []byte{0x00, 0x05, 'a', 'b'} // declares 5 bytes, only 2 present

	packet, rest, ok := f.Consume(buf)
	require.False(t, ok)
	require.Nil(t, packet)
	require.Equal(t, buf, rest)
}

func TestFramerConsumesOneCompletePacket(t *testing.T) {
	f := NewFramer()
	buf := []byte{0x00, 0x03, 'a', 'b', 'c', 0x00, 0x01, 'x'}

	packet, rest, ok := f.Consume(buf)
	require.True(t, ok)
	require.Equal(t, []byte("abc"), packet)
	require.Equal(t, []byte{0x00, 0x01, 'x'}, rest)

	packet2, rest2, ok2 := f.Consume(rest)
	require.True(t, ok2)
	require.Equal(t, []byte("x"), packet2)
	require.Empty(t, rest2)
}

func TestFramerFourBytePrefixAfterFlip(t *testing.T) {
	f := NewFramer()
	f.SetPrefixWidth(4)

	for _, buf := range [][]byte{{}, {0}, {0, 0}, {0, 0, 0}} {
		_, rest, ok := f.Consume(buf)
		require.False(t, ok)
		require.Equal(t, buf, rest)
	}

	buf := []byte{0x00, 0x00, 0x00, 0x02, 'h', 'i'}
	packet, rest, ok := f.Consume(buf)
	require.True(t, ok)
	require.Equal(t, []byte("hi"), packet)
	require.Empty(t, rest)
}

func TestFramerEmptyFrame(t *testing.T) {
	f := NewFramer()
	f.SetPrefixWidth(4)

	packet, rest, ok := f.Consume([]byte{0, 0, 0, 0})
	require.True(t, ok)
	require.Empty(t, packet)
	require.Empty(t, rest)
}
