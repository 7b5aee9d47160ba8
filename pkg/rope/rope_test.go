package rope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteOffsetRoundTrip(t *testing.T) {
	b := New([]byte("line one\nline two\nline three"))

	off, err := b.ByteOffset(Position{Line: 1, Character: 5})
	require.NoError(t, err)
	assert.Equal(t, len("line one\n")+5, off)

	pos, err := b.PositionAt(off)
	require.NoError(t, err)
	assert.Equal(t, Position{Line: 1, Character: 5}, pos)
}

func TestEditSplices(t *testing.T) {
	b := New([]byte("<?php\n$x = 1;\n"))
	err := b.Edit(Range{
		Start: Position{Line: 1, Character: 5},
		End:   Position{Line: 1, Character: 6},
	}, []byte("2"))
	require.NoError(t, err)
	assert.Equal(t, "<?php\n$x = 2;\n", b.String())
}

func TestEditOutOfRange(t *testing.T) {
	b := New([]byte("short"))
	err := b.Edit(Range{
		Start: Position{Line: 5, Character: 0},
		End:   Position{Line: 5, Character: 1},
	}, []byte("x"))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReplaceWholesale(t *testing.T) {
	b := New([]byte("old"))
	b.Replace([]byte("new content\nwith two lines"))
	assert.Equal(t, "new content\nwith two lines", b.String())
	assert.Equal(t, 2, b.LineCount())
}

func TestEmptyBuffer(t *testing.T) {
	b := New(nil)
	assert.Equal(t, 1, b.LineCount())
	pos, err := b.PositionAt(0)
	require.NoError(t, err)
	assert.Equal(t, Position{}, pos)
}

func TestMultiByteCharacters(t *testing.T) {
	b := New([]byte("$name = 'café';"))
	off, err := b.ByteOffset(Position{Line: 0, Character: 13})
	require.NoError(t, err)
	pos, err := b.PositionAt(off)
	require.NoError(t, err)
	assert.Equal(t, 13, pos.Character)
}
