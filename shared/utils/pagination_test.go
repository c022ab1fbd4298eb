package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetCursorRoundTrip(t *testing.T) {
	cursor := EncodeOffsetCursor(20, "actor:with:colons")
	offset, lastID, err := DecodeOffsetCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, 20, offset)
	assert.Equal(t, "actor:with:colons", lastID)

	assert.Empty(t, EncodeOffsetCursor(0, "x"))
	offset, lastID, err = DecodeOffsetCursor("")
	require.NoError(t, err)
	assert.Zero(t, offset)
	assert.Empty(t, lastID)
}

func TestDecodeOffsetCursor_Invalid(t *testing.T) {
	for _, cursor := range []string{"%%%", "bm9zZXBhcmF0b3I=", "LTE6eA=="} {
		_, _, err := DecodeOffsetCursor(cursor)
		assert.Error(t, err, cursor)
	}
}

func TestParseLimit(t *testing.T) {
	limit, err := ParseLimit("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, limit)

	limit, err = ParseLimit("1000")
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, limit)

	_, err = ParseLimit("0")
	assert.Error(t, err)
	_, err = ParseLimit("ten")
	assert.Error(t, err)
}

func TestPageStart(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	assert.Equal(t, 0, PageStart(ids, 0, ""))
	assert.Equal(t, 2, PageStart(ids, 2, "b"))
	assert.Equal(t, 3, PageStart(ids, 2, "c"), "list shifted, resume after lastID")
	assert.Equal(t, 2, PageStart(ids, 2, "gone"))
	assert.Equal(t, 4, PageStart(ids, 9, "gone"))
}
