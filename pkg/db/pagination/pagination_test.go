package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ id int64 }

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*row{{id: 1}, {id: 2}, {id: 3}}

	page, info, err := BuildCursorPageInfo(rows, 2, func(r *row) Cursor { return Cursor{ID: r.id} })
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor.ID)

	page, info, err = BuildCursorPageInfo(rows, 5, func(r *row) Cursor { return Cursor{ID: r.id} })
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorEmpty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Zero(t, cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}
