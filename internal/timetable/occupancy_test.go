package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccupancyReserve(t *testing.T) {
	occ := NewOccupancy()
	teacher := "t1"

	assert.True(t, occ.IsFree(&teacher, 0, 1))
	require.NoError(t, occ.Reserve(&teacher, 0, 1))
	assert.False(t, occ.IsFree(&teacher, 0, 1))
	assert.True(t, occ.IsFree(&teacher, 0, 2))
	assert.True(t, occ.IsFree(&teacher, 1, 1))

	err := occ.Reserve(&teacher, 0, 1)
	require.Error(t, err)
	var occupied *AlreadyOccupiedError
	require.True(t, errors.As(err, &occupied))
	assert.Equal(t, "t1", occupied.TeacherID)
	assert.Equal(t, 1, occ.Len())
}

func TestOccupancyPlaceholderAlwaysFree(t *testing.T) {
	occ := NewOccupancy()
	empty := ""

	require.NoError(t, occ.Reserve(nil, 0, 1))
	require.NoError(t, occ.Reserve(nil, 0, 1))
	require.NoError(t, occ.Reserve(&empty, 0, 1))
	assert.True(t, occ.IsFree(nil, 0, 1))
	assert.Equal(t, 0, occ.Len())
}

func TestOccupancyBlockIsIdempotent(t *testing.T) {
	occ := NewOccupancy()
	teacher := "t1"

	occ.Block(&teacher, 1, 3)
	occ.Block(&teacher, 1, 3)
	occ.Block(nil, 1, 3)
	assert.False(t, occ.IsFree(&teacher, 1, 3))
	assert.Equal(t, 1, occ.Len())

	err := occ.Reserve(&teacher, 1, 3)
	var occupied *AlreadyOccupiedError
	require.True(t, errors.As(err, &occupied))
}
