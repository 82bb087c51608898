package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTask_TrimsTitle(t *testing.T) {
	task, err := NewTask(1, "  field  ", " notes ")
	require.NoError(t, err)
	require.Equal(t, "field", task.Title)
	require.Equal(t, "notes", task.Description)

	_, err = NewTask(1, " ", "")
	require.ErrorIs(t, err, ErrEmptyTitle)
}

func TestTask_Layers(t *testing.T) {
	task := &Task{BandPaths: []string{"nir.png"}}
	require.Nil(t, task.Layers())

	task.PhotoPath = "rgb.png"
	require.Equal(t, []string{"rgb.png", "nir.png"}, task.Layers())
}

func TestTask_CloneCopiesBands(t *testing.T) {
	task := Task{PhotoPath: "rgb.png", BandPaths: []string{"nir.png"}}
	cp := task.Clone()
	cp.BandPaths[0] = "swir.png"

	require.Equal(t, "nir.png", task.BandPaths[0])
}
