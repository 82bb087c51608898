package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBandSelection_Validate(t *testing.T) {
	require.NoError(t, BandSelection{Red: 0, Nir: 3}.Validate(4))
	require.NoError(t, BandSelection{Red: 0, Nir: 2}.Validate(3))

	require.Error(t, BandSelection{Red: 5, Nir: 1}.Validate(3))
	require.Error(t, BandSelection{Red: 0, Nir: 3}.Validate(3))
	require.Error(t, BandSelection{Red: -1, Nir: 1}.Validate(3))
	require.Error(t, BandSelection{Red: 0, Nir: 0}.Validate(1))
}

func TestStackRasters(t *testing.T) {
	rgb := NewRaster(2, 1, 3)
	rgb.Set(1, 0, 2, 30)
	nir := NewRaster(2, 1, 1)
	nir.Set(1, 0, 0, 200)

	stacked, err := StackRasters(rgb, nir)
	require.NoError(t, err)
	require.Equal(t, 4, stacked.Channels)
	require.Equal(t, 30.0, stacked.At(1, 0, 2))
	require.Equal(t, 200.0, stacked.At(1, 0, 3))

	_, err = StackRasters(rgb, NewRaster(3, 1, 1))
	require.Error(t, err)
}
