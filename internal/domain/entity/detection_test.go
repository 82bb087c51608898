package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterByConfidence(t *testing.T) {
	dets := []Detection{{Label: "a", Score: 0.1}, {Label: "b", Score: 0.25}, {Label: "c", Score: 0.9}}
	kept := FilterByConfidence(dets, 0.25)
	require.Len(t, kept, 2)
	require.Equal(t, "b", kept[0].Label)
}

func TestMaskSample(t *testing.T) {
	m := &Mask{Width: 2, Height: 1, Values: []float32{0, 1}}
	require.InDelta(t, 0.0, m.Sample(0, 0.5), 1e-9)
	require.InDelta(t, 1.0, m.Sample(1, 0.5), 1e-9)
	require.InDelta(t, 0.5, m.Sample(0.5, 0.5), 1e-9)

	var empty *Mask
	require.Equal(t, 0.0, empty.Sample(0.5, 0.5))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	require.Equal(t, MethodPrimary, m)

	m, err = ParseMethod(" Secondary ")
	require.NoError(t, err)
	require.Equal(t, MethodSecondary, m)

	_, err = ParseMethod("yolo")
	require.Error(t, err)
}
