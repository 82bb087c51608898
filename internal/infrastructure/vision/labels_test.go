package vision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCocoLabel(t *testing.T) {
	require.Len(t, cocoLabels, 90)
	require.Equal(t, "person", cocoLabel(0))
	require.Equal(t, "potted plant", cocoLabel(63))
	require.Equal(t, "toothbrush", cocoLabel(89))
	require.Equal(t, "class_11", cocoLabel(11))
	require.Equal(t, "class_120", cocoLabel(120))
}

func TestMaskRCNNStubOrBackendMethod(t *testing.T) {
	b := NewMaskRCNNBackend("model.pb", "config.pbtxt")
	require.Equal(t, "secondary", string(b.Method()))
}
