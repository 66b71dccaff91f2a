package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCoordinateLatitude(t *testing.T) {
	v, err := DecodeCoordinate("4807.038", "N")
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, v, 1e-4)

	v, err = DecodeCoordinate("4807.038", "S")
	require.NoError(t, err)
	assert.InDelta(t, -48.1173, v, 1e-4)
}

func TestDecodeCoordinateLongitude(t *testing.T) {
	v, err := DecodeCoordinate("01131.000", "E")
	require.NoError(t, err)
	assert.InDelta(t, 11.5166, v, 1e-4)

	v, err = DecodeCoordinate("01131.000", "W")
	require.NoError(t, err)
	assert.InDelta(t, -11.5166, v, 1e-4)
}

func TestDecodeCoordinateInvalid(t *testing.T) {
	_, err := DecodeCoordinate("x", "N")
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		value      float64
		isLatitude bool
	}{
		{48.1173, true},
		{-48.1173, true},
		{11.5166, false},
		{-11.5166, false},
		{0, true},
		{89.99999, true},
	}
	for _, c := range cases {
		raw, hemi := EncodeCoordinate(c.value, c.isLatitude)
		got, err := DecodeCoordinate(raw, hemi)
		require.NoError(t, err)
		assert.InDelta(t, c.value, got, 1e-5)
	}
}
