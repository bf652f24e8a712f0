package nmeasrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedIgnoresNonNMEALines(t *testing.T) {
	var d Decoder
	_, ok, err := d.Feed("not a sentence")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFeedCombinesGGAThenRMC(t *testing.T) {
	var d Decoder

	_, ok, err := d.Feed("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.NoError(t, err)
	assert.False(t, ok)

	fix, ok, err := d.Feed("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 545.4, fix.AltitudeM, 1e-6)
	assert.Greater(t, fix.LatitudeDeg, 0.0)
}

func TestFeedRejectsVoidFix(t *testing.T) {
	var d Decoder
	_, ok, err := d.Feed("$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*7D")
	require.NoError(t, err)
	assert.False(t, ok)
}
