package recorder

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteIMU(navtypes.IMU{TimeSec: 1.0, Acc: navtypes.Vec3{X: 1, Y: 2, Z: 3}, Gyro: navtypes.Vec3{X: 0.1}}))
	require.NoError(t, w.WriteGNSS(navtypes.GNSS{TimeSec: 1.2, LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true, HeadingDeg: 45}))
	require.NoError(t, w.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	rec1, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec1.IMU)
	assert.InDelta(t, 1.0, rec1.IMU.Acc.X, 1e-12)

	rec2, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec2.GNSS)
	assert.InDelta(t, 45, rec2.GNSS.HeadingDeg, 1e-12)
	assert.True(t, rec2.GNSS.HeadingValid)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
