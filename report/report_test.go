package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

func TestWriteStateFormat(t *testing.T) {
	var buf bytes.Buffer
	s := NewStateSink(&buf)
	err := s.WriteState(StateLine{
		TimeSec: 1.5,
		Pos:     navtypes.Vec3{X: 1, Y: 2, Z: 3},
		QuatW:   1,
		Vel:     navtypes.Vec3{X: 0.1},
		HasGPS:  true,
		GPS:     navtypes.Vec3{X: 1, Y: 2, Z: 3},
	})
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "1\n"))
	fields := strings.Fields(line)
	// timestamp + p(3) + quat(4) + v(3) + bg(3) + ba(3) + gps(3) + flag(1)
	assert.Len(t, fields, 1+3+4+3+3+3+3+1)
}

func TestWriteStateWithoutGPS(t *testing.T) {
	var buf bytes.Buffer
	s := NewStateSink(&buf)
	require.NoError(t, s.WriteState(StateLine{TimeSec: 0, QuatW: 1}))
	require.NoError(t, s.Flush())
	assert.True(t, strings.HasSuffix(buf.String(), " 0\n"))
}
