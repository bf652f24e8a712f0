package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjhhhhh/gnss-ins-eskf/coord"
	"github.com/cjjhhhhh/gnss-ins-eskf/eskf"
	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/phoneinstall"
	"github.com/cjjhhhhh/gnss-ins-eskf/report"
	"github.com/cjjhhhhh/gnss-ins-eskf/turndetect"
)

func newTestPipeline() (*Pipeline, *bytes.Buffer) {
	var buf bytes.Buffer
	filter := eskf.New(eskf.DefaultOptions())
	p := New(filter, &coord.Converter{}, phoneinstall.Identity(), turndetect.New(turndetect.DefaultConfig()), Sinks{
		State: report.NewStateSink(&buf),
	})
	return p, &buf
}

func TestOfflineSortsAndReplaysEvents(t *testing.T) {
	p, buf := newTestPipeline()
	events := []Event{
		{IMU: &navtypes.IMU{TimeSec: 0.08, Acc: navtypes.Vec3{Z: eskf.DefaultGravity}}},
		{GNSS: &navtypes.GNSS{TimeSec: 0, LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true}},
		{IMU: &navtypes.IMU{TimeSec: 0.04, Acc: navtypes.Vec3{Z: eskf.DefaultGravity}}},
	}
	RunOffline(p, events, 0)
	require.NoError(t, p.Sinks.State.Flush())
	assert.NotEmpty(t, buf.String())
	assert.True(t, p.Filter.HasInitial())
}

func TestOfflineDropsUnconvertibleGNSS(t *testing.T) {
	p, _ := newTestPipeline()
	events := []Event{
		{GNSS: &navtypes.GNSS{TimeSec: 0, LatitudeDeg: 999, LongitudeDeg: 0}},
	}
	RunOffline(p, events, 0)
	assert.False(t, p.Filter.HasInitial())
}

// TestOfflineTwoPhaseRoutingFindsTurnCausalWouldMiss replays the exact
// heading stream turndetect.TestDetectOfflineFindsSegmentCausalOnlineMisses
// uses: a short rate burst far enough ahead of the samples before it that
// only a centered, whole-recording smoothing pass catches it in time to
// accumulate 30 degrees before the stream ends. RunOffline must run its
// batch turn detection over the complete sorted event set before routing
// a single fix, so it finds the segment; interleaving conversion and
// causal turn-state (as the online path does) on this same stream finds
// none, per the turndetect-level test.
func TestOfflineTwoPhaseRoutingFindsTurnCausalWouldMiss(t *testing.T) {
	p, _ := newTestPipeline()

	stream := []struct{ t, h float64 }{
		{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 18}, {7, 31}, {8, 32}, {9, 33},
	}
	events := make([]Event, len(stream))
	for i, s := range stream {
		events[i] = Event{GNSS: &navtypes.GNSS{
			TimeSec: s.t, LatitudeDeg: 30, LongitudeDeg: 120, HeadingDeg: s.h, HeadingValid: true,
		}}
	}

	segments := RunOffline(p, events, 0)
	require.Len(t, segments, 1)
	assert.GreaterOrEqual(t, segments[0].AccumulatedAngle, turndetect.DefaultConfig().AccumulatedAngleMinDeg)
}

func TestOnlineQueuesFutureGNSSAndDrainsOnCatchUp(t *testing.T) {
	p, _ := newTestPipeline()
	online := NewOnline(p)

	online.OnGNSS(navtypes.GNSS{TimeSec: 0, LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true})
	require.True(t, p.Filter.HasInitial())

	// Fix arrives ahead of the filter's clock: queued, not applied yet.
	online.OnGNSS(navtypes.GNSS{TimeSec: 1.0, LatitudeDeg: 30.0001, LongitudeDeg: 120, HeadingValid: true})
	assert.Len(t, online.pending, 1)

	for i := 0; i < 30; i++ {
		online.OnIMU(navtypes.IMU{TimeSec: float64(i+1) * 0.04, Acc: navtypes.Vec3{Z: eskf.DefaultGravity}})
	}
	assert.Empty(t, online.pending)
}

func TestOnlineDropsStaleGNSS(t *testing.T) {
	p, _ := newTestPipeline()
	online := NewOnline(p)
	online.OnGNSS(navtypes.GNSS{TimeSec: 10, LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true})
	online.OnIMU(navtypes.IMU{TimeSec: 10.04, Acc: navtypes.Vec3{Z: eskf.DefaultGravity}})

	online.OnGNSS(navtypes.GNSS{TimeSec: 10.04 - staleGNSSThresholdSec - 1, LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true})
	assert.Empty(t, online.pending)
}

func TestPendingQueueIsBounded(t *testing.T) {
	p, _ := newTestPipeline()
	online := NewOnline(p)
	online.OnGNSS(navtypes.GNSS{TimeSec: 0, LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true})
	for i := 0; i < pendingQueueCapacity+10; i++ {
		online.OnGNSS(navtypes.GNSS{TimeSec: 100 + float64(i), LatitudeDeg: 30, LongitudeDeg: 120, HeadingValid: true})
	}
	assert.LessOrEqual(t, len(online.pending), pendingQueueCapacity)
}
