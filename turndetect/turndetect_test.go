package turndetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDiffRange(t *testing.T) {
	assert.InDelta(t, 10.0, normalizeDiff(350, 0), 1e-9)
	assert.InDelta(t, -10.0, normalizeDiff(0, 350), 1e-9)
	assert.InDelta(t, 180.0, normalizeDiff(0, 180), 1e-9)
}

func TestDetectsSustainedRightTurn(t *testing.T) {
	d := New(DefaultConfig())
	h := 0.0
	for i := 0; i < 20; i++ {
		d.AddHeading(float64(i)*1.0, h)
		h += 10 // 10 deg/s right turn
	}
	// settle back to straight for long enough to close the segment
	for i := 0; i < 10; i++ {
		d.AddHeading(20+float64(i)*1.0, h)
	}
	d.Finalize()

	segs := d.Segments()
	require.Len(t, segs, 1)
	assert.Equal(t, Right, segs[0].Direction)
	assert.Greater(t, segs[0].AccumulatedAngle, 30.0)
	assert.Greater(t, segs[0].EndTime, segs[0].StartTime)
}

func TestOscillatingRateWithZeroNetAngleYieldsNoSegments(t *testing.T) {
	d := New(DefaultConfig())
	h := 0.0
	for i := 0; i < 40; i++ {
		// heading alternates between 0.5 and 0 degrees, well under the start threshold
		if i%2 == 0 {
			h += 0.5
		} else {
			h -= 0.5
		}
		d.AddHeading(float64(i), h)
	}
	d.Finalize()
	assert.Empty(t, d.Segments())
}

func TestDropsNonPositiveDtSamples(t *testing.T) {
	pts := []headingPoint{{t: 0, heading: 0}, {t: 0, heading: 50}, {t: 1, heading: 60}}
	rates := computeTurnRates(pts)
	require.Len(t, rates, 1)
	assert.InDelta(t, 10.0, rates[0].rate, 1e-9)
}

// TestDetectOfflineFindsSegmentCausalOnlineMisses builds a heading stream
// with a short two-sample rate burst (13 deg/s) surrounded by a near-flat
// 1 deg/s drift. DetectOffline's centered window at samples just before the
// burst averages it in, crossing the start threshold early enough that the
// accumulated angle clears 30 degrees by end of stream. AddHeading's
// causal window can only look backward: every sample's smoothing decision
// is finalized before the burst is in the buffer, so the turn is picked up
// two samples later and never accumulates 30 degrees before the stream
// ends. The two paths must disagree on this stream, not just on tie-break
// details.
func TestDetectOfflineFindsSegmentCausalOnlineMisses(t *testing.T) {
	cfg := DefaultConfig()

	type sample struct {
		t, h float64
	}
	stream := []sample{
		{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 18}, {7, 31}, {8, 32}, {9, 33},
	}

	samples := make([]HeadingSample, len(stream))
	for i, s := range stream {
		samples[i] = HeadingSample{TimeSec: s.t, HeadingDeg: s.h}
	}
	offline := DetectOffline(cfg, samples)
	require.Len(t, offline, 1, "centered smoothing over the whole stream should find the turn")
	assert.GreaterOrEqual(t, offline[0].AccumulatedAngle, cfg.AccumulatedAngleMinDeg)

	d := New(cfg)
	for _, s := range stream {
		d.AddHeading(s.t, s.h)
	}
	d.Finalize()
	assert.Empty(t, d.Segments(), "causal smoothing sees the burst two samples too late to accumulate enough angle")
}
