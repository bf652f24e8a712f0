// Package turndetect finds turn segments in a heading time series: runs
// where the vehicle's course-over-ground sustains a high enough turn rate
// for long enough to count as a deliberate turn rather than GNSS heading
// jitter. The pipeline consults it to decide whether an incoming GNSS fix
// should be fused as a full pose (observe_gps) or position-only
// (observe_position_only), since heading is unreliable mid-turn.
package turndetect

import (
	"math"
	"sort"
)

// Direction is which way a detected turn went.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// TurnSegment is one committed turn: a start/end time, the total signed
// heading change accumulated over it, the mean turn rate magnitude, and
// which way it turned.
type TurnSegment struct {
	StartTime       float64
	EndTime         float64
	AccumulatedAngle float64
	MeanTurnRate    float64
	Direction       Direction
}

// Duration returns the segment's length in seconds.
func (s TurnSegment) Duration() float64 { return s.EndTime - s.StartTime }

// Config holds the state-machine thresholds. The defaults match the ground
// vehicle tuning the filter as a whole is calibrated against.
type Config struct {
	StartTurnRateDegPerSec float64
	EndTurnRateDegPerSec   float64
	EndDurationSec         float64
	AccumulatedAngleMinDeg float64
	SmoothingWindow        int
}

// DefaultConfig returns the stock thresholds: start at 3 deg/s, end below
// 1.5 deg/s sustained for 3s, commit only segments with at least 30 degrees
// of accumulated turn, smoothed over a 5-sample centered window.
func DefaultConfig() Config {
	return Config{
		StartTurnRateDegPerSec: 3.0,
		EndTurnRateDegPerSec:   1.5,
		EndDurationSec:         3.0,
		AccumulatedAngleMinDeg: 30.0,
		SmoothingWindow:        5,
	}
}

type phase int

const (
	idle phase = iota
	accumulating
	ending
)

type headingPoint struct {
	t       float64
	heading float64
}

type ratePoint struct {
	t    float64
	rate float64
	dt   float64 // spacing of the heading pair the rate came from
}

// Detector runs the turn-segment state machine over a heading stream fed
// one sample at a time via AddHeading.
type Detector struct {
	cfg Config

	headings []headingPoint

	state            phase
	segStart         float64
	accumulatedAngle float64
	accumulatedAbs   float64
	sampleCount      int
	direction        Direction
	belowStart       float64 // time the rate first dropped below EndTurnRateDegPerSec
	lastRateT        float64 // timestamp of the last rate sample step() saw
	haveLastRateT    bool

	segments []TurnSegment
}

// New creates a Detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, state: idle}
}

// Config returns the detector's configuration, so a caller that only holds
// a *Detector (e.g. an offline pipeline wiring DetectOffline) doesn't have
// to thread the Config through separately.
func (d *Detector) Config() Config { return d.cfg }

// AddHeading feeds one (timestamp, heading-degrees) sample and
// immediately re-runs the state machine on it. This is the *online* path:
// each call only ever smooths over headings collected so far, so the
// smoothing at the newest sample is necessarily causal/trailing, never
// centered on future data the detector hasn't seen yet - continuous
// turn detection, per the source system's live/online mode. For offline
// batch replay, where the whole heading stream is already known ahead of
// time and the source system's own Finalize()-driven centered smoothing
// applies, use DetectOffline instead of feeding samples through this
// method one at a time. Heading is normalized into [0, 360) on the way in.
func (d *Detector) AddHeading(timestampSec, headingDeg float64) {
	h := normalizeHeading(headingDeg)
	d.headings = append(d.headings, headingPoint{t: timestampSec, heading: h})
	d.recompute()
}

// IsInTurn reports whether the detector currently believes it is inside a
// turn (accumulating or ending).
func (d *Detector) IsInTurn() bool { return d.state != idle }

// AccumulatedAngle returns the signed angle accumulated in the turn
// currently in progress, zero if idle.
func (d *Detector) AccumulatedAngle() float64 { return d.accumulatedAngle }

// Segments returns every turn segment committed so far.
func (d *Detector) Segments() []TurnSegment { return d.segments }

// Finalize flushes any turn still in progress at end-of-stream, committing
// it if it already cleared the minimum accumulated angle.
func (d *Detector) Finalize() {
	if d.state != idle && d.haveLastRateT && math.Abs(d.accumulatedAngle) >= d.cfg.AccumulatedAngleMinDeg {
		d.commit(d.lastRateT)
	}
	d.state = idle
	d.resetAccumulation()
}

func normalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// normalizeDiff returns the signed shortest angular difference b-a,
// mapped into (-180, 180].
func normalizeDiff(a, b float64) float64 {
	d := b - a
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return d
}

// recompute rebuilds turn rates and smoothing from scratch over the full
// buffered heading history and re-walks the state machine from the last
// processed rate sample. At typical GNSS rates (~1-10 Hz) this is cheap
// enough to not warrant incremental bookkeeping.
func (d *Detector) recompute() {
	if len(d.headings) < 2 {
		return
	}
	rates := computeTurnRates(d.headings)
	smoothed := smoothRates(rates, d.cfg.SmoothingWindow)
	if len(smoothed) == 0 {
		return
	}
	// Only step the state machine on the newest sample; earlier samples
	// were already consumed on prior calls to AddHeading.
	latest := smoothed[len(smoothed)-1]
	if d.haveLastRateT && latest.t <= d.lastRateT {
		// The newest heading produced no new rate sample (non-positive dt).
		return
	}
	d.step(latest)
}

func computeTurnRates(pts []headingPoint) []ratePoint {
	rates := make([]ratePoint, 0, len(pts))
	for i := 1; i < len(pts); i++ {
		dt := pts[i].t - pts[i-1].t
		if dt <= 0 {
			continue
		}
		diff := normalizeDiff(pts[i-1].heading, pts[i].heading)
		rates = append(rates, ratePoint{t: pts[i].t, rate: diff / dt, dt: dt})
	}
	return rates
}

func smoothRates(rates []ratePoint, window int) []ratePoint {
	if window <= 1 || len(rates) < window {
		return rates
	}
	half := window / 2
	out := make([]ratePoint, len(rates))
	for i := range rates {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(rates) {
			hi = len(rates) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += rates[j].rate
		}
		out[i] = ratePoint{t: rates[i].t, rate: sum / float64(hi-lo+1), dt: rates[i].dt}
	}
	return out
}

func (d *Detector) resetAccumulation() {
	d.accumulatedAngle = 0
	d.accumulatedAbs = 0
	d.sampleCount = 0
	d.belowStart = 0
}

// step advances the IDLE -> ACCUMULATING -> ENDING -> (commit|discard) ->
// IDLE state machine by one smoothed turn-rate sample. A turn commits once
// ending has held below the end threshold for EndDurationSec and the
// accumulated angle cleared AccumulatedAngleMinDeg; otherwise it is
// discarded as noise. A rate sample reversing direction while already
// accumulating either splits the segment (committing what has built up so
// far, if it cleared the threshold) or is treated as the turn settling back
// toward straight, depending on whether the new rate itself clears the
// start threshold.
func (d *Detector) step(r ratePoint) {
	d.lastRateT = r.t
	d.haveLastRateT = true
	switch d.state {
	case idle:
		if math.Abs(r.rate) >= d.cfg.StartTurnRateDegPerSec {
			d.state = accumulating
			d.segStart = r.t
			dir := Right
			if r.rate < 0 {
				dir = Left
			}
			d.direction = dir
			d.resetAccumulation()
			d.accumulatedAngle += r.rate * r.dt
			d.accumulatedAbs += math.Abs(r.rate)
			d.sampleCount++
		}

	case accumulating:
		sameSign := sameDirection(r.rate, d.direction)
		if !sameSign && math.Abs(r.rate) >= d.cfg.StartTurnRateDegPerSec {
			// Reversed hard enough to be a new turn in the other
			// direction: split here, committing what has built up.
			d.maybeCommitOrDiscard(r.t)
			d.state = accumulating
			d.segStart = r.t
			dir := Right
			if r.rate < 0 {
				dir = Left
			}
			d.direction = dir
			d.resetAccumulation()
			d.accumulatedAngle += r.rate * r.dt
			d.accumulatedAbs += math.Abs(r.rate)
			d.sampleCount++
			return
		}

		d.accumulatedAngle += r.rate * r.dt
		d.accumulatedAbs += math.Abs(r.rate)
		d.sampleCount++

		if math.Abs(r.rate) < d.cfg.EndTurnRateDegPerSec {
			d.state = ending
			d.belowStart = r.t
		}

	case ending:
		if math.Abs(r.rate) >= d.cfg.StartTurnRateDegPerSec && sameDirection(r.rate, d.direction) {
			// Picked back up before the end duration elapsed: still
			// turning.
			d.state = accumulating
			d.accumulatedAngle += r.rate * r.dt
			d.accumulatedAbs += math.Abs(r.rate)
			d.sampleCount++
			return
		}
		if math.Abs(r.rate) >= d.cfg.EndTurnRateDegPerSec {
			// Back above the end threshold but below the start
			// threshold: reset the ending timer, stay in ending.
			d.belowStart = r.t
			d.accumulatedAngle += r.rate * r.dt
			d.accumulatedAbs += math.Abs(r.rate)
			d.sampleCount++
			return
		}

		d.accumulatedAngle += r.rate * r.dt
		d.accumulatedAbs += math.Abs(r.rate)
		d.sampleCount++

		if r.t-d.belowStart >= d.cfg.EndDurationSec {
			d.maybeCommitOrDiscard(r.t)
			d.state = idle
			d.resetAccumulation()
		}
	}
}

func sameDirection(rate float64, dir Direction) bool {
	if dir == Right {
		return rate >= 0
	}
	return rate <= 0
}

func (d *Detector) maybeCommitOrDiscard(endTime float64) {
	if math.Abs(d.accumulatedAngle) >= d.cfg.AccumulatedAngleMinDeg {
		d.commit(endTime)
	}
}

func (d *Detector) commit(endTime float64) {
	meanRate := 0.0
	if d.sampleCount > 0 {
		meanRate = d.accumulatedAbs / float64(d.sampleCount)
	}
	d.segments = append(d.segments, TurnSegment{
		StartTime:        d.segStart,
		EndTime:          endTime,
		AccumulatedAngle: d.accumulatedAngle,
		MeanTurnRate:     meanRate,
		Direction:        d.direction,
	})
}

// HeadingSample is one (timestamp, heading-degrees) input to DetectOffline.
type HeadingSample struct {
	TimeSec    float64
	HeadingDeg float64
}

// DetectOffline runs the batch turn-detection algorithm the source system's
// AddHeadingData+Finalize pair implements for a recorded session: every
// sample is collected up front, turn rates and their smoothing are
// computed once over the complete array - so the centered window at
// sample i genuinely includes samples after i, not just ones before it -
// and only then does a single forward pass over the smoothed rates build
// the segment table. This is deliberately a different code path from
// AddHeading/recompute's online causal smoothing: the two give different
// answers on the same data whenever a turn's centered window straddles a
// sample the causal path hadn't seen yet.
//
// samples need not be pre-sorted; DetectOffline sorts a copy by timestamp
// before processing.
func DetectOffline(cfg Config, samples []HeadingSample) []TurnSegment {
	if len(samples) < 2 {
		return nil
	}
	sorted := make([]HeadingSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimeSec < sorted[j].TimeSec })

	pts := make([]headingPoint, len(sorted))
	for i, s := range sorted {
		pts[i] = headingPoint{t: s.TimeSec, heading: normalizeHeading(s.HeadingDeg)}
	}

	rates := computeTurnRates(pts)
	smoothed := smoothRates(rates, cfg.SmoothingWindow)

	d := &Detector{cfg: cfg, state: idle}
	for _, r := range smoothed {
		d.step(r)
	}
	d.Finalize()
	return d.Segments()
}

// InSegment reports whether t falls within any of the given segments'
// [StartTime, EndTime] span, inclusive.
func InSegment(segments []TurnSegment, t float64) bool {
	for _, s := range segments {
		if t >= s.StartTime && t <= s.EndTime {
			return true
		}
	}
	return false
}
