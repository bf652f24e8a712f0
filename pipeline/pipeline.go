// Package pipeline wires phone-install compensation, the ESKF core, the
// turn detector and coordinate conversion into the two event-ingestion
// models the filter supports: an offline batch replay that sorts a whole
// recording before running it, and a single-threaded online event loop
// with a bounded reorder buffer for GNSS fixes that arrive out of order
// relative to the filter's own clock.
package pipeline

import (
	"log"
	"sort"

	"github.com/cjjhhhhh/gnss-ins-eskf/coord"
	"github.com/cjjhhhhh/gnss-ins-eskf/eskf"
	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/phoneinstall"
	"github.com/cjjhhhhh/gnss-ins-eskf/report"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
	"github.com/cjjhhhhh/gnss-ins-eskf/turndetect"
)

// staleGNSSThresholdSec is how far behind the filter's own clock an
// incoming GNSS fix may be before it is dropped outright rather than
// applied or enqueued.
const staleGNSSThresholdSec = 5.0

// Sinks groups every output a pipeline may write to; any of them may be
// nil to disable that output.
type Sinks struct {
	State    *report.StateSink
	Residual *report.ResidualSink
}

// Pipeline is the shared per-event processing logic both the offline and
// online drivers use: apply phone-install compensation and predict on IMU,
// convert and route on GNSS.
type Pipeline struct {
	Filter     *eskf.Filter
	Conv       *coord.Converter
	Compensate *phoneinstall.Compensator
	Turns      *turndetect.Detector
	Sinks      Sinks

	firstGNSSSeen bool
}

// New builds a Pipeline. Pass phoneinstall.Identity() for comp if the
// device has no mounting offset.
func New(filter *eskf.Filter, conv *coord.Converter, comp *phoneinstall.Compensator, turns *turndetect.Detector, sinks Sinks) *Pipeline {
	return &Pipeline{Filter: filter, Conv: conv, Compensate: comp, Turns: turns, Sinks: sinks}
}

// OnIMU predicts the filter forward with one compensated IMU sample and,
// if the predict was accepted, appends a state line.
func (p *Pipeline) OnIMU(imu navtypes.IMU) {
	accel := navtypes.VecFromArray(p.Compensate.Apply(imu.Acc.Array()))
	gyro := navtypes.VecFromArray(p.Compensate.Apply(imu.Gyro.Array()))

	accepted := p.Filter.Predict(imu.TimeSec, accel, gyro)
	if !accepted || p.Sinks.State == nil {
		return
	}
	n := p.Filter.Nominal()
	w, x, y, z := n.R.Quaternion()
	_ = p.Sinks.State.WriteState(report.StateLine{
		TimeSec: n.TimeSec, Pos: n.P, QuatW: w, QuatX: x, QuatY: y, QuatZ: z,
		Vel: n.V, BiasGyro: n.BiasGyro, BiasAcce: n.BiasAcce,
	})
}

// OnOdom exists only to complete the sensor ingestion surface; the core
// filter does not consume wheel-odometry.
func (p *Pipeline) OnOdom(navtypes.Odom) {}

// convert projects a GNSS fix to the local frame, without touching the
// turn detector. A coordinate conversion failure is a reported failure:
// the event is dropped and the filter stays usable.
func (p *Pipeline) convert(g navtypes.GNSS) (coord.Result, bool) {
	res, ok := p.Conv.Convert(g.LatitudeDeg, g.LongitudeDeg, g.AltitudeM, g.HeadingDeg, g.HeadingValid)
	if !ok {
		log.Printf("pipeline: WARNING dropping GNSS fix at t=%.3f: coordinate conversion failed", g.TimeSec)
		return coord.Result{}, false
	}
	return res, true
}

// convertAndRoute converts a GNSS fix and feeds the turn detector live.
// This is the *online* path only: it builds up turndetect's causal,
// sample-by-sample state as fixes arrive. Offline replay uses convert plus
// a turndetect.DetectOffline segment table computed up front instead, so
// it never mutates p.Turns's incremental state.
func (p *Pipeline) convertAndRoute(g navtypes.GNSS) (coord.Result, bool) {
	res, ok := p.convert(g)
	if !ok {
		return coord.Result{}, false
	}
	if res.HeadingValid {
		p.Turns.AddHeading(g.TimeSec, res.HeadingDeg)
	}
	return res, true
}

// applyGNSS performs the first-GNSS-init bypass (implicit in
// eskf.Filter.ObserveGps/ObservePositionOnlyGNSS) and routes the fix to a
// full pose update or a position-only update depending on whether the
// vehicle is currently inside a detected turn segment, per p.Turns's live
// (online, causal) state.
func (p *Pipeline) applyGNSS(timeSec float64, res coord.Result) {
	p.applyGNSSWithTurnFlag(timeSec, res, p.Turns.IsInTurn())
}

// applyGNSSWithTurnFlag is applyGNSS with the in-turn decision supplied by
// the caller instead of read from p.Turns - the offline path's batch turn
// detection determines this from the precomputed segment table rather than
// the detector's own incremental state.
func (p *Pipeline) applyGNSSWithTurnFlag(timeSec float64, res coord.Result, inTurn bool) {
	pos := navtypes.Vec3{X: res.X, Y: res.Y, Z: res.Z}
	if !p.Filter.HasInitial() {
		p.Filter.SetInitial(eskf.NavState{
			TimeSec: timeSec,
			R:       rotation.Identity(),
			Gravity: navtypes.Vec3{Z: -eskf.DefaultGravity},
		})
		p.Filter.SetFirstGNSSPending(true)
	}

	if inTurn {
		p.Filter.ObservePositionOnlyGNSS(pos, res.HeadingDeg, res.HeadingValid)
	} else {
		p.Filter.ObserveGps(pos, res.HeadingDeg, res.HeadingValid)
	}

	if p.Sinks.Residual != nil {
		lat, heading, speed, raw, norm := p.Filter.ResidualSnapshot()
		_ = p.Sinks.Residual.WriteResidual(p.Filter.Nominal().TimeSec, lat, heading, speed, raw, norm)
	}
}

// Event is one offline-replay record: exactly one of IMU/GNSS/Odom is set.
type Event struct {
	TimeSec float64
	IMU     *navtypes.IMU
	GNSS    *navtypes.GNSS
	Odom    *navtypes.Odom
}

// RunOffline loads a full event set, applies a fixed GNSS-time offset,
// stable-sorts by timestamp, then runs a genuine two-phase batch replay:
//
//  1. Every heading-bearing GNSS fix in the sorted stream is collected and
//     handed to turndetect.DetectOffline in one call, so the turn detector's
//     smoothing window is centered on each sample using the complete
//     recording - including samples that come after it in time - exactly
//     as the source system's AddHeadingData-then-Finalize design requires.
//     This is deliberately not the same algorithm the online path runs:
//     a live detector can only ever smooth over what it has seen so far.
//  2. A single forward pass replays every event through p, routing each
//     GNSS fix by membership in the segment table phase 1 produced rather
//     than live detector state.
//
// It returns the segment table phase 1 computed.
func RunOffline(p *Pipeline, events []Event, gnssTimeOffsetSec float64) []turndetect.TurnSegment {
	for i := range events {
		switch {
		case events[i].GNSS != nil:
			events[i].GNSS.TimeSec += gnssTimeOffsetSec
			events[i].TimeSec = events[i].GNSS.TimeSec
		case events[i].IMU != nil:
			events[i].TimeSec = events[i].IMU.TimeSec
		case events[i].Odom != nil:
			events[i].TimeSec = events[i].Odom.TimeSec
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].TimeSec < events[j].TimeSec })

	var headingSamples []turndetect.HeadingSample
	for _, e := range events {
		if e.GNSS == nil || !e.GNSS.HeadingValid {
			continue
		}
		headingSamples = append(headingSamples, turndetect.HeadingSample{
			TimeSec:    e.GNSS.TimeSec,
			HeadingDeg: e.GNSS.HeadingDeg,
		})
	}
	segments := turndetect.DetectOffline(p.Turns.Config(), headingSamples)

	for _, e := range events {
		switch {
		case e.IMU != nil:
			p.OnIMU(*e.IMU)
		case e.GNSS != nil:
			res, ok := p.convert(*e.GNSS)
			if !ok {
				continue
			}
			inTurn := turndetect.InSegment(segments, e.GNSS.TimeSec)
			p.applyGNSSWithTurnFlag(e.GNSS.TimeSec, res, inTurn)
		case e.Odom != nil:
			p.OnOdom(*e.Odom)
		}
	}
	return segments
}
