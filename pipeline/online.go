package pipeline

import (
	"log"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

// pendingQueueCapacity bounds the online pipeline's future-GNSS reorder
// buffer. GNSS fixes arrive at a few Hz at most, so a few hundred slots is
// generously more than the buffer should ever need to hold.
const pendingQueueCapacity = 256

type pendingFix struct {
	fix navtypes.GNSS
}

// Online drives the pipeline from a live, single-threaded event loop: IMU
// samples predict immediately, then drain any queued GNSS fixes whose
// timestamp has now been caught up to; a GNSS fix that arrives ahead of the
// filter's clock is queued instead of applied immediately, within a bounded
// FIFO to avoid an unbounded memory build-up if the filter stalls.
type Online struct {
	*Pipeline
	pending []pendingFix
}

// NewOnline wraps a Pipeline for online/live event delivery.
func NewOnline(p *Pipeline) *Online {
	return &Online{Pipeline: p}
}

// OnIMU predicts, then drains every queued GNSS fix whose timestamp has now
// fallen at or behind the filter's clock.
func (o *Online) OnIMU(imu navtypes.IMU) {
	o.Pipeline.OnIMU(imu)
	o.drainReady()
}

func (o *Online) drainReady() {
	filterTime := o.Filter.Nominal().TimeSec
	i := 0
	for i < len(o.pending) && o.pending[i].fix.TimeSec <= filterTime {
		o.applyReady(o.pending[i].fix)
		i++
	}
	o.pending = o.pending[i:]
}

func (o *Online) applyReady(g navtypes.GNSS) {
	res, ok := o.convertAndRoute(g)
	if !ok {
		return
	}
	o.applyGNSS(g.TimeSec, res)
}

// OnGNSS converts the fix, drops it if it is more than the stale threshold
// older than the filter's own clock, applies it immediately if the filter
// has already caught up to it, and otherwise enqueues it to apply once
// OnIMU catches the filter's clock up.
func (o *Online) OnGNSS(g navtypes.GNSS) {
	filterTime := o.Filter.Nominal().TimeSec
	if o.Filter.HasInitial() && g.TimeSec < filterTime-staleGNSSThresholdSec {
		log.Printf("pipeline: dropping stale GNSS fix at t=%.3f, filter at t=%.3f", g.TimeSec, filterTime)
		return
	}

	if !o.Filter.HasInitial() || g.TimeSec <= filterTime {
		o.applyReady(g)
		return
	}

	if len(o.pending) >= pendingQueueCapacity {
		log.Printf("pipeline: WARNING pending-GNSS queue full, dropping fix at t=%.3f", g.TimeSec)
		return
	}
	o.pending = append(o.pending, pendingFix{fix: g})
}

// OnOdom exists only to complete the live ingestion surface.
func (o *Online) OnOdom(od navtypes.Odom) { o.Pipeline.OnOdom(od) }
