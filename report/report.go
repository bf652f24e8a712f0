// Package report renders the filter's running state into the append-only
// text sinks the pipeline writes as it replays: one line per accepted
// predict, a covariance diagonal dump, a residual dump, and a turn-segment
// CSV - formats lifted directly from the save_result/SaveCovariance/
// SaveResults output routines of the system this module was distilled
// from, since downstream plotting/analysis tooling depends on the exact
// column layout and numeric precision.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/turndetect"
)

// StateSink writes one line per accepted predict.
type StateSink struct {
	w *bufio.Writer
	c io.Closer
}

// NewStateFileSink opens (or creates/truncates) path for state-line output.
func NewStateFileSink(path string) (*StateSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &StateSink{w: bufio.NewWriter(f), c: f}, nil
}

// NewStateSink wraps an already-open writer, for callers (tests, live
// broadcast) that don't want a file on disk.
func NewStateSink(w io.Writer) *StateSink {
	return &StateSink{w: bufio.NewWriter(w)}
}

// StateLine is everything WriteState needs to render one line.
type StateLine struct {
	TimeSec  float64
	Pos      navtypes.Vec3
	QuatW    float64
	QuatX    float64
	QuatY    float64
	QuatZ    float64
	Vel      navtypes.Vec3
	BiasGyro navtypes.Vec3
	BiasAcce navtypes.Vec3
	HasGPS   bool
	GPS      navtypes.Vec3
}

// WriteState appends one state line: 18-digit timestamp, then position,
// quaternion (w,x,y,z), velocity, gyro bias, accel bias, then - only when
// HasGPS is set - the GPS position, all at 9-digit precision, and finally a
// has-gps flag (1 or 0) that is always written.
func (s *StateSink) WriteState(l StateLine) error {
	_, err := fmt.Fprintf(s.w, "%.18f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f %.9f",
		l.TimeSec,
		l.Pos.X, l.Pos.Y, l.Pos.Z,
		l.QuatW, l.QuatX, l.QuatY, l.QuatZ,
		l.Vel.X, l.Vel.Y, l.Vel.Z,
		l.BiasGyro.X, l.BiasGyro.Y, l.BiasGyro.Z,
		l.BiasAcce.X)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, " %.9f %.9f", l.BiasAcce.Y, l.BiasAcce.Z); err != nil {
		return err
	}
	if l.HasGPS {
		if _, err := fmt.Fprintf(s.w, " %.9f %.9f %.9f 1", l.GPS.X, l.GPS.Y, l.GPS.Z); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(s.w, " 0"); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(s.w, "\n")
	return err
}

// Flush flushes buffered output to the underlying writer.
func (s *StateSink) Flush() error { return s.w.Flush() }

// Close flushes and, if the sink owns a file, closes it.
func (s *StateSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// CovarianceSink writes one line per WriteLine call: timestamp then 18
// diagonal entries, the same format package eskf's SaveCovDiag produces.
// Package pipeline does not write to it; cmd/replay writes one final line.
type CovarianceSink struct {
	w *bufio.Writer
	c io.Closer
}

func NewCovarianceFileSink(path string) (*CovarianceSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &CovarianceSink{w: bufio.NewWriter(f), c: f}, nil
}

func (s *CovarianceSink) WriteLine(line string) error {
	_, err := fmt.Fprintf(s.w, "%s\n", line)
	return err
}

func (s *CovarianceSink) Flush() error { return s.w.Flush() }
func (s *CovarianceSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// ResidualSink writes one line per GNSS observation: timestamp, lateral
// residual, current heading, current speed, the raw residual components,
// and the residual norm - diagnostic-only, never read back by the filter.
type ResidualSink struct {
	w *bufio.Writer
	c io.Closer
}

func NewResidualFileSink(path string) (*ResidualSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &ResidualSink{w: bufio.NewWriter(f), c: f}, nil
}

func (s *ResidualSink) WriteResidual(timeSec, lateral, heading, speed float64, raw [3]float64, norm float64) error {
	_, err := fmt.Fprintf(s.w, "%.18f %.9f %.9f %.9f %.9f %.9f %.9f %.9f\n",
		timeSec, lateral, heading, speed, raw[0], raw[1], raw[2], norm)
	return err
}

func (s *ResidualSink) Flush() error { return s.w.Flush() }
func (s *ResidualSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// WriteTurnSegmentsCSV writes a header comment line followed by one row per
// detected turn segment: id,t_start,t_end,duration,total_angle,mean_rate,direction.
func WriteTurnSegmentsCSV(path string, segments []turndetect.TurnSegment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintln(w, "# turn segments: id,t_start,t_end,duration,total_angle,mean_rate,direction"); err != nil {
		return err
	}
	for i, seg := range segments {
		if _, err := fmt.Fprintf(w, "%d,%.9f,%.9f,%.9f,%.9f,%.9f,%s\n",
			i, seg.StartTime, seg.EndTime, seg.Duration(), seg.AccumulatedAngle, seg.MeanTurnRate, seg.Direction); err != nil {
			return err
		}
	}
	return w.Flush()
}
