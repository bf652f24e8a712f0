// Package recorder captures and replays IMU/GNSS/NavState sessions in a
// simple length-prefixed binary format: a small global header followed by
// one record per sample (timestamp, a type tag, a payload length, then the
// payload), the same framing the capture tool this module is descended
// from uses for its own UDP session recordings.
package recorder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cjjhhhhh/gnss-ins-eskf/eskf"
	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

const (
	magic         uint32 = 0x45534B46 // "ESKF"
	formatVersion uint16 = 1

	recordTypeIMU      uint16 = 1
	recordTypeGNSS     uint16 = 2
	recordTypeNavState uint16 = 3
)

// Writer appends length-prefixed records to an underlying file.
type Writer struct {
	f *os.File
}

// NewWriter creates path and writes the global header.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, 6)
	binary.LittleEndian.PutUint32(hdr[0:], magic)
	binary.LittleEndian.PutUint16(hdr[4:], formatVersion)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f}, nil
}

func (w *Writer) writeRecord(recType uint16, timeSec float64, payload []byte) error {
	hdr := make([]byte, 14)
	binary.LittleEndian.PutUint64(hdr[0:], math.Float64bits(timeSec))
	binary.LittleEndian.PutUint16(hdr[8:], recType)
	binary.LittleEndian.PutUint32(hdr[10:], uint32(len(payload)))
	if _, err := w.f.Write(hdr); err != nil {
		return err
	}
	_, err := w.f.Write(payload)
	return err
}

// WriteIMU appends one IMU sample.
func (w *Writer) WriteIMU(s navtypes.IMU) error {
	buf := make([]byte, 48)
	putVec3(buf[0:], s.Acc)
	putVec3(buf[24:], s.Gyro)
	return w.writeRecord(recordTypeIMU, s.TimeSec, buf)
}

// WriteGNSS appends one GNSS fix.
func (w *Writer) WriteGNSS(g navtypes.GNSS) error {
	buf := make([]byte, 41)
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(g.LatitudeDeg))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(g.LongitudeDeg))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(g.AltitudeM))
	binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(g.HeadingDeg))
	binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(g.SpeedMS))
	if g.HeadingValid {
		buf[40] = 1
	}
	return w.writeRecord(recordTypeGNSS, g.TimeSec, buf)
}

// WriteNavState appends one fused navigation state (position + quaternion
// + velocity), for replaying a previously fused run without re-running the
// filter.
func (w *Writer) WriteNavState(n eskf.NavState) error {
	buf := make([]byte, 80)
	putVec3(buf[0:], n.P)
	qw, qx, qy, qz := n.R.Quaternion()
	binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(qw))
	binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(qx))
	binary.LittleEndian.PutUint64(buf[40:], math.Float64bits(qy))
	binary.LittleEndian.PutUint64(buf[48:], math.Float64bits(qz))
	putVec3(buf[56:], n.V)
	return w.writeRecord(recordTypeNavState, n.TimeSec, buf)
}

// Close closes the underlying file.
func (w *Writer) Close() error { return w.f.Close() }

// Record is one decoded session record; exactly one of IMU/GNSS/NavState
// is set depending on Type.
type Record struct {
	TimeSec  float64
	IMU      *navtypes.IMU
	GNSS     *navtypes.GNSS
	NavState *eskf.NavState
}

// Reader replays records from a file written by Writer, in the order they
// were recorded.
type Reader struct {
	f *os.File
}

// OpenReader opens path and validates the global header.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, 6)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("recorder: header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:]) != magic {
		f.Close()
		return nil, fmt.Errorf("recorder: bad magic")
	}
	return &Reader{f: f}, nil
}

// Next returns the next record, or io.EOF once the file is exhausted.
func (r *Reader) Next() (Record, error) {
	hdr := make([]byte, 14)
	if _, err := io.ReadFull(r.f, hdr); err != nil {
		return Record{}, err
	}
	timeSec := math.Float64frombits(binary.LittleEndian.Uint64(hdr[0:]))
	recType := binary.LittleEndian.Uint16(hdr[8:])
	length := binary.LittleEndian.Uint32(hdr[10:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.f, payload); err != nil {
		return Record{}, fmt.Errorf("recorder: payload: %w", err)
	}

	switch recType {
	case recordTypeIMU:
		imu := navtypes.IMU{TimeSec: timeSec, Acc: getVec3(payload[0:]), Gyro: getVec3(payload[24:])}
		return Record{TimeSec: timeSec, IMU: &imu}, nil
	case recordTypeGNSS:
		g := navtypes.GNSS{
			TimeSec:      timeSec,
			LatitudeDeg:  math.Float64frombits(binary.LittleEndian.Uint64(payload[0:])),
			LongitudeDeg: math.Float64frombits(binary.LittleEndian.Uint64(payload[8:])),
			AltitudeM:    math.Float64frombits(binary.LittleEndian.Uint64(payload[16:])),
			HeadingDeg:   math.Float64frombits(binary.LittleEndian.Uint64(payload[24:])),
			SpeedMS:      math.Float64frombits(binary.LittleEndian.Uint64(payload[32:])),
			HeadingValid: payload[40] == 1,
		}
		return Record{TimeSec: timeSec, GNSS: &g}, nil
	case recordTypeNavState:
		n := eskf.NavState{TimeSec: timeSec, P: getVec3(payload[0:])}
		qw := math.Float64frombits(binary.LittleEndian.Uint64(payload[24:]))
		qx := math.Float64frombits(binary.LittleEndian.Uint64(payload[32:]))
		qy := math.Float64frombits(binary.LittleEndian.Uint64(payload[40:]))
		qz := math.Float64frombits(binary.LittleEndian.Uint64(payload[48:]))
		n.R = rotation.FromQuaternion(qw, qx, qy, qz)
		n.V = getVec3(payload[56:])
		return Record{TimeSec: timeSec, NavState: &n}, nil
	default:
		// Unknown record type: skip it, keep replaying.
		return r.Next()
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

func putVec3(b []byte, v navtypes.Vec3) {
	binary.LittleEndian.PutUint64(b[0:], math.Float64bits(v.X))
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(v.Y))
	binary.LittleEndian.PutUint64(b[16:], math.Float64bits(v.Z))
}

func getVec3(b []byte) navtypes.Vec3 {
	return navtypes.Vec3{
		X: math.Float64frombits(binary.LittleEndian.Uint64(b[0:])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
		Z: math.Float64frombits(binary.LittleEndian.Uint64(b[16:])),
	}
}
