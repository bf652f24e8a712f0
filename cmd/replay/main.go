// Command replay runs the ESKF navigation pipeline over a recorded
// IMU/GNSS text log in offline (load-everything, sort, then replay) mode,
// writing the fused state, covariance diagonal, residual and turn-segment
// outputs package report and package turndetect define.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/cjjhhhhh/gnss-ins-eskf/config"
	"github.com/cjjhhhhh/gnss-ins-eskf/coord"
	"github.com/cjjhhhhh/gnss-ins-eskf/eskf"
	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/phoneinstall"
	"github.com/cjjhhhhh/gnss-ins-eskf/pipeline"
	"github.com/cjjhhhhh/gnss-ins-eskf/report"
	"github.com/cjjhhhhh/gnss-ins-eskf/turndetect"
)

func main() {
	inPath := flag.String("in", "", "input session text file (one ACC/GYR/GPS record per line)")
	configPath := flag.String("config", "", "optional XML tuning config; defaults are used when omitted")
	outDir := flag.String("out", ".", "output directory for state/covariance/residual/turns files")
	gnssOffsetSec := flag.Float64("gnss-time-offset", 0, "fixed offset added to every GNSS timestamp before sorting")
	antennaOffsetX := flag.Float64("antenna-offset-x", 0, "antenna lever arm, body-frame X, meters")
	antennaOffsetY := flag.Float64("antenna-offset-y", 0, "antenna lever arm, body-frame Y, meters")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "-in is required")
		os.Exit(1)
	}

	opts := eskf.DefaultOptions()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("replay: loading config: %v", err)
		}
		opts = loaded
	}

	events, err := loadTextSession(*inPath)
	if err != nil {
		log.Fatalf("replay: loading session: %v", err)
	}
	log.Printf("replay: loaded %d events from %s", len(events), *inPath)

	comp := phoneinstall.New(opts.PhoneRollInstallDeg, opts.PhonePitchInstallDeg, opts.PhoneHeadingInstallDeg)
	conv := &coord.Converter{AntennaOffsetX: *antennaOffsetX, AntennaOffsetY: *antennaOffsetY}
	turns := turndetect.New(turndetect.DefaultConfig())
	filter := eskf.New(opts)

	stateSink, err := report.NewStateFileSink(joinPath(*outDir, "state.txt"))
	if err != nil {
		log.Fatalf("replay: opening state sink: %v", err)
	}
	defer stateSink.Close()

	covSink, err := report.NewCovarianceFileSink(joinPath(*outDir, "covariance.txt"))
	if err != nil {
		log.Fatalf("replay: opening covariance sink: %v", err)
	}
	defer covSink.Close()

	residualSink, err := report.NewResidualFileSink(joinPath(*outDir, "residuals.txt"))
	if err != nil {
		log.Fatalf("replay: opening residual sink: %v", err)
	}
	defer residualSink.Close()

	p := pipeline.New(filter, conv, comp, turns, pipeline.Sinks{State: stateSink, Residual: residualSink})

	segments := pipeline.RunOffline(p, events, *gnssOffsetSec)

	if filter.HasInitial() {
		if err := covSink.WriteLine(filter.SaveCovDiag()); err != nil {
			log.Printf("replay: WARNING writing covariance: %v", err)
		}
	}

	turnsPath := joinPath(*outDir, "turns.csv")
	if err := report.WriteTurnSegmentsCSV(turnsPath, segments); err != nil {
		log.Fatalf("replay: writing turn segments: %v", err)
	}
	log.Printf("replay: detected %d turn segments, wrote %s", len(segments), turnsPath)
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// loadTextSession parses a whitespace-delimited session log:
//
//	ACC <t> <ax> <ay> <az>
//	GYR <t> <gx> <gy> <gz>
//	GPS <t> <lat> <lon> <alt> <heading> <heading_valid:0|1>
//
// Any line beginning with '#' is a comment and skipped.
func loadTextSession(path string) ([]pipeline.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []pipeline.Event
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ACC":
			t, ax, ay, az, err := parse4(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if imu := mergeAccel(events, t, ax, ay, az); len(events) == 0 || events[len(events)-1].IMU != imu {
				events = append(events, pipeline.Event{TimeSec: t, IMU: imu})
			}
		case "GYR":
			t, gx, gy, gz, err := parse4(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if imu := mergeGyro(events, t, gx, gy, gz); len(events) == 0 || events[len(events)-1].IMU != imu {
				events = append(events, pipeline.Event{TimeSec: t, IMU: imu})
			}
		case "GPS":
			if len(fields) < 7 {
				return nil, fmt.Errorf("line %d: GPS record needs 6 fields", lineNo)
			}
			vals := make([]float64, 6)
			for i := 0; i < 6; i++ {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				vals[i] = v
			}
			g := navtypes.GNSS{
				TimeSec: vals[0], LatitudeDeg: vals[1], LongitudeDeg: vals[2],
				AltitudeM: vals[3], HeadingDeg: vals[4], HeadingValid: vals[5] != 0,
			}
			events = append(events, pipeline.Event{TimeSec: g.TimeSec, GNSS: &g})
		default:
			log.Printf("replay: WARNING line %d: unrecognized record type %q", lineNo, fields[0])
		}
	}
	return events, scanner.Err()
}

func parse4(fields []string) (t, a, b, c float64, err error) {
	if len(fields) < 5 {
		err = fmt.Errorf("expected 4 numeric fields after record type")
		return
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		vals[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// mergeAccel/mergeGyro fold a same-timestamp accelerometer/gyroscope pair
// into a single IMU sample when the previous event at the same timestamp
// was the other half of the pair, mirroring the corpus's own pairing of
// separately-timestamped ACC/GYR lines from one IMU chip.
func mergeAccel(events []pipeline.Event, t, ax, ay, az float64) *navtypes.IMU {
	if n := len(events); n > 0 && events[n-1].IMU != nil && events[n-1].TimeSec == t && events[n-1].IMU.Acc == (navtypes.Vec3{}) {
		events[n-1].IMU.Acc = navtypes.Vec3{X: ax, Y: ay, Z: az}
		return events[n-1].IMU
	}
	return &navtypes.IMU{TimeSec: t, Acc: navtypes.Vec3{X: ax, Y: ay, Z: az}}
}

func mergeGyro(events []pipeline.Event, t, gx, gy, gz float64) *navtypes.IMU {
	if n := len(events); n > 0 && events[n-1].IMU != nil && events[n-1].TimeSec == t && events[n-1].IMU.Gyro == (navtypes.Vec3{}) {
		events[n-1].IMU.Gyro = navtypes.Vec3{X: gx, Y: gy, Z: gz}
		return events[n-1].IMU
	}
	return &navtypes.IMU{TimeSec: t, Gyro: navtypes.Vec3{X: gx, Y: gy, Z: gz}}
}
