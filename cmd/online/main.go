// Command online runs the ESKF navigation pipeline against a live IMU
// stream and a live NMEA GNSS stream, broadcasting fused pose over
// websocket and, optionally, fanning state out over UDP/TCP and
// publishing it to an MQTT broker.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cjjhhhhh/gnss-ins-eskf/config"
	"github.com/cjjhhhhh/gnss-ins-eskf/coord"
	"github.com/cjjhhhhh/gnss-ins-eskf/eskf"
	"github.com/cjjhhhhh/gnss-ins-eskf/mqttsink"
	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/nmeasrc"
	"github.com/cjjhhhhh/gnss-ins-eskf/phoneinstall"
	"github.com/cjjhhhhh/gnss-ins-eskf/pipeline"
	"github.com/cjjhhhhh/gnss-ins-eskf/report"
	"github.com/cjjhhhhh/gnss-ins-eskf/serialsrc"
	"github.com/cjjhhhhh/gnss-ins-eskf/turndetect"
	"github.com/cjjhhhhh/gnss-ins-eskf/udpout"
	"github.com/cjjhhhhh/gnss-ins-eskf/wsserver"
)

func main() {
	configPath := flag.String("config", "", "optional XML tuning config; defaults are used when omitted")
	imuPort := flag.String("imu-port", "", "serial port the IMU is attached to, e.g. /dev/ttyUSB0")
	imuBaud := flag.Uint("imu-baud", 115200, "IMU serial baud rate")
	gnssPort := flag.String("gnss-port", "", "serial port the NMEA GNSS receiver is attached to")
	gnssBaud := flag.Uint("gnss-baud", 115200, "GNSS serial baud rate")
	statePath := flag.String("state-out", "", "optional path to also log state lines to disk")
	wsPort := flag.Int("ws-port", 8765, "port to serve the live websocket pose feed on")
	udpTarget := flag.String("udp-target", "", "optional host:port to fan state out to over UDP")
	mqttBroker := flag.String("mqtt-broker", "", "optional MQTT broker URL, e.g. tcp://localhost:1883")
	mqttTopic := flag.String("mqtt-topic", "inertial/navstate", "MQTT topic to publish fused state to")
	flag.Parse()

	if *imuPort == "" || *gnssPort == "" {
		fmt.Fprintln(os.Stderr, "-imu-port and -gnss-port are required")
		os.Exit(1)
	}

	opts := eskf.DefaultOptions()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("online: loading config: %v", err)
		}
		opts = loaded
	}

	comp := phoneinstall.New(opts.PhoneRollInstallDeg, opts.PhonePitchInstallDeg, opts.PhoneHeadingInstallDeg)
	conv := &coord.Converter{}
	turns := turndetect.New(turndetect.DefaultConfig())
	filter := eskf.New(opts)

	sinks := pipeline.Sinks{}
	if *statePath != "" {
		stateSink, err := report.NewStateFileSink(*statePath)
		if err != nil {
			log.Fatalf("online: opening state sink: %v", err)
		}
		defer stateSink.Close()
		sinks.State = stateSink
	}

	p := pipeline.New(filter, conv, comp, turns, sinks)
	o := pipeline.NewOnline(p)

	ws := wsserver.NewServer()
	go func() {
		if err := ws.Start(*wsPort, ""); err != nil {
			log.Fatalf("online: websocket server: %v", err)
		}
	}()

	var sender *udpout.Sender
	if *udpTarget != "" {
		sender = udpout.NewSender()
		if err := sender.AddUDPTarget(*udpTarget, udpout.KindNavState|udpout.KindTurnOnlyState); err != nil {
			log.Fatalf("online: adding UDP target: %v", err)
		}
		if err := sender.Start(); err != nil {
			log.Fatalf("online: starting UDP sender: %v", err)
		}
		defer sender.Stop()
	}

	var mqtt *mqttsink.Sink
	if *mqttBroker != "" {
		var err error
		mqtt, err = mqttsink.Connect(*mqttBroker, "gnss-ins-eskf-online", *mqttTopic)
		if err != nil {
			log.Fatalf("online: connecting to MQTT broker: %v", err)
		}
		defer mqtt.Disconnect()
	}

	broadcastEvery := 100 * time.Millisecond
	lastBroadcast := time.Time{}
	onAccepted := func() {
		if time.Since(lastBroadcast) < broadcastEvery {
			return
		}
		lastBroadcast = time.Now()
		n := filter.Nominal()
		headingDeg := filter.CurrentHeading() * 180 / math.Pi
		ws.BroadcastPose(wsserver.NavPose{TimeSec: n.TimeSec, Pos: n.P, HeadingDeg: headingDeg})
		if sender != nil {
			sender.PublishNavState(n.TimeSec, n.P, headingDeg, turns.IsInTurn())
		}
		if mqtt != nil {
			w, x, y, z := n.R.Quaternion()
			_ = mqtt.Publish(mqttsink.NavStateMessage{
				TimeSec: n.TimeSec, X: n.P.X, Y: n.P.Y, Z: n.P.Z,
				QuatW: w, QuatX: x, QuatY: y, QuatZ: z,
				VX: n.V.X, VY: n.V.Y, VZ: n.V.Z,
			})
		}
	}

	imuLines := make(chan string, 256)
	go func() {
		err := serialsrc.Run(serialsrc.Options{PortName: *imuPort, BaudRate: *imuBaud}, func(line string) {
			imuLines <- line
		})
		log.Fatalf("online: IMU serial reader stopped: %v", err)
	}()

	gnssLines := make(chan string, 64)
	go func() {
		err := serialsrc.Run(serialsrc.Options{PortName: *gnssPort, BaudRate: *gnssBaud}, func(line string) {
			gnssLines <- line
		})
		log.Fatalf("online: GNSS serial reader stopped: %v", err)
	}()

	decoder := &nmeasrc.Decoder{}
	for {
		select {
		case line := <-imuLines:
			imu, ok := parseIMULine(line)
			if !ok {
				continue
			}
			o.OnIMU(imu)
			onAccepted()

		case line := <-gnssLines:
			fix, ok, err := decoder.Feed(line)
			if err != nil {
				log.Printf("online: WARNING discarding unparsable NMEA line: %v", err)
				continue
			}
			if ok {
				o.OnGNSS(fix)
			}
		}
	}
}

// parseIMULine accepts "t,ax,ay,az,gx,gy,gz" lines, the simplest framing a
// microcontroller-side IMU producer can emit over a serial link.
func parseIMULine(line string) (navtypes.IMU, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 7 {
		return navtypes.IMU{}, false
	}
	vals := make([]float64, 7)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return navtypes.IMU{}, false
		}
		vals[i] = v
	}
	return navtypes.IMU{
		TimeSec: vals[0],
		Acc:     navtypes.Vec3{X: vals[1], Y: vals[2], Z: vals[3]},
		Gyro:    navtypes.Vec3{X: vals[4], Y: vals[5], Z: vals[6]},
	}, true
}
