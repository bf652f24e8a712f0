// Package serialsrc reads line-oriented sensor output from a live serial
// port - a phone-tethered GNSS puck, an external IMU board - and hands
// each line to a caller-supplied callback, the same open/read loop the
// serial GPS producer in the reference corpus uses for its own port.
package serialsrc

import (
	"bufio"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// Options mirrors the handful of serial.OpenOptions fields a sensor feed
// actually needs to set; everything else uses the library's zero values.
type Options struct {
	PortName string
	BaudRate uint
}

// Run opens the port and calls onLine for every newline-terminated line it
// reads, returning when opening or reading the port fails. It blocks the
// calling goroutine; callers run it in its own goroutine.
func Run(opts Options, onLine func(line string)) error {
	serialOpts := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()

	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		onLine(line)
	}
}
