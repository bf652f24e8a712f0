// Package udpout fans fused navigation output out to UDP and TCP
// downstream consumers, grounded on the reference corpus's own
// UDP-broadcast-plus-queued-TCP-clients sender. Unlike the corpus's plain
// opaque-payload fan-out, targets here subscribe by RecordKind, and
// PublishNavState builds a fixed-layout binary NavState frame itself
// rather than accepting whatever bytes a caller already formatted -
// downstream consumers on the wire (a UDP-listening dashboard, a logging
// TCP tap) get a stable binary record instead of a caller-chosen string.
package udpout

import (
	"bytes"
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

// RecordKind identifies what a Message's payload actually is, so a target
// can subscribe to, say, full navigation state without also getting
// heading-suppressed turn-window fixes it has no use for.
type RecordKind uint8

const (
	// KindNavState is a full fused-pose sample: time, position, heading.
	KindNavState RecordKind = 1 << iota
	// KindTurnOnlyState is a fused-pose sample recorded while the vehicle
	// was inside a detected turn segment, where heading is known to be
	// GNSS-unreliable and is therefore omitted rather than sent stale.
	KindTurnOnlyState
)

const navStateFrameMagic = 0x4e53 // "NS"

// Message is one outbound frame plus the record kind it carries.
type Message struct {
	Data []byte
	Kind RecordKind
}

type udpTarget struct {
	addr *net.UDPAddr
	kind RecordKind
}

type tcpClient struct {
	addr    string
	kind    RecordKind
	queue   chan *Message
	wg      sync.WaitGroup
	running bool
}

// Sender fans messages out to any number of UDP targets and TCP clients,
// each subscribed to a RecordKind mask.
type Sender struct {
	udpTargets []*udpTarget
	tcpClients []*tcpClient
	conn       *net.UDPConn
	header     []byte
	running    bool
}

// NewSender creates an empty Sender.
func NewSender() *Sender { return &Sender{} }

// SetHeader prefixes every outbound frame with "hdr:". Passing an empty
// string disables the prefix.
func (s *Sender) SetHeader(hdr string) {
	if hdr == "" {
		s.header = nil
		return
	}
	s.header = []byte(hdr + ":")
}

// AddUDPTarget registers a UDP destination subscribed to kind.
func (s *Sender) AddUDPTarget(addr string, kind RecordKind) error {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	s.udpTargets = append(s.udpTargets, &udpTarget{addr: uaddr, kind: kind})
	return nil
}

// AddTCPTarget registers a TCP destination subscribed to kind. The
// connection is dialed lazily and reconnected on write failure.
func (s *Sender) AddTCPTarget(addr string, kind RecordKind) {
	s.tcpClients = append(s.tcpClients, &tcpClient{
		addr:  addr,
		kind:  kind,
		queue: make(chan *Message, 1000),
	})
}

// Start opens the shared UDP socket and starts every TCP client's send
// loop.
func (s *Sender) Start() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	s.conn = conn
	s.running = true
	for _, c := range s.tcpClients {
		c.start()
	}
	return nil
}

// Stop closes the UDP socket and every TCP client.
func (s *Sender) Stop() {
	s.running = false
	if s.conn != nil {
		s.conn.Close()
	}
	for _, c := range s.tcpClients {
		c.stop()
	}
}

// PublishNavState encodes a fused-pose sample into a fixed-layout binary
// frame (see encodeNavStateFrame) and fans it out to every subscribed target. inTurn selects
// KindTurnOnlyState and omits the heading field, since heading is
// unreliable for the duration of a detected turn; otherwise KindNavState
// carries the full sample.
func (s *Sender) PublishNavState(timeSec float64, pos navtypes.Vec3, headingDeg float64, inTurn bool) {
	kind := KindNavState
	if inTurn {
		kind = KindTurnOnlyState
		headingDeg = 0
	}
	s.send(encodeNavStateFrame(kind, timeSec, pos, headingDeg), kind)
}

// encodeNavStateFrame builds: 2-byte magic, 1-byte kind, then five
// big-endian float64s (time, x, y, z, headingDeg).
func encodeNavStateFrame(kind RecordKind, timeSec float64, pos navtypes.Vec3, headingDeg float64) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(navStateFrameMagic))
	buf.WriteByte(byte(kind))
	binary.Write(&buf, binary.BigEndian, timeSec)
	binary.Write(&buf, binary.BigEndian, pos.X)
	binary.Write(&buf, binary.BigEndian, pos.Y)
	binary.Write(&buf, binary.BigEndian, pos.Z)
	binary.Write(&buf, binary.BigEndian, headingDeg)
	return buf.Bytes()
}

// send fans data out to every target whose mask contains every bit of kind.
func (s *Sender) send(data []byte, kind RecordKind) {
	if !s.running {
		return
	}
	payload := data
	if len(s.header) > 0 {
		payload = make([]byte, len(s.header)+len(data))
		copy(payload, s.header)
		copy(payload[len(s.header):], data)
	}

	for _, t := range s.udpTargets {
		if t.kind&kind == kind {
			if _, err := s.conn.WriteToUDP(payload, t.addr); err != nil {
				log.Printf("udpout: UDP send to %s failed: %v", t.addr, err)
			}
		}
	}

	msg := &Message{Data: payload, Kind: kind}
	for _, c := range s.tcpClients {
		if c.kind&kind == kind {
			select {
			case c.queue <- msg:
			default:
				log.Printf("udpout: TCP queue to %s full, dropping message", c.addr)
			}
		}
	}
}

func (c *tcpClient) start() {
	c.running = true
	c.wg.Add(1)
	go c.loop()
}

func (c *tcpClient) stop() {
	c.running = false
	close(c.queue)
	c.wg.Wait()
}

func (c *tcpClient) loop() {
	defer c.wg.Done()
	var conn net.Conn

	connect := func() bool {
		if conn != nil {
			return true
		}
		var err error
		conn, err = net.DialTimeout("tcp", c.addr, 2*time.Second)
		return err == nil
	}

	for msg := range c.queue {
		if !c.running {
			break
		}
		if !connect() {
			time.Sleep(500 * time.Millisecond)
			if !connect() {
				continue
			}
		}
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write(msg.Data); err != nil {
			log.Printf("udpout: TCP write to %s failed: %v", c.addr, err)
			conn.Close()
			conn = nil
		}
	}
	if conn != nil {
		conn.Close()
	}
}
