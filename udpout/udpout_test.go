package udpout

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

func TestPublishNavStateDeliversFramedRecord(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	s := NewSender()
	require.NoError(t, s.AddUDPTarget(listener.LocalAddr().String(), KindNavState|KindTurnOnlyState))
	require.NoError(t, s.Start())
	defer s.Stop()

	s.PublishNavState(12.5, navtypes.Vec3{X: 1, Y: 2, Z: 3}, 90, false)

	buf := make([]byte, 64)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	r := bytes.NewReader(buf[:n])
	var magic uint16
	require.NoError(t, binary.Read(r, binary.BigEndian, &magic))
	assert.Equal(t, uint16(navStateFrameMagic), magic)

	kindByte, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(KindNavState), kindByte)

	var timeSec, x, y, z, headingDeg float64
	require.NoError(t, binary.Read(r, binary.BigEndian, &timeSec))
	require.NoError(t, binary.Read(r, binary.BigEndian, &x))
	require.NoError(t, binary.Read(r, binary.BigEndian, &y))
	require.NoError(t, binary.Read(r, binary.BigEndian, &z))
	require.NoError(t, binary.Read(r, binary.BigEndian, &headingDeg))
	assert.InDelta(t, 12.5, timeSec, 1e-9)
	assert.InDelta(t, 1.0, x, 1e-9)
	assert.InDelta(t, 2.0, y, 1e-9)
	assert.InDelta(t, 3.0, z, 1e-9)
	assert.InDelta(t, 90.0, headingDeg, 1e-9)
}

func TestPublishNavStateInTurnOmitsHeadingAndUsesTurnKind(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	s := NewSender()
	require.NoError(t, s.AddUDPTarget(listener.LocalAddr().String(), KindNavState|KindTurnOnlyState))
	require.NoError(t, s.Start())
	defer s.Stop()

	s.PublishNavState(1, navtypes.Vec3{}, 270, true)

	buf := make([]byte, 64)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	kindByte := buf[2]
	assert.Equal(t, byte(KindTurnOnlyState), kindByte)

	var headingDeg float64
	require.NoError(t, binary.Read(bytes.NewReader(buf[n-8:n]), binary.BigEndian, &headingDeg))
	assert.Equal(t, 0.0, headingDeg)
}

func TestSenderSkipsTargetsWithNonMatchingKind(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	s := NewSender()
	require.NoError(t, s.AddUDPTarget(listener.LocalAddr().String(), KindTurnOnlyState))
	require.NoError(t, s.Start())
	defer s.Stop()

	s.PublishNavState(1, navtypes.Vec3{}, 0, false) // KindNavState, target only wants KindTurnOnlyState

	buf := make([]byte, 32)
	listener.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = listener.ReadFromUDP(buf)
	require.Error(t, err)
}
