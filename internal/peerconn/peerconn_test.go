package peerconn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halsten/gorrent/internal/logger"
	"github.com/halsten/gorrent/internal/peerwire"
)

type pipeConn struct {
	net.Conn
}

func (pipeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6881}
}

func newPipePair() (*Conn, *Conn) {
	a, b := net.Pipe()
	l := logger.New("test")
	return New(pipeConn{a}, l, time.Second, 8, false, nil, nil),
		New(pipeConn{b}, l, time.Second, 8, false, nil, nil)
}

func TestConnRunDeliversMessages(t *testing.T) {
	a, b := newPipePair()
	go a.Run()
	go b.Run()
	defer a.Close()
	defer b.Close()

	require.Equal(t, StateReady, a.State())

	a.SendMessage(peerwire.UnchokeMessage{})

	select {
	case msg := <-b.Messages():
		_, ok := msg.(peerwire.UnchokeMessage)
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestConnCloseTransitionsToClosed(t *testing.T) {
	a, b := newPipePair()
	go a.Run()
	go b.Run()
	defer b.Close()

	a.Close()
	require.Equal(t, StateClosed, a.State())
}
