package peerconn

import (
	"io"
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/halsten/gorrent/internal/btconn"
	"github.com/halsten/gorrent/internal/logger"
	"github.com/halsten/gorrent/internal/peerconn/peerreader"
	"github.com/halsten/gorrent/internal/peerconn/peerwriter"
	"github.com/halsten/gorrent/internal/peerwire"
)

// Conn is a peer connection that provides a channel for receiving messages and methods for sending messages.
type Conn struct {
	conn       net.Conn
	reader     *peerreader.PeerReader
	writer     *peerwriter.PeerWriter
	messages   chan interface{}
	log        logger.Logger
	closeC     chan struct{}
	doneC      chan struct{}
	state      int32
	extensions [8]byte
	peerID     [20]byte
}

// New wraps conn, already past the BitTorrent handshake, as a Conn
// ready to Run; its State starts at StateReady. Most callers should use
// Dial or Accept instead, which perform the handshake first.
func New(conn net.Conn, l logger.Logger, pieceTimeout time.Duration, maxRequestsIn int, fastEnabled bool, br, bw *ratelimit.Bucket) *Conn {
	c := &Conn{
		conn:     conn,
		reader:   peerreader.New(conn, l, pieceTimeout, fastEnabled, br),
		writer:   peerwriter.New(conn, l, maxRequestsIn, fastEnabled, bw),
		messages: make(chan interface{}),
		log:      l,
		closeC:   make(chan struct{}),
		doneC:    make(chan struct{}),
	}
	c.setState(StateReady)
	return c
}

// HasFastExtension reports whether the peer advertised BEP 6 support
// in its handshake reserved bytes (byte 7, bit 0x04).
func HasFastExtension(extensions [8]byte) bool {
	return extensions[7]&0x04 != 0
}

// HasExtensionProtocol reports whether the peer advertised BEP 10
// support in its handshake reserved bytes (byte 5, bit 0x10).
func HasExtensionProtocol(extensions [8]byte) bool {
	return extensions[5]&0x10 != 0
}

// DialResult is the outcome of a successful handshake, carrying
// everything New needs plus what the caller needs to identify the peer.
type DialResult struct {
	Conn           *Conn
	PeerExtensions [8]byte
	PeerID         [20]byte
}

// Dial connects to addr and performs the BitTorrent handshake. The
// returned Conn is created by New only after the handshake completes,
// so its State starts at StateReady; StateConnecting and
// StateHandshaking are never reported. Encryption, when enabled, is
// handled by btconn.Dial.
func Dial(
	addr net.Addr,
	dialTimeout, handshakeTimeout, pieceTimeout time.Duration,
	enableEncryption, forceEncryption bool,
	ourExtensions [8]byte, infoHash, ourID [20]byte,
	maxRequestsIn int,
	br, bw *ratelimit.Bucket,
	l logger.Logger,
	stopC chan struct{},
) (*DialResult, error) {
	netConn, _, peerExtensions, peerID, err := btconn.Dial(
		addr, dialTimeout, handshakeTimeout, enableEncryption, forceEncryption,
		ourExtensions, infoHash, ourID, stopC)
	if err != nil {
		return nil, err
	}
	fastEnabled := HasFastExtension(ourExtensions) && HasFastExtension(peerExtensions)
	c := New(netConn, l, pieceTimeout, maxRequestsIn, fastEnabled, br, bw)
	c.extensions = peerExtensions
	c.peerID = peerID
	return &DialResult{Conn: c, PeerExtensions: peerExtensions, PeerID: peerID}, nil
}

// Accept completes an inbound handshake on conn. getSKey/hasInfoHash
// mirror btconn.Accept's encryption and info-hash matching callbacks.
func Accept(
	conn net.Conn,
	handshakeTimeout, pieceTimeout time.Duration,
	getSKey func(sKeyHash [20]byte) []byte,
	forceEncryption bool,
	hasInfoHash func([20]byte) bool,
	ourExtensions [8]byte, ourID [20]byte,
	maxRequestsIn int,
	br, bw *ratelimit.Bucket,
	l logger.Logger,
) (*DialResult, error) {
	encConn, _, peerExtensions, peerID, _, err := btconn.Accept(
		conn, handshakeTimeout, getSKey, forceEncryption, hasInfoHash, ourExtensions, ourID)
	if err != nil {
		return nil, err
	}
	fastEnabled := HasFastExtension(ourExtensions) && HasFastExtension(peerExtensions)
	c := New(encConn, l, pieceTimeout, maxRequestsIn, fastEnabled, br, bw)
	c.extensions = peerExtensions
	c.peerID = peerID
	return &DialResult{Conn: c, PeerExtensions: peerExtensions, PeerID: peerID}, nil
}

// Addr returns the net.TCPAddr of the peer.
func (p *Conn) Addr() *net.TCPAddr {
	return p.conn.RemoteAddr().(*net.TCPAddr)
}

// IP returns the string representation of IP address.
func (p *Conn) IP() string {
	return p.conn.RemoteAddr().(*net.TCPAddr).IP.String()
}

// String returns the remote address as string.
func (p *Conn) String() string {
	return p.conn.RemoteAddr().String()
}

// Close stops receiving and sending messages and closes underlying net.Conn.
// Calling Close more than once panics, mirroring closing a channel twice:
// a connection is torn down exactly once.
func (p *Conn) Close() {
	close(p.closeC)
	<-p.doneC
}

// PeerID returns the 20-byte peer id learned during the handshake.
func (p *Conn) PeerID() [20]byte { return p.peerID }

// Extensions returns the peer's handshake reserved-byte extension flags.
func (p *Conn) Extensions() [8]byte { return p.extensions }

// Logger for the peer that logs messages prefixed with peer address.
func (p *Conn) Logger() logger.Logger {
	return p.log
}

// Messages received from the peer will be sent to the channel returned.
// The channel and underlying net.Conn will be closed if any error occurs while receiving or sending.
func (p *Conn) Messages() <-chan interface{} {
	return p.messages
}

// SendMessage queues a message for sending. Does not block.
func (p *Conn) SendMessage(msg peerwire.Message) {
	p.writer.SendMessage(msg)
}

// SendPiece queues a piece message for sending. Does not block.
// Piece data is read just before the message is sent.
// If `maxRequestsIn` (specified in constructor) piece messages are already queued, the oldest queued one is dropped.
func (p *Conn) SendPiece(msg peerwire.RequestMessage, pi io.ReaderAt) {
	p.writer.SendPiece(msg, pi)
}

// CancelRequest removes previously queued piece message matching msg.
func (p *Conn) CancelRequest(msg peerwire.CancelMessage) {
	p.writer.CancelRequest(msg)
}

// Run starts receiving messages from peer and starts sending queued messages.
// If any error happens during receiving or sending messages,
// the connection and the underlying net.Conn will be closed.
func (p *Conn) Run() {
	defer close(p.doneC)
	defer close(p.messages)
	defer p.setState(StateClosed)

	p.log.Debugln("Communicating peer", p.conn.RemoteAddr())

	go p.reader.Run()
	defer func() { <-p.reader.Done() }()

	go p.writer.Run()
	defer func() { <-p.writer.Done() }()

	defer p.conn.Close()
	for {
		select {
		case msg := <-p.reader.Messages():
			select {
			case p.messages <- msg:
			case <-p.closeC:
			}
		case msg := <-p.writer.Messages():
			select {
			case p.messages <- msg:
			case <-p.closeC:
			}
		case <-p.closeC:
			p.reader.Stop()
			p.writer.Stop()
			return
		case <-p.reader.Done():
			p.writer.Stop()
			return
		case <-p.writer.Done():
			p.reader.Stop()
			return
		}
	}
}
