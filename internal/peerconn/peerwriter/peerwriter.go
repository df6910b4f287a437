package peerwriter

import (
	"bytes"
	"container/list"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/halsten/gorrent/internal/logger"
	"github.com/halsten/gorrent/internal/peerwire"
)

const (
	// keepAliveSendInterval is how often we send a keep-alive to a
	// silent peer; must stay well under their own read timeout.
	keepAliveSendInterval = 90 * time.Second
	maxBlockSize          = 16 * 1024
	// defaultMarshalBufSize fits every fixed-size message we send, up to
	// a full-length Piece block; a HashesMessage reports its own size via
	// sizer below.
	defaultMarshalBufSize = 8 + maxBlockSize
)

// PeerWriter serializes outgoing peer-wire messages and writes them to
// the connection, one goroutine queuing and one writing so a slow
// write never blocks the caller of SendMessage.
type PeerWriter struct {
	conn          net.Conn
	queueC        chan peerwire.Message
	cancelC       chan peerwire.CancelMessage
	writeQueue    *list.List
	writeC        chan peerwire.Message
	messages      chan interface{}
	log           logger.Logger
	maxRequestsIn int
	fastEnabled   bool
	bucket        *ratelimit.Bucket
	stopC         chan struct{}
	doneC         chan struct{}
}

// New returns a PeerWriter for conn. maxRequestsIn caps how many Piece
// messages may sit queued for this peer at once; past that, the
// oldest queued piece is dropped (and, when fastEnabled, rejected
// explicitly via REJECT_REQUEST per BEP 6) rather than letting a slow
// peer's request queue grow without bound. bucket, if non-nil, throttles
// outbound piece payload bytes.
func New(conn net.Conn, l logger.Logger, maxRequestsIn int, fastEnabled bool, bucket *ratelimit.Bucket) *PeerWriter {
	return &PeerWriter{
		conn:          conn,
		queueC:        make(chan peerwire.Message),
		cancelC:       make(chan peerwire.CancelMessage),
		writeQueue:    list.New(),
		writeC:        make(chan peerwire.Message),
		messages:      make(chan interface{}),
		log:           l,
		maxRequestsIn: maxRequestsIn,
		fastEnabled:   fastEnabled,
		bucket:        bucket,
		stopC:         make(chan struct{}),
		doneC:         make(chan struct{}),
	}
}

func (p *PeerWriter) Messages() <-chan interface{} {
	return p.messages
}

func (p *PeerWriter) SendMessage(msg peerwire.Message) {
	select {
	case p.queueC <- msg:
	case <-p.doneC:
	}
}

func (p *PeerWriter) SendPiece(msg peerwire.RequestMessage, pi io.ReaderAt) {
	m := Piece{Data: pi, RequestMessage: msg}
	select {
	case p.queueC <- m:
	case <-p.doneC:
	}
}

func (p *PeerWriter) CancelRequest(msg peerwire.CancelMessage) {
	select {
	case p.cancelC <- msg:
	case <-p.doneC:
	}
}

func (p *PeerWriter) Stop() {
	close(p.stopC)
}

func (p *PeerWriter) Done() chan struct{} {
	return p.doneC
}

func (p *PeerWriter) Run() {
	defer close(p.doneC)

	go p.messageWriter()

	for {
		var (
			e      *list.Element
			msg    peerwire.Message
			writeC chan peerwire.Message
		)
		if p.writeQueue.Len() > 0 {
			e = p.writeQueue.Front()
			msg = e.Value.(peerwire.Message)
			writeC = p.writeC
		}
		select {
		case msg = <-p.queueC:
			p.queueMessage(msg)
		case writeC <- msg:
			p.writeQueue.Remove(e)
		case cm := <-p.cancelC:
			p.cancelRequest(cm)
		case <-p.stopC:
			return
		}
	}
}

func (p *PeerWriter) queueMessage(msg peerwire.Message) {
	if _, ok := msg.(peerwire.ChokeMessage); ok {
		p.cancelQueuedPieceMessages()
	}
	if _, ok := msg.(Piece); ok && p.maxRequestsIn > 0 && p.queuedPieceCount() >= p.maxRequestsIn {
		p.dropOldestPiece()
	}
	p.writeQueue.PushBack(msg)
}

func (p *PeerWriter) queuedPieceCount() int {
	n := 0
	for e := p.writeQueue.Front(); e != nil; e = e.Next() {
		if _, ok := e.Value.(Piece); ok {
			n++
		}
	}
	return n
}

// dropOldestPiece evicts the longest-queued Piece response. With the
// fast extension enabled we owe the peer an explicit REJECT_REQUEST
// rather than silently going quiet on that block.
func (p *PeerWriter) dropOldestPiece() {
	for e := p.writeQueue.Front(); e != nil; e = e.Next() {
		pi, ok := e.Value.(Piece)
		if !ok {
			continue
		}
		p.writeQueue.Remove(e)
		if p.fastEnabled {
			p.writeQueue.PushBack(peerwire.RejectMessage{RequestMessage: pi.RequestMessage})
		}
		return
	}
}

func (p *PeerWriter) cancelQueuedPieceMessages() {
	var next *list.Element
	for e := p.writeQueue.Front(); e != nil; e = next {
		next = e.Next()
		if _, ok := e.Value.(Piece); ok {
			p.writeQueue.Remove(e)
		}
	}
}

func (p *PeerWriter) cancelRequest(cm peerwire.CancelMessage) {
	for e := p.writeQueue.Front(); e != nil; e = e.Next() {
		if pi, ok := e.Value.(Piece); ok && pi.Index == cm.Index && pi.Begin == cm.Begin && pi.Length == cm.Length {
			p.writeQueue.Remove(e)
			break
		}
	}
}

func (p *PeerWriter) messageWriter() {
	defer p.conn.Close()

	// Disable write deadline that is previously set by handshaker.
	err := p.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		p.log.Error(err)
		return
	}

	keepAliveTicker := time.NewTicker(keepAliveSendInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case msg := <-p.writeC:
			payload, err := marshal(msg)
			if err != nil {
				p.log.Errorf("cannot marshal message [%v]: %s", msg.ID(), err.Error())
				return
			}
			if p.bucket != nil {
				if _, ok := msg.(Piece); ok {
					d := p.bucket.Take(int64(len(payload)))
					select {
					case <-time.After(d):
					case <-p.stopC:
						return
					}
				}
			}
			buf := bytes.NewBuffer(make([]byte, 0, 4+1+len(payload)))
			var header = struct {
				Length uint32
				ID     peerwire.MessageID
			}{
				Length: uint32(1 + len(payload)),
				ID:     msg.ID(),
			}
			_ = binary.Write(buf, binary.BigEndian, &header)
			buf.Write(payload)
			n, err := p.conn.Write(buf.Bytes())
			p.countUploadBytes(msg, n)
			if _, ok := err.(*net.OpError); ok {
				p.log.Debugf("cannot write message [%v]: %s", msg.ID(), err.Error())
				return
			}
			if err != nil {
				p.log.Errorf("cannot write message [%v]: %s", msg.ID(), err.Error())
				return
			}
		case <-keepAliveTicker.C:
			_, err := p.conn.Write([]byte{0, 0, 0, 0})
			if _, ok := err.(*net.OpError); ok {
				p.log.Debugf("cannot write keepalive message: %s", err.Error())
				return
			}
			if err != nil {
				p.log.Errorf("cannot write keepalive message: %s", err.Error())
				return
			}
		case <-p.stopC:
			return
		}
	}
}

// marshal reads msg's payload bytes. Extension-protocol messages carry
// a bencoded envelope and implement io.WriterTo instead of the usual
// fixed-layout Read; every other message type writes into a
// preallocated buffer sized for the largest payload we ever send (a
// full-length Piece block).
// sizer is implemented by message types whose payload size isn't fixed
// by their Go type alone, such as HashesMessage.
type sizer interface {
	Len() int
}

func marshal(msg peerwire.Message) ([]byte, error) {
	if wt, ok := msg.(io.WriterTo); ok {
		var b bytes.Buffer
		if _, err := wt.WriteTo(&b); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}
	size := defaultMarshalBufSize
	if s, ok := msg.(sizer); ok {
		size = s.Len()
	}
	buf := make([]byte, size)
	n, err := msg.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (p *PeerWriter) countUploadBytes(msg peerwire.Message, n int) {
	if _, ok := msg.(Piece); ok {
		uploaded := n - 13
		if uploaded < 0 {
			uploaded = 0
		}
		if uploaded > 0 {
			select {
			case p.messages <- BlockUploaded{Length: uint32(uploaded)}:
			case <-p.stopC:
			}
		}
	}
}
