package peerreader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/halsten/gorrent/internal/bufferpool"
	"github.com/halsten/gorrent/internal/logger"
	"github.com/halsten/gorrent/internal/peerwire"
)

const (
	// MaxBlockSize is the largest block length we will accept inside a
	// Request or Piece message, per BEP 3 convention.
	MaxBlockSize = 16 * 1024
	// readTimeout is how long we wait for any message (including a
	// keep-alive) before dropping an unresponsive peer.
	readTimeout = 2 * time.Minute
	// length + msgid + requestmsg
	readBufferSize = 4 + 1 + 12
)

var blockPool = bufferpool.New(MaxBlockSize)

// PeerReader decodes peer-wire messages from a connection and publishes
// them on Messages. Block payloads of Piece messages are copied into a
// pooled buffer that the receiver must Release exactly once.
type PeerReader struct {
	conn         net.Conn
	r            io.Reader
	log          logger.Logger
	pieceTimeout time.Duration
	bucket       *ratelimit.Bucket
	fastEnabled  bool
	messages     chan interface{}
	stopC        chan struct{}
	doneC        chan struct{}
}

// New returns a PeerReader reading from conn. fastEnabled reports
// whether the fast extension (BEP 6) was negotiated with this peer;
// HAVE_ALL, HAVE_NONE, ALLOWED_FAST and REJECT_REQUEST are only valid
// to receive when it was.
func New(conn net.Conn, l logger.Logger, pieceTimeout time.Duration, fastEnabled bool, b *ratelimit.Bucket) *PeerReader {
	return &PeerReader{
		conn:         conn,
		r:            bufio.NewReaderSize(conn, readBufferSize),
		log:          l,
		pieceTimeout: pieceTimeout,
		bucket:       b,
		fastEnabled:  fastEnabled,
		messages:     make(chan interface{}),
		stopC:        make(chan struct{}),
		doneC:        make(chan struct{}),
	}
}

func (p *PeerReader) Messages() <-chan interface{} {
	return p.messages
}

func (p *PeerReader) Stop() {
	close(p.stopC)
}

func (p *PeerReader) Done() chan struct{} {
	return p.doneC
}

func (p *PeerReader) Run() {
	defer close(p.doneC)

	var err error
	defer func() {
		if err == nil {
			return
		} else if err == io.EOF { // peer closed the connection
			return
		} else if err == io.ErrUnexpectedEOF {
			return
		} else if err == errStoppedWhileWaitingBucket {
			return
		} else if _, ok := err.(*net.OpError); ok {
			return
		}
		select {
		case <-p.stopC: // don't log error if peer is stopped
		default:
			p.log.Error(err)
		}
	}()

	first := true
	for {
		err = p.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err != nil {
			return
		}

		var length uint32
		err = binary.Read(p.r, binary.BigEndian, &length)
		if err != nil {
			return
		}

		if length == 0 { // keep-alive message
			p.log.Debug("Received message of type \"keep alive\"")
			continue
		}

		var id peerwire.MessageID
		err = binary.Read(p.r, binary.BigEndian, &id)
		if err != nil {
			return
		}
		length--

		var msg interface{}

		switch id {
		case peerwire.Choke:
			p.log.Debug("Received Choke")
			msg = peerwire.ChokeMessage{}
		case peerwire.Unchoke:
			p.log.Debug("Received Unchoke")
			msg = peerwire.UnchokeMessage{}
		case peerwire.Interested:
			p.log.Debug("Received Interested")
			msg = peerwire.InterestedMessage{}
		case peerwire.NotInterested:
			p.log.Debug("Received NotInterested")
			msg = peerwire.NotInterestedMessage{}
		case peerwire.Have:
			var hm peerwire.HaveMessage
			err = binary.Read(p.r, binary.BigEndian, &hm)
			if err != nil {
				return
			}
			msg = hm
		case peerwire.Bitfield:
			if !first {
				err = errors.New("bitfield can only be sent as the first message")
				return
			}
			var bm peerwire.BitfieldMessage
			bm.Data = make([]byte, length)
			_, err = io.ReadFull(p.r, bm.Data)
			if err != nil {
				return
			}
			msg = bm
		case peerwire.Request:
			var rm peerwire.RequestMessage
			err = binary.Read(p.r, binary.BigEndian, &rm)
			if err != nil {
				return
			}
			if rm.Length > MaxBlockSize {
				err = fmt.Errorf("received a request with block size larger than allowed (%d > %d)", rm.Length, MaxBlockSize)
				return
			}
			msg = rm
		case peerwire.Reject:
			if !p.fastEnabled {
				err = errors.New("received reject_request without fast extension")
				return
			}
			var rm peerwire.RejectMessage
			err = binary.Read(p.r, binary.BigEndian, &rm)
			if err != nil {
				return
			}
			p.log.Debugf("Received Reject: %+v", rm)
			msg = rm
		case peerwire.Cancel:
			var cm peerwire.CancelMessage
			err = binary.Read(p.r, binary.BigEndian, &cm)
			if err != nil {
				return
			}
			msg = cm
		case peerwire.Piece:
			var pm peerwire.PieceMessage
			err = binary.Read(p.r, binary.BigEndian, &pm)
			if err != nil {
				return
			}
			length -= 8
			if length > MaxBlockSize {
				err = fmt.Errorf("received a piece with block size larger than allowed (%d > %d)", length, MaxBlockSize)
				return
			}
			var buf *bufferpool.Buffer
			buf, err = p.readPiece(length)
			if err != nil {
				return
			}
			msg = Piece{PieceMessage: pm, Buffer: buf}
		case peerwire.HaveAll:
			if !p.fastEnabled {
				err = errors.New("received have_all without fast extension")
				return
			}
			if !first {
				err = errors.New("have_all can only be sent as the first message")
				return
			}
			msg = peerwire.HaveAllMessage{}
		case peerwire.HaveNone:
			if !p.fastEnabled {
				err = errors.New("received have_none without fast extension")
				return
			}
			if !first {
				err = errors.New("have_none can only be sent as the first message")
				return
			}
			msg = peerwire.HaveNoneMessage{}
		case peerwire.AllowedFast:
			if !p.fastEnabled {
				err = errors.New("received allowed_fast without fast extension")
				return
			}
			var am peerwire.AllowedFastMessage
			err = binary.Read(p.r, binary.BigEndian, &am)
			if err != nil {
				return
			}
			msg = am
		case peerwire.Port:
			var pm peerwire.PortMessage
			err = binary.Read(p.r, binary.BigEndian, &pm)
			if err != nil {
				return
			}
			msg = pm
		case peerwire.Suggest:
			if !p.fastEnabled {
				err = errors.New("received suggest_piece without fast extension")
				return
			}
			var sm peerwire.SuggestPieceMessage
			err = binary.Read(p.r, binary.BigEndian, &sm)
			if err != nil {
				return
			}
			msg = sm
		case peerwire.HashRequest:
			buf := make([]byte, length)
			_, err = io.ReadFull(p.r, buf)
			if err != nil {
				return
			}
			var hrm peerwire.HashRequestMessage
			err = hrm.UnmarshalBinary(buf)
			if err != nil {
				return
			}
			msg = hrm
		case peerwire.Hashes:
			buf := make([]byte, length)
			_, err = io.ReadFull(p.r, buf)
			if err != nil {
				return
			}
			var hm peerwire.HashesMessage
			err = hm.UnmarshalBinary(buf)
			if err != nil {
				return
			}
			msg = hm
		case peerwire.HashReject:
			buf := make([]byte, length)
			_, err = io.ReadFull(p.r, buf)
			if err != nil {
				return
			}
			var hrm peerwire.HashRejectMessage
			err = hrm.UnmarshalBinary(buf)
			if err != nil {
				return
			}
			msg = hrm
		case peerwire.Extension:
			buf := make([]byte, length)
			_, err = io.ReadFull(p.r, buf)
			if err != nil {
				return
			}
			var em peerwire.ExtensionMessage
			err = em.UnmarshalBinary(buf)
			if err != nil {
				return
			}
			msg = em.Payload
		default:
			p.log.Debugf("unhandled message type: %s", id)
			_, err = io.CopyN(ioutil.Discard, p.r, int64(length))
			if err != nil {
				return
			}
			continue
		}
		if msg == nil {
			panic("msg unset")
		}
		// Only message types defined in BEP 3 (and the fast extension,
		// BEP 6) count toward "first message"; extension-protocol
		// traffic doesn't.
		if id <= peerwire.AllowedFast {
			first = false
		}
		select {
		case p.messages <- msg:
		case <-p.stopC:
			return
		}
	}
}

func (p *PeerReader) readPiece(length uint32) (buf *bufferpool.Buffer, err error) {
	buf = blockPool.Get(int(length))
	defer func() {
		if err != nil {
			buf.Release()
		}
	}()

	var n, m int
	for {
		if p.bucket != nil {
			d := p.bucket.Take(int64(length))
			select {
			case <-time.After(d):
			case <-p.stopC:
				err = errStoppedWhileWaitingBucket
				return
			}
		}

		err = p.conn.SetReadDeadline(time.Now().Add(p.pieceTimeout))
		if err != nil {
			return
		}
		n, err = io.ReadFull(p.r, buf.Data[m:])
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				// Peer didn't send the full block in allowed time.
				if n > 0 {
					// Some bytes received, peer appears to be slow, keep receiving the rest.
					m += n
					continue
				}
				// Disconnect if no bytes received.
				return
			}
			// Error other than timeout
			return
		}
		// Received full block.
		return
	}
}

var errStoppedWhileWaitingBucket = errors.New("peer reader stopped while waiting for bucket")
