package dialer

import (
	"net"

	"github.com/halsten/gorrent/internal/logger"
	"github.com/halsten/gorrent/internal/peer"
	"github.com/halsten/gorrent/internal/peerlist"
	"github.com/halsten/gorrent/internal/peermanager/dialer/handler"
	"github.com/halsten/gorrent/internal/peermanager/peerids"
	"github.com/halsten/gorrent/internal/worker"
)

const maxDial = 40

type Dialer struct {
	peerList    *peerlist.PeerList
	peerIDs     *peerids.PeerIDs
	peerID      [20]byte
	infoHash    [20]byte
	newPeers    chan *peer.Peer
	connectC    chan net.Conn
	disconnectC chan net.Conn
	workers     worker.Workers
	limiter     chan struct{}
	log         logger.Logger
}

func New(peerList *peerlist.PeerList, peerIDs *peerids.PeerIDs, peerID, infoHash [20]byte, newPeers chan *peer.Peer, connectC, disconnectC chan net.Conn, l logger.Logger) *Dialer {
	return &Dialer{
		peerList:    peerList,
		peerIDs:     peerIDs,
		peerID:      peerID,
		infoHash:    infoHash,
		newPeers:    newPeers,
		connectC:    connectC,
		disconnectC: disconnectC,
		limiter:     make(chan struct{}, maxDial),
		log:         l,
	}
}

func (d *Dialer) Run(stopC chan struct{}) {
	for {
		select {
		case d.limiter <- struct{}{}:
			select {
			case addr := <-d.peerList.Get():
				h := handler.New(addr, d.peerIDs, d.peerID, d.infoHash, d.newPeers, d.connectC, d.disconnectC, d.log)
				d.workers.StartWithOnFinishHandler(h, func() { <-d.limiter })
			case <-stopC:
				d.workers.Stop()
				return
			}
		case <-stopC:
			d.workers.Stop()
			return
		}
	}
}
