package addrlist

import (
	"net"

	"github.com/halsten/gorrent/internal/peer"
	"github.com/halsten/gorrent/internal/peerpriority"
	"github.com/google/btree"
)

type peerAddr struct {
	addr     *net.TCPAddr
	source   peer.Source
	priority peerpriority.Priority
}

var _ btree.Item = (*peerAddr)(nil)

func (p *peerAddr) Less(than btree.Item) bool {
	return p.priority < than.(*peerAddr).priority
}
