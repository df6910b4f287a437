package peerwire

import (
	"encoding/binary"
	"io"
)

// hashSize is the length in bytes of a single node in a v2 Merkle
// piece-layer hash tree (SHA-256, per BEP 52).
const hashSize = 32

// hashMsgHeaderSize is the length of the fixed head shared by
// HashRequestMessage, HashesMessage and HashRejectMessage:
// pieces_root ‖ base_layer ‖ index ‖ length ‖ proof_layers.
const hashMsgHeaderSize = hashSize + 4 + 4 + 4 + 4

// HashRequestMessage asks a peer for a contiguous run of hashes from
// one layer of the Merkle tree rooted at PiecesRoot. Length must be a
// power of two in [2,512] and Index must be a multiple of Length.
type HashRequestMessage struct {
	PiecesRoot  [hashSize]byte
	BaseLayer   uint32
	Index       uint32
	Length      uint32
	ProofLayers uint32
}

// ID returns the peer protocol message type.
func (m HashRequestMessage) ID() MessageID { return HashRequest }

// Read message data into buffer b.
func (m HashRequestMessage) Read(b []byte) (int, error) {
	n := writeHashMsgHeader(b, m.PiecesRoot, m.BaseLayer, m.Index, m.Length, m.ProofLayers)
	return n, io.EOF
}

// HashesMessage answers a HashRequestMessage with Length leaf hashes
// from the requested layer plus ProofLayers uncle hashes needed to
// verify them against PiecesRoot.
type HashesMessage struct {
	PiecesRoot  [hashSize]byte
	BaseLayer   uint32
	Index       uint32
	Length      uint32
	ProofLayers uint32
	Hashes      [][hashSize]byte // leaf hashes, Length entries
	Proof       [][hashSize]byte // uncle hashes, ProofLayers entries
}

// ID returns the peer protocol message type.
func (m HashesMessage) ID() MessageID { return Hashes }

// Len returns the exact encoded payload size, since it varies with the
// number of hashes carried.
func (m HashesMessage) Len() int {
	return hashMsgHeaderSize + (len(m.Hashes)+len(m.Proof))*hashSize
}

// Read message data into buffer b.
func (m HashesMessage) Read(b []byte) (int, error) {
	n := writeHashMsgHeader(b, m.PiecesRoot, m.BaseLayer, m.Index, m.Length, m.ProofLayers)
	for _, h := range m.Hashes {
		n += copy(b[n:], h[:])
	}
	for _, h := range m.Proof {
		n += copy(b[n:], h[:])
	}
	return n, io.EOF
}

// UnmarshalBinary parses a HASHES message payload, excluding the
// 1-byte message id that peerreader strips before calling this.
func (m *HashesMessage) UnmarshalBinary(data []byte) error {
	if len(data) < hashMsgHeaderSize {
		return io.ErrUnexpectedEOF
	}
	copy(m.PiecesRoot[:], data[0:hashSize])
	off := hashSize
	m.BaseLayer = binary.BigEndian.Uint32(data[off:])
	off += 4
	m.Index = binary.BigEndian.Uint32(data[off:])
	off += 4
	m.Length = binary.BigEndian.Uint32(data[off:])
	off += 4
	m.ProofLayers = binary.BigEndian.Uint32(data[off:])
	off += 4

	need := off + int(m.Length+m.ProofLayers)*hashSize
	if len(data) < need {
		return io.ErrUnexpectedEOF
	}
	m.Hashes = make([][hashSize]byte, m.Length)
	for i := range m.Hashes {
		copy(m.Hashes[i][:], data[off:off+hashSize])
		off += hashSize
	}
	m.Proof = make([][hashSize]byte, m.ProofLayers)
	for i := range m.Proof {
		copy(m.Proof[i][:], data[off:off+hashSize])
		off += hashSize
	}
	return nil
}

// HashRejectMessage tells a peer that a HashRequestMessage will not be
// answered, carrying the same head as the request it refuses.
type HashRejectMessage struct {
	PiecesRoot  [hashSize]byte
	BaseLayer   uint32
	Index       uint32
	Length      uint32
	ProofLayers uint32
}

// ID returns the peer protocol message type.
func (m HashRejectMessage) ID() MessageID { return HashReject }

// Read message data into buffer b.
func (m HashRejectMessage) Read(b []byte) (int, error) {
	n := writeHashMsgHeader(b, m.PiecesRoot, m.BaseLayer, m.Index, m.Length, m.ProofLayers)
	return n, io.EOF
}

func writeHashMsgHeader(b []byte, root [hashSize]byte, baseLayer, index, length, proofLayers uint32) int {
	copy(b[0:hashSize], root[:])
	off := hashSize
	binary.BigEndian.PutUint32(b[off:], baseLayer)
	off += 4
	binary.BigEndian.PutUint32(b[off:], index)
	off += 4
	binary.BigEndian.PutUint32(b[off:], length)
	off += 4
	binary.BigEndian.PutUint32(b[off:], proofLayers)
	off += 4
	return off
}

// unmarshalHashMsgHeader parses a HASH_REQUEST or HASH_REJECT payload,
// which share the same fixed-size head and carry no trailing data.
func unmarshalHashMsgHeader(data []byte) (root [hashSize]byte, baseLayer, index, length, proofLayers uint32, err error) {
	if len(data) < hashMsgHeaderSize {
		err = io.ErrUnexpectedEOF
		return
	}
	copy(root[:], data[0:hashSize])
	off := hashSize
	baseLayer = binary.BigEndian.Uint32(data[off:])
	off += 4
	index = binary.BigEndian.Uint32(data[off:])
	off += 4
	length = binary.BigEndian.Uint32(data[off:])
	off += 4
	proofLayers = binary.BigEndian.Uint32(data[off:])
	return
}

// UnmarshalBinary parses a HASH_REQUEST message payload.
func (m *HashRequestMessage) UnmarshalBinary(data []byte) error {
	root, baseLayer, index, length, proofLayers, err := unmarshalHashMsgHeader(data)
	if err != nil {
		return err
	}
	m.PiecesRoot, m.BaseLayer, m.Index, m.Length, m.ProofLayers = root, baseLayer, index, length, proofLayers
	return nil
}

// UnmarshalBinary parses a HASH_REJECT message payload.
func (m *HashRejectMessage) UnmarshalBinary(data []byte) error {
	root, baseLayer, index, length, proofLayers, err := unmarshalHashMsgHeader(data)
	if err != nil {
		return err
	}
	m.PiecesRoot, m.BaseLayer, m.Index, m.Length, m.ProofLayers = root, baseLayer, index, length, proofLayers
	return nil
}
