// Package merkle implements BEP 52's per-file Merkle tree: building
// leaf hashes over 16 KiB blocks, generating proofs for a piece, and
// verifying a proof against a file's pieces_root.
package merkle

import (
	"fmt"

	sha256simd "github.com/minio/sha256-simd"
)

// BlockSize is the fixed leaf granularity of a v2 Merkle tree, per BEP 52.
const BlockSize = 16 * 1024

// HashSize is the width of a SHA-256 digest.
const HashSize = 32

type Hash [HashSize]byte

func sum(data []byte) Hash {
	h := sha256simd.Sum256(data)
	return h
}

func hashPair(left, right Hash) Hash {
	var buf [HashSize * 2]byte
	copy(buf[:HashSize], left[:])
	copy(buf[HashSize:], right[:])
	return sum(buf[:])
}

// Tree is the full binary Merkle tree of one file's 16 KiB blocks,
// padded up to the next power of two with zero-hash leaves.
type Tree struct {
	layers [][]Hash // layers[0] is leaves, last layer has one entry: the root
}

// Build hashes fileBytes in 16 KiB blocks (zero-padding the final
// short block) and constructs every layer up to the root.
func Build(fileBytes []byte) *Tree {
	var leaves []Hash
	for off := 0; off < len(fileBytes); off += BlockSize {
		end := off + BlockSize
		if end > len(fileBytes) {
			end = len(fileBytes)
		}
		leaves = append(leaves, hashBlock(fileBytes[off:end]))
	}
	if len(leaves) == 0 {
		leaves = []Hash{hashBlock(nil)}
	}
	return buildFromLeaves(leaves)
}

func hashBlock(block []byte) Hash {
	if len(block) == BlockSize {
		return sum(block)
	}
	padded := make([]byte, BlockSize)
	copy(padded, block)
	return sum(padded)
}

func buildFromLeaves(leaves []Hash) *Tree {
	n := nextPowerOfTwo(len(leaves))
	padded := make([]Hash, n)
	copy(padded, leaves)
	// BEP 52 pads missing leaves with the hash of an all-zero block.
	zeroLeaf := hashBlock(nil)
	for i := len(leaves); i < n; i++ {
		padded[i] = zeroLeaf
	}
	layers := [][]Hash{padded}
	for len(layers[len(layers)-1]) > 1 {
		cur := layers[len(layers)-1]
		next := make([]Hash, len(cur)/2)
		for i := range next {
			next[i] = hashPair(cur[2*i], cur[2*i+1])
		}
		layers = append(layers, next)
	}
	return &Tree{layers: layers}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Root returns the tree's root hash, equal to pieces_root for a
// correctly-built file.
func (t *Tree) Root() Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// SelectLayer returns the 0-indexed layer whose nodes each cover
// exactly pieceLength bytes, per spec §4.2:
// select_layer(piece_length) = log2(piece_length / 16 KiB).
func SelectLayer(pieceLength uint32) (int, error) {
	if pieceLength < BlockSize || pieceLength%BlockSize != 0 {
		return 0, fmt.Errorf("merkle: piece length %d is not a multiple of %d", pieceLength, BlockSize)
	}
	blocks := pieceLength / BlockSize
	layer := 0
	for (1 << layer) < int(blocks) {
		layer++
	}
	if (1 << layer) != int(blocks) {
		return 0, fmt.Errorf("merkle: piece length %d is not a power-of-two multiple of block size", pieceLength)
	}
	return layer, nil
}

// Proof is the sequence of uncle hashes needed to recompute the root
// from one piece-layer node, ordered from the piece layer upward.
type Proof struct {
	PieceIndex  uint32
	PieceLength uint32
	Layer       int
	Uncles      []Hash
}

// GenerateProof walks root-ward from the node at (layer, pieceIndex),
// collecting the sibling of the current node at each level. Sibling
// hashes are copied out of the tree's own layers into the returned
// Proof, so the proof does not share memory with the tree.
func (t *Tree) GenerateProof(pieceLength uint32, pieceIndex uint32) (Proof, error) {
	layer, err := SelectLayer(pieceLength)
	if err != nil {
		return Proof{}, err
	}
	proof, err := t.GenerateProofAtLayer(layer, pieceIndex)
	if err != nil {
		return Proof{}, err
	}
	proof.PieceLength = pieceLength
	return proof, nil
}

// GenerateProofAtLayer is the layer-indexed form GenerateProof builds
// on. It is also used directly against a tree built from a published
// piece-layer (BuildFromPieceLayer), where the leaves already are the
// piece hashes and no piece_length is available to derive the layer
// from.
func (t *Tree) GenerateProofAtLayer(layer int, pieceIndex uint32) (Proof, error) {
	if layer >= len(t.layers) {
		return Proof{}, fmt.Errorf("merkle: selected layer %d exceeds tree height %d", layer, len(t.layers)-1)
	}
	if int(pieceIndex) >= len(t.layers[layer]) {
		return Proof{}, fmt.Errorf("merkle: piece index %d out of range at layer %d", pieceIndex, layer)
	}
	var uncles []Hash
	node := pieceIndex
	for l := layer; l < len(t.layers)-1; l++ {
		sibling := node ^ 1
		uncles = append(uncles, t.layers[l][sibling])
		node /= 2
	}
	return Proof{PieceIndex: pieceIndex, Layer: layer, Uncles: uncles}, nil
}

// BuildFromPieceLayer treats a file's published piece-layer hashes (as
// carried in a torrent's "piece layers" dict) as the leaves of a
// reduced tree reaching up to pieces_root. Proofs generated against it
// use layer 0, since the piece-layer hashes are themselves what
// VerifyProof's caller hashes a whole piece down to.
func BuildFromPieceLayer(hashes []Hash) *Tree {
	return buildFromLeaves(hashes)
}

// VerifyProof recomputes the leaf→selected-layer hash for pieceBytes
// (zero-padding the final block if short), climbs the proof's uncle
// hashes, and reports whether the result equals root. All
// intermediate hash values are stack-local and released on return.
func VerifyProof(pieceBytes []byte, proof Proof, root Hash) bool {
	cur := hashPieceBytes(pieceBytes)
	node := proof.PieceIndex
	for _, uncle := range proof.Uncles {
		if node&1 == 0 {
			cur = hashPair(cur, uncle)
		} else {
			cur = hashPair(uncle, cur)
		}
		node /= 2
	}
	return cur == root
}

// hashPieceBytes hashes a whole piece (possibly many blocks) down to
// the hash that would appear at the piece layer: it builds a small
// local subtree over just this piece's blocks.
func hashPieceBytes(pieceBytes []byte) Hash {
	var leaves []Hash
	for off := 0; off < len(pieceBytes); off += BlockSize {
		end := off + BlockSize
		if end > len(pieceBytes) {
			end = len(pieceBytes)
		}
		leaves = append(leaves, hashBlock(pieceBytes[off:end]))
	}
	if len(leaves) == 0 {
		leaves = []Hash{hashBlock(nil)}
	}
	sub := buildFromLeaves(leaves)
	return sub.Root()
}
