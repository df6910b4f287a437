package peerwire

import (
	"bytes"
	"testing"
)

func TestHashRequestRoundTrip(t *testing.T) {
	m := HashRequestMessage{
		BaseLayer:   1,
		Index:       4,
		Length:      4,
		ProofLayers: 2,
	}
	for i := range m.PiecesRoot {
		m.PiecesRoot[i] = byte(i)
	}
	buf := make([]byte, hashMsgHeaderSize)
	n, err := m.Read(buf)
	if err != nil && err.Error() != "EOF" {
		t.Fatal(err)
	}
	if n != hashMsgHeaderSize {
		t.Fatalf("n: %d", n)
	}
	var got HashRequestMessage
	if err := got.UnmarshalBinary(buf[:n]); err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Errorf("got %+v, want %+v", got, m)
	}
}

func TestHashesRoundTrip(t *testing.T) {
	m := HashesMessage{
		BaseLayer:   0,
		Index:       0,
		Length:      2,
		ProofLayers: 1,
		Hashes:      [][hashSize]byte{{1}, {2}},
		Proof:       [][hashSize]byte{{3}},
	}
	buf := make([]byte, m.Len())
	n, err := m.Read(buf)
	if err != nil && err.Error() != "EOF" {
		t.Fatal(err)
	}
	if n != m.Len() {
		t.Fatalf("n: %d, want %d", n, m.Len())
	}
	var got HashesMessage
	if err := got.UnmarshalBinary(buf[:n]); err != nil {
		t.Fatal(err)
	}
	if got.Index != m.Index || got.Length != m.Length || got.ProofLayers != m.ProofLayers {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if !bytes.Equal(got.Hashes[0][:], m.Hashes[0][:]) || !bytes.Equal(got.Hashes[1][:], m.Hashes[1][:]) {
		t.Errorf("hashes mismatch: got %+v, want %+v", got.Hashes, m.Hashes)
	}
	if !bytes.Equal(got.Proof[0][:], m.Proof[0][:]) {
		t.Errorf("proof mismatch: got %+v, want %+v", got.Proof, m.Proof)
	}
}

func TestAllowedFastAndSuggestIDs(t *testing.T) {
	if (AllowedFastMessage{}).ID() != AllowedFast {
		t.Error("AllowedFastMessage.ID() must not fall through to the embedded HaveMessage's id")
	}
	if (SuggestPieceMessage{}).ID() != Suggest {
		t.Error("SuggestPieceMessage.ID() must not fall through to the embedded HaveMessage's id")
	}
}
