package peerwire

import "fmt"

// MessageID identifies the type of a peer-wire protocol message: the
// core set from BEP 3 (0-9), the fast extension additions from BEP 6
// (13-17), the extension-protocol envelope from BEP 10 (20), and the
// v2 Merkle-hash exchange from BEP 52 (21-23).
type MessageID uint8

const (
	Choke         MessageID = 0
	Unchoke       MessageID = 1
	Interested    MessageID = 2
	NotInterested MessageID = 3
	Have          MessageID = 4
	Bitfield      MessageID = 5
	Request       MessageID = 6
	Piece         MessageID = 7
	Cancel        MessageID = 8
	Port          MessageID = 9

	Suggest     MessageID = 13
	HaveAll     MessageID = 14
	HaveNone    MessageID = 15
	Reject      MessageID = 16
	AllowedFast MessageID = 17

	Extension MessageID = 20

	HashRequest MessageID = 21
	Hashes      MessageID = 22
	HashReject  MessageID = 23
)

func (id MessageID) String() string {
	switch id {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	case Port:
		return "port"
	case Suggest:
		return "suggest_piece"
	case HaveAll:
		return "have_all"
	case HaveNone:
		return "have_none"
	case Reject:
		return "reject_request"
	case AllowedFast:
		return "allowed_fast"
	case Extension:
		return "extended"
	case HashRequest:
		return "hash_request"
	case Hashes:
		return "hashes"
	case HashReject:
		return "hash_reject"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}
