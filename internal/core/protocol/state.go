package protocol

import "fmt"

// State is the protocol phase of a connection. It determines which packet ids
// the client is allowed to send.
type State int32

const (
	Handshake State = iota
	Status
	Login
	Transfer
	Config
	Play
)

func (s State) String() string {
	switch s {
	case Handshake:
		return "HANDSHAKE"
	case Status:
		return "STATUS"
	case Login:
		return "LOGIN"
	case Transfer:
		return "TRANSFER"
	case Config:
		return "CONFIG"
	case Play:
		return "PLAY"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Valid returns whether s is one of the defined states.
func (s State) Valid() bool {
	return s >= Handshake && s <= Play
}

// IntentState returns the state requested by the "next state" field of the
// handshake. Only STATUS, LOGIN and TRANSFER can be requested.
func IntentState(intent int32) (State, error) {
	switch s := State(intent); s {
	case Status, Login, Transfer:
		return s, nil
	default:
		return Handshake, fmt.Errorf("%w: handshake intent %d", ErrInvalidState, intent)
	}
}
