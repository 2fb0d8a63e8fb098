package proto

import "fmt"

// MessageKind enumerates the control messages that drive state transitions.
type MessageKind int

const (
	// MsgHandshake carries a requested next state.
	MsgHandshake MessageKind = iota
	// MsgLoginSuccess forces the transition to Play.
	MsgLoginSuccess
	// MsgSetCompression updates the compression threshold in Login or Play.
	MsgSetCompression
	// MsgDisconnect is the informative Play-state disconnect.
	MsgDisconnect
)

// String returns the message kind name.
func (k MessageKind) String() string {
	switch k {
	case MsgHandshake:
		return "Handshake"
	case MsgLoginSuccess:
		return "Login Success"
	case MsgSetCompression:
		return "Set Compression"
	case MsgDisconnect:
		return "Disconnect"
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}

// Input is a control message fed into Transition.
type Input struct {
	Kind MessageKind

	// NextState is the requested state for MsgHandshake.
	NextState State

	// Threshold is the compression threshold for MsgSetCompression.
	// Negative disables compression.
	Threshold int32
}

// Result describes the outcome of a transition: the next protocol state and
// any side effects the connection must apply.
type Result struct {
	Next State

	// SetThreshold is true when the connection must update its compression
	// threshold to Threshold.
	SetThreshold bool
	Threshold    int32

	// Teardown is true when the message announces that the server is about
	// to close the connection. The state itself does not change; tearing
	// the connection down is the driver's decision.
	Teardown bool
}

// TransitionError reports a control message that is not valid in the
// current protocol state.
type TransitionError struct {
	State State
	Kind  MessageKind
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not valid in state %s", e.Kind, e.State)
}

// Transition computes the next protocol state and side effects for a control
// message. It is pure: it neither performs I/O nor mutates the connection.
func Transition(cur State, in Input) (Result, error) {
	switch in.Kind {
	case MsgHandshake:
		if cur != Handshake {
			return Result{}, &TransitionError{State: cur, Kind: in.Kind}
		}
		if in.NextState != Status && in.NextState != Login {
			return Result{}, fmt.Errorf("handshake requested invalid next state %d", int32(in.NextState))
		}
		return Result{Next: in.NextState}, nil

	case MsgLoginSuccess:
		if cur != Login {
			return Result{}, &TransitionError{State: cur, Kind: in.Kind}
		}
		return Result{Next: Play}, nil

	case MsgSetCompression:
		if cur != Login && cur != Play {
			return Result{}, &TransitionError{State: cur, Kind: in.Kind}
		}
		return Result{Next: cur, SetThreshold: true, Threshold: in.Threshold}, nil

	case MsgDisconnect:
		if cur != Play {
			return Result{}, &TransitionError{State: cur, Kind: in.Kind}
		}
		return Result{Next: cur, Teardown: true}, nil
	}
	return Result{}, fmt.Errorf("unknown control message kind %d", int(in.Kind))
}
