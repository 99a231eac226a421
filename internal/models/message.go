package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SignalType identifies the kind of a signaling event.
type SignalType string

const (
	// Client -> server.
	SignalTypeJoinRoom     SignalType = "join-room"
	SignalTypeStartCall    SignalType = "start-call"
	SignalTypeAcceptCall   SignalType = "accept-call"
	SignalTypeEndCall      SignalType = "end-call"
	SignalTypeOffer        SignalType = "offer"
	SignalTypeAnswer       SignalType = "answer"
	SignalTypeICECandidate SignalType = "ice-candidate"
	SignalTypeToggleMute   SignalType = "toggle-mute"

	// Server -> client.
	SignalTypeConnected    SignalType = "connected"
	SignalTypeUserJoined   SignalType = "user-joined"
	SignalTypeRoomUsers    SignalType = "room-users"
	SignalTypeIncomingCall SignalType = "incoming-call"
	SignalTypeCallAccepted SignalType = "call-accepted"
	SignalTypeCallEnded    SignalType = "call-ended"
	SignalTypeUserMuted    SignalType = "user-muted"
	SignalTypeUserLeft     SignalType = "user-left"
	SignalTypeError        SignalType = "error"
)

// ErrInvalidMessage is returned when an inbound message fails validation.
var ErrInvalidMessage = errors.New("invalid message")

// SignalMessage is the JSON envelope shared by every event kind.
// Offer/answer/ice-candidate bodies ride in Payload as raw bytes and are
// forwarded without inspection.
type SignalMessage struct {
	Type         SignalType      `json:"type"`
	RoomKey      string          `json:"roomKey,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	UserName     string          `json:"userName,omitempty"`
	ConnectionID string          `json:"connectionId,omitempty"`
	To           string          `json:"to,omitempty"`
	From         string          `json:"from,omitempty"`
	FromUserID   string          `json:"fromUserId,omitempty"`
	CreatorID    string          `json:"creatorId,omitempty"`
	CreatorName  string          `json:"creatorName,omitempty"`
	Muted        *bool           `json:"muted,omitempty"`
	Users        []User          `json:"users,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// IsNegotiation reports whether the message is one of the three direct-relay
// kinds (offer, answer, ice-candidate).
func (m *SignalMessage) IsNegotiation() bool {
	switch m.Type {
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeICECandidate:
		return true
	}
	return false
}

// Validate checks that a client-submitted message carries the required
// fields for its kind. Server-emitted kinds are rejected outright.
func (m *SignalMessage) Validate() error {
	switch m.Type {
	case SignalTypeJoinRoom, SignalTypeStartCall, SignalTypeAcceptCall:
		return m.require(field{"roomKey", m.RoomKey}, field{"userId", m.UserID}, field{"userName", m.UserName})
	case SignalTypeEndCall:
		return m.require(field{"roomKey", m.RoomKey}, field{"userId", m.UserID})
	case SignalTypeOffer, SignalTypeAnswer, SignalTypeICECandidate:
		if len(m.Payload) == 0 {
			return fmt.Errorf("%w: %s missing payload", ErrInvalidMessage, m.Type)
		}
		return m.require(field{"to", m.To}, field{"roomKey", m.RoomKey}, field{"fromUserId", m.FromUserID})
	case SignalTypeToggleMute:
		if m.Muted == nil {
			return fmt.Errorf("%w: toggle-mute missing muted", ErrInvalidMessage)
		}
		return m.require(field{"roomKey", m.RoomKey}, field{"userId", m.UserID})
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidMessage, m.Type)
	}
}

type field struct {
	name  string
	value string
}

func (m *SignalMessage) require(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s missing %s", ErrInvalidMessage, m.Type, f.name)
		}
	}
	return nil
}

// ErrorMessage builds the error event sent back to an offending connection.
func ErrorMessage(err error) SignalMessage {
	return SignalMessage{Type: SignalTypeError, Error: err.Error()}
}
