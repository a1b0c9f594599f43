// Package signaling exchanges session descriptions and ICE candidates with
// the remote peer and drives the negotiation state machine.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/protocol"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
	MsgTypeBye       MessageType = "bye"
)

// Message is the JSON object exchanged over the signaling transport.
// Candidate messages carry the media id and line index as "id" and "label".
type Message struct {
	Type          MessageType `json:"type"`
	SDP           string      `json:"sdp,omitempty"`
	Candidate     string      `json:"candidate,omitempty"`
	SDPMid        *string     `json:"id,omitempty"`
	SDPMLineIndex *uint16     `json:"label,omitempty"`
}

// Offer wraps a local offer SDP.
func Offer(sdp string) Message { return Message{Type: MsgTypeOffer, SDP: sdp} }

// Answer wraps a local answer SDP.
func Answer(sdp string) Message { return Message{Type: MsgTypeAnswer, SDP: sdp} }

// Bye announces that the sender is leaving the session.
func Bye() Message { return Message{Type: MsgTypeBye} }

// Candidate wraps a locally gathered ICE candidate.
func Candidate(init webrtc.ICECandidateInit) Message {
	return Message{
		Type:          MsgTypeCandidate,
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	}
}

// Validate rejects unknown types and messages missing their payload.
func (m Message) Validate() error {
	switch m.Type {
	case MsgTypeOffer, MsgTypeAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", protocol.ErrProtocolViolation, m.Type)
		}
	case MsgTypeCandidate:
		if m.Candidate == "" {
			return fmt.Errorf("%w: candidate without payload", protocol.ErrProtocolViolation)
		}
	case MsgTypeBye:
	default:
		return fmt.Errorf("%w: unknown signaling type %q", protocol.ErrProtocolViolation, m.Type)
	}
	return nil
}

// Description converts an offer or answer into a session description.
func (m Message) Description() (webrtc.SessionDescription, error) {
	switch m.Type {
	case MsgTypeOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP}, nil
	case MsgTypeAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s carries no description", protocol.ErrProtocolViolation, m.Type)
	}
}

// CandidateInit converts a candidate message into its pion form.
func (m Message) CandidateInit() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     m.Candidate,
		SDPMid:        m.SDPMid,
		SDPMLineIndex: m.SDPMLineIndex,
	}
}

// decode parses one wire message. Malformed JSON and invalid messages are
// protocol violations, never transport failures.
func decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", protocol.ErrProtocolViolation, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
