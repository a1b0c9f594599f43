// Package session supervises one tracking session from signaling to
// teardown.
package session

import (
	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/signaling"
)

// Event is an inbound occurrence handled by the supervisor's step function.
// The set of implementations is closed.
type Event interface {
	event()
}

// TrackAvailable reports that the video track is open.
type TrackAvailable struct {
	Track media.Track
}

// ChannelAvailable reports that the chat channel is open.
type ChannelAvailable struct {
	Channel protocol.Channel
}

// MessageReceived carries one text message from the chat channel.
type MessageReceived struct {
	Text string
}

// DescriptionReceived carries a remote offer or answer.
type DescriptionReceived struct {
	Message signaling.Message
}

// CandidateReceived carries a remote ICE candidate.
type CandidateReceived struct {
	Message signaling.Message
}

// SessionEnded reports the end of the session. Err is nil for a bye from
// the peer and set when a transport failed.
type SessionEnded struct {
	Err error
}

func (TrackAvailable) event()      {}
func (ChannelAvailable) event()    {}
func (MessageReceived) event()     {}
func (DescriptionReceived) event() {}
func (CandidateReceived) event()   {}
func (SessionEnded) event()        {}

// fromSignaling maps a received signaling message to its event.
func fromSignaling(msg signaling.Message) Event {
	switch msg.Type {
	case signaling.MsgTypeOffer, signaling.MsgTypeAnswer:
		return DescriptionReceived{Message: msg}
	case signaling.MsgTypeCandidate:
		return CandidateReceived{Message: msg}
	default:
		return SessionEnded{}
	}
}
