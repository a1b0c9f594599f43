package session

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/signaling"
	"github.com/1ureka/circletrack/internal/transport"
)

// Peer is the session transport owned by the supervisor.
type Peer interface {
	signaling.Peer
	Done() <-chan struct{}
	Err() error
	Close() error
}

// PeerFactory creates the session transport. emit receives its channels as
// events; onCandidate receives every locally gathered ICE candidate.
type PeerFactory func(ctx context.Context, cfg *config.Config, emit func(Event), onCandidate func(webrtc.ICECandidateInit)) (Peer, error)

// NewWebRTCPeer is the pion-backed PeerFactory.
func NewWebRTCPeer(ctx context.Context, cfg *config.Config, emit func(Event), onCandidate func(webrtc.ICECandidateInit)) (Peer, error) {
	return transport.New(ctx, cfg.Role, cfg.STUN, transport.Handlers{
		OnVideo:     func(v *transport.Video) { emit(TrackAvailable{Track: v}) },
		OnChat:      func(c *transport.Chat) { emit(ChannelAvailable{Channel: c}) },
		OnCandidate: onCandidate,
	})
}
