// Package transport is the pion-backed session transport: one PeerConnection
// carrying a reliable "chat" channel for protocol messages and a lossy
// "video" channel for frames.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/util"
)

// ErrClosed is the cause reported by Err after Close.
var ErrClosed = errors.New("transport closed")

// Handlers receive the session's channels once they open and every locally
// gathered ICE candidate. They run on pion goroutines and must not block.
type Handlers struct {
	OnVideo     func(*Video)
	OnChat      func(*Chat)
	OnCandidate func(webrtc.ICECandidateInit)
}

// Transport wraps a single PeerConnection and its two DataChannels.
//
// The offering role creates both channels before its first offer; the
// answering role learns of them through OnDataChannel. Either way the
// handlers fire when a channel opens.
type Transport struct {
	pc       *webrtc.PeerConnection
	handlers Handlers

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	channels []*webrtc.DataChannel
	pcState  webrtc.PeerConnectionState

	iceMu     sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit // remote candidates received before the remote description
}

// New creates a Transport for role. The transport ends when ctx is cancelled,
// Close is called, or the PeerConnection fails.
func New(ctx context.Context, role config.Role, stun []string, h Handlers) (*Transport, error) {
	pc, err := newPeerConnection(stun)
	if err != nil {
		return nil, fmt.Errorf("failed to create PeerConnection: %w", err)
	}

	tCtx, tCancel := context.WithCancelCause(ctx)
	t := &Transport{
		pc:       pc,
		handlers: h,
		ctx:      tCtx,
		cancel:   tCancel,
		pcState:  webrtc.PeerConnectionStateNew,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering and is not forwarded.
		if c != nil && t.handlers.OnCandidate != nil {
			t.handlers.OnCandidate(c.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()

		switch state {
		case webrtc.PeerConnectionStateConnected:
			util.LogSuccess("WebRTC connection established")
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			tCancel(fmt.Errorf("peer connection %s", state))
		}
	})

	if role.IsInitiator() {
		chat, err := newChatChannel(pc)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("failed to create %s channel: %w", ChatLabel, err)
		}
		video, err := newVideoChannel(pc)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("failed to create %s channel: %w", VideoLabel, err)
		}
		t.attach(chat)
		t.attach(video)
	} else {
		pc.OnDataChannel(t.attach)
	}

	return t, nil
}

// attach wraps dc by label and reports it to the handlers once open.
func (t *Transport) attach(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.channels = append(t.channels, dc)
	t.mu.Unlock()

	var openOnce sync.Once
	openSignal := make(chan struct{})

	switch dc.Label() {
	case ChatLabel:
		chat := newChat(dc)
		dc.OnOpen(func() {
			openOnce.Do(func() { close(openSignal) })
			util.LogDebug("DataChannel %q open", ChatLabel)
			if t.handlers.OnChat != nil {
				t.handlers.OnChat(chat)
			}
		})

	case VideoLabel:
		video := newVideo(t.ctx, dc, openSignal)
		dc.OnOpen(func() {
			openOnce.Do(func() { close(openSignal) })
			util.LogDebug("DataChannel %q open", VideoLabel)
			if t.handlers.OnVideo != nil {
				t.handlers.OnVideo(video)
			}
		})

	default:
		util.LogWarning("ignoring unexpected DataChannel %q", dc.Label())
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Done returns a channel that is closed when the Transport is shut down
// (PeerConnection failed or closed, Close called, or parent context cancelled).
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Err returns why the Transport ended, or nil while it is alive.
func (t *Transport) Err() error {
	return context.Cause(t.ctx)
}

// Close shuts down the DataChannels and the PeerConnection.
func (t *Transport) Close() error {
	t.cancel(ErrClosed)

	t.mu.Lock()
	channels := t.channels
	t.channels = nil
	t.mu.Unlock()

	errs := make([]error, 0, len(channels)+1)
	for _, dc := range channels {
		errs = append(errs, dc.Close())
	}
	errs = append(errs, t.pc.Close())
	return errors.Join(errs...)
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP, including rollbacks.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP, then adds any candidates that
// arrived before it.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	t.iceMu.Lock()
	defer t.iceMu.Unlock()

	if err := t.pc.SetRemoteDescription(sdp); err != nil {
		return err
	}
	t.remoteSet = true

	for _, c := range t.pending {
		if err := t.pc.AddICECandidate(c); err != nil {
			util.LogWarning("ignoring buffered ICE candidate: %v", err)
		}
	}
	t.pending = nil
	return nil
}

// AddICECandidate adds a remote ICE candidate received through signaling.
// Candidates arriving before the remote description are held until it is set.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	t.iceMu.Lock()
	defer t.iceMu.Unlock()

	if !t.remoteSet {
		t.pending = append(t.pending, candidate)
		return nil
	}
	return t.pc.AddICECandidate(candidate)
}
