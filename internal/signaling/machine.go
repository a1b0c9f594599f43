package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/metrics"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/util"
)

// byeTimeout bounds the farewell sent when the session is cancelled locally.
const byeTimeout = time.Second

// State is the negotiation state of a session.
type State int32

const (
	StateIdle State = iota
	StateAwaitingRemoteDescription
	StateNegotiating
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRemoteDescription:
		return "awaiting-remote-description"
	case StateNegotiating:
		return "negotiating"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Peer is the negotiating half of the session transport.
type Peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
}

// Machine drives offer/answer negotiation over a signaling Transport.
//
// Step must be called from a single goroutine. State, Established and
// SendCandidate are safe to use concurrently.
type Machine struct {
	role config.Role
	peer Peer
	sig  Transport

	state       atomic.Int32
	established chan struct{}
	estOnce     sync.Once

	// localOfferPending is set between sending an offer and applying the
	// matching answer.
	localOfferPending bool
}

// NewMachine returns a machine in StateIdle.
func NewMachine(role config.Role, peer Peer, sig Transport) *Machine {
	m := &Machine{
		role:        role,
		peer:        peer,
		sig:         sig,
		established: make(chan struct{}),
	}
	m.setState(StateIdle)
	return m
}

// State returns the current negotiation state.
func (m *Machine) State() State { return State(m.state.Load()) }

// Established returns a channel closed the first time the session reaches
// StateEstablished.
func (m *Machine) Established() <-chan struct{} { return m.established }

func (m *Machine) setState(s State) {
	prev := State(m.state.Swap(int32(s)))
	if prev != s {
		util.LogDebug("signaling state %s -> %s", prev, s)
	}
	metrics.SessionState.Reset()
	metrics.SessionState.WithLabelValues(s.String()).Set(1)

	if s == StateEstablished {
		m.estOnce.Do(func() { close(m.established) })
	}
}

// Start performs the local decision to negotiate. The offering role sends
// its offer; the answering role waits for one. Both end in
// StateAwaitingRemoteDescription.
func (m *Machine) Start(ctx context.Context) error {
	if m.State() != StateIdle {
		return nil
	}
	if !m.role.IsInitiator() {
		m.setState(StateAwaitingRemoteDescription)
		return nil
	}

	offer, err := m.peer.CreateOffer()
	if err != nil {
		return &TransportError{Op: "create offer", Err: err}
	}
	if err := m.peer.SetLocalDescription(offer); err != nil {
		return &TransportError{Op: "set local offer", Err: err}
	}
	if err := m.sig.Send(ctx, Offer(offer.SDP)); err != nil {
		return err
	}

	m.localOfferPending = true
	m.setState(StateAwaitingRemoteDescription)
	return nil
}

// Step applies one received message. It returns a non-nil error only when
// the transport fails; a rejected description or candidate is logged and
// skipped.
func (m *Machine) Step(ctx context.Context, msg Message) error {
	if m.State() == StateClosed {
		return nil
	}

	switch msg.Type {
	case MsgTypeOffer:
		return m.handleOffer(ctx, msg)
	case MsgTypeAnswer:
		m.handleAnswer(msg)
	case MsgTypeCandidate:
		if err := m.peer.AddICECandidate(msg.CandidateInit()); err != nil {
			util.LogWarning("ignoring remote ICE candidate: %v", err)
		}
	case MsgTypeBye:
		util.LogInfo("signaling peer said bye")
		m.setState(StateClosed)
	default:
		util.LogWarning("ignoring signaling message: %v", msg.Validate())
	}
	return nil
}

func (m *Machine) handleOffer(ctx context.Context, msg Message) error {
	prev := m.State()
	desc, _ := msg.Description()

	// A peer offering while our own offer is pending wins; drop ours.
	if m.localOfferPending {
		if err := m.peer.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			return &TransportError{Op: "rollback local offer", Err: err}
		}
		m.localOfferPending = false
	}

	m.setState(StateNegotiating)
	if err := m.peer.SetRemoteDescription(desc); err != nil {
		util.LogWarning("%v: rejected remote offer: %v", protocol.ErrProtocolViolation, err)
		m.setState(prev)
		return nil
	}

	answer, err := m.peer.CreateAnswer()
	if err != nil {
		return &TransportError{Op: "create answer", Err: err}
	}
	if err := m.peer.SetLocalDescription(answer); err != nil {
		return &TransportError{Op: "set local answer", Err: err}
	}
	if err := m.sig.Send(ctx, Answer(answer.SDP)); err != nil {
		return err
	}

	if prev == StateEstablished {
		util.LogInfo("renegotiated session")
	}
	m.setState(StateEstablished)
	return nil
}

func (m *Machine) handleAnswer(msg Message) {
	if !m.localOfferPending {
		util.LogWarning("%v: unexpected answer in state %s", protocol.ErrProtocolViolation, m.State())
		return
	}

	prev := m.State()
	desc, _ := msg.Description()

	m.setState(StateNegotiating)
	if err := m.peer.SetRemoteDescription(desc); err != nil {
		util.LogWarning("%v: rejected remote answer: %v", protocol.ErrProtocolViolation, err)
		m.setState(prev)
		return
	}

	m.localOfferPending = false
	m.setState(StateEstablished)
}

// SendCandidate trickles a locally gathered ICE candidate to the peer.
func (m *Machine) SendCandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	if m.State() == StateClosed {
		return nil
	}
	return m.sig.Send(ctx, Candidate(c))
}

// Shutdown moves the machine to StateClosed, telling the peer with a
// best-effort bye. It is idempotent.
func (m *Machine) Shutdown(ctx context.Context) {
	if State(m.state.Load()) == StateClosed {
		return
	}
	m.setState(StateClosed)
	if err := m.sig.Send(ctx, Bye()); err != nil {
		util.LogDebug("failed to send bye: %v", err)
	}
}

// Run starts negotiation and applies received messages until the machine
// reaches StateClosed, either by a bye from the peer or by ctx ending, and
// then returns nil. A signaling transport failure is returned as a
// *TransportError. Undecodable messages are logged and skipped.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return m.stopOn(ctx, err)
	}

	for m.State() != StateClosed {
		msg, err := m.sig.Receive(ctx)
		if errors.Is(err, protocol.ErrProtocolViolation) {
			util.LogWarning("ignoring signaling message: %v", err)
			continue
		}
		if err != nil {
			return m.stopOn(ctx, err)
		}
		if err := m.Step(ctx, msg); err != nil {
			return m.stopOn(ctx, err)
		}
	}
	return nil
}

// stopOn turns a context cancellation into a local shutdown.
func (m *Machine) stopOn(ctx context.Context, err error) error {
	if ctx.Err() != nil && !errors.Is(err, ErrTransport) {
		byeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), byeTimeout)
		defer cancel()
		m.Shutdown(byeCtx)
		return nil
	}
	m.setState(StateClosed)
	return err
}
