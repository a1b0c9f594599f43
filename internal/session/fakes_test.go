package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/signaling"
)

var errLinkClosed = errors.New("link closed")

// ---------------------------------------------------------------------------
// In-memory signaling
// ---------------------------------------------------------------------------

type memSignal struct {
	in   <-chan signaling.Message
	out  chan<- signaling.Message
	done chan struct{}
	once *sync.Once

	closed atomic.Bool
}

func newSignalPair() (*memSignal, *memSignal) {
	ab := make(chan signaling.Message, 64)
	ba := make(chan signaling.Message, 64)
	done := make(chan struct{})
	once := &sync.Once{}
	return &memSignal{in: ba, out: ab, done: done, once: once},
		&memSignal{in: ab, out: ba, done: done, once: once}
}

func (m *memSignal) Send(ctx context.Context, msg signaling.Message) error {
	select {
	case <-m.done:
		return &signaling.TransportError{Op: "send", Err: errLinkClosed}
	default:
	}
	select {
	case m.out <- msg:
		return nil
	case <-m.done:
		return &signaling.TransportError{Op: "send", Err: errLinkClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *memSignal) Receive(ctx context.Context) (signaling.Message, error) {
	select {
	case msg := <-m.in:
		return msg, nil
	case <-m.done:
		return signaling.Message{}, &signaling.TransportError{Op: "receive", Err: errLinkClosed}
	case <-ctx.Done():
		return signaling.Message{}, ctx.Err()
	}
}

func (m *memSignal) Close() error {
	m.closed.Store(true)
	m.once.Do(func() { close(m.done) })
	return nil
}

// ---------------------------------------------------------------------------
// In-memory session transport
// ---------------------------------------------------------------------------

type memChat struct {
	in   <-chan string
	out  chan<- string
	done <-chan struct{}
}

func (c *memChat) SendText(text string) error {
	select {
	case c.out <- text:
		return nil
	case <-c.done:
		return errLinkClosed
	}
}

func (c *memChat) Recv(ctx context.Context) (string, error) {
	select {
	case text := <-c.in:
		return text, nil
	case <-c.done:
		return "", errLinkClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type memTrack struct {
	in   <-chan media.Frame
	out  chan<- media.Frame
	done <-chan struct{}
}

// WriteFrame drops the frame when the reader is behind.
func (t *memTrack) WriteFrame(ctx context.Context, f media.Frame) error {
	select {
	case <-t.done:
		return errLinkClosed
	case t.out <- f:
	default:
	}
	return nil
}

func (t *memTrack) Recv(ctx context.Context) (media.Frame, error) {
	select {
	case f := <-t.in:
		return f, nil
	case <-t.done:
		return media.Frame{}, errLinkClosed
	case <-ctx.Done():
		return media.Frame{}, ctx.Err()
	}
}

// link joins two fake peers.
type link struct {
	done chan struct{}
	once sync.Once
	chat [2]*memChat
	vid  [2]*memTrack
}

func newLink() *link {
	l := &link{done: make(chan struct{})}
	c01, c10 := make(chan string, 64), make(chan string, 64)
	v01, v10 := make(chan media.Frame, 4), make(chan media.Frame, 4)
	l.chat[0] = &memChat{in: c10, out: c01, done: l.done}
	l.chat[1] = &memChat{in: c01, out: c10, done: l.done}
	l.vid[0] = &memTrack{in: v10, out: v01, done: l.done}
	l.vid[1] = &memTrack{in: v01, out: v10, done: l.done}
	return l
}

func (l *link) cut() { l.once.Do(func() { close(l.done) }) }

// fakePeer opens its channels once it holds a local and a remote description.
type fakePeer struct {
	chat  protocol.Channel
	track media.Track
	emit  func(Event)

	mu     sync.Mutex
	local  bool
	remote bool
	opened bool

	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "fake-offer"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "fake-answer"}, nil
}

func (p *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d.Type != webrtc.SDPTypeRollback {
		p.local = true
	}
	p.maybeOpen()
	return nil
}

func (p *fakePeer) SetRemoteDescription(webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = true
	p.maybeOpen()
	return nil
}

func (p *fakePeer) AddICECandidate(webrtc.ICECandidateInit) error { return nil }

func (p *fakePeer) maybeOpen() {
	if p.opened || !p.local || !p.remote {
		return
	}
	p.opened = true
	go func() {
		p.emit(TrackAvailable{Track: p.track})
		p.emit(ChannelAvailable{Channel: p.chat})
	}()
}

func (p *fakePeer) Done() <-chan struct{} { return p.done }

func (p *fakePeer) Err() error {
	if p.closed.Load() {
		return errLinkClosed
	}
	return nil
}

func (p *fakePeer) Close() error {
	p.closed.Store(true)
	p.once.Do(func() { close(p.done) })
	return nil
}

// fakeFactory returns a PeerFactory handing out side i of l, and the peer it
// created once called.
func fakeFactory(l *link, i int) (PeerFactory, func() *fakePeer) {
	var (
		mu   sync.Mutex
		peer *fakePeer
	)
	factory := func(_ context.Context, _ *config.Config, emit func(Event), _ func(webrtc.ICECandidateInit)) (Peer, error) {
		mu.Lock()
		defer mu.Unlock()
		peer = &fakePeer{chat: l.chat[i], track: l.vid[i], emit: emit, done: make(chan struct{})}
		return peer, nil
	}
	get := func() *fakePeer {
		mu.Lock()
		defer mu.Unlock()
		return peer
	}
	return factory, get
}
