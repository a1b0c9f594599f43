package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/1ureka/circletrack/internal/animation"
	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/detect"
	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/signaling"
	"github.com/1ureka/circletrack/internal/tracking"
	"github.com/1ureka/circletrack/internal/util"
)

const (
	eventQueueSize   = 64
	poolCloseTimeout = 2 * time.Second
)

// Supervisor owns every resource of one session: the signaling transport,
// the session transport, and the role's animation engine or detection pool.
type Supervisor struct {
	cfg *config.Config
	id  string
	log *util.Logger

	connect func(context.Context, *config.Config) (signaling.Transport, error)
	newPeer PeerFactory

	pingInterval time.Duration
	onScore      func(tracking.Score)

	events  chan Event
	ctx     context.Context // session context, valid during Run
	group   *errgroup.Group
	sig     signaling.Transport
	peer    Peer
	machine *signaling.Machine

	engine *animation.Engine // offer role
	server *tracking.Server

	pool   *detect.Pool // answer role
	client *tracking.Client
}

// New returns a supervisor for cfg using the configured signaling transport
// and a WebRTC session transport.
func New(cfg *config.Config) *Supervisor {
	id := uuid.NewString()
	return &Supervisor{
		cfg:          cfg,
		id:           id,
		log:          util.Scoped("session", id),
		connect:      signaling.Connect,
		newPeer:      NewWebRTCPeer,
		pingInterval: tracking.PingInterval,
		events:       make(chan Event, eventQueueSize),
	}
}

// Run runs one session with cfg. See Supervisor.Run.
func Run(ctx context.Context, cfg *config.Config) error {
	return New(cfg).Run(ctx)
}

// ID identifies the session in logs.
func (s *Supervisor) ID() string { return s.id }

// Run establishes the session and processes events until it is closed.
//
// It returns nil when the peer says bye or ctx is cancelled (after telling
// the peer bye), and an error when a transport fails. Every owned resource
// is released before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.Info("session starting as %s", s.cfg.Role)

	sig, err := s.connect(ctx, s.cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	s.sig = sig

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.group, s.ctx = errgroup.WithContext(runCtx)

	err = s.run(ctx)
	cancel()
	if werr := s.group.Wait(); err == nil {
		err = werr
	}

	s.release()
	if err != nil {
		return err
	}
	s.log.Info("session closed")
	return nil
}

func (s *Supervisor) run(parent context.Context) error {
	if s.cfg.Role.IsInitiator() {
		s.engine = animation.NewEngine()
	} else {
		s.pool = detect.NewPool(newDetector(s.cfg.Detector), detect.DefaultWorkers)
	}

	peer, err := s.newPeer(s.ctx, s.cfg, s.emit, s.sendCandidate)
	if err != nil {
		return err
	}
	s.peer = peer
	s.machine = signaling.NewMachine(s.cfg.Role, peer, s.sig)

	s.group.Go(s.pumpSignaling)
	s.group.Go(s.watchPeer)

	if err := s.machine.Start(s.ctx); err != nil {
		return s.interrupted(parent, err)
	}

	for {
		select {
		case ev := <-s.events:
			done, err := s.step(ev)
			if err != nil {
				return s.interrupted(parent, err)
			}
			if done {
				return nil
			}
		case <-s.ctx.Done():
			return s.interrupted(parent, nil)
		}
	}
}

func newDetector(kind config.Detector) detect.Detector {
	if kind == config.DetectorExtremal {
		return detect.NewExtremal()
	}
	return detect.NewScan()
}

// interrupted turns a parent cancellation into a clean local shutdown.
func (s *Supervisor) interrupted(parent context.Context, err error) error {
	if parent.Err() == nil {
		return err
	}
	s.log.Info("session interrupted")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), time.Second)
	defer cancel()
	s.machine.Shutdown(ctx)
	return nil
}

// step handles one event. It reports done once the session is closed; an
// error is fatal to the session.
func (s *Supervisor) step(ev Event) (bool, error) {
	switch ev := ev.(type) {
	case DescriptionReceived:
		if err := s.machine.Step(s.ctx, ev.Message); err != nil {
			return true, err
		}
		if s.machine.State() == signaling.StateEstablished {
			s.log.Debug("session negotiated")
		}

	case CandidateReceived:
		if err := s.machine.Step(s.ctx, ev.Message); err != nil {
			return true, err
		}

	case TrackAvailable:
		s.startTrack(ev.Track)

	case ChannelAvailable:
		s.startChannel(ev.Channel)

	case MessageReceived:
		if err := s.handleMessage(ev.Text); err != nil {
			return true, err
		}

	case SessionEnded:
		if ev.Err != nil {
			return true, ev.Err
		}
		if err := s.machine.Step(s.ctx, signaling.Bye()); err != nil {
			return true, err
		}
	}

	return s.machine.State() == signaling.StateClosed, nil
}

func (s *Supervisor) startTrack(track media.Track) {
	if s.engine != nil {
		s.group.Go(func() error { return s.pumpFrames(track) })
		return
	}
	s.group.Go(func() error {
		if err := tracking.Consume(s.ctx, s.pool, track); err != nil {
			s.fail("video track", err)
		}
		return nil
	})
}

func (s *Supervisor) startChannel(ch protocol.Channel) {
	if s.engine != nil {
		s.server = tracking.NewServer(s.engine, ch)
		s.server.Interval = s.pingInterval
		s.group.Go(func() error {
			if err := s.server.RunPings(s.ctx); err != nil {
				s.fail("chat channel", err)
			}
			return nil
		})
	} else {
		s.client = tracking.NewClient(s.pool, ch)
	}

	s.group.Go(func() error {
		for {
			text, err := ch.Recv(s.ctx)
			if err != nil {
				if s.ctx.Err() == nil {
					s.fail("chat channel", err)
				}
				return nil
			}
			s.emit(MessageReceived{Text: text})
		}
	})
	s.log.Info("session ready")
}

func (s *Supervisor) handleMessage(text string) error {
	if s.server != nil {
		score, ok := s.server.HandleMessage(text)
		if ok && s.onScore != nil {
			s.onScore(score)
		}
		return nil
	}
	if s.client != nil {
		if err := s.client.HandleMessage(s.ctx, text); err != nil && s.ctx.Err() == nil {
			return &signaling.TransportError{Op: "chat channel", Err: err}
		}
	}
	return nil
}

// pumpFrames writes the animation at the configured rate, advancing one tick
// per frame.
func (s *Supervisor) pumpFrames(track media.Sink) error {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.FPS), 1)
	for {
		if err := track.WriteFrame(s.ctx, s.engine.CurrentFrame()); err != nil {
			if s.ctx.Err() == nil {
				s.fail("video track", err)
			}
			return nil
		}
		if err := limiter.Wait(s.ctx); err != nil {
			return nil
		}
		s.engine.Advance()
	}
}

// pumpSignaling turns received signaling messages into events. It stops
// after forwarding a bye.
func (s *Supervisor) pumpSignaling() error {
	for {
		msg, err := s.sig.Receive(s.ctx)
		if errors.Is(err, protocol.ErrProtocolViolation) {
			s.log.Warn("ignoring signaling message: %v", err)
			continue
		}
		if err != nil {
			if s.ctx.Err() == nil {
				s.emit(SessionEnded{Err: err})
			}
			return nil
		}

		ev := fromSignaling(msg)
		s.emit(ev)
		if _, bye := ev.(SessionEnded); bye {
			return nil
		}
	}
}

func (s *Supervisor) watchPeer() error {
	select {
	case <-s.peer.Done():
		if s.ctx.Err() == nil {
			s.fail("peer connection", s.peer.Err())
		}
	case <-s.ctx.Done():
	}
	return nil
}

// fail reports a transport failure as the end of the session.
func (s *Supervisor) fail(op string, err error) {
	s.emit(SessionEnded{Err: &signaling.TransportError{Op: op, Err: err}})
}

// emit queues ev for the step loop. It never blocks past the session's end.
func (s *Supervisor) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Supervisor) sendCandidate(c webrtc.ICECandidateInit) {
	if err := s.machine.SendCandidate(s.ctx, c); err != nil && s.ctx.Err() == nil {
		s.log.Debug("failed to send ICE candidate: %v", err)
	}
}

// release frees every owned resource. Failures are logged, not returned.
func (s *Supervisor) release() {
	if s.pool != nil {
		if err := s.pool.Close(poolCloseTimeout); err != nil {
			s.log.Warn("abandoning detection workers: %v", err)
		}
	}

	var errs []error
	if s.peer != nil {
		errs = append(errs, s.peer.Close())
	}
	errs = append(errs, s.sig.Close())
	if err := errors.Join(errs...); err != nil {
		s.log.Debug("cleanup: %v", err)
	}
}
