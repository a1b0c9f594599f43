package tracking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/1ureka/circletrack/internal/animation"
	"github.com/1ureka/circletrack/internal/media"
	"github.com/1ureka/circletrack/internal/metrics"
	"github.com/1ureka/circletrack/internal/protocol"
	"github.com/1ureka/circletrack/internal/util"
)

// PingInterval is the liveness cadence of the server.
const PingInterval = time.Second

// Ticker exposes the current animation tick.
type Ticker interface {
	Tick() int
}

// Score is the outcome of one coordinate report.
type Score struct {
	Tick     int
	Reported media.Coordinate
	Truth    media.Coordinate
	Error    float64
}

// Server is the protocol handler of the offering role.
type Server struct {
	// Interval is the ping cadence used by RunPings.
	Interval time.Duration

	clock  Ticker
	ch     protocol.Sender
	ledger *ledger
}

// NewServer returns a handler that pairs reports with ticks read from clock.
func NewServer(clock Ticker, ch protocol.Sender) *Server {
	return &Server{
		Interval: PingInterval,
		clock:    clock,
		ch:       ch,
		ledger:   newLedger(),
	}
}

// Ping records the current tick and sends one ping.
func (s *Server) Ping() error {
	s.ledger.record(s.clock.Tick())
	if err := protocol.Send(s.ch, protocol.Ping()); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}
	metrics.Messages.WithLabelValues("sent", protocol.KindPing.String()).Inc()
	return nil
}

// RunPings sends a ping right away and then once per interval until ctx
// ends. A send failure is returned.
func (s *Server) RunPings(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if err := s.Ping(); err != nil {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// HandleMessage processes one inbound text. A pong only retires the oldest
// outstanding ping; a report is scored against that ping's tick, or against
// the current tick when nothing is outstanding. Anything else is logged and
// ignored. The score is returned for reports.
func (s *Server) HandleMessage(text string) (Score, bool) {
	msg, err := protocol.Parse(text)
	if err != nil {
		metrics.ProtocolViolations.Inc()
		util.LogWarning("ignoring message %q: %v", text, err)
		return Score{}, false
	}
	metrics.Messages.WithLabelValues("received", msg.Kind.String()).Inc()

	switch msg.Kind {
	case protocol.KindPong:
		s.ledger.consume()
		return Score{}, false

	case protocol.KindReport:
		tick, ok := s.ledger.consume()
		if !ok {
			tick = s.clock.Tick()
		}
		score := Evaluate(msg.Coord, tick)
		s.observe(score)
		return score, true

	default:
		util.LogDebug("ignoring unexpected %s from client", msg.Kind)
		return Score{}, false
	}
}

func (s *Server) observe(score Score) {
	util.LogInfo("coords received: %s", score.Reported)
	util.LogInfo("coords server: %s", score.Truth)
	util.LogInfo("error: %.2f", score.Error)

	metrics.TrackingError.Observe(score.Error)
	util.Stats.AddReport()
}

// Evaluate scores reported against the ground truth of tick.
func Evaluate(reported media.Coordinate, tick int) Score {
	truth := animation.GroundTruth(tick)
	dx := float64(reported.X - truth.X)
	dy := float64(reported.Y - truth.Y)
	return Score{
		Tick:     tick,
		Reported: reported,
		Truth:    truth,
		Error:    math.Hypot(dx, dy),
	}
}
